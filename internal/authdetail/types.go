// Package authdetail construye las dos variantes de authorization_details
// que viajan en el PAR: credential binding (registro) y payment transaction
// (autenticación), más la evidencia de trust chain.
package authdetail

// Tipos de detalle según el contrato de la red.
const (
	TypeCredentialBinding  = "com_visa_payment_credential_binding"
	TypePaymentTransaction = "com_visa_payment_transaction"

	// SchemePAN identifica la referencia de credencial de pago del payer.
	SchemePAN = "com_visa_pan"

	// sourceHintServerState le dice a la red que origin/device se resuelven
	// desde el estado del servidor, nunca desde el payload del cliente.
	// Esto es un límite de confianza, no una optimización.
	sourceHintServerState = "SERVER_STATE"
)

type Account struct {
	Scheme string `json:"scheme"`
	ID     string `json:"id"`
}

type Payer struct {
	Account Account `json:"account"`
}

type Payee struct {
	Origin string `json:"origin"`
	Name   string `json:"name"`
}

// Amount lleva montos como strings decimales: nada de floats cruzando el wire.
type Amount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Label    string `json:"label"`
}

type SourceHint struct {
	SourceHint string `json:"source_hint"`
}

type Confinements struct {
	Origin SourceHint `json:"origin"`
	Device SourceHint `json:"device"`
}

type Notification struct {
	Email string `json:"email"`
}

// Preferences serializa como objeto vacío {} en la variante de transacción.
type Preferences struct {
	Notification *Notification `json:"notification,omitempty"`
}

// AnchorEntry es la evidencia del lado emisor de un step-up completado
// (protocolo, id de transacción del ACS, timestamp).
type AnchorEntry struct {
	Protocol     string   `json:"protocol"`
	SourceHint   string   `json:"source_hint"`
	AMR          []string `json:"amr"`
	SourceIDHint string   `json:"source_id_hint"`
	SourceID     string   `json:"source_id"`
	Time         string   `json:"time"`
}

type Anchor struct {
	Authentication []AnchorEntry `json:"authentication"`
}

// SurrogateEntry referencia los métodos de autenticación reclamados.
type SurrogateEntry struct {
	AMRValues []string `json:"amr_values"`
	Time      string   `json:"time"`
}

type Surrogate struct {
	Authentication []SurrogateEntry `json:"authentication"`
}

// TrustChain es inmutable una vez creada; se adjunta al PAR reintentado.
type TrustChain struct {
	Anchor    Anchor    `json:"anchor"`
	Surrogate Surrogate `json:"surrogate"`
}

// Detail es la variante taggeada: exactamente una por PAR.
type Detail struct {
	Type         string       `json:"type"`
	Payer        Payer        `json:"payer"`
	Payee        Payee        `json:"payee"`
	Details      *Amount      `json:"details,omitempty"`
	Preferences  *Preferences `json:"preferences"`
	Confinements Confinements `json:"confinements"`
	TrustChain   *TrustChain  `json:"trustchain,omitempty"`
}
