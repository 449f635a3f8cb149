package par

// Outcome clasifica la respuesta de la red a un PAR.
type Outcome string

const (
	// OutcomeSuccess: la red emitió el request object firmado.
	OutcomeSuccess Outcome = "success"

	// OutcomeNoPasskey: error esperado "notfound_amr_values" — no hay
	// authenticator enrolado para esta credencial/dispositivo. Dispara el
	// fallback a step-up, no es un fallo para el usuario final.
	OutcomeNoPasskey Outcome = "no_passkey_found"

	// OutcomeUnexpected: cualquier otro 4xx/5xx. Fatal para el flujo,
	// no se reintenta automáticamente.
	OutcomeUnexpected Outcome = "unexpected"
)

// errNoPasskey es el código de error de la red para "sin enrolamiento".
const errNoPasskey = "notfound_amr_values"

// Result es la respuesta clasificada de la red.
type Result struct {
	Outcome Outcome

	// Campos de éxito
	Request               string
	AuthorizationEndpoint string
	ExpiresIn             int

	// Campos de fallo
	ErrorCode        string
	ErrorDescription string
	HTTPStatus       int
}

// Success reporta si el PAR fue aceptado.
func (r *Result) Success() bool { return r.Outcome == OutcomeSuccess }

// NoPasskey reporta si la red señaló ausencia de enrolamiento.
func (r *Result) NoPasskey() bool { return r.Outcome == OutcomeNoPasskey }

// respuesta cruda de la red: éxito y error comparten el mismo body shape
type wireResponse struct {
	Request               string `json:"request"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	ExpiresIn             int    `json:"expires_in"`
	Error                 string `json:"error"`
	ErrorDescription      string `json:"error_description"`
}
