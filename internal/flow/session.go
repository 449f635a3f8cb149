// Package flow implementa la máquina de estados que orquesta registro y
// autenticación de passkeys: join de inicialización + device-profiling,
// PAR de sondeo, fallback a step-up y hand-off final de autorización.
package flow

import (
	"time"

	"github.com/dropDatabas3/passbridge/internal/authdetail"
)

// FlowType distingue la intención del caller. La variante del PAR de sondeo
// es siempre de autenticación; el tipo solo decide el reintento.
type FlowType string

const (
	FlowRegistration FlowType = "registration"
	FlowPayment      FlowType = "payment"
)

// State del flujo. Las transiciones viven en machine.go.
type State string

const (
	StateIdle                  State = "IDLE"
	StateInitializing          State = "INITIALIZING"
	StateAwaitingDeviceProfile State = "AWAITING_DEVICE_PROFILE"
	StateReadyForPAR           State = "READY_FOR_PAR"
	StatePARInFlight           State = "PAR_IN_FLIGHT"
	StateStepUpRequired        State = "STEP_UP_REQUIRED"
	StateStepUpInFlight        State = "STEP_UP_IN_FLIGHT"
	StatePARRetryInFlight      State = "PAR_RETRY_IN_FLIGHT"
	StateAuthorizationHandoff  State = "AUTHORIZATION_HANDOFF"
	StateCompleted             State = "COMPLETED"
	StateFailed                State = "FAILED"
)

// Terminal indica que la sesión no acepta más transiciones.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Code clasifica un fallo terminal.
type Code string

const (
	CodeInitializationIncomplete Code = "initialization_incomplete"
	CodeInitializationFailed     Code = "initialization_failed"
	CodeDeviceProfileFailed      Code = "device_profile_failed"
	CodeUserAbandoned            Code = "user_abandoned"
	CodeStepUpFailed             Code = "step_up_failed"
	CodeAuthorizationFailed      Code = "authorization_failed"
	CodeTimeout                  Code = "timeout"
	CodeUnexpected               Code = "unexpected"
)

// Session es el estado vivo de un flujo. La mutación pasa siempre por el
// store bajo el mutex de la sesión; el reducer trabaja sobre copias.
type Session struct {
	ID            string   `json:"id"`
	Type          FlowType `json:"type"`
	State         State    `json:"state"`
	CorrelationID string   `json:"correlation_id"`

	MerchantOrigin   string `json:"merchant_origin"`
	IntegratorOrigin string `json:"integrator_origin"`

	// URL del iframe del hub con el COMMAND(INITIALIZATION) en el fragmento
	InitializationURL string `json:"initialization_url,omitempty"`

	// referencia de credencial del pagador y datos de la intención
	CredentialRef string `json:"-"`
	NotifyEmail   string `json:"-"`
	PayeeName     string `json:"payee_name"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`

	// join de las dos terminaciones asíncronas
	ServerStateToken string `json:"-"`
	DFPSessionID     string `json:"-"`
	RoutingHint      string `json:"routing_hint,omitempty"`

	// PKCE del reintento de registro
	CodeVerifier  string `json:"-"`
	CodeChallenge string `json:"-"`

	// evidencia del step-up, adjunta al PAR de reintento
	TrustChain *authdetail.TrustChain `json:"-"`

	// salida del PAR aceptado
	SignedRequest         string `json:"-"`
	AuthorizationEndpoint string `json:"authorization_endpoint,omitempty"`
	AuthorizationURL      string `json:"authorization_url,omitempty"`
	AuthorizationRef      string `json:"-"`

	FailureCode        Code   `json:"failure_code,omitempty"`
	FailureDescription string `json:"failure_description,omitempty"`

	// vencimiento por estado: cada transición lo corre hacia adelante
	Deadline  time.Time `json:"deadline"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
