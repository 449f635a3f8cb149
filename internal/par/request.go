// Package par arma y envía la Pushed Authorization Request a la red,
// aplicando las capas de autenticación de transporte y clasificando la
// respuesta (éxito / requiere step-up / fallo duro).
package par

import (
	tokens "github.com/dropDatabas3/passbridge/internal/security/token"

	"github.com/dropDatabas3/passbridge/internal/authdetail"
)

const (
	ResponseTypeCode       = "code"
	ResponseModeWebMessage = "com_visa_web_message"
	ScopeOpenID            = "openid"

	PromptCreate = "create"
	PromptLogin  = "login"

	ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// Request es el payload PAR tal como viaja a la red. code_challenge se
// serializa siempre (string vacío en la variante de autenticación, por
// convención del protocolo).
type Request struct {
	ResponseType        string              `json:"response_type"`
	ResponseMode        string              `json:"response_mode"`
	Scope               string              `json:"scope"`
	ServerState         string              `json:"server_state"`
	State               string              `json:"state"`
	RedirectURI         string              `json:"redirect_uri"`
	Prompt              string              `json:"prompt"`
	AMRValues           []string            `json:"amr_values"`
	CodeChallengeMethod string              `json:"code_challenge_method"`
	CodeChallenge       string              `json:"code_challenge"`
	UILocales           []string            `json:"ui_locales"`
	AuthorizationDetail []authdetail.Detail `json:"authorization_details"`
	ClientAssertionType string              `json:"client_assertion_type"`
	ClientAssertion     string              `json:"client_assertion"`
}

// NewRequest arma un PAR con los defaults del protocolo. prompt y
// codeChallenge dependen de la variante: create+challenge para binding,
// login+"" para transacción.
func NewRequest(serverState, state, redirectURI, prompt, codeChallenge string, details []authdetail.Detail) *Request {
	return &Request{
		ResponseType:        ResponseTypeCode,
		ResponseMode:        ResponseModeWebMessage,
		Scope:               ScopeOpenID,
		ServerState:         serverState,
		State:               state,
		RedirectURI:         redirectURI,
		Prompt:              prompt,
		AMRValues:           authdetail.AMRFIDO2,
		CodeChallengeMethod: "S256",
		CodeChallenge:       codeChallenge,
		UILocales:           []string{"en"},
		AuthorizationDetail: details,
		ClientAssertionType: ClientAssertionTypeJWTBearer,
	}
}

// NewPKCE genera el par verifier/challenge (S256). El verifier queda en la
// sesión para el intercambio posterior; el challenge viaja en el PAR de
// registro.
func NewPKCE() (verifier, challenge string, err error) {
	verifier, err = tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", "", err
	}
	return verifier, tokens.SHA256Base64URL(verifier), nil
}
