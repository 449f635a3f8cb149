package wire

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HubPath es el endpoint del hub del widget; el comando viaja en el
// fragmento #msg= para que nunca toque la red como query.
const HubPath = "/oauth2/authorization/request/hub"

// ResponseModeWebMessage indica entrega del resultado por cross-window
// messaging en lugar de redirect.
const ResponseModeWebMessage = "com_visa_web_message"

// ResponseTypeServerState pide a la red que materialice el estado de la
// sesión en un server_state token.
const ResponseTypeServerState = "urn:ext:oauth:response-type:server_state"

// ClientSoftware describe al integrador frente a la red. Las uebas de este
// lado usan claves source/ref, a diferencia del lado evento.
type ClientSoftware struct {
	TopOrigin        string        `json:"top_origin"`
	IntegratorOrigin string        `json:"integrator_origin"`
	UEBAs            []CommandUEBA `json:"uebas"`
	ID               string        `json:"id"`
	Version          string        `json:"version"`
	OAuth2Version    string        `json:"oauth2_version"`
	Tenancy          Tenancy       `json:"tenancy"`
}

type CommandUEBA struct {
	Source string `json:"source"`
	Ref    string `json:"ref"`
}

type Tenancy struct {
	ProductCode string `json:"product_code"`
}

type SessionContext struct {
	APN            string         `json:"apn"`
	ClientSoftware ClientSoftware `json:"client_software"`
}

// InitializationCommandData es el data del COMMAND(INITIALIZATION).
type InitializationCommandData struct {
	ResponseMode   string         `json:"response_mode"`
	RedirectURI    string         `json:"redirect_uri"`
	SessionContext SessionContext `json:"session_context"`
	ResponseType   string         `json:"response_type"`
}

// AuthorizationCommandData es el data del COMMAND(AUTHORIZATION_REQUEST):
// el request object firmado que devolvió el PAR más su endpoint.
type AuthorizationCommandData struct {
	Request               string `json:"request"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
}

// InitializationParams alimenta BuildInitializationCommand.
type InitializationParams struct {
	MerchantOrigin   string
	IntegratorOrigin string
	APN              string
	ClientID         string
	ClientVersion    string
	ProductCode      string
	DFPSessionRef    string
}

// BuildInitializationCommand arma el COMMAND que abre la sesión con el
// widget. Devuelve también el ref para correlacionar el RESULT.
func BuildInitializationCommand(p InitializationParams) (*Message, string, error) {
	if p.DFPSessionRef == "" {
		p.DFPSessionRef = "DFP_SESSION_ID"
	}
	data := InitializationCommandData{
		ResponseMode: ResponseModeWebMessage,
		RedirectURI:  p.IntegratorOrigin,
		SessionContext: SessionContext{
			// la red exige el apn en minúsculas
			APN: strings.ToLower(p.APN),
			ClientSoftware: ClientSoftware{
				TopOrigin:        p.MerchantOrigin,
				IntegratorOrigin: p.IntegratorOrigin,
				UEBAs:            []CommandUEBA{{Source: UEBASourceVDI, Ref: p.DFPSessionRef}},
				ID:               p.ClientID,
				Version:          p.ClientVersion,
				OAuth2Version:    "1.0",
				Tenancy:          Tenancy{ProductCode: p.ProductCode},
			},
		},
		ResponseType: ResponseTypeServerState,
	}
	return wrapCommand(CommandInitialization, data)
}

// BuildAuthorizationCommand arma el COMMAND del hand-off final al popup.
func BuildAuthorizationCommand(request, authorizationEndpoint string) (*Message, string, error) {
	return wrapCommand(CommandAuthorizationRequest, AuthorizationCommandData{
		Request:               request,
		AuthorizationEndpoint: authorizationEndpoint,
	})
}

func wrapCommand(cmdType string, data any) (*Message, string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, "", fmt.Errorf("wire: marshal comando %s: %w", cmdType, err)
	}
	ref := uuid.NewString()
	return &Message{
		Type:    TypeCommand,
		Ref:     ref,
		TS:      time.Now().UnixMilli(),
		Command: &Command{Type: cmdType, Data: raw},
	}, ref, nil
}

// InitializationURL serializa el comando en el fragmento del hub: el iframe
// lo lee de location.hash sin que el JSON viaje al servidor.
func InitializationURL(hubBase string, msg *Message) (string, error) {
	return fragmentURL(hubBase, HubPath, msg)
}

// AuthorizationURL igual que InitializationURL pero contra el endpoint que
// entregó el PAR (binding o authentication según la variante).
func AuthorizationURL(hubBase, authorizationEndpoint string, msg *Message) (string, error) {
	return fragmentURL(hubBase, authorizationEndpoint, msg)
}

func fragmentURL(base, path string, msg *Message) (string, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("wire: marshal mensaje: %w", err)
	}
	return strings.TrimRight(base, "/") + path + "#msg=" + url.QueryEscape(string(raw)), nil
}
