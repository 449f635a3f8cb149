// Package wire define el protocolo de mensajes cross-window con el widget
// embebido de la red: sobres COMMAND/RESULT/EVENT con correlación por ref.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Tipos de mensaje del sobre exterior.
const (
	TypeCommand = "COMMAND"
	TypeResult  = "RESULT"
	TypeEvent   = "EVENT"
)

// Tipos de comando conocidos.
const (
	CommandInitialization       = "INITIALIZATION"
	CommandAuthorizationRequest = "AUTHORIZATION_REQUEST"
)

// Tipos de evento conocidos. Los eventos son no solicitados y correlacionan
// por sesión activa, no por ref.
const (
	EventDeviceDataCaptured     = "DEVICE_DATA_CAPTURED"
	EventDeviceDataCaptureFail  = "DEVICE_DATA_CAPTURE_FAILED"
	EventPopupWindowTerminated  = "POPUP_WINDOW_TERMINATED"
)

// Status de un RESULT.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// TokenTypeHintServerState identifica el token de estado de servidor dentro
// de la lista de tokens del resultado de inicialización.
const TokenTypeHintServerState = "urn:ext:oauth:token-type-hint:server_state"

// UEBASourceVDI es el tag del proveedor de device-profiling cuya referencia
// de sesión necesita el PAR.
const UEBASourceVDI = "VDI"

var ErrMalformedMessage = errors.New("wire: mensaje malformado")

// Kind clasifica un mensaje entrante. Los tags desconocidos caen en
// KindUnknown: se loguean y se ignoran, nunca son error (compatibilidad
// hacia adelante).
type Kind int

const (
	KindUnknown Kind = iota
	KindCommand
	KindResult
	KindEvent
)

// Message es el sobre exterior. ref ata un COMMAND al RESULT que el widget
// devuelve; ts va en epoch millis.
type Message struct {
	Type    string   `json:"type"`
	Ref     string   `json:"ref,omitempty"`
	TS      int64    `json:"ts,omitempty"`
	Command *Command `json:"command,omitempty"`
	Result  *Result  `json:"result,omitempty"`
	Event   *Event   `json:"event,omitempty"`
}

// Command es el lado saliente: el orquestador lo envía, nunca lo recibe.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Result responde a un COMMAND previo.
type Result struct {
	CommandType string          `json:"command_type"`
	Status      string          `json:"status"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Event es no solicitado (fin del profiling, popup cerrado).
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Kind discrimina por el sobre: el tipo declarado tiene que venir acompañado
// de su rama; si no, el mensaje es Unknown.
func (m *Message) Kind() Kind {
	switch m.Type {
	case TypeCommand:
		if m.Command != nil {
			return KindCommand
		}
	case TypeResult:
		if m.Result != nil {
			return KindResult
		}
	case TypeEvent:
		if m.Event != nil {
			return KindEvent
		}
	}
	return KindUnknown
}

// Parse deserializa un mensaje entrante. Solo el JSON roto es error; un tipo
// desconocido se resuelve después vía Kind().
func Parse(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &m, nil
}

// Token es una entrada de la lista de tokens del resultado de inicialización.
type Token struct {
	TokenTypeHint string `json:"token_type_hint"`
	Token         string `json:"token"`
}

// InitializationData es el data de un RESULT(INITIALIZATION, SUCCESS).
type InitializationData struct {
	Tokens        []Token `json:"tokens"`
	XViaHint      string  `json:"x_via_hint,omitempty"`
	IframeSupport bool    `json:"iframe_support,omitempty"`
}

// FailureData es el data de un RESULT/EVENT fallido.
type FailureData struct {
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// InitializationData decodifica el payload de un resultado de inicialización.
func (r *Result) InitializationData() (*InitializationData, error) {
	var d InitializationData
	if err := json.Unmarshal(r.Data, &d); err != nil {
		return nil, fmt.Errorf("wire: data de inicialización: %w", err)
	}
	return &d, nil
}

// FailureData decodifica el detalle de error; un payload vacío no es error.
func (r *Result) FailureData() FailureData {
	var d FailureData
	if len(r.Data) > 0 {
		_ = json.Unmarshal(r.Data, &d)
	}
	return d
}

// ServerStateToken recorre la lista buscando el token de server_state.
// Devuelve "" si no está: su ausencia tras un SUCCESS es inicialización
// incompleta y la decide el flujo, no el parser.
func (d *InitializationData) ServerStateToken() string {
	for _, t := range d.Tokens {
		if t.TokenTypeHint == TokenTypeHintServerState {
			return t.Token
		}
	}
	return ""
}

// UEBA es una entrada de captura de device-profiling del lado evento.
// Ojo: las claves difieren del lado comando (source/ref).
type UEBA struct {
	Source string `json:"ueba_source"`
	Ref    string `json:"ueba_ref"`
}

// DeviceDataCaptured es el data de un EVENT(DEVICE_DATA_CAPTURED).
type DeviceDataCaptured struct {
	UEBAs []UEBA `json:"uebas"`
}

// DeviceData decodifica el payload de captura de dispositivo.
func (e *Event) DeviceData() (*DeviceDataCaptured, error) {
	var d DeviceDataCaptured
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil, fmt.Errorf("wire: data de captura: %w", err)
	}
	return &d, nil
}

// DFPSessionRef extrae la referencia de sesión del proveedor de profiling.
func (d *DeviceDataCaptured) DFPSessionRef() string {
	for _, u := range d.UEBAs {
		if u.Source == UEBASourceVDI {
			return u.Ref
		}
	}
	return ""
}
