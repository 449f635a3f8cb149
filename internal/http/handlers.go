package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/passbridge/internal/flow"
	"github.com/dropDatabas3/passbridge/internal/wire"
)

// ClientConfig es lo que la página del merchant necesita para hablar con el
// widget; se expone en GET /v1/config.
type ClientConfig struct {
	HubBaseURL     string   `json:"hub_base_url"`
	AllowedOrigins []string `json:"allowed_origins"`
	APN            string   `json:"apn"`
	ClientVersion  string   `json:"client_version"`
}

// Handlers agrupa la superficie del merchant API sobre el orquestador.
type Handlers struct {
	Orch   *flow.Orchestrator
	Client ClientConfig
}

type initializeRequest struct {
	Type             string `json:"type"`
	MerchantOrigin   string `json:"merchant_origin"`
	IntegratorOrigin string `json:"integrator_origin"`
	CredentialRef    string `json:"credential_ref"`
	NotifyEmail      string `json:"notify_email"`
	PayeeName        string `json:"payee_name"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
}

// InitializeFlow abre un flujo nuevo y devuelve la URL del iframe del hub.
func (h *Handlers) InitializeFlow(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	s, err := h.Orch.Initialize(r.Context(), flow.InitializeParams{
		Type:             flow.FlowType(req.Type),
		MerchantOrigin:   req.MerchantOrigin,
		IntegratorOrigin: req.IntegratorOrigin,
		CredentialRef:    req.CredentialRef,
		NotifyEmail:      req.NotifyEmail,
		PayeeName:        req.PayeeName,
		Amount:           req.Amount,
		Currency:         req.Currency,
	})
	if err != nil {
		writeFlowError(w, err)
		return
	}

	observeFlowStarted(s.Type)
	WriteJSON(w, http.StatusCreated, s)
}

type widgetMessageRequest struct {
	// Origin es el que observó el browser al recibir el postMessage; acá
	// solo se releva, la validación la hace la allow-list del protocolo.
	Origin  string          `json:"origin"`
	Message json.RawMessage `json:"message"`
}

// FlowMessage releva un mensaje del widget (RESULT/EVENT) hacia la máquina
// de estados.
func (h *Handlers) FlowMessage(w http.ResponseWriter, r *http.Request) {
	var req widgetMessageRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if len(req.Message) == 0 {
		WriteError(w, http.StatusBadRequest, "invalid_request", "falta message", 1102)
		return
	}

	s, err := h.Orch.HandleWidgetMessage(r.Context(), chi.URLParam(r, "id"), req.Origin, req.Message)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	h.writeSession(w, s)
}

// FlowStepUp completa el desafío de verificación y retoma el flujo.
func (h *Handlers) FlowStepUp(w http.ResponseWriter, r *http.Request) {
	s, err := h.Orch.StepUp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	h.writeSession(w, s)
}

// FlowAuthorize devuelve (regenerando el ref) el hand-off de autorización.
func (h *Handlers) FlowAuthorize(w http.ResponseWriter, r *http.Request) {
	s, err := h.Orch.Authorize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	h.writeSession(w, s)
}

// FlowStatus devuelve el estado actual de la sesión.
func (h *Handlers) FlowStatus(w http.ResponseWriter, r *http.Request) {
	s, err := h.Orch.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	h.writeSession(w, s)
}

// Config expone la configuración pública del cliente.
func (h *Handlers) Config(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Client)
}

// Readyz responde cuando el servicio puede aceptar flujos.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.Orch == nil {
		WriteError(w, http.StatusServiceUnavailable, "not_ready", "orquestador no inicializado", 1503)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeSession(w http.ResponseWriter, s flow.Session) {
	if s.State == flow.StateFailed {
		observeFlowFailure(s.FailureCode)
	}
	WriteJSON(w, http.StatusOK, s)
}

func writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, flow.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, "session_not_found", "el flujo no existe o venció", 1404)
	case errors.Is(err, flow.ErrInvalidState):
		WriteError(w, http.StatusConflict, "invalid_state", err.Error(), 1409)
	case errors.Is(err, flow.ErrInvalidFlowType), errors.Is(err, flow.ErrMissingField):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), 1102)
	case errors.Is(err, wire.ErrMalformedMessage):
		WriteError(w, http.StatusBadRequest, "malformed_message", "mensaje del widget ilegible", 1102)
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "error inesperado", 1500)
	}
}
