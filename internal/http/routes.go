package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/passbridge/internal/rate"
)

// RouterConfig arma la cadena de middlewares de la superficie merchant.
type RouterConfig struct {
	CORSOrigins []string
	Limiter     rate.Limiter
	Metrics     stdhttp.Handler

	// Auth guarda los endpoints de flujo; nil los deja abiertos (sandbox).
	Auth func(stdhttp.Handler) stdhttp.Handler

	// Login emite la sesión del merchant; opcional.
	Login stdhttp.Handler
}

// NewRouter monta las rutas del merchant API.
func NewRouter(h *Handlers, cfg RouterConfig) stdhttp.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", h.Readyz)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Get("/v1/config", h.Config)
	if cfg.Login != nil {
		r.Method(stdhttp.MethodPost, "/v1/auth/login", cfg.Login)
	}

	r.Route("/v1/flow", func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		r.Post("/initialize", h.InitializeFlow)
		r.Post("/{id}/message", h.FlowMessage)
		r.Post("/{id}/stepup", h.FlowStepUp)
		r.Post("/{id}/authorize", h.FlowAuthorize)
		r.Get("/{id}", h.FlowStatus)
	})

	// cadena exterior: primero el request id para que todo lo demás loguee
	// con él
	var handler stdhttp.Handler = r
	handler = WithRateLimit(handler, cfg.Limiter)
	handler = WithMetrics(handler)
	handler = WithLogging(handler)
	handler = WithSecurityHeaders(handler)
	handler = WithCORS(handler, cfg.CORSOrigins)
	handler = WithRecover(handler)
	handler = WithRequestID(handler)
	return handler
}
