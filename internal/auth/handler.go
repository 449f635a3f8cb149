package auth

import (
	"net/http"
	"strings"

	httpx "github.com/dropDatabas3/passbridge/internal/http"
	"github.com/dropDatabas3/passbridge/internal/observability/logger"
	"github.com/dropDatabas3/passbridge/internal/security/password"
)

// Users mapea email → hash argon2id en formato PHC. Se carga desde la
// configuración; no hay base de usuarios.
type Users map[string]string

// LoginHandler emite una sesión si las credenciales coinciden.
type LoginHandler struct {
	Issuer *SessionIssuer
	Users  Users
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	phc, ok := h.Users[strings.ToLower(strings.TrimSpace(req.Email))]
	if !ok || !password.Verify(req.Password, phc) {
		logger.From(r.Context()).Warn("login rechazado",
			logger.Component("auth"),
			logger.Email(req.Email),
		)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "credenciales inválidas", 1101)
		return
	}

	tok, ttl, err := h.Issuer.Issue(req.Email)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "no se pudo emitir la sesión", 1500)
		return
	}

	logger.From(r.Context()).Info("login ok",
		logger.Component("auth"),
		logger.Email(req.Email),
	)

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
	})
}

// Middleware exige un Bearer de sesión válido.
func Middleware(issuer *SessionIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(raw, "Bearer ") {
				httpx.WriteError(w, http.StatusUnauthorized, "missing_token", "falta el Bearer de sesión", 1100)
				return
			}
			if _, err := issuer.Verify(strings.TrimPrefix(raw, "Bearer ")); err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_session", "sesión inválida o vencida", 1100)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
