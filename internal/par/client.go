package par

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/passbridge/internal/envelope"
	"github.com/dropDatabas3/passbridge/internal/observability/logger"
)

// DefaultResourcePath es el endpoint PAR de la red.
const DefaultResourcePath = "/vpp/v1/passkeys/oauth2/authorization/request/pushed"

// ErrMissingServerState: el PAR requiere el token de inicialización; se
// corta acá, sin tocar la red.
var ErrMissingServerState = errors.New("initialization_incomplete: falta server_state")

// Config agrupa credenciales de transporte y enrutamiento del cliente PAR.
// Todo es de solo lectura después del arranque.
type Config struct {
	BaseURL      string
	ResourcePath string

	// Basic auth de la red
	BasicUser string
	BasicPass string

	// Autenticación VDC (apikey + x-pay-token HMAC); opcional
	APIKey       string
	SharedSecret string
	ClientKeyID  string

	// mTLS: cert/clave del cliente en PEM; opcional
	MTLSCertFile string
	MTLSKeyFile  string

	// Header de contexto de servicio (APN, siempre en minúsculas)
	APN string

	// Hint por defecto; un hint de la inicialización lo pisa por llamada
	DefaultRoutingHint string

	// Key id del sobre de cifrado, viaja como header keyId
	EnvelopeKeyID string

	Timeout time.Duration
}

// Client envía PARs. Cada Submit es stateless: sin estado mutable compartido
// entre llamadas concurrentes salvo material de credenciales read-only.
type Client struct {
	cfg      Config
	httpc    *http.Client
	enc      *envelope.Encryptor // nil => payload en claro
	assertor *envelope.Signer
}

// New construye el cliente. Configura mTLS si hay cert+clave; su ausencia no
// es error (la red sandbox acepta solo Basic en algunos tiers).
func New(cfg Config, enc *envelope.Encryptor, assertor *envelope.Signer) (*Client, error) {
	if cfg.ResourcePath == "" {
		cfg.ResourcePath = DefaultResourcePath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := &http.Transport{}
	if cfg.MTLSCertFile != "" && cfg.MTLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.MTLSCertFile, cfg.MTLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("par: cargar par mTLS: %w", err)
		}
		transport.TLSClientConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	return &Client{
		cfg:      cfg,
		httpc:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		enc:      enc,
		assertor: assertor,
	}, nil
}

// Submit firma el assertion, protege el payload y envía el PAR.
// routingHint (si la inicialización lo entregó) viaja como X-VIA-HINT para
// que los reintentos caigan en la misma partición que emitió server_state.
func (c *Client) Submit(ctx context.Context, req *Request, routingHint string) (*Result, error) {
	if req.ServerState == "" {
		return nil, ErrMissingServerState
	}

	// assertion fresco por llamada: jti único, expiración corta
	if c.assertor != nil {
		assertion, err := c.assertor.Sign()
		if err != nil {
			return nil, fmt.Errorf("par: %w", err)
		}
		req.ClientAssertion = assertion
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("par: marshal request: %w", err)
	}

	// cuerpo + componente body del x-pay-token
	var body []byte
	hmacBody := string(payload)
	if c.enc != nil {
		compact, err := c.enc.Encrypt(req)
		if err != nil {
			return nil, fmt.Errorf("par: %w", err)
		}
		body, err = json.Marshal(map[string]string{"encData": compact})
		if err != nil {
			return nil, fmt.Errorf("par: marshal encData: %w", err)
		}
		// el sobre ya lleva tag de autenticación; el HMAC va sin body
		hmacBody = ""
	} else {
		body = payload
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.ResourcePath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("par: %w", err)
	}
	c.setHeaders(httpReq, routingHint, hmacBody)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("par: transporte: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	result := classify(resp.StatusCode, respBody)

	logger.From(ctx).Info("par submitted",
		logger.Outcome(string(result.Outcome)),
		logger.Status(resp.StatusCode),
		logger.RoutingHint(routingHint),
	)
	return result, nil
}

func (c *Client) setHeaders(r *http.Request, routingHint, hmacBody string) {
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	r.Header.Set("X-SERVICE-CONTEXT", strings.ToLower(c.cfg.APN))

	hint := c.cfg.DefaultRoutingHint
	if routingHint != "" {
		hint = routingHint
	}
	if hint != "" {
		r.Header.Set("X-VIA-HINT", hint)
	}

	if c.cfg.BasicUser != "" {
		r.SetBasicAuth(c.cfg.BasicUser, c.cfg.BasicPass)
	}
	if c.cfg.APIKey != "" && c.cfg.SharedSecret != "" {
		r.Header.Set("apikey", c.cfg.APIKey)
		r.Header.Set("x-pay-token", XPayToken(c.cfg.SharedSecret, c.cfg.ResourcePath, "", hmacBody))
	}
	if c.cfg.EnvelopeKeyID != "" {
		r.Header.Set("keyId", c.cfg.EnvelopeKeyID)
	}
}

// classify mapea status + body al Result del protocolo. El error
// notfound_amr_values NUNCA es fallo duro, sin importar el status ≥400.
func classify(status int, body []byte) *Result {
	var wr wireResponse
	_ = json.Unmarshal(body, &wr) // body no-JSON => wr queda vacío

	if status < 300 && wr.Error == "" {
		return &Result{
			Outcome:               OutcomeSuccess,
			Request:               wr.Request,
			AuthorizationEndpoint: wr.AuthorizationEndpoint,
			ExpiresIn:             wr.ExpiresIn,
			HTTPStatus:            status,
		}
	}

	if wr.Error == errNoPasskey {
		return &Result{
			Outcome:          OutcomeNoPasskey,
			ErrorCode:        wr.Error,
			ErrorDescription: wr.ErrorDescription,
			HTTPStatus:       status,
		}
	}

	code := wr.Error
	if code == "" {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			code = "transport_auth_failure"
		} else {
			code = "unexpected_response"
		}
	}
	return &Result{
		Outcome:          OutcomeUnexpected,
		ErrorCode:        code,
		ErrorDescription: wr.ErrorDescription,
		HTTPStatus:       status,
	}
}
