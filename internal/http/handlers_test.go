package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/passbridge/internal/flow"
	"github.com/dropDatabas3/passbridge/internal/par"
	"github.com/dropDatabas3/passbridge/internal/rate"
	"github.com/dropDatabas3/passbridge/internal/stepup"
	"github.com/dropDatabas3/passbridge/internal/wire"
)

const hub = "https://sandbox.auth.visa.com"

type scriptedSubmitter struct {
	results []*par.Result
}

func (s *scriptedSubmitter) Submit(_ context.Context, _ *par.Request, _ string) (*par.Result, error) {
	res := s.results[0]
	s.results = s.results[1:]
	return res, nil
}

func newTestRouter(results []*par.Result) http.Handler {
	orch := flow.NewOrchestrator(flow.Config{
		HubBaseURL:   hub,
		RedirectURI:  "https://shop.example/callback",
		APN:          "cardinal-web",
		MerchantName: "Demo Store",
		StateTimeout: time.Minute,
		AutoStepUp:   true,
	}, flow.NewStore(time.Minute), &scriptedSubmitter{results: results}, stepup.SimulatedChallenger{}, nil, wire.NewOriginAllowList([]string{hub}))

	h := &Handlers{
		Orch: orch,
		Client: ClientConfig{
			HubBaseURL:     hub,
			AllowedOrigins: []string{hub},
			APN:            "cardinal-web",
			ClientVersion:  "1.0.0",
		},
	}
	return NewRouter(h, RouterConfig{Limiter: rate.NewMemoryLimiter(100, time.Minute)})
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestInitializeFlow(t *testing.T) {
	router := newTestRouter(nil)

	rec, out := doJSON(t, router, http.MethodPost, "/v1/flow/initialize",
		`{"type":"registration","merchant_origin":"https://shop.example","credential_ref":"4111111111111111"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if out["state"] != string(flow.StateInitializing) {
		t.Fatalf("state = %v", out["state"])
	}
	if u, _ := out["initialization_url"].(string); !strings.HasPrefix(u, hub+"/oauth2/authorization/request/hub#msg=") {
		t.Fatalf("initialization_url = %v", out["initialization_url"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("falta X-Request-ID")
	}
}

func TestInitializeFlow_Invalid(t *testing.T) {
	router := newTestRouter(nil)

	rec, out := doJSON(t, router, http.MethodPost, "/v1/flow/initialize", `{"type":"otro"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["error"] != "invalid_request" {
		t.Fatalf("error = %v", out["error"])
	}

	// sin Content-Type JSON
	req := httptest.NewRequest(http.MethodPost, "/v1/flow/initialize", strings.NewReader("x"))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec2.Code)
	}
}

func TestFlowMessage_DrivesStateMachine(t *testing.T) {
	router := newTestRouter([]*par.Result{
		{Outcome: par.OutcomeSuccess, Request: "signed.jwt", AuthorizationEndpoint: "/oauth2/authorization/request/hub/payment-credential-authentication"},
	})

	_, created := doJSON(t, router, http.MethodPost, "/v1/flow/initialize",
		`{"type":"payment","merchant_origin":"https://shop.example","credential_ref":"4111111111111111","amount":"20.00","currency":"USD"}`)
	id := created["id"].(string)

	initMsg := `{"origin":"` + hub + `","message":{"type":"RESULT","ref":"r1","result":{"command_type":"INITIALIZATION","status":"SUCCESS","data":{"tokens":[{"token_type_hint":"urn:ext:oauth:token-type-hint:server_state","token":"ST123"}]}}}}`
	rec, out := doJSON(t, router, http.MethodPost, "/v1/flow/"+id+"/message", initMsg)
	if rec.Code != http.StatusOK || out["state"] != string(flow.StateAwaitingDeviceProfile) {
		t.Fatalf("status %d state %v", rec.Code, out["state"])
	}

	devMsg := `{"origin":"` + hub + `","message":{"type":"EVENT","event":{"type":"DEVICE_DATA_CAPTURED","data":{"uebas":[{"ueba_source":"VDI","ueba_ref":"DFP1"}]}}}}`
	rec, out = doJSON(t, router, http.MethodPost, "/v1/flow/"+id+"/message", devMsg)
	if rec.Code != http.StatusOK || out["state"] != string(flow.StateAuthorizationHandoff) {
		t.Fatalf("status %d state %v", rec.Code, out["state"])
	}
	if u, _ := out["authorization_url"].(string); !strings.Contains(u, "#msg=") {
		t.Fatalf("authorization_url = %v", out["authorization_url"])
	}

	// GET de estado
	rec, out = doJSON(t, router, http.MethodGet, "/v1/flow/"+id, "")
	if rec.Code != http.StatusOK || out["state"] != string(flow.StateAuthorizationHandoff) {
		t.Fatalf("status %d state %v", rec.Code, out["state"])
	}
}

func TestFlowMessage_Malformed(t *testing.T) {
	router := newTestRouter(nil)
	_, created := doJSON(t, router, http.MethodPost, "/v1/flow/initialize",
		`{"type":"registration","merchant_origin":"https://shop.example","credential_ref":"4111111111111111"}`)
	id := created["id"].(string)

	rec, out := doJSON(t, router, http.MethodPost, "/v1/flow/"+id+"/message", `{"origin":"`+hub+`"}`)
	if rec.Code != http.StatusBadRequest || out["error"] != "invalid_request" {
		t.Fatalf("status %d error %v", rec.Code, out["error"])
	}
}

func TestFlowEndpoints_UnknownSession(t *testing.T) {
	router := newTestRouter(nil)

	rec, out := doJSON(t, router, http.MethodGet, "/v1/flow/nope", "")
	if rec.Code != http.StatusNotFound || out["error"] != "session_not_found" {
		t.Fatalf("status %d error %v", rec.Code, out["error"])
	}
}

func TestFlowStepUp_InvalidState(t *testing.T) {
	router := newTestRouter(nil)
	_, created := doJSON(t, router, http.MethodPost, "/v1/flow/initialize",
		`{"type":"registration","merchant_origin":"https://shop.example","credential_ref":"4111111111111111"}`)
	id := created["id"].(string)

	rec, out := doJSON(t, router, http.MethodPost, "/v1/flow/"+id+"/stepup", "")
	if rec.Code != http.StatusConflict || out["error"] != "invalid_state" {
		t.Fatalf("status %d error %v", rec.Code, out["error"])
	}
}

func TestConfigAndHealth(t *testing.T) {
	router := newTestRouter(nil)

	rec, out := doJSON(t, router, http.MethodGet, "/v1/config", "")
	if rec.Code != http.StatusOK || out["hub_base_url"] != hub {
		t.Fatalf("status %d body %v", rec.Code, out)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
	rec, _ = doJSON(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	orchRouter := newTestRouterWithLimiter(rate.NewMemoryLimiter(1, time.Minute))

	body := `{"type":"registration","merchant_origin":"https://shop.example","credential_ref":"4111111111111111"}`
	rec, _ := doJSON(t, orchRouter, http.MethodPost, "/v1/flow/initialize", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("primer request = %d", rec.Code)
	}
	rec, out := doJSON(t, orchRouter, http.MethodPost, "/v1/flow/initialize", body)
	if rec.Code != http.StatusTooManyRequests || out["error"] != "rate_limited" {
		t.Fatalf("status %d error %v", rec.Code, out["error"])
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("falta Retry-After")
	}
}

func newTestRouterWithLimiter(l rate.Limiter) http.Handler {
	orch := flow.NewOrchestrator(flow.Config{
		HubBaseURL:   hub,
		MerchantName: "Demo Store",
		StateTimeout: time.Minute,
	}, flow.NewStore(time.Minute), &scriptedSubmitter{}, stepup.SimulatedChallenger{}, nil, nil)
	h := &Handlers{Orch: orch, Client: ClientConfig{HubBaseURL: hub}}
	return NewRouter(h, RouterConfig{Limiter: l})
}
