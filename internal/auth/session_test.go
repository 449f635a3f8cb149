package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/passbridge/internal/security/password"
)

func testIssuer() *SessionIssuer {
	return &SessionIssuer{Secret: []byte("secreto-de-test"), Issuer: "passbridge", TTL: time.Hour}
}

func TestIssueVerify(t *testing.T) {
	i := testIssuer()
	tok, ttl, err := i.Issue("merchant@example.com")
	if err != nil {
		t.Fatalf("Issue err: %v", err)
	}
	if ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}

	sub, err := i.Verify(tok)
	if err != nil {
		t.Fatalf("Verify err: %v", err)
	}
	if sub != "merchant@example.com" {
		t.Fatalf("sub = %q", sub)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, _, err := testIssuer().Issue("a@b.c")
	if err != nil {
		t.Fatal(err)
	}
	other := &SessionIssuer{Secret: []byte("otro"), Issuer: "passbridge"}
	if _, err := other.Verify(tok); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("esperaba ErrInvalidSession, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	i := testIssuer()
	// firmado directo con exp en el pasado
	claims := jwtv5.MapClaims{
		"sub": "a@b.c",
		"iss": i.Issuer,
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	tok, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := i.Verify(tok); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("esperaba ErrSessionExpired, got %v", err)
	}
}

func TestLoginHandlerAndMiddleware(t *testing.T) {
	phc, err := password.Hash(password.Default, "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	issuer := testIssuer()
	login := &LoginHandler{Issuer: issuer, Users: Users{"merchant@example.com": phc}}

	// credenciales buenas
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email":"merchant@example.com","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	login.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}

	// credenciales malas
	req = httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email":"merchant@example.com","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	login.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("login = %d", rec.Code)
	}

	// el middleware deja pasar un Bearer válido y corta el resto
	tok, _, err := issuer.Issue("merchant@example.com")
	if err != nil {
		t.Fatal(err)
	}
	protected := Middleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req = httptest.NewRequest(http.MethodGet, "/v1/flow/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("con token = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/flow/x", nil)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("sin token = %d", rec.Code)
	}
}
