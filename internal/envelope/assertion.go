package envelope

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Tipo de token que la red espera en el header "typ" del client assertion.
const AssertionType = "vnd.visa.client_credential+JWT"

// MaxAssertionTTL acota la ventana de replay: el assertion autentica al
// merchant para exactamente una llamada PAR.
const MaxAssertionTTL = 120 * time.Second

var (
	// ErrAssertionExpired indica que el token está vencido (exp en el pasado).
	ErrAssertionExpired = errors.New("assertion_expired")

	// ErrAssertionSignature indica firma inválida o token malformado.
	ErrAssertionSignature = errors.New("assertion_signature_invalid")
)

// Signer firma client assertions RS256 para el PAR.
type Signer struct {
	ClientID string // va como iss y como kid del header
	Audience string
	Key      *rsa.PrivateKey
	TTL      time.Duration // se acota a MaxAssertionTTL
}

// Sign emite un assertion con iss/aud/iat/exp cortos y un jti único por
// llamada. Header: alg RS256, kid = client id, typ del perfil de la red.
func (s *Signer) Sign() (string, error) {
	if s.Key == nil {
		return "", fmt.Errorf("sign assertion: %w", ErrKeyNotFound)
	}
	ttl := s.TTL
	if ttl <= 0 || ttl > MaxAssertionTTL {
		ttl = MaxAssertionTTL
	}
	now := time.Now()
	claims := jwtv5.MapClaims{
		"aud":     []string{s.Audience},
		"iss_knd": "CLIENT_ID",
		"iss":     s.ClientID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
		"jti":     uuid.NewString(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = s.ClientID
	tk.Header["typ"] = AssertionType
	signed, err := tk.SignedString(s.Key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}

// VerifyAssertion valida firma RS256 y expiración, devolviendo las claims.
// Distingue expiración de firma inválida para que el caller decida si el
// fallo es temporal (reloj) o configuración rota.
func VerifyAssertion(token string, pub *rsa.PublicKey) (map[string]any, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) { return pub, nil }
	tok, err := jwtv5.Parse(token, keyfunc, jwtv5.WithValidMethods([]string{"RS256"}))
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrAssertionExpired
		}
		return nil, ErrAssertionSignature
	}
	if !tok.Valid {
		return nil, ErrAssertionSignature
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrAssertionSignature
	}
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}
