// Package auth implementa la sesión simple del merchant: login con
// argon2id y un JWT de sesión HS256 que guarda la superficie de flujos.
// Es un colaborador, no parte del protocolo de autorización de passkeys.
package auth

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidSession     = errors.New("invalid_session")
	ErrSessionExpired     = errors.New("session_expired")
)

// SessionIssuer firma y verifica los JWTs de sesión.
type SessionIssuer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Issue emite una sesión para el usuario dado.
func (i *SessionIssuer) Issue(subject string) (string, time.Duration, error) {
	ttl := i.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := jwtv5.MapClaims{
		"sub": subject,
		"iss": i.Issuer,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.NewString(),
	}
	tok, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return "", 0, fmt.Errorf("auth: firmar sesión: %w", err)
	}
	return tok, ttl, nil
}

// Verify valida la sesión y devuelve el subject.
func (i *SessionIssuer) Verify(raw string) (string, error) {
	tok, err := jwtv5.Parse(raw, func(t *jwtv5.Token) (any, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: alg %v", ErrInvalidSession, t.Header["alg"])
		}
		return i.Secret, nil
	},
		jwtv5.WithIssuer(i.Issuer),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return "", ErrSessionExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return "", ErrInvalidSession
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidSession
	}
	return sub, nil
}
