// Package envelope implementa la protección criptográfica de payloads PAR:
// sobres JWE (compact) para confidencialidad extremo a extremo y client
// assertions JWS para autenticar al merchant ante la red.
package envelope

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
)

// Encryptor produce sobres JWE compact (RSA-OAEP-256 + A128GCM) con la clave
// pública de la red. Un sobre por llamada PAR; nunca se persiste.
type Encryptor struct {
	PublicKey *rsa.PublicKey
	KeyID     string
}

// Encrypt serializa v a JSON y lo cifra como JWE compact de 5 partes.
// El header protegido lleva alg/enc/typ/kid/iat para que la red elija la
// clave de descifrado correcta y detecte sobres viejos.
func (e *Encryptor) Encrypt(v any) (string, error) {
	if e.PublicKey == nil {
		return "", fmt.Errorf("encrypt: %w", ErrKeyNotFound)
	}
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encrypt: marshal payload: %w", err)
	}

	hdrs := jwe.NewHeaders()
	_ = hdrs.Set(jwe.TypeKey, "JOSE")
	_ = hdrs.Set(jwe.KeyIDKey, e.KeyID)
	// iat en epoch millis, como lo espera la red
	_ = hdrs.Set("iat", time.Now().UnixMilli())

	out, err := jwe.Encrypt(plaintext,
		jwe.WithKey(jwa.RSA_OAEP_256, e.PublicKey),
		jwe.WithContentEncryption(jwa.A128GCM),
		jwe.WithProtectedHeaders(hdrs),
	)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return string(out), nil
}

// Decrypt abre un sobre JWE compact con la clave privada correspondiente.
// Del lado merchant solo se usa en tests y tooling (la red es quien descifra
// en producción), pero mantener la simetría acá permite verificar round-trips.
func Decrypt(compact string, priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, fmt.Errorf("decrypt: %w", ErrKeyNotFound)
	}
	plaintext, err := jwe.Decrypt([]byte(compact), jwe.WithKey(jwa.RSA_OAEP_256, priv))
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// DecryptJSON abre el sobre y deserializa el plaintext en out.
func DecryptJSON(compact string, priv *rsa.PrivateKey, out any) error {
	b, err := Decrypt(compact, priv)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decrypt: unmarshal payload: %w", err)
	}
	return nil
}
