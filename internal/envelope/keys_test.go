package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRSAPrivateKey_NotFound(t *testing.T) {
	_, err := LoadRSAPrivateKey(filepath.Join(t.TempDir(), "nope.pem"))
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("esperaba ErrKeyNotFound, got %v", err)
	}
}

func TestLoadRSAPrivateKey_BadPEM(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(p, []byte("esto no es PEM"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadRSAPrivateKey(p)
	if !errors.Is(err, ErrKeyFormat) {
		t.Fatalf("esperaba ErrKeyFormat, got %v", err)
	}
}

func TestLoadRSAPrivateKey_PKCS1AndPKCS8(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	p1 := filepath.Join(dir, "pkcs1.pem")
	b1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(p1, b1, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRSAPrivateKey(p1); err != nil {
		t.Fatalf("PKCS#1 err: %v", err)
	}

	der8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	p8 := filepath.Join(dir, "pkcs8.pem")
	b8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der8})
	if err := os.WriteFile(p8, b8, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRSAPrivateKey(p8); err != nil {
		t.Fatalf("PKCS#8 err: %v", err)
	}
}

func TestParseRSAPublicKeyPEM_PKIX(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	b := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	pub, err := ParseRSAPublicKeyPEM(b)
	if err != nil {
		t.Fatalf("ParseRSAPublicKeyPEM err: %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 {
		t.Fatalf("clave pública no coincide")
	}
}

func TestParseRSAPublicKeyPEM_UnsupportedBlock(t *testing.T) {
	b := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{1, 2, 3}})
	if _, err := ParseRSAPublicKeyPEM(b); !errors.Is(err, ErrKeyFormat) {
		t.Fatalf("esperaba ErrKeyFormat, got %v", err)
	}
}
