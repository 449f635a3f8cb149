package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey err: %v", err)
	}
	return k
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := testKey(t)
	enc := &Encryptor{PublicKey: &key.PublicKey, KeyID: "kid-1"}

	cases := []any{
		map[string]any{"hola": "mundo ✓", "n": 42.0},
		map[string]any{"nested": []any{"a", map[string]any{"b": []any{1.0, 2.0}}}},
		map[string]any{"unicode": "日本語 — ñandú 🐧"},
		[]any{"top", "level", "array"},
	}
	for _, in := range cases {
		compact, err := enc.Encrypt(in)
		if err != nil {
			t.Fatalf("Encrypt err: %v", err)
		}
		if got := strings.Count(compact, "."); got != 4 {
			t.Fatalf("el sobre compact debe tener 5 partes, tiene %d separadores", got)
		}
		var out any
		if err := DecryptJSON(compact, key, &out); err != nil {
			t.Fatalf("DecryptJSON err: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("round-trip mismatch: in=%v out=%v", in, out)
		}
	}
}

func TestEncrypt_ProtectedHeader(t *testing.T) {
	key := testKey(t)
	enc := &Encryptor{PublicKey: &key.PublicKey, KeyID: "kid-xyz"}

	compact, err := enc.Encrypt(map[string]string{"a": "b"})
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	// El header protegido es la primera parte, base64url(JSON)
	hdrSeg := strings.SplitN(compact, ".", 2)[0]
	raw, err := b64urlDecode(hdrSeg)
	if err != nil {
		t.Fatalf("decode header err: %v", err)
	}
	var hdr map[string]any
	if err := json.Unmarshal(raw, &hdr); err != nil {
		t.Fatalf("unmarshal header err: %v", err)
	}
	if hdr["alg"] != "RSA-OAEP-256" || hdr["enc"] != "A128GCM" {
		t.Fatalf("algoritmos inesperados: %v", hdr)
	}
	if hdr["kid"] != "kid-xyz" {
		t.Fatalf("kid inesperado: %v", hdr["kid"])
	}
	if _, ok := hdr["iat"]; !ok {
		t.Fatalf("falta iat en header protegido")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := testKey(t)
	other := testKey(t)
	enc := &Encryptor{PublicKey: &key.PublicKey, KeyID: "k"}

	compact, err := enc.Encrypt(map[string]string{"secreto": "x"})
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	if _, err := Decrypt(compact, other); err == nil {
		t.Fatalf("descifrado con clave incorrecta debería fallar")
	}
}
