package envelope

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrKeyNotFound indica que el archivo de clave no existe.
	// Fatal a nivel de configuración: el arranque debe abortar, no se reintenta.
	ErrKeyNotFound = errors.New("key_not_found")

	// ErrKeyFormat indica que el material PEM no tiene un bloque reconocible.
	ErrKeyFormat = errors.New("key_format_invalid")
)

// LoadRSAPrivateKey lee una clave privada RSA desde un archivo PEM
// (PKCS#1 "RSA PRIVATE KEY" o PKCS#8 "PRIVATE KEY").
func LoadRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, path)
		}
		return nil, err
	}
	return ParseRSAPrivateKeyPEM(b)
}

// ParseRSAPrivateKeyPEM parsea el bloque PEM de una clave privada RSA.
func ParseRSAPrivateKeyPEM(b []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("%w: sin bloque PEM", ErrKeyFormat)
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
		}
		return k, nil
	case "PRIVATE KEY":
		any, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
		}
		k, ok := any.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: la clave PKCS#8 no es RSA", ErrKeyFormat)
		}
		return k, nil
	default:
		return nil, fmt.Errorf("%w: bloque %q no soportado", ErrKeyFormat, block.Type)
	}
}

// LoadRSAPublicKey lee una clave pública RSA desde un archivo PEM.
// Acepta "PUBLIC KEY" (PKIX) o "CERTIFICATE" (extrae la pública del cert),
// que es como la red distribuye su clave de cifrado.
func LoadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, path)
		}
		return nil, err
	}
	return ParseRSAPublicKeyPEM(b)
}

// ParseRSAPublicKeyPEM parsea el bloque PEM de una clave pública RSA o certificado.
func ParseRSAPublicKeyPEM(b []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("%w: sin bloque PEM", ErrKeyFormat)
	}
	switch block.Type {
	case "PUBLIC KEY":
		any, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
		}
		pub, ok := any.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: la clave pública no es RSA", ErrKeyFormat)
		}
		return pub, nil
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: el certificado no lleva clave RSA", ErrKeyFormat)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: bloque %q no soportado", ErrKeyFormat, block.Type)
	}
}
