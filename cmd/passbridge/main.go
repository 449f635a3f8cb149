package main

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(p))
		return
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func writePEM(path, blockType string, der []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}

func main() {
	var (
		baseURL = envOr("PASSBRIDGE_URL", "http://localhost:8080")
		token   = envOr("PASSBRIDGE_TOKEN", "")
	)

	root := &cobra.Command{
		Use:   "passbridge",
		Short: "CLI de passbridge: claves y operación de flujos contra el merchant API",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del merchant API (env PASSBRIDGE_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "Bearer de sesión si auth está habilitado (env PASSBRIDGE_TOKEN)")

	cl := &client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 30 * time.Second}}

	// grupo keys
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Material criptográfico (assertion / envelope)",
	}

	var keyOut string
	var keyBits int
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Genera un par RSA en PEM (privada PKCS#8, pública PKIX)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyBits < 2048 {
				return fmt.Errorf("--bits mínimo 2048")
			}
			priv, err := rsa.GenerateKey(rand.Reader, keyBits)
			if err != nil {
				return err
			}
			privDER, err := x509.MarshalPKCS8PrivateKey(priv)
			if err != nil {
				return err
			}
			pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
			if err != nil {
				return err
			}
			if err := writePEM(keyOut+".key", "PRIVATE KEY", privDER, 0o600); err != nil {
				return err
			}
			if err := writePEM(keyOut+".pub", "PUBLIC KEY", pubDER, 0o644); err != nil {
				return err
			}
			fmt.Printf("escrito %s.key y %s.pub (%d bits)\n", keyOut, keyOut, keyBits)
			return nil
		},
	}
	generateCmd.Flags().StringVar(&keyOut, "out", "passbridge", "prefijo de los archivos de salida")
	generateCmd.Flags().IntVar(&keyBits, "bits", 2048, "tamaño de la clave RSA")
	keysCmd.AddCommand(generateCmd)

	// grupo flow
	flowCmd := &cobra.Command{
		Use:   "flow",
		Short: "Operación de flujos de passkey",
	}

	var initType, initOrigin, initCredential, initEmail, initAmount, initCurrency string
	initializeCmd := &cobra.Command{
		Use:   "initialize",
		Short: "Abre un flujo y devuelve la URL del iframe del hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			if initOrigin == "" {
				return fmt.Errorf("--merchant-origin es requerido")
			}
			payload := map[string]string{
				"type":            initType,
				"merchant_origin": initOrigin,
				"credential_ref":  initCredential,
				"notify_email":    initEmail,
				"amount":          initAmount,
				"currency":        initCurrency,
			}
			cl.Token = token
			b, _ := json.Marshal(payload)
			status, body, err := cl.do("POST", "/v1/flow/initialize", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("initialize fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	initializeCmd.Flags().StringVar(&initType, "type", "registration", "tipo de flujo: registration|payment")
	initializeCmd.Flags().StringVar(&initOrigin, "merchant-origin", "", "origin del sitio del merchant")
	initializeCmd.Flags().StringVar(&initCredential, "credential", "", "referencia de credencial (PAN tokenizado)")
	initializeCmd.Flags().StringVar(&initEmail, "notify-email", "", "email a avisar al completar el registro")
	initializeCmd.Flags().StringVar(&initAmount, "amount", "", "monto (flujo payment)")
	initializeCmd.Flags().StringVar(&initCurrency, "currency", "", "moneda ISO 4217 (flujo payment)")
	flowCmd.AddCommand(initializeCmd)

	statusCmd := &cobra.Command{
		Use:   "status <flow-id>",
		Short: "Estado actual de un flujo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl.Token = token
			status, body, err := cl.do("GET", "/v1/flow/"+args[0], nil)
			if err != nil {
				return err
			}
			if status == http.StatusNotFound {
				return fmt.Errorf("flujo %s no existe o expiró", args[0])
			}
			cl.print(status, body)
			return nil
		},
	}
	flowCmd.AddCommand(statusCmd)

	stepupCmd := &cobra.Command{
		Use:   "stepup <flow-id>",
		Short: "Completa el desafío de step-up de un flujo detenido",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl.Token = token
			status, body, err := cl.do("POST", "/v1/flow/"+args[0]+"/stepup", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("stepup fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	flowCmd.AddCommand(stepupCmd)

	root.AddCommand(keysCmd, flowCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
