// Package config carga la configuración del servicio: un YAML único con
// overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"app_env"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ShutdownTimeout    string   `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// Network: la red de passkeys contra la que se orquesta.
	Network struct {
		HubBaseURL     string   `yaml:"hub_base_url"`
		APIBaseURL     string   `yaml:"api_base_url"`
		ResourcePath   string   `yaml:"resource_path"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		APN            string   `yaml:"apn"`
		ClientID       string   `yaml:"client_id"`
		ClientVersion  string   `yaml:"client_version"`
		ProductCode    string   `yaml:"product_code"`
		RedirectURI    string   `yaml:"redirect_uri"`
		MerchantName   string   `yaml:"merchant_name"`
	} `yaml:"network"`

	// Transport: capas de autenticación hacia la red.
	Transport struct {
		BasicUser    string `yaml:"basic_user"`
		BasicPass    string `yaml:"basic_pass"`
		APIKey       string `yaml:"api_key"`
		SharedSecret string `yaml:"shared_secret"`
		MTLSCertFile string `yaml:"mtls_cert_file"`
		MTLSKeyFile  string `yaml:"mtls_key_file"`
		Timeout      string `yaml:"timeout"`
	} `yaml:"transport"`

	// Envelope: cifrado del payload PAR.
	Envelope struct {
		Enabled        bool   `yaml:"enabled"`
		EncryptionCert string `yaml:"encryption_cert"` // pública de la red, PEM
		KeyID          string `yaml:"key_id"`
		DecryptionKey  string `yaml:"decryption_key"` // privada propia, PEM; opcional
	} `yaml:"envelope"`

	// Assertion: client assertion RS256 del PAR.
	Assertion struct {
		ClientID string `yaml:"client_id"`
		Audience string `yaml:"audience"`
		KeyFile  string `yaml:"key_file"`
		KeyID    string `yaml:"key_id"`
		TTL      string `yaml:"ttl"`
	} `yaml:"assertion"`

	Flow struct {
		StateTimeout string `yaml:"state_timeout"`
		SessionTTL   string `yaml:"session_ttl"`
		AutoStepUp   bool   `yaml:"auto_step_up"`
	} `yaml:"flow"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Kind        string `yaml:"kind"` // memory | redis
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
		Redis       struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"rate"`

	Auth struct {
		Enabled       bool              `yaml:"enabled"`
		SessionSecret string            `yaml:"session_secret"`
		SessionTTL    string            `yaml:"session_ttl"`
		Users         map[string]string `yaml:"users"` // email -> hash PHC
	} `yaml:"auth"`

	SMTP struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
		From    string `yaml:"from"`
		User    string `yaml:"user"`
		Pass    string `yaml:"pass"`
		TLSMode string `yaml:"tls_mode"`
	} `yaml:"smtp"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.App.Name == "" {
		c.App.Name = "passbridge"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Network.ResourcePath == "" {
		c.Network.ResourcePath = "/vpp/v1/passkeys/oauth2/authorization/request/pushed"
	}
	if c.Network.APN == "" {
		c.Network.APN = "cardinal-web"
	}
	if c.Network.ProductCode == "" {
		c.Network.ProductCode = "CRD"
	}
	if c.Transport.Timeout == "" {
		c.Transport.Timeout = "30s"
	}
	if c.Assertion.TTL == "" {
		c.Assertion.TTL = "120s"
	}
	if c.Flow.StateTimeout == "" {
		c.Flow.StateTimeout = "90s"
	}
	if c.Flow.SessionTTL == "" {
		c.Flow.SessionTTL = "15m"
	}
	if c.Rate.Kind == "" {
		c.Rate.Kind = "memory"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Auth.SessionTTL == "" {
		c.Auth.SessionTTL = "1h"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.applyEnvOverrides()
	return &c, nil
}

// Validate corta el arranque ante configuración incompleta.
func (c *Config) Validate() error {
	if c.Network.HubBaseURL == "" {
		return fmt.Errorf("config: falta network.hub_base_url")
	}
	if c.Network.APIBaseURL == "" {
		return fmt.Errorf("config: falta network.api_base_url")
	}
	if len(c.Network.AllowedOrigins) == 0 {
		return fmt.Errorf("config: network.allowed_origins no puede estar vacío")
	}
	if c.Envelope.Enabled && c.Envelope.EncryptionCert == "" {
		return fmt.Errorf("config: envelope.enabled requiere envelope.encryption_cert")
	}
	if c.Assertion.KeyFile != "" && c.Assertion.ClientID == "" {
		return fmt.Errorf("config: assertion.key_file requiere assertion.client_id")
	}
	if c.Auth.Enabled && c.Auth.SessionSecret == "" {
		return fmt.Errorf("config: auth.enabled requiere auth.session_secret")
	}
	if c.Rate.Kind == "redis" && c.Rate.Redis.Addr == "" {
		return fmt.Errorf("config: rate.kind=redis requiere rate.redis.addr")
	}
	return nil
}

// Dur parsea una duración ya validada por Load; cae al default si está rota.
func Dur(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno
// (secretos y valores por despliegue).
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	if v, ok := getEnvStr("NETWORK_HUB_BASE_URL"); ok {
		c.Network.HubBaseURL = v
	}
	if v, ok := getEnvStr("NETWORK_API_BASE_URL"); ok {
		c.Network.APIBaseURL = v
	}
	if v, ok := getEnvCSV("NETWORK_ALLOWED_ORIGINS"); ok {
		c.Network.AllowedOrigins = v
	}
	if v, ok := getEnvStr("NETWORK_APN"); ok {
		c.Network.APN = v
	}
	if v, ok := getEnvStr("NETWORK_CLIENT_ID"); ok {
		c.Network.ClientID = v
	}
	if v, ok := getEnvStr("NETWORK_REDIRECT_URI"); ok {
		c.Network.RedirectURI = v
	}

	if v, ok := getEnvStr("TRANSPORT_BASIC_USER"); ok {
		c.Transport.BasicUser = v
	}
	if v, ok := getEnvStr("TRANSPORT_BASIC_PASS"); ok {
		c.Transport.BasicPass = v
	}
	if v, ok := getEnvStr("TRANSPORT_API_KEY"); ok {
		c.Transport.APIKey = v
	}
	if v, ok := getEnvStr("TRANSPORT_SHARED_SECRET"); ok {
		c.Transport.SharedSecret = v
	}
	if v, ok := getEnvStr("TRANSPORT_MTLS_CERT_FILE"); ok {
		c.Transport.MTLSCertFile = v
	}
	if v, ok := getEnvStr("TRANSPORT_MTLS_KEY_FILE"); ok {
		c.Transport.MTLSKeyFile = v
	}

	if v, ok := getEnvBool("ENVELOPE_ENABLED"); ok {
		c.Envelope.Enabled = v
	}
	if v, ok := getEnvStr("ENVELOPE_ENCRYPTION_CERT"); ok {
		c.Envelope.EncryptionCert = v
	}
	if v, ok := getEnvStr("ENVELOPE_KEY_ID"); ok {
		c.Envelope.KeyID = v
	}

	if v, ok := getEnvStr("ASSERTION_CLIENT_ID"); ok {
		c.Assertion.ClientID = v
	}
	if v, ok := getEnvStr("ASSERTION_AUDIENCE"); ok {
		c.Assertion.Audience = v
	}
	if v, ok := getEnvStr("ASSERTION_KEY_FILE"); ok {
		c.Assertion.KeyFile = v
	}
	if v, ok := getEnvStr("ASSERTION_KEY_ID"); ok {
		c.Assertion.KeyID = v
	}

	if v, ok := getEnvStr("FLOW_STATE_TIMEOUT"); ok {
		c.Flow.StateTimeout = v
	}
	if v, ok := getEnvBool("FLOW_AUTO_STEP_UP"); ok {
		c.Flow.AutoStepUp = v
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_KIND"); ok {
		c.Rate.Kind = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}

	if v, ok := getEnvBool("AUTH_ENABLED"); ok {
		c.Auth.Enabled = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_SECRET"); ok {
		c.Auth.SessionSecret = v
	}

	if v, ok := getEnvBool("SMTP_ENABLED"); ok {
		c.SMTP.Enabled = v
	}
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_USER"); ok {
		c.SMTP.User = v
	}
	if v, ok := getEnvStr("SMTP_PASS"); ok {
		c.SMTP.Pass = v
	}

	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}
