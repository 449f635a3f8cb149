package main

import (
	"context"
	"flag"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/passbridge/internal/auth"
	"github.com/dropDatabas3/passbridge/internal/config"
	"github.com/dropDatabas3/passbridge/internal/email"
	"github.com/dropDatabas3/passbridge/internal/envelope"
	"github.com/dropDatabas3/passbridge/internal/flow"
	httpx "github.com/dropDatabas3/passbridge/internal/http"
	"github.com/dropDatabas3/passbridge/internal/observability/logger"
	"github.com/dropDatabas3/passbridge/internal/par"
	"github.com/dropDatabas3/passbridge/internal/rate"
	"github.com/dropDatabas3/passbridge/internal/stepup"
	"github.com/dropDatabas3/passbridge/internal/wire"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
	)
	flag.Parse()

	if *flagEnvFile != "" && fileExists(*flagEnvFile) {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("dotenv: cargado %s", *flagEnvFile)
		}
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("service")

	// ─── material criptográfico del PAR ───
	var enc *envelope.Encryptor
	if cfg.Envelope.Enabled {
		pub, err := envelope.LoadRSAPublicKey(cfg.Envelope.EncryptionCert)
		if err != nil {
			lg.Fatal("envelope: clave pública de la red", logger.Err(err))
		}
		enc = &envelope.Encryptor{PublicKey: pub, KeyID: cfg.Envelope.KeyID}
	}

	var assertor *envelope.Signer
	if cfg.Assertion.KeyFile != "" {
		priv, err := envelope.LoadRSAPrivateKey(cfg.Assertion.KeyFile)
		if err != nil {
			lg.Fatal("assertion: clave privada", logger.Err(err))
		}
		assertor = &envelope.Signer{
			ClientID: cfg.Assertion.ClientID,
			Audience: cfg.Assertion.Audience,
			Key:      priv,
			TTL:      config.Dur(cfg.Assertion.TTL, 120*time.Second),
		}
	}

	parClient, err := par.New(par.Config{
		BaseURL:       cfg.Network.APIBaseURL,
		ResourcePath:  cfg.Network.ResourcePath,
		BasicUser:     cfg.Transport.BasicUser,
		BasicPass:     cfg.Transport.BasicPass,
		APIKey:        cfg.Transport.APIKey,
		SharedSecret:  cfg.Transport.SharedSecret,
		MTLSCertFile:  cfg.Transport.MTLSCertFile,
		MTLSKeyFile:   cfg.Transport.MTLSKeyFile,
		APN:           cfg.Network.APN,
		EnvelopeKeyID: cfg.Envelope.KeyID,
		Timeout:       config.Dur(cfg.Transport.Timeout, 30*time.Second),
	}, enc, assertor)
	if err != nil {
		lg.Fatal("par client", logger.Err(err))
	}

	// ─── orquestador de flujos ───
	store := flow.NewStore(config.Dur(cfg.Flow.SessionTTL, 15*time.Minute))
	origins := wire.NewOriginAllowList(cfg.Network.AllowedOrigins)

	var notifier flow.Notifier
	if cfg.SMTP.Enabled && cfg.SMTP.Host != "" {
		sender := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.User, cfg.SMTP.Pass)
		if cfg.SMTP.TLSMode != "" {
			sender.TLSMode = cfg.SMTP.TLSMode
		}
		notifier = &email.RegistrationNotifier{Sender: sender}
	}

	orch := flow.NewOrchestrator(flow.Config{
		HubBaseURL:    cfg.Network.HubBaseURL,
		RedirectURI:   cfg.Network.RedirectURI,
		APN:           cfg.Network.APN,
		ClientID:      cfg.Network.ClientID,
		ClientVersion: cfg.Network.ClientVersion,
		ProductCode:   cfg.Network.ProductCode,
		MerchantName:  cfg.Network.MerchantName,
		StateTimeout:  config.Dur(cfg.Flow.StateTimeout, flow.DefaultStateTimeout),
		AutoStepUp:    cfg.Flow.AutoStepUp,
	}, store, httpx.MetricSubmitter{Next: parClient}, stepup.SimulatedChallenger{}, notifier, origins)

	// ─── superficie HTTP del merchant ───
	metricsHandler, err := httpx.RegisterMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		lg.Fatal("metrics", logger.Err(err))
	}

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		win := config.Dur(cfg.Rate.Window, time.Minute)
		if cfg.Rate.Kind == "redis" {
			client := rdb.NewClient(&rdb.Options{Addr: cfg.Rate.Redis.Addr, DB: cfg.Rate.Redis.DB})
			limiter = rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.MaxRequests, win)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, win)
		}
	}

	var authMW func(stdhttp.Handler) stdhttp.Handler
	var login stdhttp.Handler
	if cfg.Auth.Enabled {
		issuer := &auth.SessionIssuer{
			Secret: []byte(cfg.Auth.SessionSecret),
			Issuer: cfg.App.Name,
			TTL:    config.Dur(cfg.Auth.SessionTTL, time.Hour),
		}
		authMW = auth.Middleware(issuer)
		login = &auth.LoginHandler{Issuer: issuer, Users: auth.Users(cfg.Auth.Users)}
	}

	handlers := &httpx.Handlers{
		Orch: orch,
		Client: httpx.ClientConfig{
			HubBaseURL:     cfg.Network.HubBaseURL,
			AllowedOrigins: cfg.Network.AllowedOrigins,
			APN:            cfg.Network.APN,
			ClientVersion:  cfg.Network.ClientVersion,
		},
	}
	router := httpx.NewRouter(handlers, httpx.RouterConfig{
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Limiter:     limiter,
		Metrics:     metricsHandler,
		Auth:        authMW,
		Login:       login,
	})
	srv := httpx.NewServer(cfg.Server.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("service up",
			logger.Component("http"),
			logger.Path(cfg.Server.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutdown: drenando conexiones")
		return httpx.Shutdown(srv, config.Dur(cfg.Server.ShutdownTimeout, 10*time.Second))
	})

	if err := g.Wait(); err != nil {
		lg.Fatal("service", logger.Err(err))
	}
	lg.Info("service detenido")
}
