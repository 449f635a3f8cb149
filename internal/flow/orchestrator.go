package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/passbridge/internal/authdetail"
	"github.com/dropDatabas3/passbridge/internal/observability/logger"
	"github.com/dropDatabas3/passbridge/internal/par"
	"github.com/dropDatabas3/passbridge/internal/stepup"
	"github.com/dropDatabas3/passbridge/internal/wire"
)

var (
	ErrInvalidFlowType = errors.New("invalid_flow_type")
	ErrMissingField    = errors.New("missing_field")
	ErrInvalidState    = errors.New("invalid_state")
)

// Submitter envía un PAR. *par.Client la implementa; los tests usan fakes.
type Submitter interface {
	Submit(ctx context.Context, req *par.Request, routingHint string) (*par.Result, error)
}

// Notifier avisa al pagador cuando un registro se completa. Puede ser nil.
type Notifier interface {
	RegistrationCompleted(ctx context.Context, email, merchantName string) error
}

// Config del orquestador; todo read-only después del arranque.
type Config struct {
	HubBaseURL    string
	RedirectURI   string
	APN           string
	ClientID      string
	ClientVersion string
	ProductCode   string
	MerchantName  string
	StateTimeout  time.Duration

	// AutoStepUp corre el desafío en el mismo turno que lo disparó. En
	// false el flujo se queda en StepUpRequired esperando que la página
	// del merchant complete el desafío y llame al endpoint de step-up.
	AutoStepUp bool
}

// Orchestrator conecta la máquina de estados con sus colaboradores: el
// cliente PAR, el challenger de step-up y el store de sesiones. Los efectos
// de cada transición se ejecutan en el mismo turno del mensaje que los
// disparó, igual que los handlers run-to-completion del lado del browser.
type Orchestrator struct {
	cfg        Config
	store      *Store
	submitter  Submitter
	challenger stepup.Challenger
	notifier   Notifier
	origins    *wire.OriginAllowList
}

func NewOrchestrator(cfg Config, store *Store, sub Submitter, ch stepup.Challenger, n Notifier, origins *wire.OriginAllowList) *Orchestrator {
	if cfg.StateTimeout <= 0 {
		cfg.StateTimeout = DefaultStateTimeout
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		submitter:  sub,
		challenger: ch,
		notifier:   n,
		origins:    origins,
	}
}

// InitializeParams describe la intención del caller.
type InitializeParams struct {
	Type             FlowType
	MerchantOrigin   string
	IntegratorOrigin string
	CredentialRef    string
	NotifyEmail      string
	PayeeName        string
	Amount           string
	Currency         string
}

// Initialize abre un flujo: crea la sesión, arma el COMMAND(INITIALIZATION)
// y devuelve la URL del hub para que la página cargue el iframe. El avance
// posterior lo disparan los mensajes del widget, no este retorno.
func (o *Orchestrator) Initialize(ctx context.Context, p InitializeParams) (Session, error) {
	if p.Type != FlowRegistration && p.Type != FlowPayment {
		return Session{}, fmt.Errorf("%w: %q", ErrInvalidFlowType, p.Type)
	}
	if p.MerchantOrigin == "" || p.CredentialRef == "" {
		return Session{}, fmt.Errorf("%w: merchant_origin y credential_ref son obligatorios", ErrMissingField)
	}
	if p.IntegratorOrigin == "" {
		p.IntegratorOrigin = p.MerchantOrigin
	}
	if p.PayeeName == "" {
		p.PayeeName = o.cfg.MerchantName
	}

	now := time.Now()
	s := Session{
		ID:               uuid.NewString(),
		Type:             p.Type,
		State:            StateIdle,
		MerchantOrigin:   p.MerchantOrigin,
		IntegratorOrigin: p.IntegratorOrigin,
		CredentialRef:    p.CredentialRef,
		NotifyEmail:      p.NotifyEmail,
		PayeeName:        p.PayeeName,
		Amount:           p.Amount,
		Currency:         p.Currency,
		CreatedAt:        now,
	}

	msg, ref, err := wire.BuildInitializationCommand(wire.InitializationParams{
		MerchantOrigin:   p.MerchantOrigin,
		IntegratorOrigin: p.IntegratorOrigin,
		APN:              o.cfg.APN,
		ClientID:         o.cfg.ClientID,
		ClientVersion:    o.cfg.ClientVersion,
		ProductCode:      o.cfg.ProductCode,
	})
	if err != nil {
		return Session{}, err
	}
	initURL, err := wire.InitializationURL(o.cfg.HubBaseURL, msg)
	if err != nil {
		return Session{}, err
	}

	s.CorrelationID = ref
	s.InitializationURL = initURL
	s = Begin(s, now, o.cfg.StateTimeout)
	o.store.Put(s)

	logger.From(ctx).Info("flow initialized",
		logger.CorrelationID(ref),
		logger.FlowType(string(p.Type)),
		logger.FlowState(string(s.State)),
		logger.Credential(p.CredentialRef),
	)
	return s, nil
}

// HandleWidgetMessage procesa un mensaje relevado desde la página del
// merchant, con el origin que el browser observó. Un origin fuera de la
// allow-list se descarta en silencio: frontera de seguridad, no error de
// flujo. Los efectos de la transición corren en este mismo turno.
func (o *Orchestrator) HandleWidgetMessage(ctx context.Context, id, origin string, raw []byte) (Session, error) {
	if o.origins != nil && !o.origins.Allowed(origin) {
		logger.From(ctx).Warn("mensaje descartado por origin no confiable", logger.Origin(origin))
		s, ok := o.store.Get(id)
		if !ok {
			return Session{}, ErrSessionNotFound
		}
		return s, nil
	}

	msg, err := wire.Parse(raw)
	if err != nil {
		return Session{}, err
	}

	return o.store.Mutate(id, func(s *Session) error {
		now := time.Now()
		if expired, due := ExpireIfDue(*s, now); due {
			*s = expired
			return nil
		}

		next, effs := HandleMessage(*s, msg, now, o.cfg.StateTimeout)
		o.logTransition(ctx, *s, next, msg)
		*s = next
		o.runEffects(ctx, s, effs)
		return nil
	})
}

// Get devuelve la sesión, venciéndola primero si su deadline pasó.
func (o *Orchestrator) Get(id string) (Session, error) {
	return o.store.Mutate(id, func(s *Session) error {
		if expired, due := ExpireIfDue(*s, time.Now()); due {
			*s = expired
		}
		return nil
	})
}

// runEffects ejecuta los efectos en cadena: un sondeo fallido por falta de
// passkey dispara step-up y reintento dentro del mismo turno.
func (o *Orchestrator) runEffects(ctx context.Context, s *Session, effs []Effect) {
	for len(effs) > 0 {
		var next []Effect
		for _, e := range effs {
			next = append(next, o.runEffect(ctx, s, e)...)
		}
		effs = next
	}
}

func (o *Orchestrator) runEffect(ctx context.Context, s *Session, e Effect) []Effect {
	now := time.Now()
	switch e {
	case EffectSubmitProbe:
		*s = BeginProbe(*s, now, o.cfg.StateTimeout)
		res, err := o.submitter.Submit(ctx, o.probeRequest(s), s.RoutingHint)
		if err != nil {
			*s = fail(*s, CodeUnexpected, err.Error(), now)
			return nil
		}
		next, effs := ApplyProbeResult(*s, res, time.Now(), o.cfg.StateTimeout)
		*s = next
		return effs

	case EffectRunStepUp:
		if !o.cfg.AutoStepUp {
			// queda en StepUpRequired hasta que el caller complete el
			// desafío vía StepUp
			return nil
		}
		return o.runStepUp(ctx, s)

	case EffectSubmitRetry:
		req, err := o.retryRequest(s)
		if err != nil {
			*s = fail(*s, CodeUnexpected, err.Error(), now)
			return nil
		}
		res, err := o.submitter.Submit(ctx, req, s.RoutingHint)
		if err != nil {
			*s = fail(*s, CodeUnexpected, err.Error(), now)
			return nil
		}
		next, effs := ApplyRetryResult(*s, res, time.Now(), o.cfg.StateTimeout)
		*s = next
		return effs

	case EffectHandoff:
		msg, ref, err := wire.BuildAuthorizationCommand(s.SignedRequest, s.AuthorizationEndpoint)
		if err != nil {
			*s = fail(*s, CodeUnexpected, err.Error(), now)
			return nil
		}
		u, err := wire.AuthorizationURL(o.cfg.HubBaseURL, s.AuthorizationEndpoint, msg)
		if err != nil {
			*s = fail(*s, CodeUnexpected, err.Error(), now)
			return nil
		}
		s.AuthorizationRef = ref
		s.AuthorizationURL = u
		return nil

	case EffectNotify:
		if o.notifier != nil && s.Type == FlowRegistration && s.NotifyEmail != "" {
			if err := o.notifier.RegistrationCompleted(ctx, s.NotifyEmail, o.cfg.MerchantName); err != nil {
				// el aviso es best-effort: el flujo ya terminó bien
				logger.From(ctx).Warn("no se pudo notificar el registro", logger.Err(err))
			}
		}
		return nil

	default:
		return nil
	}
}

// runStepUp corre el desafío y encadena el reintento.
func (o *Orchestrator) runStepUp(ctx context.Context, s *Session) []Effect {
	*s = BeginStepUp(*s, time.Now(), o.cfg.StateTimeout)
	ev, err := o.challenger.Challenge(ctx, stepup.Challenge{
		CredentialRef:  s.CredentialRef,
		MerchantOrigin: s.MerchantOrigin,
		Amount:         s.Amount,
		Currency:       s.Currency,
	})
	var chain *authdetail.TrustChain
	if ev != nil {
		chain = ev.TrustChain
	}
	next, effs := ApplyStepUp(*s, chain, err, time.Now(), o.cfg.StateTimeout)
	*s = next
	return effs
}

// StepUp completa manualmente el desafío de una sesión detenida en
// StepUpRequired y encadena el reintento del PAR en el mismo turno.
func (o *Orchestrator) StepUp(ctx context.Context, id string) (Session, error) {
	return o.store.Mutate(id, func(s *Session) error {
		if expired, due := ExpireIfDue(*s, time.Now()); due {
			*s = expired
			return nil
		}
		if s.State != StateStepUpRequired {
			return fmt.Errorf("%w: %s", ErrInvalidState, s.State)
		}
		o.runEffects(ctx, s, o.runStepUp(ctx, s))
		return nil
	})
}

// Authorize devuelve el hand-off de una sesión lista, regenerando el
// comando con un ref fresco (reabrir el popup cuenta como intento nuevo).
func (o *Orchestrator) Authorize(ctx context.Context, id string) (Session, error) {
	return o.store.Mutate(id, func(s *Session) error {
		if expired, due := ExpireIfDue(*s, time.Now()); due {
			*s = expired
			return nil
		}
		if s.State != StateAuthorizationHandoff {
			return fmt.Errorf("%w: %s", ErrInvalidState, s.State)
		}
		o.runEffects(ctx, s, []Effect{EffectHandoff})
		return nil
	})
}

// probeRequest arma el PAR de sondeo: SIEMPRE variante autenticación, aun en
// flujos de registro, porque su propósito es probar la existencia de la
// passkey. code_challenge va vacío por convención de la variante.
func (o *Orchestrator) probeRequest(s *Session) *par.Request {
	amount, currency := s.Amount, s.Currency
	if amount == "" {
		amount, currency = "0.00", "USD"
	}
	detail := authdetail.BuildAuthentication(
		s.CredentialRef,
		authdetail.StripScheme(s.MerchantOrigin),
		s.PayeeName,
		amount,
		currency,
	)
	return par.NewRequest(s.ServerStateToken, uuid.NewString(), o.cfg.RedirectURI, par.PromptLogin, "", []authdetail.Detail{detail})
}

// retryRequest arma el PAR post-step-up: variante registro con la trust
// chain como evidencia y PKCE fresco.
func (o *Orchestrator) retryRequest(s *Session) (*par.Request, error) {
	verifier, challenge, err := par.NewPKCE()
	if err != nil {
		return nil, err
	}
	s.CodeVerifier = verifier
	s.CodeChallenge = challenge

	detail := authdetail.BuildRegistration(
		s.CredentialRef,
		authdetail.StripScheme(s.MerchantOrigin),
		s.PayeeName,
		s.NotifyEmail,
		s.TrustChain,
	)
	return par.NewRequest(s.ServerStateToken, uuid.NewString(), o.cfg.RedirectURI, par.PromptCreate, challenge, []authdetail.Detail{detail}), nil
}

func (o *Orchestrator) logTransition(ctx context.Context, prev, next Session, msg *wire.Message) {
	if prev.State == next.State {
		return
	}
	log := logger.From(ctx)
	switch msg.Kind() {
	case wire.KindResult:
		fields := []zap.Field{
			logger.CorrelationID(next.CorrelationID),
			logger.FlowState(string(next.State)),
			logger.CommandType(msg.Result.CommandType),
		}
		if next.ServerStateToken != "" && prev.ServerStateToken == "" {
			fields = append(fields, logger.ServerState(next.ServerStateToken))
		}
		log.Info("flow transition", fields...)
	case wire.KindEvent:
		log.Info("flow transition",
			logger.CorrelationID(next.CorrelationID),
			logger.FlowState(string(next.State)),
			logger.EventType(msg.Event.Type),
		)
	default:
		log.Info("flow transition",
			logger.CorrelationID(next.CorrelationID),
			logger.FlowState(string(next.State)),
		)
	}
}
