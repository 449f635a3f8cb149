package flow

import (
	"time"

	"github.com/dropDatabas3/passbridge/internal/authdetail"
	"github.com/dropDatabas3/passbridge/internal/par"
	"github.com/dropDatabas3/passbridge/internal/wire"
)

// Effect es lo que el orquestador tiene que ejecutar después de una
// transición. El reducer nunca ejecuta IO: solo decide.
type Effect int

const (
	// EffectSubmitProbe: enviar el PAR de sondeo (variante autenticación).
	EffectSubmitProbe Effect = iota + 1
	// EffectRunStepUp: correr el desafío de verificación fuera de banda.
	EffectRunStepUp
	// EffectSubmitRetry: reenviar el PAR (variante registro + trust chain).
	EffectSubmitRetry
	// EffectHandoff: construir el comando de autorización para el popup.
	EffectHandoff
	// EffectNotify: avisar al pagador que el registro terminó.
	EffectNotify
)

// DefaultStateTimeout acota cada estado no terminal. El protocolo original
// no impone timeout y puede colgarse si el widget nunca responde; acá cada
// transición corre el vencimiento hacia adelante.
const DefaultStateTimeout = 90 * time.Second

// BindingAuthorizationEndpoint es el endpoint de hand-off para registro
// cuando el reintento no entregó uno (política: el step-up completo alcanza).
const BindingAuthorizationEndpoint = "/oauth2/authorization/request/hub/payment-credential-binding"

// Begin arranca el flujo: Idle → Initializing. El COMMAND al widget lo
// emite el orquestador; la próxima transición la disparan los mensajes
// entrantes, no un valor de retorno.
func Begin(s Session, now time.Time, timeout time.Duration) Session {
	return advance(s, StateInitializing, now, timeout)
}

// HandleMessage es el reducer de mensajes entrantes del widget. Es puro:
// recibe una copia de la sesión y devuelve la sesión siguiente más los
// efectos a ejecutar. Mensajes que no aplican al estado actual se ignoran.
func HandleMessage(s Session, m *wire.Message, now time.Time, timeout time.Duration) (Session, []Effect) {
	if s.State.Terminal() {
		return s, nil
	}

	switch m.Kind() {
	case wire.KindResult:
		return handleResult(s, m.Result, now, timeout)
	case wire.KindEvent:
		return handleEvent(s, m.Event, now, timeout)
	default:
		// tipo desconocido o COMMAND entrante: se ignora
		return s, nil
	}
}

func handleResult(s Session, r *wire.Result, now time.Time, timeout time.Duration) (Session, []Effect) {
	switch r.CommandType {
	case wire.CommandInitialization:
		if s.State != StateInitializing {
			return s, nil
		}
		if r.Status != wire.StatusSuccess {
			fd := r.FailureData()
			return fail(s, CodeInitializationFailed, failureText(fd), now), nil
		}
		data, err := r.InitializationData()
		if err != nil {
			return fail(s, CodeInitializationIncomplete, "resultado de inicialización ilegible", now), nil
		}
		token := data.ServerStateToken()
		if token == "" {
			return fail(s, CodeInitializationIncomplete, "falta el token server_state", now), nil
		}
		s.ServerStateToken = token
		s.RoutingHint = data.XViaHint
		return maybeReady(s, now, timeout)

	case wire.CommandAuthorizationRequest:
		if s.State != StateAuthorizationHandoff {
			return s, nil
		}
		if r.Status == wire.StatusSuccess {
			s = advance(s, StateCompleted, now, timeout)
			return s, []Effect{EffectNotify}
		}
		fd := r.FailureData()
		return fail(s, CodeAuthorizationFailed, failureText(fd), now), nil

	default:
		return s, nil
	}
}

func handleEvent(s Session, e *wire.Event, now time.Time, timeout time.Duration) (Session, []Effect) {
	switch e.Type {
	case wire.EventDeviceDataCaptured:
		if s.State != StateInitializing && s.State != StateAwaitingDeviceProfile {
			return s, nil
		}
		data, err := e.DeviceData()
		if err != nil {
			return s, nil
		}
		ref := data.DFPSessionRef()
		if ref == "" {
			// sin referencia del proveedor no hay avance; seguimos esperando
			return s, nil
		}
		s.DFPSessionID = ref
		return maybeReady(s, now, timeout)

	case wire.EventDeviceDataCaptureFail:
		if s.State != StateInitializing && s.State != StateAwaitingDeviceProfile {
			return s, nil
		}
		return fail(s, CodeDeviceProfileFailed, "falló el device profiling", now), nil

	case wire.EventPopupWindowTerminated:
		if s.State != StateAuthorizationHandoff {
			return s, nil
		}
		return fail(s, CodeUserAbandoned, "el usuario cerró el popup", now), nil

	default:
		return s, nil
	}
}

// maybeReady es el join de las dos terminaciones asíncronas: server_state y
// dfp_session llegan en cualquier orden, y el flujo avanza exactamente una
// vez cuando están las dos.
func maybeReady(s Session, now time.Time, timeout time.Duration) (Session, []Effect) {
	if s.ServerStateToken == "" {
		return touch(s, now), nil
	}
	if s.DFPSessionID == "" {
		return advance(s, StateAwaitingDeviceProfile, now, timeout), nil
	}
	return advance(s, StateReadyForPAR, now, timeout), []Effect{EffectSubmitProbe}
}

// BeginProbe marca el PAR de sondeo en vuelo.
func BeginProbe(s Session, now time.Time, timeout time.Duration) Session {
	return advance(s, StatePARInFlight, now, timeout)
}

// ApplyProbeResult resuelve el sondeo: éxito va a hand-off, la ausencia de
// passkey dispara el step-up, cualquier otro fallo es terminal.
func ApplyProbeResult(s Session, res *par.Result, now time.Time, timeout time.Duration) (Session, []Effect) {
	if s.State != StatePARInFlight {
		return s, nil
	}
	switch {
	case res.Success():
		s.SignedRequest = res.Request
		s.AuthorizationEndpoint = res.AuthorizationEndpoint
		return advance(s, StateAuthorizationHandoff, now, timeout), []Effect{EffectHandoff}
	case res.NoPasskey():
		return advance(s, StateStepUpRequired, now, timeout), []Effect{EffectRunStepUp}
	default:
		return fail(s, CodeUnexpected, res.ErrorDescription, now), nil
	}
}

// BeginStepUp marca el desafío en vuelo.
func BeginStepUp(s Session, now time.Time, timeout time.Duration) Session {
	return advance(s, StateStepUpInFlight, now, timeout)
}

// ApplyStepUp adjunta la evidencia del desafío y deja el reintento listo.
func ApplyStepUp(s Session, chain *authdetail.TrustChain, stepErr error, now time.Time, timeout time.Duration) (Session, []Effect) {
	if s.State != StateStepUpInFlight {
		return s, nil
	}
	if stepErr != nil {
		return fail(s, CodeStepUpFailed, stepErr.Error(), now), nil
	}
	s.TrustChain = chain
	return advance(s, StatePARRetryInFlight, now, timeout), []Effect{EffectSubmitRetry}
}

// ApplyRetryResult resuelve el reintento post-step-up. Si la red vuelve a
// reportar notfound_amr_values igual avanzamos al hand-off: el reintento
// probaba identidad, no enrolamiento, y el step-up completo ya la probó.
// Esto es política explícita del protocolo, no un descuido.
func ApplyRetryResult(s Session, res *par.Result, now time.Time, timeout time.Duration) (Session, []Effect) {
	if s.State != StatePARRetryInFlight {
		return s, nil
	}
	switch {
	case res.Success():
		s.SignedRequest = res.Request
		s.AuthorizationEndpoint = res.AuthorizationEndpoint
		return advance(s, StateAuthorizationHandoff, now, timeout), []Effect{EffectHandoff}
	case res.NoPasskey():
		if s.AuthorizationEndpoint == "" {
			s.AuthorizationEndpoint = BindingAuthorizationEndpoint
		}
		return advance(s, StateAuthorizationHandoff, now, timeout), []Effect{EffectHandoff}
	default:
		return fail(s, CodeUnexpected, res.ErrorDescription, now), nil
	}
}

// ExpireIfDue vence sesiones colgadas. No hace nada en estados terminales.
func ExpireIfDue(s Session, now time.Time) (Session, bool) {
	if s.State.Terminal() || s.Deadline.IsZero() || now.Before(s.Deadline) {
		return s, false
	}
	return fail(s, CodeTimeout, "venció el estado "+string(s.State), now), true
}

func advance(s Session, st State, now time.Time, timeout time.Duration) Session {
	if timeout <= 0 {
		timeout = DefaultStateTimeout
	}
	s.State = st
	s.UpdatedAt = now
	if st.Terminal() {
		s.Deadline = time.Time{}
	} else {
		s.Deadline = now.Add(timeout)
	}
	return s
}

func fail(s Session, code Code, desc string, now time.Time) Session {
	s.State = StateFailed
	s.FailureCode = code
	s.FailureDescription = desc
	s.UpdatedAt = now
	s.Deadline = time.Time{}
	return s
}

func touch(s Session, now time.Time) Session {
	s.UpdatedAt = now
	return s
}

func failureText(fd wire.FailureData) string {
	if fd.ErrorDescription != "" {
		return fd.ErrorDescription
	}
	return fd.Error
}
