package flow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dropDatabas3/passbridge/internal/par"
	"github.com/dropDatabas3/passbridge/internal/wire"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSession() Session {
	s := Session{
		ID:             "f1",
		Type:           FlowRegistration,
		State:          StateIdle,
		MerchantOrigin: "https://shop.example",
		CredentialRef:  "4111111111111111",
		CreatedAt:      t0,
	}
	return Begin(s, t0, DefaultStateTimeout)
}

func initResultMsg(t *testing.T, token string) *wire.Message {
	t.Helper()
	tokens := []wire.Token{{TokenTypeHint: "otro", Token: "x"}}
	if token != "" {
		tokens = append(tokens, wire.Token{TokenTypeHint: wire.TokenTypeHintServerState, Token: token})
	}
	data, err := json.Marshal(wire.InitializationData{Tokens: tokens, XViaHint: "DC-1"})
	if err != nil {
		t.Fatal(err)
	}
	return &wire.Message{
		Type:   wire.TypeResult,
		Ref:    "abc",
		Result: &wire.Result{CommandType: wire.CommandInitialization, Status: wire.StatusSuccess, Data: data},
	}
}

func deviceEventMsg(t *testing.T, ref string) *wire.Message {
	t.Helper()
	data, err := json.Marshal(wire.DeviceDataCaptured{UEBAs: []wire.UEBA{{Source: wire.UEBASourceVDI, Ref: ref}}})
	if err != nil {
		t.Fatal(err)
	}
	return &wire.Message{
		Type:  wire.TypeEvent,
		Event: &wire.Event{Type: wire.EventDeviceDataCaptured, Data: data},
	}
}

func TestJoin_InitThenDevice(t *testing.T) {
	s := newTestSession()

	s, effs := HandleMessage(s, initResultMsg(t, "ST123"), t0, 0)
	if s.State != StateAwaitingDeviceProfile {
		t.Fatalf("estado = %s, esperaba AWAITING_DEVICE_PROFILE", s.State)
	}
	if len(effs) != 0 {
		t.Fatalf("no debe haber efectos todavía: %v", effs)
	}

	s, effs = HandleMessage(s, deviceEventMsg(t, "DFP1"), t0, 0)
	if s.State != StateReadyForPAR {
		t.Fatalf("estado = %s, esperaba READY_FOR_PAR", s.State)
	}
	if len(effs) != 1 || effs[0] != EffectSubmitProbe {
		t.Fatalf("esperaba EffectSubmitProbe, got %v", effs)
	}
	if s.ServerStateToken != "ST123" || s.DFPSessionID != "DFP1" || s.RoutingHint != "DC-1" {
		t.Fatalf("join incompleto: %+v", s)
	}
}

func TestJoin_DeviceThenInit(t *testing.T) {
	s := newTestSession()

	// el profiling puede terminar antes que el resultado de inicialización
	s, effs := HandleMessage(s, deviceEventMsg(t, "DFP1"), t0, 0)
	if s.State != StateInitializing {
		t.Fatalf("estado = %s, debe seguir esperando", s.State)
	}
	if len(effs) != 0 {
		t.Fatalf("efectos prematuros: %v", effs)
	}

	s, effs = HandleMessage(s, initResultMsg(t, "ST123"), t0, 0)
	if s.State != StateReadyForPAR {
		t.Fatalf("estado = %s, esperaba READY_FOR_PAR", s.State)
	}
	if len(effs) != 1 || effs[0] != EffectSubmitProbe {
		t.Fatalf("esperaba EffectSubmitProbe exactamente una vez, got %v", effs)
	}
}

func TestJoin_FiresExactlyOnce(t *testing.T) {
	s := newTestSession()
	s, _ = HandleMessage(s, initResultMsg(t, "ST123"), t0, 0)
	s, _ = HandleMessage(s, deviceEventMsg(t, "DFP1"), t0, 0)

	// un evento duplicado no re-dispara el sondeo
	s2, effs := HandleMessage(s, deviceEventMsg(t, "DFP2"), t0, 0)
	if len(effs) != 0 {
		t.Fatalf("el join avanza una sola vez: %v", effs)
	}
	if s2.DFPSessionID != "DFP1" {
		t.Fatalf("el duplicado no debe pisar la referencia: %q", s2.DFPSessionID)
	}
}

func TestInit_MissingServerStateToken(t *testing.T) {
	s := newTestSession()
	s, _ = HandleMessage(s, initResultMsg(t, ""), t0, 0)
	if s.State != StateFailed || s.FailureCode != CodeInitializationIncomplete {
		t.Fatalf("esperaba Failed/initialization_incomplete, got %s/%s", s.State, s.FailureCode)
	}
}

func TestInit_FailureStatus(t *testing.T) {
	s := newTestSession()
	msg := &wire.Message{
		Type:   wire.TypeResult,
		Result: &wire.Result{CommandType: wire.CommandInitialization, Status: wire.StatusFailure, Data: json.RawMessage(`{"error_description":"hub sad"}`)},
	}
	s, _ = HandleMessage(s, msg, t0, 0)
	if s.State != StateFailed || s.FailureCode != CodeInitializationFailed {
		t.Fatalf("esperaba Failed/initialization_failed, got %s/%s", s.State, s.FailureCode)
	}
	if s.FailureDescription != "hub sad" {
		t.Fatalf("descripción = %q", s.FailureDescription)
	}
}

func TestUnknownMessagesIgnored(t *testing.T) {
	s := newTestSession()
	before := s.State

	msgs := []*wire.Message{
		{Type: "HEARTBEAT"},
		{Type: wire.TypeEvent, Event: &wire.Event{Type: "SOMETHING_NEW"}},
		{Type: wire.TypeResult, Result: &wire.Result{CommandType: "FUTURE_COMMAND", Status: wire.StatusSuccess}},
	}
	for _, m := range msgs {
		var effs []Effect
		s, effs = HandleMessage(s, m, t0, 0)
		if s.State != before || len(effs) != 0 {
			t.Fatalf("mensaje %q debió ignorarse: estado %s, effs %v", m.Type, s.State, effs)
		}
	}
}

func TestProbe_SuccessGoesToHandoff(t *testing.T) {
	s := newTestSession()
	s.State = StatePARInFlight

	res := &par.Result{Outcome: par.OutcomeSuccess, Request: "signed.jwt", AuthorizationEndpoint: "/ruta/auth"}
	s, effs := ApplyProbeResult(s, res, t0, 0)
	if s.State != StateAuthorizationHandoff {
		t.Fatalf("estado = %s", s.State)
	}
	if len(effs) != 1 || effs[0] != EffectHandoff {
		t.Fatalf("esperaba EffectHandoff: %v", effs)
	}
	if s.SignedRequest != "signed.jwt" || s.AuthorizationEndpoint != "/ruta/auth" {
		t.Fatalf("no guardó la salida del PAR: %+v", s)
	}
}

func TestProbe_NoPasskeyTriggersStepUp(t *testing.T) {
	s := newTestSession()
	s.State = StatePARInFlight

	res := &par.Result{Outcome: par.OutcomeNoPasskey, ErrorCode: "notfound_amr_values"}
	s, effs := ApplyProbeResult(s, res, t0, 0)
	if s.State != StateStepUpRequired {
		t.Fatalf("estado = %s", s.State)
	}
	if len(effs) != 1 || effs[0] != EffectRunStepUp {
		t.Fatalf("esperaba EffectRunStepUp: %v", effs)
	}
}

func TestProbe_OtherFailureIsTerminal(t *testing.T) {
	s := newTestSession()
	s.State = StatePARInFlight

	res := &par.Result{Outcome: par.OutcomeUnexpected, ErrorCode: "server_error", ErrorDescription: "boom"}
	s, effs := ApplyProbeResult(s, res, t0, 0)
	if s.State != StateFailed || s.FailureCode != CodeUnexpected {
		t.Fatalf("esperaba Failed/unexpected: %s/%s", s.State, s.FailureCode)
	}
	if len(effs) != 0 {
		t.Fatalf("un fallo terminal no emite efectos: %v", effs)
	}
}

func TestRetry_NoPasskeyStillProceeds(t *testing.T) {
	// el reintento probaba identidad, no enrolamiento: con el step-up
	// completo, notfound_amr_values ya no bloquea
	s := newTestSession()
	s.State = StatePARRetryInFlight

	res := &par.Result{Outcome: par.OutcomeNoPasskey}
	s, effs := ApplyRetryResult(s, res, t0, 0)
	if s.State != StateAuthorizationHandoff {
		t.Fatalf("estado = %s, esperaba AUTHORIZATION_HANDOFF", s.State)
	}
	if len(effs) != 1 || effs[0] != EffectHandoff {
		t.Fatalf("esperaba EffectHandoff: %v", effs)
	}
	if s.AuthorizationEndpoint != BindingAuthorizationEndpoint {
		t.Fatalf("endpoint = %q", s.AuthorizationEndpoint)
	}
}

func TestHandoff_PopupClosedIsUserAbandoned(t *testing.T) {
	s := newTestSession()
	s.State = StateAuthorizationHandoff

	msg := &wire.Message{Type: wire.TypeEvent, Event: &wire.Event{Type: wire.EventPopupWindowTerminated}}
	s, _ = HandleMessage(s, msg, t0, 0)
	if s.State != StateFailed || s.FailureCode != CodeUserAbandoned {
		t.Fatalf("esperaba Failed/user_abandoned: %s/%s", s.State, s.FailureCode)
	}
}

func TestHandoff_ResultResolvesFlow(t *testing.T) {
	s := newTestSession()
	s.State = StateAuthorizationHandoff

	ok := &wire.Message{Type: wire.TypeResult, Result: &wire.Result{CommandType: wire.CommandAuthorizationRequest, Status: wire.StatusSuccess}}
	done, effs := HandleMessage(s, ok, t0, 0)
	if done.State != StateCompleted {
		t.Fatalf("estado = %s", done.State)
	}
	if len(effs) != 1 || effs[0] != EffectNotify {
		t.Fatalf("esperaba EffectNotify: %v", effs)
	}

	bad := &wire.Message{Type: wire.TypeResult, Result: &wire.Result{CommandType: wire.CommandAuthorizationRequest, Status: wire.StatusFailure}}
	failed, _ := HandleMessage(s, bad, t0, 0)
	if failed.State != StateFailed || failed.FailureCode != CodeAuthorizationFailed {
		t.Fatalf("esperaba Failed/authorization_failed: %s/%s", failed.State, failed.FailureCode)
	}
}

func TestExpireIfDue(t *testing.T) {
	s := newTestSession()

	if _, due := ExpireIfDue(s, t0.Add(time.Second)); due {
		t.Fatal("no debía vencer todavía")
	}

	s2, due := ExpireIfDue(s, t0.Add(DefaultStateTimeout+time.Second))
	if !due || s2.State != StateFailed || s2.FailureCode != CodeTimeout {
		t.Fatalf("esperaba vencimiento: due=%v %s/%s", due, s2.State, s2.FailureCode)
	}

	// las sesiones terminales no vencen
	if _, due := ExpireIfDue(s2, t0.Add(time.Hour)); due {
		t.Fatal("una sesión terminal no vence")
	}
}

func TestTerminalSessionIgnoresMessages(t *testing.T) {
	s := newTestSession()
	s.State = StateCompleted

	s2, effs := HandleMessage(s, deviceEventMsg(t, "DFP9"), t0, 0)
	if s2.State != StateCompleted || len(effs) != 0 {
		t.Fatalf("una sesión terminal no transiciona: %s %v", s2.State, effs)
	}
}
