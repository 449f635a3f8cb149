package stepup

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

func TestSimulatedChallenger(t *testing.T) {
	ev, err := SimulatedChallenger{}.Challenge(context.Background(), Challenge{
		CredentialRef:  "4111111111111111",
		MerchantOrigin: "shop.example",
	})
	if err != nil {
		t.Fatalf("Challenge err: %v", err)
	}
	if ev.AuthenticationStatus != "Y" || ev.ECI != "05" {
		t.Fatalf("evidencia inesperada: %+v", ev)
	}
	if _, err := base64.StdEncoding.DecodeString(ev.CAVV); err != nil {
		t.Fatalf("cavv no es base64: %v", err)
	}
	if ev.TrustChain == nil {
		t.Fatal("falta la trust chain")
	}
	anchor := ev.TrustChain.Anchor.Authentication
	if len(anchor) != 1 || anchor[0].Protocol != "TDS" || anchor[0].SourceID != ev.ACSTransactionID {
		t.Fatalf("anchor inesperado: %+v", anchor)
	}
	sur := ev.TrustChain.Surrogate.Authentication
	if len(sur) != 1 || len(sur[0].AMRValues) != 1 || sur[0].AMRValues[0] != "pop#fido2" {
		t.Fatalf("surrogate inesperado: %+v", sur)
	}
	if sur[0].Time != "" {
		t.Fatalf("el time del surrogate va vacío: %q", sur[0].Time)
	}
}

func TestSimulatedChallenger_MissingCredential(t *testing.T) {
	_, err := SimulatedChallenger{}.Challenge(context.Background(), Challenge{})
	if !errors.Is(err, ErrChallengeRejected) {
		t.Fatalf("esperaba ErrChallengeRejected, got %v", err)
	}
}
