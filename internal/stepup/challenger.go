// Package stepup corre el desafío de verificación fuera de banda (estilo
// 3-D Secure) que se dispara cuando la red reporta que no hay passkey
// enrolada para el par credencial/dispositivo.
package stepup

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/passbridge/internal/authdetail"
)

var ErrChallengeRejected = errors.New("step_up_rejected")

// Challenge describe la verificación pedida.
type Challenge struct {
	CredentialRef  string
	MerchantOrigin string
	Amount         string
	Currency       string
}

// Evidence es el resultado de un desafío exitoso: los datos del ACS más la
// trust chain lista para adjuntar al PAR de reintento.
type Evidence struct {
	ACSTransactionID     string
	AuthenticationStatus string
	ECI                  string
	CAVV                 string
	Timestamp            time.Time
	TrustChain           *authdetail.TrustChain
}

// Challenger abstrae al proveedor del desafío; el orquestador solo consume
// la trust chain resultante.
type Challenger interface {
	Challenge(ctx context.Context, c Challenge) (*Evidence, error)
}

// SimulatedChallenger aprueba todo desafío con credencial presente. Sirve
// para sandbox y tests; un ACS real implementa la misma interfaz.
type SimulatedChallenger struct{}

func (SimulatedChallenger) Challenge(_ context.Context, c Challenge) (*Evidence, error) {
	if c.CredentialRef == "" {
		return nil, fmt.Errorf("%w: falta la referencia de credencial", ErrChallengeRejected)
	}

	now := time.Now()
	acsID := uuid.NewString()
	ev := &Evidence{
		ACSTransactionID:     acsID,
		AuthenticationStatus: "Y",
		ECI:                  "05",
		CAVV:                 base64.StdEncoding.EncodeToString([]byte(uuid.NewString())),
		Timestamp:            now,
		TrustChain: &authdetail.TrustChain{
			Anchor: authdetail.Anchor{Authentication: []authdetail.AnchorEntry{{
				Protocol:     "TDS",
				SourceHint:   "CRD",
				AMR:          []string{},
				SourceIDHint: "ACS_TNX_ID",
				SourceID:     acsID,
				Time:         fmt.Sprintf("%d", now.Unix()),
			}}},
			Surrogate: authdetail.Surrogate{Authentication: []authdetail.SurrogateEntry{{
				AMRValues: authdetail.AMRFIDO2,
				Time:      "",
			}}},
		},
	}
	return ev, nil
}
