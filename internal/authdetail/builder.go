package authdetail

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AMRFIDO2 es el método de autenticación que declara todo el protocolo.
var AMRFIDO2 = []string{"pop#fido2"}

func serverStateConfinements() Confinements {
	return Confinements{
		Origin: SourceHint{SourceHint: sourceHintServerState},
		Device: SourceHint{SourceHint: sourceHintServerState},
	}
}

// StripScheme quita el esquema http(s) de un origin de merchant: la red
// espera "www.tienda.com", no "https://www.tienda.com".
func StripScheme(origin string) string {
	origin = strings.TrimSpace(origin)
	origin = strings.TrimPrefix(origin, "https://")
	origin = strings.TrimPrefix(origin, "http://")
	return origin
}

// DefaultTrustChain arma la cadena por defecto para un registro sin step-up
// previo: un anchor único que referencia la transacción del propio merchant.
func DefaultTrustChain() *TrustChain {
	return &TrustChain{
		Anchor: Anchor{Authentication: []AnchorEntry{{
			Protocol:     "TDS",
			SourceHint:   "CRD",
			AMR:          []string{},
			SourceIDHint: "ACS_TNX_ID",
			SourceID:     uuid.NewString(),
			Time:         fmt.Sprintf("%d", time.Now().Unix()),
		}}},
		Surrogate: Surrogate{Authentication: []SurrogateEntry{{
			AMRValues: AMRFIDO2,
			Time:      "",
		}}},
	}
}

// BuildRegistration construye la variante credential binding.
// Si trustChain viene nil se usa la cadena por defecto; una cadena explícita
// (evidencia post step-up) siempre gana sobre el default.
func BuildRegistration(credentialRef, payeeOrigin, payeeName, notifyEmail string, trustChain *TrustChain) Detail {
	if trustChain == nil {
		trustChain = DefaultTrustChain()
	}
	return Detail{
		Type: TypeCredentialBinding,
		Payer: Payer{Account: Account{
			Scheme: SchemePAN,
			ID:     credentialRef,
		}},
		Payee: Payee{
			Origin: StripScheme(payeeOrigin),
			Name:   payeeName,
		},
		Preferences: &Preferences{
			Notification: &Notification{Email: notifyEmail},
		},
		Confinements: serverStateConfinements(),
		TrustChain:   trustChain,
	}
}

// BuildAuthentication construye la variante payment transaction.
// amount ya viene como string decimal; acá no se hace aritmética de dinero.
func BuildAuthentication(credentialRef, payeeOrigin, payeeName, amount, currency string) Detail {
	return Detail{
		Type: TypePaymentTransaction,
		Payer: Payer{Account: Account{
			Scheme: SchemePAN,
			ID:     credentialRef,
		}},
		Payee: Payee{
			Origin: StripScheme(payeeOrigin),
			Name:   payeeName,
		},
		Details: &Amount{
			Amount:   amount,
			Currency: currency,
			Label:    "Total",
		},
		Preferences:  &Preferences{},
		Confinements: serverStateConfinements(),
	}
}
