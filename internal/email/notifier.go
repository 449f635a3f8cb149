package email

import (
	"context"
	"fmt"
)

// RegistrationNotifier implementa el aviso de registro completado sobre un
// Sender.
type RegistrationNotifier struct {
	Sender Sender
}

func (n *RegistrationNotifier) RegistrationCompleted(_ context.Context, to, merchantName string) error {
	if n.Sender == nil || to == "" {
		return nil
	}
	subject := fmt.Sprintf("Passkey registrada en %s", merchantName)
	text := fmt.Sprintf(
		"Tu passkey quedó registrada para pagar en %s.\n\nSi no fuiste vos, contactá al comercio.\n",
		merchantName,
	)
	html := fmt.Sprintf(
		"<p>Tu passkey quedó registrada para pagar en <strong>%s</strong>.</p><p>Si no fuiste vos, contactá al comercio.</p>",
		merchantName,
	)
	return n.Sender.Send(to, subject, html, text)
}
