package email

import (
	"context"
	"strings"
	"testing"
)

type fakeSender struct {
	to, subject, html, text string
	calls                   int
}

func (f *fakeSender) Send(to, subject, htmlBody, textBody string) error {
	f.calls++
	f.to, f.subject, f.html, f.text = to, subject, htmlBody, textBody
	return nil
}

func TestRegistrationNotifier(t *testing.T) {
	fs := &fakeSender{}
	n := &RegistrationNotifier{Sender: fs}

	if err := n.RegistrationCompleted(context.Background(), "payer@example.com", "Demo Store"); err != nil {
		t.Fatalf("err: %v", err)
	}
	if fs.calls != 1 || fs.to != "payer@example.com" {
		t.Fatalf("envío inesperado: %+v", fs)
	}
	if !strings.Contains(fs.subject, "Demo Store") || !strings.Contains(fs.text, "Demo Store") {
		t.Fatalf("el nombre del comercio falta en el mensaje: %+v", fs)
	}
}

func TestRegistrationNotifier_NoopWithoutDestination(t *testing.T) {
	fs := &fakeSender{}
	n := &RegistrationNotifier{Sender: fs}

	if err := n.RegistrationCompleted(context.Background(), "", "Demo Store"); err != nil {
		t.Fatalf("err: %v", err)
	}
	if fs.calls != 0 {
		t.Fatal("sin destinatario no se envía nada")
	}
}
