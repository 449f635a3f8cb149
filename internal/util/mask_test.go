package util

import (
	"strings"
	"testing"
)

func TestMaskPAN(t *testing.T) {
	got := MaskPAN("4111111111111111")
	if strings.Contains(got, "111111111") {
		t.Fatalf("PAN body leaked: %q", got)
	}
	if !strings.HasPrefix(got, "411111") || !strings.HasSuffix(got, "1111") {
		t.Fatalf("unexpected mask: %q", got)
	}
	if MaskPAN("1234") != "****" {
		t.Fatalf("short values must be fully masked")
	}
	if MaskPAN("") != "" {
		t.Fatalf("empty in, empty out")
	}
}

func TestMaskToken(t *testing.T) {
	if got := MaskToken("abcdefghijklmnop"); got != "abcdefgh…" {
		t.Fatalf("got %q", got)
	}
	if MaskToken("abc") != "***" {
		t.Fatalf("short tokens must be opaque")
	}
}
