package password

import "testing"

func TestHashVerify_RoundTrip(t *testing.T) {
	phc, err := Hash(Default, "hunter2!")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	if !Verify("hunter2!", phc) {
		t.Fatalf("Verify debería aceptar la password correcta")
	}
	if Verify("hunter3!", phc) {
		t.Fatalf("Verify aceptó una password incorrecta")
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	for _, phc := range []string{"", "$argon2id$", "$bcrypt$x$y", "$argon2id$v=18$m=1,t=1,p=1$a$b"} {
		if Verify("x", phc) {
			t.Fatalf("Verify aceptó PHC inválido: %q", phc)
		}
	}
}

func TestHash_EmptyPassword(t *testing.T) {
	if _, err := Hash(Default, ""); err == nil {
		t.Fatalf("esperaba error con password vacía")
	}
}
