package util

import "testing"

func TestFieldErrors(t *testing.T) {
	errs := FieldErrors{}
	if errs.HasErrors() {
		t.Fatal("empty FieldErrors must report no errors")
	}

	errs.Add("nombre", "muy corto")
	errs.Add("nombre", "caracteres inválidos")
	errs.Add("correo", "formato inválido")

	if !errs.HasErrors() {
		t.Fatal("expected errors")
	}
	if len(errs["nombre"]) != 2 {
		t.Fatalf("expected 2 messages for nombre, got %d", len(errs["nombre"]))
	}

	// El mensaje une los campos en orden alfabético.
	want := "correo: formato inválido; nombre: muy corto, caracteres inválidos"
	if got := errs.Error(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("Secreta123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePassword("corta"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("maria@habitat.gov.co"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateEmail("no-es-correo"); err == nil {
		t.Fatal("expected error for malformed email")
	}
}
