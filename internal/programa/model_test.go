package programa

import (
	"regexp"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		ok   bool
	}{
		{EstadoBorrador, EstadoActivo, true},
		{EstadoActivo, EstadoInhabilitado, true},
		{EstadoInhabilitado, EstadoActivo, true},
		{EstadoBorrador, EstadoInhabilitado, false},
		{EstadoActivo, EstadoBorrador, false},
		{EstadoInhabilitado, EstadoBorrador, false},
		{EstadoActivo, EstadoActivo, false},
		{"PAUSADO", EstadoActivo, false},
	}

	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestGenerateCodigo(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^2026BS[0-9A-F]{4}$`)

	for i := 0; i < 10; i++ {
		codigo := GenerateCodigo(now)
		if !pattern.MatchString(codigo) {
			t.Fatalf("codigo %q does not match %s", codigo, pattern)
		}
	}
}
