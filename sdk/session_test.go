package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRoleFromServer(t *testing.T) {
	tests := []struct {
		rol  string
		want Role
	}{
		{"ADMINISTRADOR", RoleAdmin},
		{"FUNCIONARIO", RoleFuncionario},
		{"TECNICO", RoleFuncionario},
		{"administrador", RoleAdmin},
		{" tecnico ", RoleFuncionario},
		{"GERENTE", RoleVisitante},
		{"", RoleVisitante},
	}

	for _, tc := range tests {
		if got := roleFromServer(tc.rol); got != tc.want {
			t.Errorf("roleFromServer(%q) = %v, want %v", tc.rol, got, tc.want)
		}
	}
}

func TestLoginSetsTokenAndMapsRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["correo"] != "maria@habitat.gov.co" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "credenciales inválidas"}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"access_token": "tok-1",
			"user": {"id": "u1", "nombre": "María", "apellidos": "Gómez", "correo": "maria@habitat.gov.co", "rol": "ADMINISTRADOR"},
			"roles": ["ADMINISTRADOR"]
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	session, err := Login(context.Background(), client, "maria@habitat.gov.co", "Secreta123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Role != RoleAdmin {
		t.Fatalf("expected ADMIN got %v", session.Role)
	}
	if session.Nombre != "María Gómez" {
		t.Fatalf("unexpected nombre %q", session.Nombre)
	}
	if session.Token != "tok-1" || client.token != "tok-1" {
		t.Fatal("token not propagated to client")
	}

	_, err = Login(context.Background(), client, "otra@habitat.gov.co", "mal")
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "credenciales inválidas" {
		t.Fatalf("expected 401 credenciales inválidas, got %v", err)
	}
}

func TestGuardCheck(t *testing.T) {
	guard := NewGuard(nil)
	admin := &Session{Token: "t", Role: RoleAdmin}
	funcionario := &Session{Token: "t", Role: RoleFuncionario}
	visitante := &Session{Token: "t", Role: RoleVisitante}

	tests := []struct {
		name     string
		session  *Session
		path     string
		allowed  bool
		location string
		returnTo string
	}{
		{"sin-sesion", nil, "/programas", false, "/login", "/programas"},
		{"token-vacio", &Session{}, "/usuarios", false, "/login", "/usuarios"},
		{"admin-en-usuarios", admin, "/usuarios", true, "", ""},
		{"funcionario-en-usuarios", funcionario, "/usuarios", false, "/", ""},
		{"funcionario-en-programas", funcionario, "/programas/p1", true, "", ""},
		{"visitante-en-programas", visitante, "/programas", false, "/", ""},
		{"admin-en-raiz", admin, "/", true, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := guard.Check(tc.session, tc.path)
			if decision.Allowed != tc.allowed {
				t.Fatalf("Allowed = %v, want %v", decision.Allowed, tc.allowed)
			}
			if decision.Location != tc.location {
				t.Fatalf("Location = %q, want %q", decision.Location, tc.location)
			}
			if decision.ReturnTo != tc.returnTo {
				t.Fatalf("ReturnTo = %q, want %q", decision.ReturnTo, tc.returnTo)
			}
		})
	}
}

func TestAfterLogin(t *testing.T) {
	guard := NewGuard(nil)

	decision := guard.Check(nil, "/programas/p1")
	if got := AfterLogin(decision); got != "/programas/p1" {
		t.Fatalf("AfterLogin = %q, want la ruta recordada", got)
	}

	if got := AfterLogin(GuardDecision{}); got != "/" {
		t.Fatalf("AfterLogin sin ReturnTo = %q, want /", got)
	}
}
