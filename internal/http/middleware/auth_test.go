package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func rolesRequest(roles []string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), ContextKeyRoles, roles)
	return req.WithContext(ctx)
}

func TestRequireRoles(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		roles    []string
		status   int
	}{
		{"coincide", []string{"ADMINISTRADOR"}, []string{"ADMINISTRADOR"}, http.StatusOK},
		{"uno-de-varios", []string{"ADMINISTRADOR", "FUNCIONARIO"}, []string{"FUNCIONARIO"}, http.StatusOK},
		{"normaliza-mayusculas", []string{"administrador"}, []string{" Administrador "}, http.StatusOK},
		{"sin-rol", []string{"ADMINISTRADOR"}, []string{"TECNICO"}, http.StatusForbidden},
		{"sin-roles-en-contexto", []string{"ADMINISTRADOR"}, nil, http.StatusForbidden},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RequireRoles(tc.required...)(next).ServeHTTP(rec, rolesRequest(tc.roles))

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestAuthRejectsMissingBearer(t *testing.T) {
	handler := Auth(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next should not run without token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
