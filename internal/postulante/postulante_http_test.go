package postulante

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/gestionvivienda/subsidios/internal/http/middleware"
)

type stubRepo struct {
	postulante Postulante
}

func (s *stubRepo) ListByPrograma(ctx context.Context, programaID uuid.UUID, estado string) ([]Postulante, error) {
	return []Postulante{s.postulante}, nil
}
func (s *stubRepo) GetByID(ctx context.Context, id uuid.UUID) (*Postulante, error) {
	p := s.postulante
	return &p, nil
}
func (s *stubRepo) Create(ctx context.Context, input CreateInput) (*Postulante, error) {
	p := s.postulante
	p.Nombre = input.Nombre
	p.Estado = EstadoActivo
	return &p, nil
}
func (s *stubRepo) UpdateEstado(ctx context.Context, id uuid.UUID, estado string) (*Postulante, error) {
	p := s.postulante
	p.Estado = estado
	return &p, nil
}

func TestPostulanteHandlers(t *testing.T) {
	repo := &stubRepo{
		postulante: Postulante{
			ID:               uuid.New(),
			ProgramaID:       uuid.New(),
			Nombre:           "Carlos",
			Apellido:         "Pérez",
			TipoDocumento:    "CC",
			NumeroDocumento:  "80123456",
			Email:            "carlos.perez@example.com",
			Estado:           EstadoActivo,
			FechaPostulacion: time.Now(),
		},
	}
	handler := NewHandler(repo)

	programaID := repo.postulante.ProgramaID.String()
	postulanteID := repo.postulante.ID.String()

	valido := map[string]any{
		"programa_id":      programaID,
		"nombre":           "Carlos",
		"apellido":         "Pérez",
		"tipo_documento":   "CC",
		"numero_documento": "80123456",
		"email":            "carlos.perez@example.com",
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		roles  []string
		status int
	}{
		{"list", http.MethodGet, "/programa/" + programaID, nil, []string{"TECNICO"}, http.StatusOK},
		{"list-estado-invalido", http.MethodGet, "/programa/" + programaID + "?estado=PENDIENTE", nil, []string{"TECNICO"}, http.StatusBadRequest},
		{"get", http.MethodGet, "/" + postulanteID, nil, []string{"TECNICO"}, http.StatusOK},
		{"create", http.MethodPost, "/", valido, []string{"FUNCIONARIO"}, http.StatusCreated},
		{"create-sin-rol", http.MethodPost, "/", valido, []string{"TECNICO"}, http.StatusForbidden},
		{"create-documento-corto", http.MethodPost, "/", map[string]any{"programa_id": programaID, "nombre": "Carlos", "apellido": "Pérez", "numero_documento": "12"}, []string{"FUNCIONARIO"}, http.StatusBadRequest},
		{"aprobar", http.MethodPatch, "/" + postulanteID + "/cambiar_estado", map[string]any{"estado": "APROBADO"}, []string{"ADMINISTRADOR"}, http.StatusOK},
		{"estado-desconocido", http.MethodPatch, "/" + postulanteID + "/cambiar_estado", map[string]any{"estado": "PENDIENTE"}, []string{"ADMINISTRADOR"}, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, requestBody(tc.body))
			req = withRoles(req, tc.roles)
			rec := httptest.NewRecorder()

			r := chi.NewRouter()
			handler.RegisterRoutes(r)
			r.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("%s %s: expected %d got %d (%s)", tc.method, tc.path, tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func requestBody(body any) *bytes.Buffer {
	if body == nil {
		return bytes.NewBuffer(nil)
	}
	b, _ := json.Marshal(body)
	return bytes.NewBuffer(b)
}

func withRoles(req *http.Request, roles []string) *http.Request {
	ctx := req.Context()
	ctx = context.WithValue(ctx, httpmiddleware.ContextKeySubject, uuid.NewString())
	ctx = context.WithValue(ctx, httpmiddleware.ContextKeyRoles, roles)
	ctx = context.WithValue(ctx, httpmiddleware.ContextKeyAudience, "backoffice")
	return req.WithContext(ctx)
}
