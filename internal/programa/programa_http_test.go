package programa

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
	programa   Programa
	etapa      Etapa
	lastUpdate UpdateInput
}

func (s *stubRepo) List(ctx context.Context, estado string, limit, offset int) ([]Programa, int, error) {
	return []Programa{s.programa}, 1, nil
}
func (s *stubRepo) GetByID(ctx context.Context, id uuid.UUID) (*Programa, error) {
	p := s.programa
	return &p, nil
}
func (s *stubRepo) Create(ctx context.Context, input CreateInput, codigo string) (*Programa, error) {
	p := s.programa
	p.Nombre = input.Nombre
	p.CodigoPrograma = codigo
	return &p, nil
}
func (s *stubRepo) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Programa, error) {
	s.lastUpdate = input
	p := s.programa
	p.Nombre = input.Nombre
	p.Descripcion = input.Descripcion
	return &p, nil
}
func (s *stubRepo) UpdateEstado(ctx context.Context, id uuid.UUID, estado string) (*Programa, error) {
	p := s.programa
	p.Estado = estado
	return &p, nil
}
func (s *stubRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (s *stubRepo) Stats(ctx context.Context) (*Estadisticas, error) {
	return &Estadisticas{Total: 1, PorEstado: map[string]int{EstadoBorrador: 1}}, nil
}
func (s *stubRepo) ListEtapas(ctx context.Context, programaID uuid.UUID) ([]Etapa, error) {
	return []Etapa{s.etapa}, nil
}
func (s *stubRepo) CreateEtapa(ctx context.Context, programaID uuid.UUID, input EtapaInput) (*Etapa, error) {
	e := s.etapa
	e.Nombre = input.Nombre
	e.Orden = input.Orden
	return &e, nil
}
func (s *stubRepo) UpdateEtapaEstado(ctx context.Context, id uuid.UUID, estado string) (*Etapa, error) {
	e := s.etapa
	e.Estado = estado
	return &e, nil
}
func (s *stubRepo) DeleteEtapa(ctx context.Context, id uuid.UUID) error { return nil }

func newTestHandler(estado string) (*Handler, *stubRepo) {
	repo := &stubRepo{
		programa: Programa{
			ID:                 uuid.New(),
			Nombre:             "Subsidio Joven",
			Descripcion:        "Subsidio de arriendo para hogares jóvenes",
			EntidadResponsable: "Secretaría de Hábitat",
			CodigoPrograma:     "2026BS0A1F",
			Estado:             estado,
			FechaCreacion:      time.Now(),
			FechaActualizacion: time.Now(),
		},
		etapa: Etapa{ID: uuid.New(), Nombre: "Postulación", Estado: EtapaConfigurada, Orden: 1},
	}
	return NewHandler(NewService(repo, nil)), repo
}

func TestProgramaHandlers(t *testing.T) {
	handler, repo := newTestHandler(EstadoBorrador)
	programaID := repo.programa.ID.String()
	etapaID := repo.etapa.ID.String()

	valido := map[string]any{
		"nombre":              "Subsidio Joven",
		"descripcion":         "Subsidio de arriendo para hogares jóvenes",
		"entidad_responsable": "Secretaría de Hábitat",
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		roles  []string
		status int
	}{
		{"list", http.MethodGet, "/", nil, []string{"TECNICO"}, http.StatusOK},
		{"list-estado-invalido", http.MethodGet, "/?estado=PENDIENTE", nil, []string{"TECNICO"}, http.StatusBadRequest},
		{"get", http.MethodGet, "/" + programaID, nil, []string{"TECNICO"}, http.StatusOK},
		{"stats", http.MethodGet, "/estadisticas", nil, []string{"TECNICO"}, http.StatusOK},
		{"create", http.MethodPost, "/", valido, []string{"FUNCIONARIO"}, http.StatusCreated},
		{"create-nombre-corto", http.MethodPost, "/", map[string]any{"nombre": "ab", "descripcion": "Subsidio de arriendo", "entidad_responsable": "Hábitat"}, []string{"FUNCIONARIO"}, http.StatusBadRequest},
		{"create-sin-rol", http.MethodPost, "/", valido, []string{"TECNICO"}, http.StatusForbidden},
		{"update", http.MethodPut, "/" + programaID, valido, []string{"ADMINISTRADOR"}, http.StatusOK},
		{"patch", http.MethodPatch, "/" + programaID, map[string]any{"descripcion": "Cobertura ampliada a hogares rurales"}, []string{"FUNCIONARIO"}, http.StatusOK},
		{"patch-sin-rol", http.MethodPatch, "/" + programaID, map[string]any{"nombre": "Otro"}, []string{"TECNICO"}, http.StatusForbidden},
		{"activar", http.MethodPost, "/" + programaID + "/cambiar_estado", map[string]any{"nuevo_estado": "ACTIVO"}, []string{"FUNCIONARIO"}, http.StatusOK},
		{"inhabilitar-desde-borrador", http.MethodPost, "/" + programaID + "/cambiar_estado", map[string]any{"nuevo_estado": "INHABILITADO"}, []string{"FUNCIONARIO"}, http.StatusBadRequest},
		{"estado-desconocido", http.MethodPost, "/" + programaID + "/cambiar_estado", map[string]any{"nuevo_estado": "PAUSADO"}, []string{"FUNCIONARIO"}, http.StatusBadRequest},
		{"delete", http.MethodDelete, "/" + programaID, nil, []string{"ADMINISTRADOR"}, http.StatusNoContent},
		{"delete-sin-rol", http.MethodDelete, "/" + programaID, nil, []string{"FUNCIONARIO"}, http.StatusForbidden},
		{"etapas", http.MethodGet, "/" + programaID + "/etapas", nil, []string{"TECNICO"}, http.StatusOK},
		{"etapa-create", http.MethodPost, "/" + programaID + "/etapas", map[string]any{"nombre": "Postulación", "orden": 1}, []string{"FUNCIONARIO"}, http.StatusCreated},
		{"etapa-orden-invalido", http.MethodPost, "/" + programaID + "/etapas", map[string]any{"nombre": "Postulación", "orden": 0}, []string{"FUNCIONARIO"}, http.StatusBadRequest},
		{"etapa-estado", http.MethodPatch, "/" + programaID + "/etapas/" + etapaID, map[string]any{"estado": "ACTIVA"}, []string{"FUNCIONARIO"}, http.StatusOK},
		{"etapa-delete", http.MethodDelete, "/" + programaID + "/etapas/" + etapaID, nil, []string{"ADMINISTRADOR"}, http.StatusNoContent},
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

func TestPatchMergesOnlyProvidedFields(t *testing.T) {
	handler, repo := newTestHandler(EstadoBorrador)

	body := requestBody(map[string]any{"descripcion": "Cobertura ampliada a hogares rurales"})
	req := httptest.NewRequest(http.MethodPatch, "/"+repo.programa.ID.String(), body)
	req = withRoles(req, []string{"FUNCIONARIO"})
	rec := httptest.NewRecorder()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if repo.lastUpdate.Descripcion != "Cobertura ampliada a hogares rurales" {
		t.Fatalf("expected descripcion nueva, got %q", repo.lastUpdate.Descripcion)
	}
	if repo.lastUpdate.Nombre != repo.programa.Nombre || repo.lastUpdate.EntidadResponsable != repo.programa.EntidadResponsable {
		t.Fatalf("untouched fields must keep current values, got %+v", repo.lastUpdate)
	}
}

func TestCambiarEstadoMensaje(t *testing.T) {
	handler, repo := newTestHandler(EstadoActivo)

	body := requestBody(map[string]any{"nuevo_estado": "INHABILITADO"})
	req := httptest.NewRequest(http.MethodPost, "/"+repo.programa.ID.String()+"/cambiar_estado", body)
	req = withRoles(req, []string{"ADMINISTRADOR"})
	rec := httptest.NewRecorder()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Mensaje  string   `json:"mensaje"`
		Programa Programa `json:"programa"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mensaje != "El programa fue actualizado a estado INHABILITADO" {
		t.Fatalf("unexpected mensaje %q", resp.Mensaje)
	}
	if resp.Programa.Estado != EstadoInhabilitado {
		t.Fatalf("expected estado INHABILITADO got %s", resp.Programa.Estado)
	}
}

func TestListValidationShape(t *testing.T) {
	handler, _ := newTestHandler(EstadoBorrador)

	req := httptest.NewRequest(http.MethodPost, "/", requestBody(map[string]any{"nombre": "ab", "descripcion": "corta", "entidad_responsable": ""}))
	req = withRoles(req, []string{"ADMINISTRADOR"})
	rec := httptest.NewRecorder()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	var resp struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"nombre", "descripcion", "entidad_responsable"} {
		if len(resp.Errors[field]) == 0 {
			t.Fatalf("expected errors for %s, got %v", field, resp.Errors)
		}
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
