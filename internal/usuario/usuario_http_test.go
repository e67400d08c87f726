package usuario

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
)

type stubRepo struct {
	usuario    Usuario
	lastFilter ListFilter
	lastCreate struct {
		input CreateInput
		hash  string
	}
	lastUpdate UpdateInput
}

func (s *stubRepo) List(ctx context.Context, filter ListFilter) ([]Usuario, error) {
	s.lastFilter = filter
	return []Usuario{s.usuario}, nil
}
func (s *stubRepo) GetByID(ctx context.Context, id uuid.UUID) (*Usuario, error) {
	u := s.usuario
	return &u, nil
}
func (s *stubRepo) GetByCorreo(ctx context.Context, correo string) (*Usuario, error) {
	u := s.usuario
	return &u, nil
}
func (s *stubRepo) Create(ctx context.Context, input CreateInput, contrasenaHash string) (*Usuario, error) {
	s.lastCreate.input = input
	s.lastCreate.hash = contrasenaHash
	u := s.usuario
	u.Nombre = input.Nombre
	u.Correo = input.Correo
	u.ContrasenaHash = contrasenaHash
	return &u, nil
}
func (s *stubRepo) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Usuario, error) {
	s.lastUpdate = input
	u := s.usuario
	u.Nombre = input.Nombre
	u.Correo = input.Correo
	return &u, nil
}
func (s *stubRepo) UpdateEstado(ctx context.Context, id uuid.UUID, estado string) (*Usuario, error) {
	u := s.usuario
	u.Estado = estado
	return &u, nil
}
func (s *stubRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (s *stubRepo) Stats(ctx context.Context) (*Estadisticas, error) {
	return &Estadisticas{Total: 3, Activos: 2, Inactivos: 1, PorRol: map[string]int{RolAdministrador: 1, RolFuncionario: 2}}, nil
}

func newTestHandler() (*Handler, *stubRepo) {
	repo := &stubRepo{
		usuario: Usuario{
			ID:              uuid.New(),
			Nombre:          "María",
			Apellidos:       "Gómez Rojas",
			NumeroDocumento: "10457823",
			Correo:          "maria.gomez@habitat.gov.co",
			Rol:             RolFuncionario,
			Estado:          EstadoActivo,
			FechaCreacion:   time.Now(),
		},
	}
	return NewHandler(NewService(repo)), repo
}

func TestUsuarioHandlers(t *testing.T) {
	handler, repo := newTestHandler()
	usuarioID := repo.usuario.ID.String()

	valido := map[string]any{
		"nombre":           "María",
		"apellidos":        "Gómez Rojas",
		"numero_documento": "10457823",
		"correo":           "maria.gomez@habitat.gov.co",
		"rol":              "FUNCIONARIO",
		"contrasena":       "Secreta123",
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"list", http.MethodGet, "/", nil, http.StatusOK},
		{"list-filtros", http.MethodGet, "/?rol=FUNCIONARIO&estado=ACTIVO&buscar=mar", nil, http.StatusOK},
		{"list-rol-invalido", http.MethodGet, "/?rol=GERENTE", nil, http.StatusBadRequest},
		{"get", http.MethodGet, "/" + usuarioID, nil, http.StatusOK},
		{"stats", http.MethodGet, "/estadisticas", nil, http.StatusOK},
		{"create", http.MethodPost, "/", valido, http.StatusCreated},
		{"create-sin-contrasena", http.MethodPost, "/", map[string]any{"nombre": "Pedro", "apellidos": "Lara Díaz", "numero_documento": "80412956", "correo": "pedro.lara@habitat.gov.co", "rol": "TECNICO"}, http.StatusCreated},
		{"create-contrasena-corta", http.MethodPost, "/", map[string]any{"nombre": "Pedro", "apellidos": "Lara Díaz", "numero_documento": "80412956", "correo": "pedro.lara@habitat.gov.co", "rol": "TECNICO", "contrasena": "corta"}, http.StatusBadRequest},
		{"create-documento-corto", http.MethodPost, "/", map[string]any{"nombre": "María", "apellidos": "Gómez", "numero_documento": "123", "correo": "maria@habitat.gov.co", "rol": "TECNICO", "contrasena": "Secreta123"}, http.StatusBadRequest},
		{"update", http.MethodPut, "/" + usuarioID, map[string]any{"nombre": "María", "apellidos": "Gómez", "numero_documento": "10457823", "correo": "maria@habitat.gov.co", "rol": "TECNICO"}, http.StatusOK},
		{"cambiar-estado", http.MethodPatch, "/" + usuarioID + "/cambiar_estado", map[string]any{"estado": "INACTIVO"}, http.StatusOK},
		{"cambiar-estado-invalido", http.MethodPatch, "/" + usuarioID + "/cambiar_estado", map[string]any{"estado": "SUSPENDIDO"}, http.StatusBadRequest},
		{"delete", http.MethodDelete, "/" + usuarioID, nil, http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, requestBody(tc.body))
			rec := httptest.NewRecorder()

			r := chi.NewRouter()
			handler.RegisterRoutes(r)
			r.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("%s %s: expected %d got %d (%s)", tc.method, tc.path, tc.status, rec.Code, rec.Body.String())
			}
		})
	}

	if repo.lastFilter.Rol != RolFuncionario || repo.lastFilter.Estado != EstadoActivo || repo.lastFilter.Buscar != "mar" {
		t.Fatalf("unexpected filter passed to repo: %+v", repo.lastFilter)
	}
}

func TestListIsFlatArray(t *testing.T) {
	handler, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.ServeHTTP(rec, req)

	var usuarios []Usuario
	if err := json.NewDecoder(rec.Body).Decode(&usuarios); err != nil {
		t.Fatalf("expected flat array, decode failed: %v", err)
	}
	if len(usuarios) != 1 {
		t.Fatalf("expected 1 usuario, got %d", len(usuarios))
	}
	if usuarios[0].ContrasenaHash != "" {
		t.Fatal("contrasena_hash must never be serialized")
	}
}

func TestCreateWithoutContrasenaLeavesHashEmpty(t *testing.T) {
	handler, repo := newTestHandler()

	body := map[string]any{
		"nombre":           "Pedro",
		"apellidos":        "Lara Díaz",
		"numero_documento": "80412956",
		"correo":           "pedro.lara@habitat.gov.co",
		"rol":              "TECNICO",
	}
	req := httptest.NewRequest(http.MethodPost, "/", requestBody(body))
	rec := httptest.NewRecorder()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if repo.lastCreate.hash != "" {
		t.Fatalf("expected empty hash for usuario sin contraseña, got %q", repo.lastCreate.hash)
	}
}

func TestUsuarioSerializesNombreCompleto(t *testing.T) {
	handler, repo := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/"+repo.usuario.ID.String(), nil)
	rec := httptest.NewRecorder()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.ServeHTTP(rec, req)

	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := payload["nombre_completo"]; got != "María Gómez Rojas" {
		t.Fatalf("unexpected nombre_completo %v", got)
	}
	if _, ok := payload["contrasena_hash"]; ok {
		t.Fatal("contrasena_hash must never be serialized")
	}
}

func TestPatchMergesOnlyProvidedFields(t *testing.T) {
	handler, repo := newTestHandler()

	body := map[string]any{"nombre": "Lucía"}
	req := httptest.NewRequest(http.MethodPatch, "/"+repo.usuario.ID.String(), requestBody(body))
	rec := httptest.NewRecorder()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if repo.lastUpdate.Nombre != "Lucía" {
		t.Fatalf("expected nombre Lucía, got %q", repo.lastUpdate.Nombre)
	}
	if repo.lastUpdate.Correo != repo.usuario.Correo || repo.lastUpdate.Rol != repo.usuario.Rol {
		t.Fatalf("untouched fields must keep current values, got %+v", repo.lastUpdate)
	}
}

func TestPatchRejectsInvalidValue(t *testing.T) {
	handler, repo := newTestHandler()

	body := map[string]any{"correo": "no-es-correo"}
	req := httptest.NewRequest(http.MethodPatch, "/"+repo.usuario.ID.String(), requestBody(body))
	rec := httptest.NewRecorder()

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCreateValidationMessages(t *testing.T) {
	handler, _ := newTestHandler()

	body := map[string]any{
		"nombre":           "M",
		"apellidos":        "G",
		"numero_documento": "12",
		"correo":           "no-es-correo",
		"rol":              "GERENTE",
		"contrasena":       "corta",
	}
	req := httptest.NewRequest(http.MethodPost, "/", requestBody(body))
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
	if got := resp.Errors["rol"]; len(got) == 0 || got[0] != "El rol debe ser uno de: ADMINISTRADOR, FUNCIONARIO, TECNICO" {
		t.Fatalf("unexpected rol errors: %v", got)
	}
	for _, field := range []string{"nombre", "apellidos", "numero_documento", "correo", "contrasena"} {
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
