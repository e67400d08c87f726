package postulante

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/gestionvivienda/subsidios/internal/http/middleware"
	"github.com/gestionvivienda/subsidios/internal/util"
)

// PostulanteRepository abstrae el acceso a datos de postulantes.
type PostulanteRepository interface {
	ListByPrograma(ctx context.Context, programaID uuid.UUID, estado string) ([]Postulante, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Postulante, error)
	Create(ctx context.Context, input CreateInput) (*Postulante, error)
	UpdateEstado(ctx context.Context, id uuid.UUID, estado string) (*Postulante, error)
}

// Handler expone los endpoints REST de postulantes.
type Handler struct {
	repo PostulanteRepository
}

func NewHandler(repo PostulanteRepository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/programa/{programaID}", h.listByPrograma)
	r.Get("/{postulanteID}", h.get)

	gestion := httpmiddleware.RequireRoles("ADMINISTRADOR", "FUNCIONARIO")
	r.With(gestion).Post("/", h.create)
	r.With(gestion).Patch("/{postulanteID}/cambiar_estado", h.cambiarEstado)
}

func (h *Handler) listByPrograma(w http.ResponseWriter, r *http.Request) {
	programaID, err := uuid.Parse(chi.URLParam(r, "programaID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	estado := r.URL.Query().Get("estado")
	if estado != "" && !IsValidEstado(estado) {
		writeFieldErrors(w, http.StatusBadRequest, map[string][]string{
			"estado": {"Estado inválido. Estados válidos: ACTIVO, INACTIVO, RECHAZADO, APROBADO, SUSPENDIDO"},
		})
		return
	}

	postulantes, err := h.repo.ListByPrograma(r.Context(), programaID, estado)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "error interno")
		return
	}
	if postulantes == nil {
		postulantes = []Postulante{}
	}

	writeJSON(w, http.StatusOK, postulantes)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "postulanteID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	fieldErrs := util.FieldErrors{}
	if strings.TrimSpace(input.Nombre) == "" {
		fieldErrs.Add("nombre", "Debe proporcionar un nombre")
	}
	if strings.TrimSpace(input.Apellido) == "" {
		fieldErrs.Add("apellido", "Debe proporcionar un apellido")
	}
	if len(strings.TrimSpace(input.NumeroDocumento)) < 5 {
		fieldErrs.Add("numero_documento", "El número de documento es requerido y debe tener al menos 5 caracteres")
	}
	if input.Email != "" {
		if err := util.ValidateEmail(input.Email); err != nil {
			fieldErrs.Add("email", err.Error())
		}
	}
	if fieldErrs.HasErrors() {
		writeFieldErrors(w, http.StatusBadRequest, fieldErrs)
		return
	}

	p, err := h.repo.Create(r.Context(), input)
	if err != nil {
		writeRepoError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) cambiarEstado(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "postulanteID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var body struct {
		Estado string `json:"estado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Estado == "" {
		writeError(w, http.StatusBadRequest, "Debe proporcionar un estado")
		return
	}
	if !IsValidEstado(body.Estado) {
		writeFieldErrors(w, http.StatusBadRequest, map[string][]string{
			"estado": {"Estado inválido. Estados válidos: ACTIVO, INACTIVO, RECHAZADO, APROBADO, SUSPENDIDO"},
		})
		return
	}

	p, err := h.repo.UpdateEstado(r.Context(), id, body.Estado)
	if err != nil {
		writeRepoError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicado):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "error interno")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func writeFieldErrors(w http.ResponseWriter, status int, fields map[string][]string) {
	writeJSON(w, status, map[string]any{"errors": fields})
}
