package usuario

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gestionvivienda/subsidios/internal/util"
)

// ServiceProvider expone las operaciones del servicio de usuarios.
type ServiceProvider interface {
	List(ctx context.Context, filter ListFilter) ([]Usuario, error)
	Get(ctx context.Context, id uuid.UUID) (*Usuario, error)
	Create(ctx context.Context, input CreateInput) (*Usuario, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Usuario, error)
	PartialUpdate(ctx context.Context, id uuid.UUID, patch PatchInput) (*Usuario, error)
	CambiarEstado(ctx context.Context, id uuid.UUID, estado string) (*Usuario, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Estadisticas, error)
}

// Handler expone los endpoints REST de usuarios.
type Handler struct {
	service ServiceProvider
}

func NewHandler(service ServiceProvider) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/estadisticas", h.stats)
	r.Get("/{usuarioID}", h.get)
	r.Put("/{usuarioID}", h.update)
	r.Patch("/{usuarioID}", h.patch)
	r.Patch("/{usuarioID}/cambiar_estado", h.cambiarEstado)
	r.Delete("/{usuarioID}", h.delete)
}

// list responde el arreglo plano de usuarios, sin paginar.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Rol:    q.Get("rol"),
		Estado: q.Get("estado"),
		Buscar: q.Get("buscar"),
	}

	usuarios, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, usuarios)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "usuarioID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	u, err := h.service.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "usuarioID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var input UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	u, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// patch edita solo los campos que vienen en el cuerpo.
func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "usuarioID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var patch PatchInput
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	u, err := h.service.PartialUpdate(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) cambiarEstado(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "usuarioID"))
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

	u, err := h.service.CambiarEstado(r.Context(), id, body.Estado)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "usuarioID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var fieldErrs util.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		writeFieldErrors(w, http.StatusBadRequest, fieldErrs)
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
