package programa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/gestionvivienda/subsidios/internal/http/middleware"
	"github.com/gestionvivienda/subsidios/internal/util"
)

const defaultPageSize = 10

// ServiceProvider expone las operaciones del servicio de programas.
type ServiceProvider interface {
	List(ctx context.Context, estado string, limit, offset int) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*Programa, error)
	Create(ctx context.Context, input CreateInput) (*Programa, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Programa, error)
	PartialUpdate(ctx context.Context, id uuid.UUID, patch PatchInput) (*Programa, error)
	CambiarEstado(ctx context.Context, id uuid.UUID, nuevoEstado string) (*Programa, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Estadisticas, error)
	ListEtapas(ctx context.Context, programaID uuid.UUID) ([]Etapa, error)
	CreateEtapa(ctx context.Context, programaID uuid.UUID, input EtapaInput) (*Etapa, error)
	CambiarEstadoEtapa(ctx context.Context, id uuid.UUID, estado string) (*Etapa, error)
	DeleteEtapa(ctx context.Context, id uuid.UUID) error
}

// Handler expone los endpoints REST de programas.
type Handler struct {
	service ServiceProvider
}

func NewHandler(service ServiceProvider) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/estadisticas", h.stats)
	r.Get("/{programaID}", h.get)
	r.Get("/{programaID}/etapas", h.listEtapas)

	// Las mutaciones quedan fuera del alcance del rol técnico.
	gestion := httpmiddleware.RequireRoles("ADMINISTRADOR", "FUNCIONARIO")
	r.With(gestion).Post("/", h.create)
	r.With(gestion).Put("/{programaID}", h.update)
	r.With(gestion).Patch("/{programaID}", h.patch)
	r.With(gestion).Post("/{programaID}/cambiar_estado", h.cambiarEstado)
	r.With(gestion).Post("/{programaID}/etapas", h.createEtapa)
	r.With(gestion).Patch("/{programaID}/etapas/{etapaID}", h.cambiarEstadoEtapa)

	// Borrar es exclusivo del administrador.
	admin := httpmiddleware.RequireRoles("ADMINISTRADOR")
	r.With(admin).Delete("/{programaID}", h.delete)
	r.With(admin).Delete("/{programaID}/etapas/{etapaID}", h.deleteEtapa)
}

// listResponse es la página que se envía por el wire, con enlaces de navegación.
type listResponse struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []Programa `json:"results"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	estado := r.URL.Query().Get("estado")
	page := parsePositiveInt(r.URL.Query().Get("page"), 1)
	pageSize := parsePositiveInt(r.URL.Query().Get("page_size"), defaultPageSize)

	result, err := h.service.List(r.Context(), estado, pageSize, (page-1)*pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := listResponse{Count: result.Count, Results: result.Results}
	if page*pageSize < result.Count {
		next := pageLink(r, page+1, pageSize)
		resp.Next = &next
	}
	if page > 1 {
		prev := pageLink(r, page-1, pageSize)
		resp.Previous = &prev
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "programaID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
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

	p, err := h.service.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "programaID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var input UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	p, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// patch edita solo los campos que vienen en el cuerpo.
func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "programaID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var patch PatchInput
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	p, err := h.service.PartialUpdate(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "programaID"))
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

func (h *Handler) cambiarEstado(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "programaID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var body struct {
		NuevoEstado string `json:"nuevo_estado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.NuevoEstado == "" {
		writeError(w, http.StatusBadRequest, "Debe proporcionar un nuevo_estado")
		return
	}

	p, err := h.service.CambiarEstado(r.Context(), id, body.NuevoEstado)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mensaje":  fmt.Sprintf("El programa fue actualizado a estado %s", body.NuevoEstado),
		"programa": p,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) listEtapas(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "programaID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	etapas, err := h.service.ListEtapas(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if etapas == nil {
		etapas = []Etapa{}
	}

	writeJSON(w, http.StatusOK, etapas)
}

func (h *Handler) createEtapa(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "programaID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	var input EtapaInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	e, err := h.service.CreateEtapa(r.Context(), id, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) cambiarEstadoEtapa(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "etapaID"))
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

	e, err := h.service.CambiarEstadoEtapa(r.Context(), id, body.Estado)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) deleteEtapa(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "etapaID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	if err := h.service.DeleteEtapa(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var fieldErrs util.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		writeFieldErrors(w, http.StatusBadRequest, fieldErrs)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrEtapaNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTransicionInvalida):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicado):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "error interno")
	}
}

func parsePositiveInt(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func pageLink(r *http.Request, page, pageSize int) string {
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	u := *r.URL
	u.RawQuery = q.Encode()
	return u.String()
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
