package sdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Estados de un programa.
const (
	EstadoBorrador     = "BORRADOR"
	EstadoActivo       = "ACTIVO"
	EstadoInhabilitado = "INHABILITADO"
)

// Programa es la representación wire de un programa de subsidios.
type Programa struct {
	ID                 string    `json:"id"`
	Nombre             string    `json:"nombre"`
	Descripcion        string    `json:"descripcion"`
	EntidadResponsable string    `json:"entidad_responsable"`
	CodigoPrograma     string    `json:"codigo_programa"`
	Estado             string    `json:"estado"`
	FechaCreacion      time.Time `json:"fecha_creacion"`
	FechaActualizacion time.Time `json:"fecha_actualizacion"`
}

// ProgramaPage es la página que devuelve el listado de programas.
// Los usuarios llegan sin paginar; esta asimetría es del contrato.
type ProgramaPage struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []Programa `json:"results"`
}

// ProgramaInput contiene los campos editables de un programa.
// El estado inicial lo fija el servidor (siempre BORRADOR).
type ProgramaInput struct {
	Nombre             string `json:"nombre"`
	Descripcion        string `json:"descripcion"`
	EntidadResponsable string `json:"entidad_responsable"`
}

// ProgramaEstadisticas agrega los conteos por estado.
type ProgramaEstadisticas struct {
	Total     int            `json:"total"`
	PorEstado map[string]int `json:"por_estado"`
}

// CambioEstadoResult es la respuesta del cambio de estado.
type CambioEstadoResult struct {
	Mensaje  string   `json:"mensaje"`
	Programa Programa `json:"programa"`
}

// ProgramasAPI mapea cada operación de programas a (verbo, ruta, cuerpo).
type ProgramasAPI struct {
	client *Client
}

func NewProgramasAPI(client *Client) *ProgramasAPI {
	return &ProgramasAPI{client: client}
}

// List pide una página de programas. page arranca en 1; estado es
// opcional.
func (api *ProgramasAPI) List(ctx context.Context, estado string, page int) (*ProgramaPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", fmt.Sprintf("%d", page))
	if estado != "" {
		q.Set("estado", estado)
	}

	var out ProgramaPage
	if err := api.client.Do(ctx, http.MethodGet, "/api/programas/?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get recupera un programa por ID.
func (api *ProgramasAPI) Get(ctx context.Context, id string) (*Programa, error) {
	var out Programa
	if err := api.client.Do(ctx, http.MethodGet, "/api/programas/"+id+"/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create crea un programa. El servidor responde siempre en BORRADOR.
func (api *ProgramasAPI) Create(ctx context.Context, input ProgramaInput) (*Programa, error) {
	var out Programa
	if err := api.client.Do(ctx, http.MethodPost, "/api/programas/", input, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update reemplaza los campos editables de un programa.
func (api *ProgramasAPI) Update(ctx context.Context, id string, input ProgramaInput) (*Programa, error) {
	var out Programa
	if err := api.client.Do(ctx, http.MethodPut, "/api/programas/"+id+"/", input, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Patch actualiza parcialmente un programa.
func (api *ProgramasAPI) Patch(ctx context.Context, id string, fields map[string]any) (*Programa, error) {
	var out Programa
	if err := api.client.Do(ctx, http.MethodPatch, "/api/programas/"+id+"/", fields, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete elimina un programa.
func (api *ProgramasAPI) Delete(ctx context.Context, id string) error {
	return api.client.Do(ctx, http.MethodDelete, "/api/programas/"+id+"/", nil, nil, nil)
}

// CambiarEstado solicita una transición de estado. Es una operación
// distinta del update porque el servidor valida las transiciones
// legales sobre este endpoint.
func (api *ProgramasAPI) CambiarEstado(ctx context.Context, id, nuevoEstado string) (*CambioEstadoResult, error) {
	body := map[string]string{"nuevo_estado": nuevoEstado}
	var out CambioEstadoResult
	if err := api.client.Do(ctx, http.MethodPost, "/api/programas/"+id+"/cambiar_estado/", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Estadisticas pide los conteos agregados de programas.
func (api *ProgramasAPI) Estadisticas(ctx context.Context) (*ProgramaEstadisticas, error) {
	var out ProgramaEstadisticas
	if err := api.client.Do(ctx, http.MethodGet, "/api/programas/estadisticas/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
