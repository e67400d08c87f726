package sdk

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Roles y estados de un usuario del sistema.
const (
	RolAdministrador = "ADMINISTRADOR"
	RolFuncionario   = "FUNCIONARIO"
	RolTecnico       = "TECNICO"

	UsuarioActivo   = "ACTIVO"
	UsuarioInactivo = "INACTIVO"
)

// Usuario es la representación wire de un empleado del sistema.
type Usuario struct {
	ID                 string    `json:"id"`
	Nombre             string    `json:"nombre"`
	Apellidos          string    `json:"apellidos"`
	NombreCompleto     string    `json:"nombre_completo"`
	NumeroDocumento    string    `json:"numero_documento"`
	Correo             string    `json:"correo"`
	Rol                string    `json:"rol"`
	Estado             string    `json:"estado"`
	FechaCreacion      time.Time `json:"fecha_creacion"`
	FechaActualizacion time.Time `json:"fecha_actualizacion"`
}

// UsuarioInput contiene los campos para crear o editar un usuario.
type UsuarioInput struct {
	Nombre          string `json:"nombre"`
	Apellidos       string `json:"apellidos"`
	NumeroDocumento string `json:"numero_documento"`
	Correo          string `json:"correo"`
	Rol             string `json:"rol"`
	Estado          string `json:"estado,omitempty"`
	Contrasena      string `json:"contrasena,omitempty"`
}

// UsuarioFiltro acota el listado de usuarios.
type UsuarioFiltro struct {
	Rol    string
	Estado string
	Buscar string
}

// UsuarioEstadisticas agrega totales y conteo por rol.
type UsuarioEstadisticas struct {
	Total     int            `json:"total"`
	Activos   int            `json:"activos"`
	Inactivos int            `json:"inactivos"`
	PorRol    map[string]int `json:"por_rol"`
}

// UsuariosAPI mapea cada operación de usuarios a (verbo, ruta, cuerpo).
type UsuariosAPI struct {
	client *Client
}

func NewUsuariosAPI(client *Client) *UsuariosAPI {
	return &UsuariosAPI{client: client}
}

// List devuelve el arreglo plano de usuarios. Este recurso no pagina.
func (api *UsuariosAPI) List(ctx context.Context, filtro UsuarioFiltro) ([]Usuario, error) {
	q := url.Values{}
	if filtro.Rol != "" {
		q.Set("rol", filtro.Rol)
	}
	if filtro.Estado != "" {
		q.Set("estado", filtro.Estado)
	}
	if filtro.Buscar != "" {
		q.Set("buscar", filtro.Buscar)
	}

	path := "/api/usuarios/"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []Usuario
	if err := api.client.Do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get recupera un usuario por ID.
func (api *UsuariosAPI) Get(ctx context.Context, id string) (*Usuario, error) {
	var out Usuario
	if err := api.client.Do(ctx, http.MethodGet, "/api/usuarios/"+id+"/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create da de alta un usuario.
func (api *UsuariosAPI) Create(ctx context.Context, input UsuarioInput) (*Usuario, error) {
	var out Usuario
	if err := api.client.Do(ctx, http.MethodPost, "/api/usuarios/", input, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update reemplaza los datos principales de un usuario.
func (api *UsuariosAPI) Update(ctx context.Context, id string, input UsuarioInput) (*Usuario, error) {
	var out Usuario
	if err := api.client.Do(ctx, http.MethodPut, "/api/usuarios/"+id+"/", input, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Patch actualiza parcialmente un usuario.
func (api *UsuariosAPI) Patch(ctx context.Context, id string, fields map[string]any) (*Usuario, error) {
	var out Usuario
	if err := api.client.Do(ctx, http.MethodPatch, "/api/usuarios/"+id+"/", fields, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete elimina un usuario.
func (api *UsuariosAPI) Delete(ctx context.Context, id string) error {
	return api.client.Do(ctx, http.MethodDelete, "/api/usuarios/"+id+"/", nil, nil, nil)
}

// CambiarEstado activa o inactiva un usuario.
func (api *UsuariosAPI) CambiarEstado(ctx context.Context, id, estado string) (*Usuario, error) {
	body := map[string]string{"estado": estado}
	var out Usuario
	if err := api.client.Do(ctx, http.MethodPatch, "/api/usuarios/"+id+"/cambiar_estado/", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Estadisticas pide los conteos agregados de usuarios.
func (api *UsuariosAPI) Estadisticas(ctx context.Context) (*UsuarioEstadisticas, error) {
	var out UsuarioEstadisticas
	if err := api.client.Do(ctx, http.MethodGet, "/api/usuarios/estadisticas/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
