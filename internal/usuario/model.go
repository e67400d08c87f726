package usuario

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Roles del personal del sistema.
const (
	RolAdministrador = "ADMINISTRADOR"
	RolFuncionario   = "FUNCIONARIO"
	RolTecnico       = "TECNICO"
)

// Estados de un usuario.
const (
	EstadoActivo   = "ACTIVO"
	EstadoInactivo = "INACTIVO"
)

// Usuario representa a un empleado del sistema.
type Usuario struct {
	ID                 uuid.UUID `json:"id"`
	Nombre             string    `json:"nombre"`
	Apellidos          string    `json:"apellidos"`
	NumeroDocumento    string    `json:"numero_documento"`
	Correo             string    `json:"correo"`
	Rol                string    `json:"rol"`
	Estado             string    `json:"estado"`
	ContrasenaHash     string    `json:"-"`
	FechaCreacion      time.Time `json:"fecha_creacion"`
	FechaActualizacion time.Time `json:"fecha_actualizacion"`
}

// NombreCompleto une nombre y apellidos para presentación.
func (u Usuario) NombreCompleto() string {
	return strings.TrimSpace(u.Nombre + " " + u.Apellidos)
}

// MarshalJSON agrega el campo derivado nombre_completo al payload.
func (u Usuario) MarshalJSON() ([]byte, error) {
	type alias Usuario
	return json.Marshal(struct {
		alias
		NombreCompleto string `json:"nombre_completo"`
	}{alias(u), u.NombreCompleto()})
}

// Estadisticas agrega conteos de usuarios.
type Estadisticas struct {
	Total     int            `json:"total"`
	Activos   int            `json:"activos"`
	Inactivos int            `json:"inactivos"`
	PorRol    map[string]int `json:"por_rol"`
}

// CreateInput contiene los datos para crear un usuario.
type CreateInput struct {
	Nombre          string `json:"nombre"`
	Apellidos       string `json:"apellidos"`
	NumeroDocumento string `json:"numero_documento"`
	Correo          string `json:"correo"`
	Rol             string `json:"rol"`
	Estado          string `json:"estado"`
	Contrasena      string `json:"contrasena"`
}

// UpdateInput contiene los datos editables de un usuario.
// El estado cambia solo por el endpoint dedicado.
type UpdateInput struct {
	Nombre          string `json:"nombre"`
	Apellidos       string `json:"apellidos"`
	NumeroDocumento string `json:"numero_documento"`
	Correo          string `json:"correo"`
	Rol             string `json:"rol"`
}

// PatchInput contiene los campos presentes en una edición parcial.
// Un puntero nulo significa "sin cambio".
type PatchInput struct {
	Nombre          *string `json:"nombre"`
	Apellidos       *string `json:"apellidos"`
	NumeroDocumento *string `json:"numero_documento"`
	Correo          *string `json:"correo"`
	Rol             *string `json:"rol"`
}

// ListFilter define los filtros de listado.
type ListFilter struct {
	Rol    string
	Estado string
	Buscar string
}

// IsValidRol indica si el rol pertenece al conjunto permitido.
func IsValidRol(rol string) bool {
	switch rol {
	case RolAdministrador, RolFuncionario, RolTecnico:
		return true
	}
	return false
}

// IsValidEstado indica si el estado pertenece al conjunto permitido.
func IsValidEstado(estado string) bool {
	return estado == EstadoActivo || estado == EstadoInactivo
}
