package postulante

import (
	"time"

	"github.com/google/uuid"
)

// Estados de un postulante.
const (
	EstadoActivo     = "ACTIVO"
	EstadoInactivo   = "INACTIVO"
	EstadoRechazado  = "RECHAZADO"
	EstadoAprobado   = "APROBADO"
	EstadoSuspendido = "SUSPENDIDO"
)

// Postulante representa a un aspirante inscrito en un programa.
type Postulante struct {
	ID                 uuid.UUID `json:"id"`
	ProgramaID         uuid.UUID `json:"programa_id"`
	Nombre             string    `json:"nombre"`
	Apellido           string    `json:"apellido"`
	TipoDocumento      string    `json:"tipo_documento"`
	NumeroDocumento    string    `json:"numero_documento"`
	Email              string    `json:"email"`
	Telefono           string    `json:"telefono"`
	Estado             string    `json:"estado"`
	FechaPostulacion   time.Time `json:"fecha_postulacion"`
	FechaActualizacion time.Time `json:"fecha_actualizacion"`
}

// CreateInput contiene los datos para inscribir un postulante.
type CreateInput struct {
	ProgramaID      uuid.UUID `json:"programa_id"`
	Nombre          string    `json:"nombre"`
	Apellido        string    `json:"apellido"`
	TipoDocumento   string    `json:"tipo_documento"`
	NumeroDocumento string    `json:"numero_documento"`
	Email           string    `json:"email"`
	Telefono        string    `json:"telefono"`
}

// IsValidEstado indica si el estado pertenece al conjunto permitido.
func IsValidEstado(estado string) bool {
	switch estado {
	case EstadoActivo, EstadoInactivo, EstadoRechazado, EstadoAprobado, EstadoSuspendido:
		return true
	}
	return false
}
