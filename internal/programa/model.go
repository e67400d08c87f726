package programa

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Estados posibles de un programa.
const (
	EstadoBorrador     = "BORRADOR"
	EstadoActivo       = "ACTIVO"
	EstadoInhabilitado = "INHABILITADO"
)

// Estados posibles de una etapa.
const (
	EtapaConfigurada = "CONFIGURADA"
	EtapaActiva      = "ACTIVA"
	EtapaCerrada     = "CERRADA"
)

// Programa representa un programa de subsidios de vivienda.
type Programa struct {
	ID                 uuid.UUID `json:"id"`
	Nombre             string    `json:"nombre"`
	Descripcion        string    `json:"descripcion"`
	EntidadResponsable string    `json:"entidad_responsable"`
	CodigoPrograma     string    `json:"codigo_programa"`
	Estado             string    `json:"estado"`
	FechaCreacion      time.Time `json:"fecha_creacion"`
	FechaActualizacion time.Time `json:"fecha_actualizacion"`
}

// Etapa representa una fase dentro de un programa.
type Etapa struct {
	ID                 uuid.UUID  `json:"id"`
	ProgramaID         uuid.UUID  `json:"programa_id"`
	Nombre             string     `json:"nombre"`
	Descripcion        string     `json:"descripcion"`
	Estado             string     `json:"estado"`
	Orden              int        `json:"orden"`
	FechaInicio        *time.Time `json:"fecha_inicio"`
	FechaFin           *time.Time `json:"fecha_fin"`
	FechaCreacion      time.Time  `json:"fecha_creacion"`
	FechaActualizacion time.Time  `json:"fecha_actualizacion"`
}

// Estadisticas agrega conteos de programas por estado.
type Estadisticas struct {
	Total     int            `json:"total"`
	PorEstado map[string]int `json:"por_estado"`
}

// CreateInput contiene los datos para crear un programa.
type CreateInput struct {
	Nombre             string `json:"nombre"`
	Descripcion        string `json:"descripcion"`
	EntidadResponsable string `json:"entidad_responsable"`
}

// UpdateInput contiene los datos editables de un programa.
type UpdateInput struct {
	Nombre             string `json:"nombre"`
	Descripcion        string `json:"descripcion"`
	EntidadResponsable string `json:"entidad_responsable"`
}

// PatchInput contiene los campos presentes en una edición parcial.
// Un puntero nulo significa "sin cambio".
type PatchInput struct {
	Nombre             *string `json:"nombre"`
	Descripcion        *string `json:"descripcion"`
	EntidadResponsable *string `json:"entidad_responsable"`
}

// EtapaInput contiene los datos para crear o editar una etapa.
type EtapaInput struct {
	Nombre      string     `json:"nombre"`
	Descripcion string     `json:"descripcion"`
	Orden       int        `json:"orden"`
	FechaInicio *time.Time `json:"fecha_inicio"`
	FechaFin    *time.Time `json:"fecha_fin"`
}

// IsValidEstado indica si el estado pertenece al conjunto permitido.
func IsValidEstado(estado string) bool {
	switch estado {
	case EstadoBorrador, EstadoActivo, EstadoInhabilitado:
		return true
	}
	return false
}

// transiciones legales entre estados de un programa.
var legalTransitions = map[string][]string{
	EstadoBorrador:     {EstadoActivo},
	EstadoActivo:       {EstadoInhabilitado},
	EstadoInhabilitado: {EstadoActivo},
}

// CanTransition valida si el cambio de estado está permitido.
func CanTransition(from, to string) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// GenerateCodigo produce un código único con formato <año>BS<sufijo hex>.
func GenerateCodigo(now time.Time) string {
	buf := make([]byte, 2)
	_, _ = rand.Read(buf)
	suffix := strings.ToUpper(hex.EncodeToString(buf))
	return fmt.Sprintf("%dBS%s", now.Year(), suffix)
}
