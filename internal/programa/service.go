package programa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gestionvivienda/subsidios/internal/util"
)

// ErrTransicionInvalida indica un cambio de estado fuera de las transiciones legales.
var ErrTransicionInvalida = errors.New("transición de estado no permitida")

const cacheTTL = 60 * time.Second

// ProgramaRepository abstrae el acceso a datos de programas.
type ProgramaRepository interface {
	List(ctx context.Context, estado string, limit, offset int) ([]Programa, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Programa, error)
	Create(ctx context.Context, input CreateInput, codigo string) (*Programa, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Programa, error)
	UpdateEstado(ctx context.Context, id uuid.UUID, estado string) (*Programa, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Estadisticas, error)
	ListEtapas(ctx context.Context, programaID uuid.UUID) ([]Etapa, error)
	CreateEtapa(ctx context.Context, programaID uuid.UUID, input EtapaInput) (*Etapa, error)
	UpdateEtapaEstado(ctx context.Context, id uuid.UUID, estado string) (*Etapa, error)
	DeleteEtapa(ctx context.Context, id uuid.UUID) error
}

// Service contiene las reglas de negocio de programas.
type Service struct {
	repo  ProgramaRepository
	cache *redis.Client
}

func NewService(repo ProgramaRepository, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache}
}

// ListResult empaqueta una página de programas.
type ListResult struct {
	Count   int        `json:"count"`
	Results []Programa `json:"results"`
}

// List devuelve una página de programas, con cache de lectura de corta vida.
func (s *Service) List(ctx context.Context, estado string, limit, offset int) (*ListResult, error) {
	if estado != "" && !IsValidEstado(estado) {
		fieldErrs := util.FieldErrors{}
		fieldErrs.Add("estado", "Estado inválido. Estados válidos: BORRADOR, ACTIVO, INHABILITADO")
		return nil, fieldErrs
	}

	key := fmt.Sprintf("programas:list:%s:%d:%d", estado, limit, offset)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached ListResult
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		}
	}

	programas, total, err := s.repo.List(ctx, estado, limit, offset)
	if err != nil {
		return nil, err
	}
	if programas == nil {
		programas = []Programa{}
	}

	result := &ListResult{Count: total, Results: programas}
	if s.cache != nil {
		if payload, err := json.Marshal(result); err == nil {
			_ = s.cache.Set(ctx, key, payload, cacheTTL).Err()
		}
	}

	return result, nil
}

// Get recupera un programa por ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Programa, error) {
	return s.repo.GetByID(ctx, id)
}

// Create valida y crea un programa en estado BORRADOR con código generado.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Programa, error) {
	if err := validatePrograma(input.Nombre, input.Descripcion, input.EntidadResponsable); err != nil {
		return nil, err
	}

	p, err := s.repo.Create(ctx, input, GenerateCodigo(time.Now()))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return p, nil
}

// Update modifica los campos editables de un programa. El estado no se toca.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Programa, error) {
	if err := validatePrograma(input.Nombre, input.Descripcion, input.EntidadResponsable); err != nil {
		return nil, err
	}

	p, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return p, nil
}

// PartialUpdate superpone los campos presentes sobre el programa actual
// y valida el resultado completo.
func (s *Service) PartialUpdate(ctx context.Context, id uuid.UUID, patch PatchInput) (*Programa, error) {
	actual, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	input := UpdateInput{
		Nombre:             actual.Nombre,
		Descripcion:        actual.Descripcion,
		EntidadResponsable: actual.EntidadResponsable,
	}
	if patch.Nombre != nil {
		input.Nombre = *patch.Nombre
	}
	if patch.Descripcion != nil {
		input.Descripcion = *patch.Descripcion
	}
	if patch.EntidadResponsable != nil {
		input.EntidadResponsable = *patch.EntidadResponsable
	}

	return s.Update(ctx, id, input)
}

// CambiarEstado aplica la transición de estado validando las transiciones legales.
func (s *Service) CambiarEstado(ctx context.Context, id uuid.UUID, nuevoEstado string) (*Programa, error) {
	if !IsValidEstado(nuevoEstado) {
		fieldErrs := util.FieldErrors{}
		fieldErrs.Add("nuevo_estado", "Estado inválido. Estados válidos: BORRADOR, ACTIVO, INHABILITADO")
		return nil, fieldErrs
	}

	actual, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(actual.Estado, nuevoEstado) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTransicionInvalida, actual.Estado, nuevoEstado)
	}

	p, err := s.repo.UpdateEstado(ctx, id, nuevoEstado)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return p, nil
}

// Delete elimina un programa y sus etapas.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Stats agrega los conteos de programas por estado.
func (s *Service) Stats(ctx context.Context) (*Estadisticas, error) {
	const key = "programas:stats"
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached Estadisticas
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			_ = s.cache.Set(ctx, key, payload, cacheTTL).Err()
		}
	}

	return stats, nil
}

// ListEtapas devuelve las etapas de un programa.
func (s *Service) ListEtapas(ctx context.Context, programaID uuid.UUID) ([]Etapa, error) {
	if _, err := s.repo.GetByID(ctx, programaID); err != nil {
		return nil, err
	}
	return s.repo.ListEtapas(ctx, programaID)
}

// CreateEtapa valida y crea una etapa dentro de un programa.
func (s *Service) CreateEtapa(ctx context.Context, programaID uuid.UUID, input EtapaInput) (*Etapa, error) {
	fieldErrs := util.FieldErrors{}
	if strings.TrimSpace(input.Nombre) == "" {
		fieldErrs.Add("nombre", "Debe proporcionar un nombre")
	}
	if input.Orden < 1 {
		fieldErrs.Add("orden", "El orden debe ser mayor o igual a 1")
	}
	if input.FechaInicio != nil && input.FechaFin != nil && input.FechaFin.Before(*input.FechaInicio) {
		fieldErrs.Add("fecha_fin", "La fecha de fin no puede ser anterior a la de inicio")
	}
	if fieldErrs.HasErrors() {
		return nil, fieldErrs
	}

	if _, err := s.repo.GetByID(ctx, programaID); err != nil {
		return nil, err
	}

	e, err := s.repo.CreateEtapa(ctx, programaID, input)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return e, nil
}

// CambiarEstadoEtapa cambia el estado de una etapa.
func (s *Service) CambiarEstadoEtapa(ctx context.Context, id uuid.UUID, estado string) (*Etapa, error) {
	switch estado {
	case EtapaConfigurada, EtapaActiva, EtapaCerrada:
	default:
		fieldErrs := util.FieldErrors{}
		fieldErrs.Add("estado", "Estado inválido. Estados válidos: CONFIGURADA, ACTIVA, CERRADA")
		return nil, fieldErrs
	}

	e, err := s.repo.UpdateEtapaEstado(ctx, id, estado)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return e, nil
}

// DeleteEtapa elimina una etapa.
func (s *Service) DeleteEtapa(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteEtapa(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// invalidate borra las entradas de cache del módulo tras una mutación.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, "programas:*", 100).Iterator()
	for iter.Next(ctx) {
		_ = s.cache.Del(ctx, iter.Val()).Err()
	}
}

func validatePrograma(nombre, descripcion, entidad string) error {
	fieldErrs := util.FieldErrors{}

	nombre = strings.TrimSpace(nombre)
	if len(nombre) < 3 {
		fieldErrs.Add("nombre", "El nombre debe tener al menos 3 caracteres")
	}
	if len(nombre) > 100 {
		fieldErrs.Add("nombre", "El nombre no puede exceder 100 caracteres")
	}

	descripcion = strings.TrimSpace(descripcion)
	if len(descripcion) < 10 {
		fieldErrs.Add("descripcion", "La descripción debe tener al menos 10 caracteres")
	}
	if len(descripcion) > 500 {
		fieldErrs.Add("descripcion", "La descripción no puede exceder 500 caracteres")
	}

	if strings.TrimSpace(entidad) == "" {
		fieldErrs.Add("entidad_responsable", "Debe proporcionar una entidad responsable")
	}

	if fieldErrs.HasErrors() {
		return fieldErrs
	}
	return nil
}
