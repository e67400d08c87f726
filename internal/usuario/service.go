package usuario

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gestionvivienda/subsidios/internal/auth"
	"github.com/gestionvivienda/subsidios/internal/util"
)

// UsuarioRepository abstrae el acceso a datos de usuarios.
type UsuarioRepository interface {
	List(ctx context.Context, filter ListFilter) ([]Usuario, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Usuario, error)
	GetByCorreo(ctx context.Context, correo string) (*Usuario, error)
	Create(ctx context.Context, input CreateInput, contrasenaHash string) (*Usuario, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Usuario, error)
	UpdateEstado(ctx context.Context, id uuid.UUID, estado string) (*Usuario, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Estadisticas, error)
}

// Service contiene las reglas de negocio de usuarios.
type Service struct {
	repo UsuarioRepository
}

func NewService(repo UsuarioRepository) *Service {
	return &Service{repo: repo}
}

// List devuelve usuarios filtrados. Sin cache: el listado alimenta
// pantallas administrativas que exigen datos frescos.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Usuario, error) {
	fieldErrs := util.FieldErrors{}
	if filter.Rol != "" && !IsValidRol(filter.Rol) {
		fieldErrs.Add("rol", "El rol debe ser uno de: ADMINISTRADOR, FUNCIONARIO, TECNICO")
	}
	if filter.Estado != "" && !IsValidEstado(filter.Estado) {
		fieldErrs.Add("estado", "El estado debe ser uno de: ACTIVO, INACTIVO")
	}
	if fieldErrs.HasErrors() {
		return nil, fieldErrs
	}

	usuarios, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if usuarios == nil {
		usuarios = []Usuario{}
	}
	return usuarios, nil
}

// Get recupera un usuario por ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Usuario, error) {
	return s.repo.GetByID(ctx, id)
}

// Create valida y crea un usuario. La contraseña es opcional: una cuenta
// sin contraseña queda sin acceso hasta que se le asigne una.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Usuario, error) {
	if input.Estado == "" {
		input.Estado = EstadoActivo
	}

	fieldErrs := util.FieldErrors{}
	if len(strings.TrimSpace(input.Nombre)) < 2 {
		fieldErrs.Add("nombre", "El nombre es requerido y debe tener al menos 2 caracteres")
	}
	if len(strings.TrimSpace(input.Apellidos)) < 2 {
		fieldErrs.Add("apellidos", "Los apellidos son requeridos y deben tener al menos 2 caracteres")
	}
	if len(strings.TrimSpace(input.NumeroDocumento)) < 5 {
		fieldErrs.Add("numero_documento", "El número de documento es requerido y debe tener al menos 5 caracteres")
	}
	if err := util.ValidateEmail(input.Correo); err != nil {
		fieldErrs.Add("correo", err.Error())
	}
	if !IsValidRol(input.Rol) {
		fieldErrs.Add("rol", "El rol debe ser uno de: ADMINISTRADOR, FUNCIONARIO, TECNICO")
	}
	if !IsValidEstado(input.Estado) {
		fieldErrs.Add("estado", "El estado debe ser uno de: ACTIVO, INACTIVO")
	}
	if input.Contrasena != "" {
		if err := util.ValidatePassword(input.Contrasena); err != nil {
			fieldErrs.Add("contrasena", err.Error())
		}
	}
	if fieldErrs.HasErrors() {
		return nil, fieldErrs
	}

	var hash string
	if input.Contrasena != "" {
		h, err := auth.Hash(input.Contrasena)
		if err != nil {
			return nil, fmt.Errorf("hashear contraseña: %w", err)
		}
		hash = h
	}

	return s.repo.Create(ctx, input, hash)
}

// Update valida y modifica los datos principales de un usuario.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Usuario, error) {
	fieldErrs := util.FieldErrors{}
	if len(strings.TrimSpace(input.Nombre)) < 2 {
		fieldErrs.Add("nombre", "El nombre es requerido y debe tener al menos 2 caracteres")
	}
	if len(strings.TrimSpace(input.Apellidos)) < 2 {
		fieldErrs.Add("apellidos", "Los apellidos son requeridos y deben tener al menos 2 caracteres")
	}
	if len(strings.TrimSpace(input.NumeroDocumento)) < 5 {
		fieldErrs.Add("numero_documento", "El número de documento es requerido y debe tener al menos 5 caracteres")
	}
	if err := util.ValidateEmail(input.Correo); err != nil {
		fieldErrs.Add("correo", err.Error())
	}
	if !IsValidRol(input.Rol) {
		fieldErrs.Add("rol", "El rol debe ser uno de: ADMINISTRADOR, FUNCIONARIO, TECNICO")
	}
	if fieldErrs.HasErrors() {
		return nil, fieldErrs
	}

	return s.repo.Update(ctx, id, input)
}

// PartialUpdate superpone los campos presentes sobre el usuario actual
// y valida el resultado completo.
func (s *Service) PartialUpdate(ctx context.Context, id uuid.UUID, patch PatchInput) (*Usuario, error) {
	actual, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	input := UpdateInput{
		Nombre:          actual.Nombre,
		Apellidos:       actual.Apellidos,
		NumeroDocumento: actual.NumeroDocumento,
		Correo:          actual.Correo,
		Rol:             actual.Rol,
	}
	if patch.Nombre != nil {
		input.Nombre = *patch.Nombre
	}
	if patch.Apellidos != nil {
		input.Apellidos = *patch.Apellidos
	}
	if patch.NumeroDocumento != nil {
		input.NumeroDocumento = *patch.NumeroDocumento
	}
	if patch.Correo != nil {
		input.Correo = *patch.Correo
	}
	if patch.Rol != nil {
		input.Rol = *patch.Rol
	}

	return s.Update(ctx, id, input)
}

// CambiarEstado activa o inactiva un usuario.
func (s *Service) CambiarEstado(ctx context.Context, id uuid.UUID, estado string) (*Usuario, error) {
	if !IsValidEstado(estado) {
		fieldErrs := util.FieldErrors{}
		fieldErrs.Add("estado", "El estado debe ser uno de: ACTIVO, INACTIVO")
		return nil, fieldErrs
	}
	return s.repo.UpdateEstado(ctx, id, estado)
}

// Delete elimina un usuario.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Stats agrega los conteos de usuarios. Siempre va a la base:
// estas cifras se muestran en tiempo real en el panel.
func (s *Service) Stats(ctx context.Context) (*Estadisticas, error) {
	return s.repo.Stats(ctx)
}
