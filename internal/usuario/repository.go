package usuario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indica que el usuario no existe.
	ErrNotFound = errors.New("usuario no encontrado")
	// ErrDuplicado indica conflicto de unicidad en correo o documento.
	ErrDuplicado = errors.New("usuario duplicado")
)

// Repository da acceso a los usuarios del sistema.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const usuarioColumns = `id, nombre, apellidos, numero_documento, correo, rol, estado, contrasena_hash, fecha_creacion, fecha_actualizacion`

// List devuelve usuarios filtrados por rol, estado y texto de búsqueda.
// La búsqueda hace ILIKE sobre nombre, apellidos, correo y documento.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Usuario, error) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if filter.Rol != "" {
		args = append(args, filter.Rol)
		conditions = append(conditions, fmt.Sprintf("rol = $%d", len(args)))
	}
	if filter.Estado != "" {
		args = append(args, filter.Estado)
		conditions = append(conditions, fmt.Sprintf("estado = $%d", len(args)))
	}
	if filter.Buscar != "" {
		args = append(args, "%"+filter.Buscar+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(nombre ILIKE $%d OR apellidos ILIKE $%d OR correo ILIKE $%d OR numero_documento ILIKE $%d)",
			n, n, n, n,
		))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM usuarios
        %s
        ORDER BY fecha_creacion DESC
    `, usuarioColumns, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usuarios []Usuario
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, err
		}
		usuarios = append(usuarios, *u)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return usuarios, nil
}

// GetByID recupera un usuario por su ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Usuario, error) {
	query := fmt.Sprintf("SELECT %s FROM usuarios WHERE id = $1", usuarioColumns)
	row := r.pool.QueryRow(ctx, query, id)
	u, err := scanUsuario(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetByCorreo recupera un usuario por correo normalizado.
func (r *Repository) GetByCorreo(ctx context.Context, correo string) (*Usuario, error) {
	query := fmt.Sprintf("SELECT %s FROM usuarios WHERE correo = $1", usuarioColumns)
	row := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(correo)))
	u, err := scanUsuario(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// Create inserta un usuario nuevo.
func (r *Repository) Create(ctx context.Context, input CreateInput, contrasenaHash string) (*Usuario, error) {
	query := fmt.Sprintf(`
        INSERT INTO usuarios (id, nombre, apellidos, numero_documento, correo, rol, estado, contrasena_hash)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING %s
    `, usuarioColumns)

	row := r.pool.QueryRow(ctx, query,
		uuid.New(),
		strings.TrimSpace(input.Nombre),
		strings.TrimSpace(input.Apellidos),
		strings.TrimSpace(input.NumeroDocumento),
		strings.ToLower(strings.TrimSpace(input.Correo)),
		input.Rol,
		input.Estado,
		contrasenaHash,
	)

	u, err := scanUsuario(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicado
	}
	return u, err
}

// Update modifica los datos principales. El estado no cambia por esta vía.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Usuario, error) {
	query := fmt.Sprintf(`
        UPDATE usuarios
        SET nombre = $2,
            apellidos = $3,
            numero_documento = $4,
            correo = $5,
            rol = $6,
            fecha_actualizacion = now()
        WHERE id = $1
        RETURNING %s
    `, usuarioColumns)

	row := r.pool.QueryRow(ctx, query,
		id,
		strings.TrimSpace(input.Nombre),
		strings.TrimSpace(input.Apellidos),
		strings.TrimSpace(input.NumeroDocumento),
		strings.ToLower(strings.TrimSpace(input.Correo)),
		input.Rol,
	)

	u, err := scanUsuario(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicado
	}
	return u, err
}

// UpdateEstado cambia el estado del usuario.
func (r *Repository) UpdateEstado(ctx context.Context, id uuid.UUID, estado string) (*Usuario, error) {
	query := fmt.Sprintf(`
        UPDATE usuarios
        SET estado = $2,
            fecha_actualizacion = now()
        WHERE id = $1
        RETURNING %s
    `, usuarioColumns)

	row := r.pool.QueryRow(ctx, query, id, estado)
	u, err := scanUsuario(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// Delete elimina el usuario.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM usuarios WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats agrega el total, activos, inactivos y conteo por rol.
func (r *Repository) Stats(ctx context.Context) (*Estadisticas, error) {
	const query = `
        SELECT count(*),
               count(*) FILTER (WHERE estado = 'ACTIVO'),
               count(*) FILTER (WHERE rol = 'ADMINISTRADOR'),
               count(*) FILTER (WHERE rol = 'FUNCIONARIO'),
               count(*) FILTER (WHERE rol = 'TECNICO')
        FROM usuarios
    `

	var total, activos, admins, funcionarios, tecnicos int
	if err := r.pool.QueryRow(ctx, query).Scan(&total, &activos, &admins, &funcionarios, &tecnicos); err != nil {
		return nil, err
	}

	return &Estadisticas{
		Total:     total,
		Activos:   activos,
		Inactivos: total - activos,
		PorRol: map[string]int{
			RolAdministrador: admins,
			RolFuncionario:   funcionarios,
			RolTecnico:       tecnicos,
		},
	}, nil
}

func scanUsuario(row pgx.Row) (*Usuario, error) {
	var u Usuario
	err := row.Scan(
		&u.ID,
		&u.Nombre,
		&u.Apellidos,
		&u.NumeroDocumento,
		&u.Correo,
		&u.Rol,
		&u.Estado,
		&u.ContrasenaHash,
		&u.FechaCreacion,
		&u.FechaActualizacion,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
