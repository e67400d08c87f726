package programa

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
	// ErrNotFound indica que el programa no existe.
	ErrNotFound = errors.New("programa no encontrado")
	// ErrEtapaNotFound indica que la etapa no existe.
	ErrEtapaNotFound = errors.New("etapa no encontrada")
	// ErrDuplicado indica conflicto de unicidad (código o nombre de etapa).
	ErrDuplicado = errors.New("registro duplicado")
)

// Repository da acceso a los programas y sus etapas.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const programaColumns = `id, nombre, descripcion, entidad_responsable, codigo_programa, estado, fecha_creacion, fecha_actualizacion`

// List devuelve programas paginados, con filtro opcional por estado.
// Ordena por fecha de creación descendente.
func (r *Repository) List(ctx context.Context, estado string, limit, offset int) ([]Programa, int, error) {
	args := make([]any, 0, 3)
	where := ""
	if estado != "" {
		where = "WHERE estado = $1"
		args = append(args, estado)
	}

	countQuery := fmt.Sprintf("SELECT count(*) FROM programas %s", where)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM programas
        %s
        ORDER BY fecha_creacion DESC
        LIMIT $%d OFFSET $%d
    `, programaColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var programas []Programa
	for rows.Next() {
		p, err := scanPrograma(rows)
		if err != nil {
			return nil, 0, err
		}
		programas = append(programas, *p)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return programas, total, nil
}

// GetByID recupera un programa por su ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Programa, error) {
	query := fmt.Sprintf("SELECT %s FROM programas WHERE id = $1", programaColumns)
	row := r.pool.QueryRow(ctx, query, id)
	p, err := scanPrograma(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Create inserta un programa nuevo en estado BORRADOR.
func (r *Repository) Create(ctx context.Context, input CreateInput, codigo string) (*Programa, error) {
	query := fmt.Sprintf(`
        INSERT INTO programas (id, nombre, descripcion, entidad_responsable, codigo_programa, estado)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING %s
    `, programaColumns)

	row := r.pool.QueryRow(ctx, query,
		uuid.New(),
		strings.TrimSpace(input.Nombre),
		strings.TrimSpace(input.Descripcion),
		strings.TrimSpace(input.EntidadResponsable),
		codigo,
		EstadoBorrador,
	)

	p, err := scanPrograma(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicado
	}
	return p, err
}

// Update modifica los campos editables. El estado no cambia por esta vía.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Programa, error) {
	query := fmt.Sprintf(`
        UPDATE programas
        SET nombre = $2,
            descripcion = $3,
            entidad_responsable = $4,
            fecha_actualizacion = now()
        WHERE id = $1
        RETURNING %s
    `, programaColumns)

	row := r.pool.QueryRow(ctx, query,
		id,
		strings.TrimSpace(input.Nombre),
		strings.TrimSpace(input.Descripcion),
		strings.TrimSpace(input.EntidadResponsable),
	)

	p, err := scanPrograma(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// UpdateEstado cambia el estado del programa.
func (r *Repository) UpdateEstado(ctx context.Context, id uuid.UUID, estado string) (*Programa, error) {
	query := fmt.Sprintf(`
        UPDATE programas
        SET estado = $2,
            fecha_actualizacion = now()
        WHERE id = $1
        RETURNING %s
    `, programaColumns)

	row := r.pool.QueryRow(ctx, query, id, estado)
	p, err := scanPrograma(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Delete elimina el programa. Las etapas caen en cascada.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM programas WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats agrega el total de programas y el conteo por estado.
func (r *Repository) Stats(ctx context.Context) (*Estadisticas, error) {
	const query = `
        SELECT count(*),
               count(*) FILTER (WHERE estado = 'BORRADOR'),
               count(*) FILTER (WHERE estado = 'ACTIVO'),
               count(*) FILTER (WHERE estado = 'INHABILITADO')
        FROM programas
    `

	var total, borrador, activo, inhabilitado int
	if err := r.pool.QueryRow(ctx, query).Scan(&total, &borrador, &activo, &inhabilitado); err != nil {
		return nil, err
	}

	return &Estadisticas{
		Total: total,
		PorEstado: map[string]int{
			EstadoBorrador:     borrador,
			EstadoActivo:       activo,
			EstadoInhabilitado: inhabilitado,
		},
	}, nil
}

const etapaColumns = `id, programa_id, nombre, descripcion, estado, orden, fecha_inicio, fecha_fin, fecha_creacion, fecha_actualizacion`

// ListEtapas devuelve las etapas de un programa ordenadas por orden.
func (r *Repository) ListEtapas(ctx context.Context, programaID uuid.UUID) ([]Etapa, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM etapas
        WHERE programa_id = $1
        ORDER BY orden ASC
    `, etapaColumns)

	rows, err := r.pool.Query(ctx, query, programaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var etapas []Etapa
	for rows.Next() {
		e, err := scanEtapa(rows)
		if err != nil {
			return nil, err
		}
		etapas = append(etapas, *e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return etapas, nil
}

// CreateEtapa inserta una etapa. El nombre es único dentro del programa.
func (r *Repository) CreateEtapa(ctx context.Context, programaID uuid.UUID, input EtapaInput) (*Etapa, error) {
	query := fmt.Sprintf(`
        INSERT INTO etapas (id, programa_id, nombre, descripcion, estado, orden, fecha_inicio, fecha_fin)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING %s
    `, etapaColumns)

	row := r.pool.QueryRow(ctx, query,
		uuid.New(),
		programaID,
		strings.TrimSpace(input.Nombre),
		strings.TrimSpace(input.Descripcion),
		EtapaConfigurada,
		input.Orden,
		input.FechaInicio,
		input.FechaFin,
	)

	e, err := scanEtapa(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicado
	}
	return e, err
}

// UpdateEtapaEstado cambia el estado de una etapa.
func (r *Repository) UpdateEtapaEstado(ctx context.Context, id uuid.UUID, estado string) (*Etapa, error) {
	query := fmt.Sprintf(`
        UPDATE etapas
        SET estado = $2,
            fecha_actualizacion = now()
        WHERE id = $1
        RETURNING %s
    `, etapaColumns)

	row := r.pool.QueryRow(ctx, query, id, estado)
	e, err := scanEtapa(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEtapaNotFound
	}
	return e, err
}

// DeleteEtapa elimina una etapa.
func (r *Repository) DeleteEtapa(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM etapas WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEtapaNotFound
	}
	return nil
}

func scanPrograma(row pgx.Row) (*Programa, error) {
	var p Programa
	err := row.Scan(
		&p.ID,
		&p.Nombre,
		&p.Descripcion,
		&p.EntidadResponsable,
		&p.CodigoPrograma,
		&p.Estado,
		&p.FechaCreacion,
		&p.FechaActualizacion,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanEtapa(row pgx.Row) (*Etapa, error) {
	var e Etapa
	err := row.Scan(
		&e.ID,
		&e.ProgramaID,
		&e.Nombre,
		&e.Descripcion,
		&e.Estado,
		&e.Orden,
		&e.FechaInicio,
		&e.FechaFin,
		&e.FechaCreacion,
		&e.FechaActualizacion,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
