package postulante

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
	// ErrNotFound indica que el postulante no existe.
	ErrNotFound = errors.New("postulante no encontrado")
	// ErrDuplicado indica otro postulante con el mismo documento.
	ErrDuplicado = errors.New("postulante duplicado")
)

// Repository da acceso a los postulantes.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const postulanteColumns = `id, programa_id, nombre, apellido, tipo_documento, numero_documento, email, telefono, estado, fecha_postulacion, fecha_actualizacion`

// ListByPrograma devuelve los postulantes de un programa, con filtro opcional por estado.
func (r *Repository) ListByPrograma(ctx context.Context, programaID uuid.UUID, estado string) ([]Postulante, error) {
	args := []any{programaID}
	where := "WHERE programa_id = $1"
	if estado != "" {
		args = append(args, estado)
		where += " AND estado = $2"
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM postulantes
        %s
        ORDER BY fecha_postulacion DESC
    `, postulanteColumns, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postulantes []Postulante
	for rows.Next() {
		p, err := scanPostulante(rows)
		if err != nil {
			return nil, err
		}
		postulantes = append(postulantes, *p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return postulantes, nil
}

// GetByID recupera un postulante por su ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Postulante, error) {
	query := fmt.Sprintf("SELECT %s FROM postulantes WHERE id = $1", postulanteColumns)
	row := r.pool.QueryRow(ctx, query, id)
	p, err := scanPostulante(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Create inscribe un postulante nuevo en estado ACTIVO.
func (r *Repository) Create(ctx context.Context, input CreateInput) (*Postulante, error) {
	query := fmt.Sprintf(`
        INSERT INTO postulantes (id, programa_id, nombre, apellido, tipo_documento, numero_documento, email, telefono, estado)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING %s
    `, postulanteColumns)

	row := r.pool.QueryRow(ctx, query,
		uuid.New(),
		input.ProgramaID,
		strings.TrimSpace(input.Nombre),
		strings.TrimSpace(input.Apellido),
		strings.TrimSpace(input.TipoDocumento),
		strings.TrimSpace(input.NumeroDocumento),
		strings.ToLower(strings.TrimSpace(input.Email)),
		strings.TrimSpace(input.Telefono),
		EstadoActivo,
	)

	p, err := scanPostulante(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicado
	}
	return p, err
}

// UpdateEstado cambia el estado del postulante.
func (r *Repository) UpdateEstado(ctx context.Context, id uuid.UUID, estado string) (*Postulante, error) {
	query := fmt.Sprintf(`
        UPDATE postulantes
        SET estado = $2,
            fecha_actualizacion = now()
        WHERE id = $1
        RETURNING %s
    `, postulanteColumns)

	row := r.pool.QueryRow(ctx, query, id, estado)
	p, err := scanPostulante(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func scanPostulante(row pgx.Row) (*Postulante, error) {
	var p Postulante
	err := row.Scan(
		&p.ID,
		&p.ProgramaID,
		&p.Nombre,
		&p.Apellido,
		&p.TipoDocumento,
		&p.NumeroDocumento,
		&p.Email,
		&p.Telefono,
		&p.Estado,
		&p.FechaPostulacion,
		&p.FechaActualizacion,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
