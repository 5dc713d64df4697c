package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, note *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	GetBySlug(ctx context.Context, slug string) (*Note, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]Note, int64, error)
	Update(ctx context.Context, note *Note) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const noteColumns = `id, owner_user_id, author_name, title, content, is_public, COALESCE(slug, ''), created_at, updated_at`

func scanNote(row pgx.Row) (*Note, error) {
	n := &Note{}
	err := row.Scan(&n.ID, &n.OwnerUserID, &n.AuthorName, &n.Title, &n.Content,
		&n.IsPublic, &n.Slug, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *postgresRepository) Create(ctx context.Context, note *Note) error {
	query := `
		INSERT INTO notes (id, owner_user_id, author_name, title, content, is_public, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		note.ID, note.OwnerUserID, note.AuthorName, note.Title, note.Content,
		note.IsPublic, note.Slug, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1`

	note, err := scanNote(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying note by id: %w", err)
	}
	return note, nil
}

func (r *postgresRepository) GetBySlug(ctx context.Context, slug string) (*Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE slug = $1 AND is_public = TRUE`

	note, err := scanNote(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying note by slug: %w", err)
	}
	return note, nil
}

func (r *postgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]Note, int64, error) {
	offset := (page - 1) * pageSize

	query := `
		SELECT ` + noteColumns + `
		FROM notes WHERE owner_user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ownerID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating notes: %w", err)
	}

	var total int64
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notes WHERE owner_user_id = $1`, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting notes: %w", err)
	}

	return notes, total, nil
}

func (r *postgresRepository) Update(ctx context.Context, note *Note) error {
	query := `
		UPDATE notes
		SET title = $2, content = $3, is_public = $4, slug = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		note.ID, note.Title, note.Content, note.IsPublic, note.Slug)
	if err != nil {
		return fmt.Errorf("updating note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("note %s not found", note.ID)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("note %s not found", id)
	}
	return nil
}
