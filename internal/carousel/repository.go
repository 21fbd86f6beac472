package carousel

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/munsociety/munsociety/internal/shared"
)

// Repository abstracts carousel persistence.
type Repository interface {
	ListActive(ctx context.Context) ([]Image, error)
	List(ctx context.Context) ([]Image, error)
	Find(ctx context.Context, id int64) (*Image, error)
	Create(ctx context.Context, img *Image) error
	Update(ctx context.Context, img *Image) error
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository against PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const imageColumns = `id, title, COALESCE(description, ''), filename, display_order, is_active, created_at`

func scanImage(row pgx.Row) (*Image, error) {
	var img Image
	err := row.Scan(&img.ID, &img.Title, &img.Description, &img.Filename,
		&img.DisplayOrder, &img.Active, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("carousel: scan: %w", err)
	}
	return &img, nil
}

// ListActive returns the slides shown on the landing page, in display order.
func (r *PGRepository) ListActive(ctx context.Context) ([]Image, error) {
	return r.query(ctx, `
		SELECT `+imageColumns+` FROM carousel_images
		WHERE is_active
		ORDER BY display_order, id`)
}

// List returns all slides for the admin view.
func (r *PGRepository) List(ctx context.Context) ([]Image, error) {
	return r.query(ctx, `
		SELECT `+imageColumns+` FROM carousel_images
		ORDER BY display_order, id`)
}

// Find returns a slide by ID.
func (r *PGRepository) Find(ctx context.Context, id int64) (*Image, error) {
	return scanImage(r.pool.QueryRow(ctx, `
		SELECT `+imageColumns+` FROM carousel_images WHERE id = $1`, id))
}

// Create inserts a slide and fills in its generated fields.
func (r *PGRepository) Create(ctx context.Context, img *Image) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO carousel_images (title, description, filename, display_order, is_active)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		RETURNING id, created_at`,
		img.Title, img.Description, img.Filename, img.DisplayOrder, img.Active,
	).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return fmt.Errorf("carousel: create: %w", err)
	}
	return nil
}

// Update persists all mutable columns of the slide.
func (r *PGRepository) Update(ctx context.Context, img *Image) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE carousel_images
		SET title = $1, description = NULLIF($2, ''), filename = $3,
		    display_order = $4, is_active = $5
		WHERE id = $6`,
		img.Title, img.Description, img.Filename, img.DisplayOrder, img.Active, img.ID)
	if err != nil {
		return fmt.Errorf("carousel: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a slide row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM carousel_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("carousel: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) query(ctx context.Context, sql string) ([]Image, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("carousel: query: %w", err)
	}
	defer rows.Close()

	out := make([]Image, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("carousel: rows: %w", err)
	}
	return out, nil
}
