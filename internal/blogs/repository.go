package blogs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/munsociety/munsociety/internal/shared"
)

// Repository abstracts blog persistence.
type Repository interface {
	ListPublished(ctx context.Context, filters shared.ListFilters) ([]Blog, int, error)
	FindPublished(ctx context.Context, id int64) (*Blog, error)
	List(ctx context.Context, filters shared.ListFilters) ([]Blog, int, error)
	Find(ctx context.Context, id int64) (*Blog, error)
	Create(ctx context.Context, b *Blog) error
	Update(ctx context.Context, b *Blog) error
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

const blogColumns = `b.id, b.title, b.content, b.competition_date,
	COALESCE(b.image1, ''), COALESCE(b.image2, ''),
	b.author_id, COALESCE(u.name, ''), b.published, b.created_at, b.updated_at`

func scanBlog(row pgx.Row) (*Blog, error) {
	var b Blog
	err := row.Scan(&b.ID, &b.Title, &b.Content, &b.CompetitionDate,
		&b.Image1, &b.Image2, &b.AuthorID, &b.AuthorName, &b.Published,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("blogs: scan: %w", err)
	}
	return &b, nil
}

// ListPublished returns published blogs ordered for the public page: most
// recent competition first, undated posts last.
func (r *PGRepository) ListPublished(ctx context.Context, filters shared.ListFilters) ([]Blog, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM blogs WHERE published`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("blogs: count published: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+blogColumns+`
		FROM blogs b
		LEFT JOIN users u ON u.id = b.author_id
		WHERE b.published
		ORDER BY b.competition_date DESC NULLS LAST, b.created_at DESC
		LIMIT $1 OFFSET $2`,
		filters.Limit, filters.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("blogs: list published: %w", err)
	}
	defer rows.Close()
	blogs, err := collectBlogs(rows)
	return blogs, total, err
}

// FindPublished returns a published blog by ID.
func (r *PGRepository) FindPublished(ctx context.Context, id int64) (*Blog, error) {
	return scanBlog(r.pool.QueryRow(ctx, `
		SELECT `+blogColumns+`
		FROM blogs b
		LEFT JOIN users u ON u.id = b.author_id
		WHERE b.id = $1 AND b.published`, id))
}

// List returns all blogs for the admin listing, optionally filtered by a
// search term matched against title, content and author name.
func (r *PGRepository) List(ctx context.Context, filters shared.ListFilters) ([]Blog, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM blogs b
		LEFT JOIN users u ON u.id = b.author_id
		WHERE $1 = ''
		   OR b.title ILIKE '%' || $1 || '%'
		   OR b.content ILIKE '%' || $1 || '%'
		   OR u.name ILIKE '%' || $1 || '%'`,
		filters.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("blogs: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+blogColumns+`
		FROM blogs b
		LEFT JOIN users u ON u.id = b.author_id
		WHERE $1 = ''
		   OR b.title ILIKE '%' || $1 || '%'
		   OR b.content ILIKE '%' || $1 || '%'
		   OR u.name ILIKE '%' || $1 || '%'
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3`,
		filters.Search, filters.Limit, filters.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("blogs: list: %w", err)
	}
	defer rows.Close()
	blogs, err := collectBlogs(rows)
	return blogs, total, err
}

// Find returns any blog by ID, published or not.
func (r *PGRepository) Find(ctx context.Context, id int64) (*Blog, error) {
	return scanBlog(r.pool.QueryRow(ctx, `
		SELECT `+blogColumns+`
		FROM blogs b
		LEFT JOIN users u ON u.id = b.author_id
		WHERE b.id = $1`, id))
}

// Create inserts a blog and fills in its generated fields.
func (r *PGRepository) Create(ctx context.Context, b *Blog) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO blogs (title, content, competition_date, image1, image2, author_id, published)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
		RETURNING id, created_at, updated_at`,
		b.Title, b.Content, b.CompetitionDate, b.Image1, b.Image2, b.AuthorID, b.Published,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("blogs: create: %w", err)
	}
	return nil
}

// Update persists all mutable columns of the blog.
func (r *PGRepository) Update(ctx context.Context, b *Blog) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE blogs
		SET title = $1, content = $2, competition_date = $3,
		    image1 = NULLIF($4, ''), image2 = NULLIF($5, ''),
		    published = $6, updated_at = NOW()
		WHERE id = $7`,
		b.Title, b.Content, b.CompetitionDate, b.Image1, b.Image2, b.Published, b.ID)
	if err != nil {
		return fmt.Errorf("blogs: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a blog row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("blogs: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func collectBlogs(rows pgx.Rows) ([]Blog, error) {
	blogs := make([]Blog, 0)
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("blogs: rows: %w", err)
	}
	return blogs, nil
}
