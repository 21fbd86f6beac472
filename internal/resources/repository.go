package resources

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/munsociety/munsociety/internal/shared"
)

// Repository abstracts resource persistence.
type Repository interface {
	List(ctx context.Context, filters Filters) ([]Resource, int, error)
	Find(ctx context.Context, id int64) (*Resource, error)
	FindAny(ctx context.Context, id int64) (*Resource, error)
	IncrementDownloads(ctx context.Context, id int64) error
	ActiveTitleExists(ctx context.Context, title string, excludeID int64) (bool, error)
	Create(ctx context.Context, res *Resource) error
	Update(ctx context.Context, res *Resource) error
	SoftDelete(ctx context.Context, id int64) error
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

const resourceColumns = `r.id, r.title, COALESCE(r.description, ''),
	r.filename, r.original_filename, r.file_size, r.file_type, r.mime_type,
	r.upload_date, r.uploaded_by, COALESCE(u.name, ''), r.download_count, r.is_active`

func scanResource(row pgx.Row) (*Resource, error) {
	var res Resource
	err := row.Scan(&res.ID, &res.Title, &res.Description, &res.Filename,
		&res.OriginalFilename, &res.FileSize, &res.FileType, &res.MimeType,
		&res.UploadDate, &res.UploadedByID, &res.UploadedByName,
		&res.DownloadCount, &res.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("resources: scan: %w", err)
	}
	return &res, nil
}

// List returns active resources filtered by search term and file type.
func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Resource, int, error) {
	const where = `
		WHERE r.is_active
		  AND ($1 = '' OR r.title ILIKE '%' || $1 || '%' OR r.description ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR r.file_type = $2)`

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM resources r`+where,
		filters.Search, filters.FileType).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("resources: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+resourceColumns+`
		FROM resources r
		LEFT JOIN users u ON u.id = r.uploaded_by`+where+`
		ORDER BY r.upload_date DESC
		LIMIT $3 OFFSET $4`,
		filters.Search, filters.FileType, filters.Limit, filters.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("resources: list: %w", err)
	}
	defer rows.Close()

	out := make([]Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("resources: rows: %w", err)
	}
	return out, total, nil
}

// Find returns an active resource by ID.
func (r *PGRepository) Find(ctx context.Context, id int64) (*Resource, error) {
	return scanResource(r.pool.QueryRow(ctx, `
		SELECT `+resourceColumns+`
		FROM resources r
		LEFT JOIN users u ON u.id = r.uploaded_by
		WHERE r.id = $1 AND r.is_active`, id))
}

// FindAny returns a resource regardless of its active flag. Used by the
// permanent delete path, which must unlink files of soft-deleted rows too.
func (r *PGRepository) FindAny(ctx context.Context, id int64) (*Resource, error) {
	return scanResource(r.pool.QueryRow(ctx, `
		SELECT `+resourceColumns+`
		FROM resources r
		LEFT JOIN users u ON u.id = r.uploaded_by
		WHERE r.id = $1`, id))
}

// IncrementDownloads bumps the download counter atomically.
func (r *PGRepository) IncrementDownloads(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE resources SET download_count = download_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("resources: increment downloads: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ActiveTitleExists reports whether another active resource already uses the
// title. excludeID skips the row being updated.
func (r *PGRepository) ActiveTitleExists(ctx context.Context, title string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM resources
			WHERE is_active AND LOWER(title) = LOWER($1) AND id <> $2
		)`, title, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("resources: title exists: %w", err)
	}
	return exists, nil
}

// Create inserts a resource and fills in its generated fields.
func (r *PGRepository) Create(ctx context.Context, res *Resource) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO resources (title, description, filename, original_filename,
			file_size, file_type, mime_type, uploaded_by, is_active)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id, upload_date, download_count, is_active`,
		res.Title, res.Description, res.Filename, res.OriginalFilename,
		res.FileSize, res.FileType, res.MimeType, res.UploadedByID,
	).Scan(&res.ID, &res.UploadDate, &res.DownloadCount, &res.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return fmt.Errorf("resources: create: %w", err)
	}
	return nil
}

// Update persists title and description.
func (r *PGRepository) Update(ctx context.Context, res *Resource) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE resources SET title = $1, description = NULLIF($2, '')
		WHERE id = $3`,
		res.Title, res.Description, res.ID)
	if err != nil {
		return fmt.Errorf("resources: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SoftDelete marks a resource inactive, keeping the row and the file.
func (r *PGRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE resources SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("resources: soft delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the row permanently.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("resources: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
