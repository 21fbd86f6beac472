package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/munsociety/munsociety/internal/shared"
)

// Repository abstracts member persistence.
type Repository interface {
	List(ctx context.Context, filters Filters) ([]Member, int, error)
	Find(ctx context.Context, id int64) (*Member, error)
	Update(ctx context.Context, m *Member, passwordHash string) error
	FindOtherAdmin(ctx context.Context, excludeID int64) (int64, error)
	DeleteWithReassignment(ctx context.Context, id, reassignTo int64) error
	AddAllowedEmail(ctx context.Context, email, name string, role shared.Role) error
	Stats(ctx context.Context) (*DashboardStats, error)
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

const memberColumns = `id, email, name, role, created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var (
		m    Member
		role string
	)
	err := row.Scan(&m.ID, &m.Email, &m.Name, &role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("members: scan: %w", err)
	}
	if parsed, ok := shared.ParseRole(role); ok {
		m.Role = parsed
	} else {
		m.Role = shared.RoleMember
	}
	return &m, nil
}

// List returns members filtered by search term and role, newest first.
func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Member, int, error) {
	const where = `
		WHERE ($1 = '' OR email ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR role = $2)`

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users`+where,
		filters.Search, filters.Role).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("members: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+memberColumns+` FROM users`+where+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		filters.Search, filters.Role, filters.Limit, filters.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("members: list: %w", err)
	}
	defer rows.Close()

	out := make([]Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("members: rows: %w", err)
	}
	return out, total, nil
}

// Find returns a member by ID.
func (r *PGRepository) Find(ctx context.Context, id int64) (*Member, error) {
	return scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM users WHERE id = $1`, id))
}

// Update persists the member. An empty passwordHash keeps the stored hash.
func (r *PGRepository) Update(ctx context.Context, m *Member, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $1, name = $2, role = $3,
		    password_hash = COALESCE(NULLIF($4, ''), password_hash),
		    updated_at = NOW()
		WHERE id = $5`,
		m.Email, m.Name, m.Role.String(), passwordHash, m.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return fmt.Errorf("members: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindOtherAdmin returns the ID of any admin other than excludeID.
func (r *PGRepository) FindOtherAdmin(ctx context.Context, excludeID int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM users
		WHERE role = $1 AND id <> $2
		ORDER BY id LIMIT 1`,
		shared.RoleAdmin.String(), excludeID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, fmt.Errorf("members: find other admin: %w", err)
	}
	return id, nil
}

// DeleteWithReassignment removes a member inside one transaction, first
// handing their blogs and resources to reassignTo. With reassignTo zero the
// content is deleted along with the account.
func (r *PGRepository) DeleteWithReassignment(ctx context.Context, id, reassignTo int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("members: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if reassignTo != 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE blogs SET author_id = $1 WHERE author_id = $2`, reassignTo, id); err != nil {
			return fmt.Errorf("members: reassign blogs: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE resources SET uploaded_by = $1 WHERE uploaded_by = $2`, reassignTo, id); err != nil {
			return fmt.Errorf("members: reassign resources: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx,
			`DELETE FROM blogs WHERE author_id = $1`, id); err != nil {
			return fmt.Errorf("members: delete blogs: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM resources WHERE uploaded_by = $1`, id); err != nil {
			return fmt.Errorf("members: delete resources: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM sessions WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("members: delete sessions: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("members: delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("members: commit: %w", err)
	}
	return nil
}

// AddAllowedEmail inserts into the registration allow list.
func (r *PGRepository) AddAllowedEmail(ctx context.Context, email, name string, role shared.Role) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO allowed_emails (email, name, role)
		VALUES ($1, $2, $3)`,
		email, name, role.String())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return fmt.Errorf("members: add allowed email: %w", err)
	}
	return nil
}

// Stats computes the dashboard counters.
func (r *PGRepository) Stats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM blogs),
			(SELECT COUNT(*) FROM resources WHERE is_active),
			(SELECT COUNT(*) FROM users WHERE created_at > NOW() - INTERVAL '30 days')`,
	).Scan(&stats.TotalMembers, &stats.TotalBlogs, &stats.TotalResources, &stats.RecentRegistrations)
	if err != nil {
		return nil, fmt.Errorf("members: stats: %w", err)
	}
	return &stats, nil
}
