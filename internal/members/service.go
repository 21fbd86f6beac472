package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/munsociety/munsociety/internal/shared"
)

// UpdateInput carries a partial member update. At least one field must be
// set.
type UpdateInput struct {
	Email    *string
	Name     *string
	Role     *string
	Password *string
}

// Service implements member management use cases.
type Service struct {
	repo  Repository
	title cases.Caser
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, title: cases.Title(language.English)}
}

// List returns the member listing.
func (s *Service) List(ctx context.Context, filters Filters) ([]Member, int, error) {
	if filters.Role != "" {
		role, ok := shared.ParseRole(filters.Role)
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, filters.Role)
		}
		filters.Role = role.String()
	}
	return s.repo.List(ctx, filters)
}

// Update applies a partial update to a member account.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Member, error) {
	if in.Email == nil && in.Name == nil && in.Role == nil && in.Password == nil {
		return nil, fmt.Errorf("%w: no fields to update", shared.ErrValidation)
	}

	m, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", shared.ErrValidation)
		}
		m.Email = email
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", shared.ErrValidation)
		}
		m.Name = name
	}
	if in.Role != nil {
		role, ok := shared.ParseRole(*in.Role)
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, *in.Role)
		}
		m.Role = role
	}

	var passwordHash string
	if in.Password != nil {
		if len(*in.Password) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", shared.ErrValidation)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("members: hash password: %w", err)
		}
		passwordHash = string(hash)
	}

	if err := s.repo.Update(ctx, m, passwordHash); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a member account. Admin accounts are refused; the member's
// blogs and resources are handed to another admin first, or removed when no
// other admin exists.
func (s *Service) Delete(ctx context.Context, id int64) error {
	m, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if m.Role.IsAdmin() {
		return fmt.Errorf("%w: admin accounts cannot be deleted", shared.ErrValidation)
	}

	reassignTo, err := s.repo.FindOtherAdmin(ctx, id)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		reassignTo = 0
	}
	return s.repo.DeleteWithReassignment(ctx, id, reassignTo)
}

// AddAllowedEmail adds an entry to the registration allow list. Names are
// canonicalized to title case so the allow list stays consistent no matter
// how the form was filled in.
func (s *Service) AddAllowedEmail(ctx context.Context, email, name, roleName string) error {
	role, ok := shared.ParseRole(roleName)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", shared.ErrValidation, roleName)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	name = s.title.String(strings.ToLower(strings.TrimSpace(name)))
	if email == "" || name == "" {
		return fmt.Errorf("%w: email and name are required", shared.ErrValidation)
	}
	return s.repo.AddAllowedEmail(ctx, email, name, role)
}

// Stats returns the dashboard counters.
func (s *Service) Stats(ctx context.Context) (*DashboardStats, error) {
	return s.repo.Stats(ctx)
}
