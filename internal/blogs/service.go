package blogs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/munsociety/munsociety/internal/shared"
	"github.com/munsociety/munsociety/internal/storage"
)

// Upload is an incoming image file.
type Upload struct {
	Filename string
	Content  io.Reader
}

// CreateInput carries the fields of a new blog post.
type CreateInput struct {
	Title           string
	Content         string
	CompetitionDate *time.Time
	Published       bool
	Image1          *Upload
	Image2          *Upload
}

// UpdateInput carries a partial blog update. Nil fields are left unchanged;
// a non-nil image replaces (and unlinks) the stored one.
type UpdateInput struct {
	Title           *string
	Content         *string
	CompetitionDate *time.Time
	Published       *bool
	Image1          *Upload
	Image2          *Upload
}

// Service implements blog use cases on top of a Repository and the file store.
type Service struct {
	repo  Repository
	store *storage.Store
}

// NewService constructs a Service.
func NewService(repo Repository, store *storage.Store) *Service {
	return &Service{repo: repo, store: store}
}

// ListPublished returns the public blog page.
func (s *Service) ListPublished(ctx context.Context, filters shared.ListFilters) ([]Blog, int, error) {
	return s.repo.ListPublished(ctx, filters)
}

// GetPublished returns a single published blog.
func (s *Service) GetPublished(ctx context.Context, id int64) (*Blog, error) {
	return s.repo.FindPublished(ctx, id)
}

// ListAll returns the admin listing, unpublished posts included.
func (s *Service) ListAll(ctx context.Context, filters shared.ListFilters) ([]Blog, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns any blog by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Blog, error) {
	return s.repo.Find(ctx, id)
}

// Create stores the uploaded images and inserts the blog. Saved files are
// removed again when the insert fails, so a failed create leaves no orphans
// on disk.
func (s *Service) Create(ctx context.Context, authorID int64, in CreateInput) (*Blog, error) {
	b := &Blog{
		Title:           in.Title,
		Content:         in.Content,
		CompetitionDate: in.CompetitionDate,
		AuthorID:        authorID,
		Published:       in.Published,
	}

	saved := make([]string, 0, 2)
	cleanup := func() {
		for _, name := range saved {
			_ = s.store.Remove(storage.KindImage, name)
		}
	}

	if in.Image1 != nil {
		f, err := s.store.Save(storage.KindImage, in.Image1.Filename, in.Image1.Content)
		if err != nil {
			return nil, fmt.Errorf("save image1: %w", err)
		}
		b.Image1 = f.Filename
		saved = append(saved, f.Filename)
	}
	if in.Image2 != nil {
		f, err := s.store.Save(storage.KindImage, in.Image2.Filename, in.Image2.Content)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("save image2: %w", err)
		}
		b.Image2 = f.Filename
		saved = append(saved, f.Filename)
	}

	if err := s.repo.Create(ctx, b); err != nil {
		cleanup()
		return nil, err
	}
	return b, nil
}

// Update applies a partial update. Replaced images are unlinked only after
// the row update succeeds; newly saved files are unlinked when it fails.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Blog, error) {
	b, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		b.Title = *in.Title
	}
	if in.Content != nil {
		b.Content = *in.Content
	}
	if in.CompetitionDate != nil {
		b.CompetitionDate = in.CompetitionDate
	}
	if in.Published != nil {
		b.Published = *in.Published
	}

	var savedNew, removeOld []string
	if in.Image1 != nil {
		f, err := s.store.Save(storage.KindImage, in.Image1.Filename, in.Image1.Content)
		if err != nil {
			return nil, fmt.Errorf("save image1: %w", err)
		}
		if b.Image1 != "" {
			removeOld = append(removeOld, b.Image1)
		}
		b.Image1 = f.Filename
		savedNew = append(savedNew, f.Filename)
	}
	if in.Image2 != nil {
		f, err := s.store.Save(storage.KindImage, in.Image2.Filename, in.Image2.Content)
		if err != nil {
			for _, name := range savedNew {
				_ = s.store.Remove(storage.KindImage, name)
			}
			return nil, fmt.Errorf("save image2: %w", err)
		}
		if b.Image2 != "" {
			removeOld = append(removeOld, b.Image2)
		}
		b.Image2 = f.Filename
		savedNew = append(savedNew, f.Filename)
	}

	if err := s.repo.Update(ctx, b); err != nil {
		for _, name := range savedNew {
			_ = s.store.Remove(storage.KindImage, name)
		}
		return nil, err
	}
	for _, name := range removeOld {
		_ = s.store.Remove(storage.KindImage, name)
	}
	return b, nil
}

// Delete removes the blog and unlinks its images best-effort.
func (s *Service) Delete(ctx context.Context, id int64) error {
	b, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.store.Remove(storage.KindImage, b.Image1)
	_ = s.store.Remove(storage.KindImage, b.Image2)
	return nil
}
