package carousel

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/munsociety/munsociety/internal/shared"
	"github.com/munsociety/munsociety/internal/storage"
)

// Upload is an incoming slide image.
type Upload struct {
	Filename string
	Content  io.Reader
}

// CreateInput carries a new slide.
type CreateInput struct {
	Title        string
	Description  string
	DisplayOrder int
	Active       bool
	Image        Upload
}

// UpdateInput carries a partial slide update. A non-nil Image replaces the
// stored file.
type UpdateInput struct {
	Title        *string
	Description  *string
	DisplayOrder *int
	Active       *bool
	Image        *Upload
}

// Service implements carousel use cases.
type Service struct {
	repo  Repository
	store *storage.Store
}

// NewService constructs a Service.
func NewService(repo Repository, store *storage.Store) *Service {
	return &Service{repo: repo, store: store}
}

// ListActive returns the public landing page slides.
func (s *Service) ListActive(ctx context.Context) ([]Image, error) {
	return s.repo.ListActive(ctx)
}

// List returns all slides for the admin view.
func (s *Service) List(ctx context.Context) ([]Image, error) {
	return s.repo.List(ctx)
}

// Create stores the image and inserts the slide. The file is removed when
// the insert fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Image, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, shared.ErrValidation
	}
	saved, err := s.store.Save(storage.KindCarousel, in.Image.Filename, in.Image.Content)
	if err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}

	img := &Image{
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Filename:     saved.Filename,
		DisplayOrder: in.DisplayOrder,
		Active:       in.Active,
	}
	if err := s.repo.Create(ctx, img); err != nil {
		_ = s.store.Remove(storage.KindCarousel, saved.Filename)
		return nil, err
	}
	return img, nil
}

// Update applies a partial update. A replaced image is unlinked only after
// the row update succeeds.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Image, error) {
	img, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, shared.ErrValidation
		}
		img.Title = title
	}
	if in.Description != nil {
		img.Description = strings.TrimSpace(*in.Description)
	}
	if in.DisplayOrder != nil {
		img.DisplayOrder = *in.DisplayOrder
	}
	if in.Active != nil {
		img.Active = *in.Active
	}

	var oldFile string
	if in.Image != nil {
		saved, err := s.store.Save(storage.KindCarousel, in.Image.Filename, in.Image.Content)
		if err != nil {
			return nil, fmt.Errorf("save image: %w", err)
		}
		oldFile = img.Filename
		img.Filename = saved.Filename
	}

	if err := s.repo.Update(ctx, img); err != nil {
		if in.Image != nil {
			_ = s.store.Remove(storage.KindCarousel, img.Filename)
		}
		return nil, err
	}
	if oldFile != "" {
		_ = s.store.Remove(storage.KindCarousel, oldFile)
	}
	return img, nil
}

// Delete removes the slide and unlinks its image best-effort.
func (s *Service) Delete(ctx context.Context, id int64) error {
	img, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.store.Remove(storage.KindCarousel, img.Filename)
	return nil
}
