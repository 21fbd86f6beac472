package resources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/munsociety/munsociety/internal/observability"
	"github.com/munsociety/munsociety/internal/shared"
	"github.com/munsociety/munsociety/internal/storage"
)

// UploadInput carries a new resource upload.
type UploadInput struct {
	Title       string
	Description string
	Filename    string
	Content     io.Reader
}

// UpdateInput carries a partial metadata update.
type UpdateInput struct {
	Title       *string
	Description *string
}

// Service implements resource library use cases.
type Service struct {
	repo    Repository
	store   *storage.Store
	metrics *observability.Metrics
}

// NewService constructs a Service.
func NewService(repo Repository, store *storage.Store, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, store: store, metrics: metrics}
}

// List returns active resources matching the filters.
func (s *Service) List(ctx context.Context, filters Filters) ([]Resource, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns an active resource.
func (s *Service) Get(ctx context.Context, id int64) (*Resource, error) {
	return s.repo.Find(ctx, id)
}

// Download increments the counter and opens the stored file. A row whose
// file is missing on disk reads as not found.
func (s *Service) Download(ctx context.Context, id int64) (*Resource, *os.File, error) {
	res, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.store.Open(storage.KindResource, res.Filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, shared.ErrNotFound
		}
		return nil, nil, fmt.Errorf("resources: open file: %w", err)
	}
	if err := s.repo.IncrementDownloads(ctx, id); err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	res.DownloadCount++
	s.metrics.Download()
	return res, f, nil
}

// Upload validates and stores the file, then inserts the row. A duplicate
// active title is rejected before anything touches disk; the stored file is
// removed again when the insert fails.
func (s *Service) Upload(ctx context.Context, uploaderID int64, in UploadInput) (*Resource, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, shared.ErrValidation
	}
	taken, err := s.repo.ActiveTitleExists(ctx, title, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, shared.ErrDuplicate
	}

	saved, err := s.store.Save(storage.KindResource, in.Filename, in.Content)
	if err != nil {
		return nil, err
	}

	res := &Resource{
		Title:            title,
		Description:      strings.TrimSpace(in.Description),
		Filename:         saved.Filename,
		OriginalFilename: in.Filename,
		FileSize:         saved.Size,
		FileType:         saved.FileType,
		MimeType:         saved.MimeType,
		UploadedByID:     uploaderID,
	}
	if err := s.repo.Create(ctx, res); err != nil {
		_ = s.store.Remove(storage.KindResource, saved.Filename)
		return nil, err
	}
	return res, nil
}

// Update applies a metadata update. A title change that collides with
// another active resource is rejected.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Resource, error) {
	res, err := s.repo.FindAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, shared.ErrValidation
		}
		taken, err := s.repo.ActiveTitleExists(ctx, title, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, shared.ErrDuplicate
		}
		res.Title = title
	}
	if in.Description != nil {
		res.Description = strings.TrimSpace(*in.Description)
	}
	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Deactivate soft-deletes a resource. The file stays on disk so the row can
// be restored by hand if needed.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SoftDelete(ctx, id)
}

// Purge permanently deletes the row and unlinks the file best-effort.
func (s *Service) Purge(ctx context.Context, id int64) error {
	res, err := s.repo.FindAny(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.store.Remove(storage.KindResource, res.Filename)
	return nil
}
