package resources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/munsociety/munsociety/internal/observability"
	"github.com/munsociety/munsociety/internal/shared"
	"github.com/munsociety/munsociety/internal/storage"
)

type memoryRepo struct {
	items      map[int64]*Resource
	nextID     int64
	failCreate bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]*Resource)}
}

func (r *memoryRepo) List(ctx context.Context, f Filters) ([]Resource, int, error) {
	out := make([]Resource, 0)
	for _, res := range r.items {
		if !res.IsActive {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(res.Title), needle) &&
				!strings.Contains(strings.ToLower(res.Description), needle) {
				continue
			}
		}
		if f.FileType != "" && res.FileType != f.FileType {
			continue
		}
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate.After(out[j].UploadDate) })
	return out, len(out), nil
}

func (r *memoryRepo) Find(ctx context.Context, id int64) (*Resource, error) {
	if res, ok := r.items[id]; ok && res.IsActive {
		clone := *res
		return &clone, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) FindAny(ctx context.Context, id int64) (*Resource, error) {
	if res, ok := r.items[id]; ok {
		clone := *res
		return &clone, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) IncrementDownloads(ctx context.Context, id int64) error {
	res, ok := r.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	res.DownloadCount++
	return nil
}

func (r *memoryRepo) ActiveTitleExists(ctx context.Context, title string, excludeID int64) (bool, error) {
	for _, res := range r.items {
		if res.IsActive && res.ID != excludeID && strings.EqualFold(res.Title, title) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) Create(ctx context.Context, res *Resource) error {
	if r.failCreate {
		return errors.New("insert failed")
	}
	r.nextID++
	res.ID = r.nextID
	res.UploadDate = time.Now()
	res.IsActive = true
	clone := *res
	r.items[res.ID] = &clone
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, res *Resource) error {
	stored, ok := r.items[res.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.Title = res.Title
	stored.Description = res.Description
	return nil
}

func (r *memoryRepo) SoftDelete(ctx context.Context, id int64) error {
	res, ok := r.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	res.IsActive = false
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

var _ Repository = (*memoryRepo)(nil)

func newTestService(t *testing.T) (*Service, *memoryRepo, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewStore(root, 1<<20)
	require.NoError(t, err)
	repo := newMemoryRepo()
	return NewService(repo, store, observability.NewMetrics()), repo, root
}

func resourceFiles(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, "resources"))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func uploadPDF(t *testing.T, svc *Service, title string) *Resource {
	t.Helper()
	res, err := svc.Upload(context.Background(), 1, UploadInput{
		Title:    title,
		Filename: "guide.pdf",
		Content:  strings.NewReader("%PDF-1.4 fake"),
	})
	require.NoError(t, err)
	return res
}

func TestUploadStoresFileAndMetadata(t *testing.T) {
	svc, _, root := newTestService(t)

	res := uploadPDF(t, svc, "Rules of Procedure")
	require.Equal(t, "pdf", res.FileType)
	require.Equal(t, "application/pdf", res.MimeType)
	require.Equal(t, "guide.pdf", res.OriginalFilename)
	require.NotEqual(t, "guide.pdf", res.Filename)
	require.True(t, res.IsActive)
	require.Len(t, resourceFiles(t, root), 1)
}

func TestUploadRejectsDuplicateActiveTitle(t *testing.T) {
	svc, _, root := newTestService(t)
	uploadPDF(t, svc, "Rules of Procedure")

	_, err := svc.Upload(context.Background(), 1, UploadInput{
		Title:    "rules of procedure",
		Filename: "other.pdf",
		Content:  strings.NewReader("%PDF"),
	})
	require.ErrorIs(t, err, shared.ErrDuplicate)
	// Nothing was written for the rejected upload.
	require.Len(t, resourceFiles(t, root), 1)
}

func TestUploadAllowsTitleOfDeactivatedResource(t *testing.T) {
	svc, _, _ := newTestService(t)
	res := uploadPDF(t, svc, "Rules of Procedure")
	require.NoError(t, svc.Deactivate(context.Background(), res.ID))

	_, err := svc.Upload(context.Background(), 1, UploadInput{
		Title:    "Rules of Procedure",
		Filename: "v2.pdf",
		Content:  strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
}

func TestUploadCleansUpFileWhenInsertFails(t *testing.T) {
	svc, repo, root := newTestService(t)
	repo.failCreate = true

	_, err := svc.Upload(context.Background(), 1, UploadInput{
		Title:    "Doomed",
		Filename: "doomed.pdf",
		Content:  strings.NewReader("%PDF"),
	})
	require.Error(t, err)
	require.Empty(t, resourceFiles(t, root))
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), 1, UploadInput{
		Title:    "  ",
		Filename: "x.pdf",
		Content:  strings.NewReader("%PDF"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Upload(context.Background(), 1, UploadInput{
		Title:    "Script",
		Filename: "x.exe",
		Content:  strings.NewReader("MZ"),
	})
	require.ErrorIs(t, err, storage.ErrInvalidExtension)

	_, err = svc.Upload(context.Background(), 1, UploadInput{
		Title:    "Empty",
		Filename: "x.pdf",
		Content:  strings.NewReader(""),
	})
	require.ErrorIs(t, err, storage.ErrEmptyFile)
}

func TestDownloadIncrementsCounterAndStreams(t *testing.T) {
	svc, repo, _ := newTestService(t)
	res := uploadPDF(t, svc, "Study Guide")

	got, f, err := svc.Download(context.Background(), res.ID)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, int64(1), got.DownloadCount)
	require.Equal(t, int64(1), repo.items[res.ID].DownloadCount)
}

func TestDownloadMissingFileIsNotFound(t *testing.T) {
	svc, repo, root := newTestService(t)
	res := uploadPDF(t, svc, "Study Guide")
	require.NoError(t, os.Remove(filepath.Join(root, "resources", res.Filename)))

	_, _, err := svc.Download(context.Background(), res.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	// The counter stays untouched when the file cannot be served.
	require.Equal(t, int64(0), repo.items[res.ID].DownloadCount)
}

func TestUpdateRejectsTitleCollision(t *testing.T) {
	svc, _, _ := newTestService(t)
	uploadPDF(t, svc, "Study Guide")
	other := uploadPDF(t, svc, "Position Paper Tips")

	title := "Study Guide"
	_, err := svc.Update(context.Background(), other.ID, UpdateInput{Title: &title})
	require.ErrorIs(t, err, shared.ErrDuplicate)

	// Updating a resource to its own title is fine.
	title = "Position Paper Tips"
	updated, err := svc.Update(context.Background(), other.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "Position Paper Tips", updated.Title)
}

func TestDeactivateHidesFromListingsButKeepsFile(t *testing.T) {
	svc, _, root := newTestService(t)
	res := uploadPDF(t, svc, "Study Guide")

	require.NoError(t, svc.Deactivate(context.Background(), res.ID))

	list, total, err := svc.List(context.Background(), Filters{ListFilters: shared.ListFilters{Page: 1, Limit: 10}})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, list)

	_, err = svc.Get(context.Background(), res.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Len(t, resourceFiles(t, root), 1)
}

func TestPurgeRemovesRowAndFile(t *testing.T) {
	svc, repo, root := newTestService(t)
	res := uploadPDF(t, svc, "Study Guide")
	require.NoError(t, svc.Deactivate(context.Background(), res.ID))

	require.NoError(t, svc.Purge(context.Background(), res.ID))
	require.Empty(t, resourceFiles(t, root))
	require.NotContains(t, repo.items, res.ID)

	require.ErrorIs(t, svc.Purge(context.Background(), res.ID), shared.ErrNotFound)
}

func TestListFiltersByFileType(t *testing.T) {
	svc, _, _ := newTestService(t)
	uploadPDF(t, svc, "Study Guide")
	_, err := svc.Upload(context.Background(), 1, UploadInput{
		Title:    "Committee Photo",
		Filename: "photo.png",
		Content:  strings.NewReader("fake png"),
	})
	require.NoError(t, err)

	list, total, err := svc.List(context.Background(), Filters{
		ListFilters: shared.ListFilters{Page: 1, Limit: 10},
		FileType:    "pdf",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Study Guide", list[0].Title)
}
