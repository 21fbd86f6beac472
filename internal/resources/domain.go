// Package resources manages the member resource library: uploaded study
// guides, rules documents and committee material.
package resources

import (
	"time"

	"github.com/munsociety/munsociety/internal/shared"
)

// Resource is an uploaded file with its library metadata. Filename is the
// stored name on disk; OriginalFilename is what the uploader named it and is
// used for downloads.
type Resource struct {
	ID               int64
	Title            string
	Description      string
	Filename         string
	OriginalFilename string
	FileSize         int64
	FileType         string
	MimeType         string
	UploadDate       time.Time
	UploadedByID     int64
	UploadedByName   string
	DownloadCount    int64
	IsActive         bool
}

// Filters narrows resource listings.
type Filters struct {
	shared.ListFilters
	FileType string
}
