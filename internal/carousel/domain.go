// Package carousel manages the landing page image carousel.
package carousel

import "time"

// Image is one carousel slide. Filename is the stored name on disk.
type Image struct {
	ID           int64
	Title        string
	Description  string
	Filename     string
	DisplayOrder int
	Active       bool
	CreatedAt    time.Time
}
