// Package blogs manages competition write-ups published by society members.
package blogs

import "time"

// Blog is a society blog post. Image1 and Image2 hold stored filenames, not
// URLs; the handler layer maps them to /uploads/images paths.
type Blog struct {
	ID              int64
	Title           string
	Content         string
	CompetitionDate *time.Time
	Image1          string
	Image2          string
	AuthorID        int64
	AuthorName      string
	Published       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
