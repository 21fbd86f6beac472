// Package members implements the admin-side member management: listing,
// updating and removing accounts, the registration allow list and the
// dashboard counters.
package members

import (
	"time"

	"github.com/munsociety/munsociety/internal/shared"
)

// Member is a registered account as seen by an admin. Password hashes stay
// inside the repository layer and never leave this package.
type Member struct {
	ID        int64
	Email     string
	Name      string
	Role      shared.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filters narrows the member listing.
type Filters struct {
	shared.ListFilters
	Role string
}

// DashboardStats backs the admin dashboard counters.
type DashboardStats struct {
	TotalMembers        int64 `json:"total_members"`
	TotalBlogs          int64 `json:"total_blogs"`
	TotalResources      int64 `json:"total_resources"`
	RecentRegistrations int64 `json:"recent_registrations"`
}
