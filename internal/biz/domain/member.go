package domain

import (
	"slices"
	"time"
)

// Member represents a guild member
type Member struct {
	UserID   string
	Username string
	JoinedAt time.Time
	RoleIDs  []string
	Bot      bool
}

// HasRole checks if the member holds the given role
func (m *Member) HasRole(roleID string) bool {
	return slices.Contains(m.RoleIDs, roleID)
}

// HasAnyRole checks if the member holds any of the given roles
func (m *Member) HasAnyRole(roleIDs []string) bool {
	for _, id := range roleIDs {
		if m.HasRole(id) {
			return true
		}
	}
	return false
}

// JoinedBefore checks if the member joined before the specified time.
// Members with no recorded join time are never considered older.
func (m *Member) JoinedBefore(t time.Time) bool {
	return !m.JoinedAt.IsZero() && m.JoinedAt.Before(t)
}
