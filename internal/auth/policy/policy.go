// Package policy decides what an authenticated staff user may do.
// Every permission check in the API goes through Subject.
package policy

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Permission codenames.
const (
	PermViewAllClients    = "view_all_clients"
	PermAssignClient      = "assign_client"
	PermChangeClientStage = "change_client_stage"
	PermChangeClient      = "change_client"
)

// Role names with built-in meaning.
const (
	RoleAdmin = "admin"
	RoleCSM   = "csm"
)

// KnownPermissions lists every codename the API checks.
var KnownPermissions = []string{
	PermViewAllClients,
	PermAssignClient,
	PermChangeClientStage,
	PermChangeClient,
}

// Subject is the resolved authorization state of one user.
type Subject struct {
	UserID      uuid.UUID
	Active      bool
	Superuser   bool
	Role        string
	permissions map[string]struct{}
}

// NewSubject builds a Subject from the user's flags, role name and the union
// of role and direct permission codenames.
func NewSubject(userID uuid.UUID, active, superuser bool, role string, permissions []string) Subject {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[strings.TrimSpace(p)] = struct{}{}
	}
	return Subject{
		UserID:      userID,
		Active:      active,
		Superuser:   superuser,
		Role:        role,
		permissions: set,
	}
}

// Can reports whether the subject holds perm. Inactive users hold nothing and
// active superusers hold everything.
func (s Subject) Can(perm string) bool {
	if !s.Active {
		return false
	}
	if s.Superuser {
		return true
	}
	_, ok := s.permissions[perm]
	return ok
}

// IsAdmin reports superuser or the admin role.
func (s Subject) IsAdmin() bool {
	return s.Active && (s.Superuser || strings.EqualFold(s.Role, RoleAdmin))
}

// IsCSM reports the csm role. Superusers are not implicitly CSMs.
func (s Subject) IsCSM() bool {
	return s.Active && strings.EqualFold(s.Role, RoleCSM)
}

// IsStaff reports whether the subject may use the dashboard at all.
func (s Subject) IsStaff() bool {
	return s.IsAdmin() || s.IsCSM()
}

// Permissions returns the effective codenames, sorted.
func (s Subject) Permissions() []string {
	if !s.Active {
		return []string{}
	}
	if s.Superuser {
		out := append([]string(nil), KnownPermissions...)
		sort.Strings(out)
		return out
	}
	out := make([]string, 0, len(s.permissions))
	for p := range s.permissions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
