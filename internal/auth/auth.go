// Package auth provides authentication and authorization functionality.
// This file defines the public API of the auth bounded context.
// Only types defined here should be imported by other domains.
package auth

import (
	"time"

	"github.com/google/uuid"
)

// Profile represents user information that can be shared with other domains.
type Profile struct {
	ID          uuid.UUID
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	Role        string
	IsActive    bool
	IsSuperuser bool
	Permissions []string
	LastLoginAt *time.Time
	CreatedAt   time.Time
}

// Name returns "First Last", or the email when both are blank.
func (p Profile) Name() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	default:
		return p.Email
	}
}
