// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated user's identity.
// Handlers read it instead of poking at gin context keys directly.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// Roles returns the user's role names.
	Roles() []string
	// HasRole reports whether the user holds the role (case-insensitive).
	HasRole(role string) bool
	// IsSuperuser reports whether the user bypasses every permission check.
	IsSuperuser() bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	roles         []string
	superuser     bool
	authenticated bool
}

func (i *identity) UserID() uuid.UUID { return i.userID }
func (i *identity) Roles() []string   { return i.roles }
func (i *identity) IsSuperuser() bool { return i.superuser }

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func (i *identity) IsAuthenticated() bool { return i.authenticated }

// NewIdentity builds an authenticated identity. Mostly useful in tests.
func NewIdentity(userID uuid.UUID, roles []string, superuser bool) Identity {
	return &identity{userID: userID, roles: roles, superuser: superuser, authenticated: true}
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return &identity{}
	}
	uid, ok := raw.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	var roles []string
	if value, ok := c.Get(ContextRolesKey); ok {
		roles, _ = value.([]string)
	}

	return &identity{
		userID:        uid,
		roles:         roles,
		superuser:     c.GetBool(ContextSuperuserKey),
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil
	}
	return id
}
