package repository

import (
	"context"

	"github.com/google/uuid"
)

// UserReader is the read side of user storage.
type UserReader interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListActiveUsersByRole(ctx context.Context, roleName string) ([]User, error)
	GetPermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// UserWriter is the write side of user storage.
type UserWriter interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	SetUserRole(ctx context.Context, userID uuid.UUID, roleName *string) error
	SetUserPermissions(ctx context.Context, userID uuid.UUID, codenames []string) error
	TouchLastLogin(ctx context.Context, userID uuid.UUID) error
}

// RoleStore manages roles and their permission sets.
type RoleStore interface {
	GetRoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpsertRole(ctx context.Context, role Role) (Role, error)
}

// AuthRepository is everything the auth service persists.
type AuthRepository interface {
	UserReader
	UserWriter
	RoleStore
}

var _ AuthRepository = (*Repository)(nil)
