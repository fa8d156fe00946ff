package adapters

import (
	"context"

	"rivo_backend/internal/auth"
	"rivo_backend/internal/auth/policy"
	"rivo_backend/internal/clients/domain"
	"rivo_backend/platform/apperr"

	"github.com/google/uuid"
)

// UserSource is the part of the auth service that resolves staff users.
type UserSource interface {
	GetActiveUser(ctx context.Context, userID uuid.UUID) (auth.Profile, error)
	ListActiveByRole(ctx context.Context, roleName string) ([]auth.Profile, error)
}

// StaffDirectory exposes auth users to the clients and notification modules.
type StaffDirectory struct {
	users UserSource
}

func NewStaffDirectory(users UserSource) *StaffDirectory {
	return &StaffDirectory{users: users}
}

func (d *StaffDirectory) GetActiveUser(ctx context.Context, id uuid.UUID) (domain.UserRef, error) {
	p, err := d.users.GetActiveUser(ctx, id)
	if err != nil {
		return domain.UserRef{}, err
	}
	return toUserRef(p), nil
}

// GetActiveCSM returns id only when it is an active member of the csm role.
func (d *StaffDirectory) GetActiveCSM(ctx context.Context, id uuid.UUID) (domain.UserRef, error) {
	csms, err := d.users.ListActiveByRole(ctx, policy.RoleCSM)
	if apperr.Is(err, apperr.KindNotFound) {
		return domain.UserRef{}, apperr.BadRequest("CSM role not configured")
	}
	if err != nil {
		return domain.UserRef{}, err
	}
	for _, p := range csms {
		if p.ID == id {
			return toUserRef(p), nil
		}
	}
	return domain.UserRef{}, apperr.NotFound("CSM user not found")
}

// ListCSMUsers lists active CSMs. A missing csm role yields an empty list.
func (d *StaffDirectory) ListCSMUsers(ctx context.Context) ([]domain.UserRef, error) {
	csms, err := d.users.ListActiveByRole(ctx, policy.RoleCSM)
	if apperr.Is(err, apperr.KindNotFound) {
		return []domain.UserRef{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserRef, 0, len(csms))
	for _, p := range csms {
		out = append(out, toUserRef(p))
	}
	return out, nil
}

func toUserRef(p auth.Profile) domain.UserRef {
	return domain.UserRef{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
}
