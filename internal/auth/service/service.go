package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rivo_backend/internal/auth"
	"rivo_backend/internal/auth/password"
	"rivo_backend/internal/auth/policy"
	"rivo_backend/internal/auth/repository"
	"rivo_backend/platform/apperr"
	"rivo_backend/platform/config"
	"rivo_backend/platform/logger"
	"rivo_backend/platform/sanitize"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenType = "access"

	msgInvalidCredentials = "invalid credentials"
	msgUserNotFound       = "user not found"
)

// Repository is the storage the auth service needs.
type Repository interface {
	repository.UserReader
	repository.UserWriter
	repository.RoleStore
}

type Service struct {
	repo Repository
	cfg  config.AuthServiceConfig
	log  *logger.Logger
	now  func() time.Time
	// compareDummy burns bcrypt time for unknown emails.
	compareDummy func(plain string)
}

func New(repo Repository, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log, now: time.Now, compareDummy: password.CompareDummy}
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	AccessToken string
	Profile     auth.Profile
}

// Login checks credentials and issues an access token. Unknown users, wrong
// passwords and inactive users all produce the same Unauthorized error.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (LoginResult, error) {
	email = sanitize.Email(email)
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.compareDummy(plainPassword)
			s.log.AuthEvent("login", email, false, "unknown user")
			return LoginResult{}, apperr.Unauthorized(msgInvalidCredentials)
		}
		return LoginResult{}, err
	}

	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		s.log.AuthEvent("login", email, false, "bad password")
		return LoginResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}
	if !user.IsActive {
		s.log.AuthEvent("login", email, false, "inactive")
		return LoginResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	token, err := s.signAccessToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}
	if err := s.repo.TouchLastLogin(ctx, user.ID); err != nil {
		s.log.DatabaseError("touch_last_login", err)
	}

	s.log.AuthEvent("login", email, true, "")
	profile, err := s.profile(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{AccessToken: token, Profile: profile}, nil
}

func (s *Service) signAccessToken(user repository.User) (string, error) {
	roles := []string{}
	if role := user.Role(); role != "" {
		roles = append(roles, role)
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"type":  accessTokenType,
		"roles": roles,
		"su":    user.IsSuperuser,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.GetAccessTokenTTL()).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.GetJWTAccessSecret()))
}

// GetMe returns the caller's profile with effective permissions.
func (s *Service) GetMe(ctx context.Context, userID uuid.UUID) (auth.Profile, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return auth.Profile{}, mapNotFound(err)
	}
	return s.profile(ctx, user)
}

// Subject resolves the authorization state of a user for policy checks.
// Missing users resolve to an inactive subject rather than an error.
func (s *Service) Subject(ctx context.Context, userID uuid.UUID) (policy.Subject, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return policy.NewSubject(userID, false, false, "", nil), nil
	}
	if err != nil {
		return policy.Subject{}, err
	}
	perms, err := s.repo.GetPermissions(ctx, userID)
	if err != nil {
		return policy.Subject{}, err
	}
	return policy.NewSubject(user.ID, user.IsActive, user.IsSuperuser, user.Role(), perms), nil
}

func (s *Service) profile(ctx context.Context, user repository.User) (auth.Profile, error) {
	subject, err := s.Subject(ctx, user.ID)
	if err != nil {
		return auth.Profile{}, err
	}
	return toProfile(user, subject.Permissions()), nil
}

// GetActiveUser returns an active user or NotFound.
func (s *Service) GetActiveUser(ctx context.Context, userID uuid.UUID) (auth.Profile, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return auth.Profile{}, mapNotFound(err)
	}
	if !user.IsActive {
		return auth.Profile{}, apperr.NotFound(msgUserNotFound)
	}
	return toProfile(user, nil), nil
}

// ListActiveByRole lists active users holding roleName. A missing role yields NotFound.
func (s *Service) ListActiveByRole(ctx context.Context, roleName string) ([]auth.Profile, error) {
	if _, err := s.repo.GetRoleByName(ctx, roleName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("role %q does not exist", roleName))
		}
		return nil, err
	}
	users, err := s.repo.ListActiveUsersByRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	out := make([]auth.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, toProfile(u, nil))
	}
	return out, nil
}

// ListUsers returns every user, for operator tooling.
func (s *Service) ListUsers(ctx context.Context) ([]auth.Profile, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]auth.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, toProfile(u, nil))
	}
	return out, nil
}

// CreateUserInput describes a staff account created by an operator.
type CreateUserInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	Role        string
	Superuser   bool
	Permissions []string
}

// CreateUser hashes the password and stores a new staff user.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (auth.Profile, error) {
	email := sanitize.Email(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return auth.Profile{}, apperr.Validation("a valid email is required")
	}
	hash, err := password.Hash(in.Password)
	if errors.Is(err, password.ErrTooShort) {
		return auth.Profile{}, apperr.Validation(fmt.Sprintf("password must be at least %d characters", password.MinLength))
	}
	if err != nil {
		return auth.Profile{}, err
	}

	var role *string
	if r := strings.TrimSpace(in.Role); r != "" {
		role = &r
	}
	user, err := s.repo.CreateUser(ctx, repository.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		FirstName:    sanitize.Line(in.FirstName),
		LastName:     sanitize.Line(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		RoleName:     role,
		IsSuperuser:  in.Superuser,
	})
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		return auth.Profile{}, apperr.Conflict("email already registered")
	case errors.Is(err, repository.ErrNotFound):
		return auth.Profile{}, apperr.Validation(fmt.Sprintf("role %q does not exist", in.Role))
	case err != nil:
		return auth.Profile{}, err
	}

	if len(in.Permissions) > 0 {
		if err := s.repo.SetUserPermissions(ctx, user.ID, in.Permissions); err != nil {
			return auth.Profile{}, err
		}
	}
	return s.profile(ctx, user)
}

// RoleSpec is the desired state of one role.
type RoleSpec struct {
	Name        string
	Description string
	Permissions []string
}

// SyncRoles upserts every role and replaces its permission set. Unknown
// codenames are rejected before anything is written.
func (s *Service) SyncRoles(ctx context.Context, specs []RoleSpec) error {
	known := make(map[string]struct{}, len(policy.KnownPermissions))
	for _, p := range policy.KnownPermissions {
		known[p] = struct{}{}
	}
	for _, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return apperr.Validation("role name is required")
		}
		for _, p := range spec.Permissions {
			if _, ok := known[p]; !ok {
				return apperr.Validation(fmt.Sprintf("role %q: unknown permission %q", spec.Name, p))
			}
		}
	}

	for _, spec := range specs {
		if _, err := s.repo.UpsertRole(ctx, repository.Role{
			Name:        strings.TrimSpace(spec.Name),
			Description: spec.Description,
			Permissions: spec.Permissions,
		}); err != nil {
			return fmt.Errorf("upsert role %s: %w", spec.Name, err)
		}
	}
	return nil
}

func toProfile(u repository.User, perms []string) auth.Profile {
	return auth.Profile{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		Role:        u.Role(),
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		Permissions: perms,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgUserNotFound)
	}
	return err
}
