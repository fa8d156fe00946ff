package service

import (
	"context"
	"testing"
	"time"

	"rivo_backend/internal/auth/password"
	"rivo_backend/internal/auth/policy"
	"rivo_backend/internal/auth/repository"
	"rivo_backend/platform/apperr"
	"rivo_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testConfig struct{}

func (testConfig) GetJWTAccessSecret() string       { return "test-secret" }
func (testConfig) GetAccessTokenTTL() time.Duration { return time.Hour }

type fakeRepo struct {
	users   map[uuid.UUID]repository.User
	perms   map[uuid.UUID][]string
	roles   map[string]repository.Role
	touched []uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users: map[uuid.UUID]repository.User{},
		perms: map[uuid.UUID][]string{},
		roles: map[string]repository.Role{},
	}
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (repository.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return repository.User{}, repository.ErrNotFound
}

func (f *fakeRepo) GetUserByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	u, ok := f.users[id]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) ListUsers(context.Context) ([]repository.User, error) {
	out := make([]repository.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeRepo) ListActiveUsersByRole(_ context.Context, role string) ([]repository.User, error) {
	var out []repository.User
	for _, u := range f.users {
		if u.IsActive && u.Role() == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetPermissions(_ context.Context, id uuid.UUID) ([]string, error) {
	return f.perms[id], nil
}

func (f *fakeRepo) CreateUser(_ context.Context, p repository.CreateUserParams) (repository.User, error) {
	for _, u := range f.users {
		if u.Email == p.Email {
			return repository.User{}, repository.ErrEmailTaken
		}
	}
	if p.RoleName != nil {
		if _, ok := f.roles[*p.RoleName]; !ok {
			return repository.User{}, repository.ErrNotFound
		}
	}
	u := repository.User{
		ID: uuid.New(), Email: p.Email, PasswordHash: p.PasswordHash,
		FirstName: p.FirstName, LastName: p.LastName, RoleName: p.RoleName,
		IsActive: true, IsSuperuser: p.IsSuperuser,
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) SetUserRole(context.Context, uuid.UUID, *string) error { return nil }

func (f *fakeRepo) SetUserPermissions(_ context.Context, id uuid.UUID, codenames []string) error {
	f.perms[id] = codenames
	return nil
}

func (f *fakeRepo) TouchLastLogin(_ context.Context, id uuid.UUID) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeRepo) GetRoleByName(_ context.Context, name string) (repository.Role, error) {
	r, ok := f.roles[name]
	if !ok {
		return repository.Role{}, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) ListRoles(context.Context) ([]repository.Role, error) { return nil, nil }

func (f *fakeRepo) UpsertRole(_ context.Context, r repository.Role) (repository.Role, error) {
	r.ID = uuid.New()
	f.roles[r.Name] = r
	return r, nil
}

func addUser(t *testing.T, repo *fakeRepo, email, plain, role string, active bool) repository.User {
	t.Helper()
	hash, err := password.Hash(plain)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := repository.User{ID: uuid.New(), Email: email, PasswordHash: hash, IsActive: active}
	if role != "" {
		u.RoleName = &role
	}
	repo.users[u.ID] = u
	return u
}

func TestLoginIssuesAccessToken(t *testing.T) {
	repo := newFakeRepo()
	user := addUser(t, repo, "csm@rivo.test", "correct-horse", "csm", true)
	repo.perms[user.ID] = []string{policy.PermChangeClientStage}
	svc := New(repo, testConfig{}, logger.Discard())

	res, err := svc.Login(context.Background(), " CSM@rivo.test ", "correct-horse")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	parsed, err := jwt.Parse(res.AccessToken, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != user.ID.String() || claims["type"] != "access" {
		t.Fatalf("unexpected claims %v", claims)
	}
	if res.Profile.Role != "csm" || len(res.Profile.Permissions) != 1 {
		t.Fatalf("unexpected profile %+v", res.Profile)
	}
	if len(repo.touched) != 1 {
		t.Fatal("expected last login to be recorded")
	}
}

func TestLoginRejectsBadCredentialsAndInactiveUsers(t *testing.T) {
	repo := newFakeRepo()
	addUser(t, repo, "active@rivo.test", "correct-horse", "", true)
	addUser(t, repo, "gone@rivo.test", "correct-horse", "", false)
	svc := New(repo, testConfig{}, logger.Discard())

	attempts := []struct{ email, pass string }{
		{"active@rivo.test", "wrong-password"},
		{"nobody@rivo.test", "correct-horse"},
		{"gone@rivo.test", "correct-horse"},
	}
	for _, a := range attempts {
		_, err := svc.Login(context.Background(), a.email, a.pass)
		if !apperr.Is(err, apperr.KindUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", a.email, err)
		}
	}
}

func TestLoginUnknownEmailStillComparesPassword(t *testing.T) {
	repo := newFakeRepo()
	addUser(t, repo, "active@rivo.test", "correct-horse", "", true)
	svc := New(repo, testConfig{}, logger.Discard())
	var compared []string
	svc.compareDummy = func(plain string) { compared = append(compared, plain) }

	if _, err := svc.Login(context.Background(), "nobody@rivo.test", "guess"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(compared) != 1 || compared[0] != "guess" {
		t.Fatalf("expected one dummy comparison, got %v", compared)
	}

	if _, err := svc.Login(context.Background(), "active@rivo.test", "wrong"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(compared) != 1 {
		t.Fatal("known users compare against their own hash")
	}
}

func TestSubjectForMissingUserIsInactive(t *testing.T) {
	svc := New(newFakeRepo(), testConfig{}, logger.Discard())
	subject, err := svc.Subject(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject.Active || subject.Can(policy.PermChangeClient) {
		t.Fatal("missing user must not be authorized")
	}
}

func TestCreateUserValidatesAndDetectsDuplicates(t *testing.T) {
	repo := newFakeRepo()
	repo.roles["csm"] = repository.Role{ID: uuid.New(), Name: "csm"}
	svc := New(repo, testConfig{}, logger.Discard())
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, CreateUserInput{Email: "x@rivo.test", Password: "short"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, CreateUserInput{Email: "x@rivo.test", Password: "long-enough", Role: "ghost"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for missing role, got %v", err)
	}

	profile, err := svc.CreateUser(ctx, CreateUserInput{Email: "X@Rivo.test", Password: "long-enough", Role: "csm", FirstName: " Ana "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if profile.Email != "x@rivo.test" || profile.FirstName != "Ana" {
		t.Fatalf("input not normalized: %+v", profile)
	}

	if _, err := svc.CreateUser(ctx, CreateUserInput{Email: "x@rivo.test", Password: "long-enough"}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSyncRolesRejectsUnknownPermission(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, testConfig{}, logger.Discard())

	err := svc.SyncRoles(context.Background(), []RoleSpec{
		{Name: "admin", Permissions: []string{policy.PermChangeClient}},
		{Name: "csm", Permissions: []string{"delete_everything"}},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.roles) != 0 {
		t.Fatal("nothing should be written when validation fails")
	}
}
