package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rivo_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	RoleID       *uuid.UUID
	RoleName     *string
	IsActive     bool
	IsSuperuser  bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role returns the role name or "".
func (u User) Role() string {
	if u.RoleName == nil {
		return ""
	}
	return *u.RoleName
}

type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
	Permissions []string
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	RoleName     *string
	IsSuperuser  bool
}

const userColumns = `
	u.id, u.email, u.password_hash, u.first_name, u.last_name, u.phone,
	u.role_id, r.name, u.is_active, u.is_superuser, u.last_login_at, u.created_at, u.updated_at`

const userFrom = `FROM users u LEFT JOIN roles r ON r.id = u.role_id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&u.RoleID, &u.RoleName, &u.IsActive, &u.IsSuperuser, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *Repository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	var roleID *uuid.UUID
	if params.RoleName != nil {
		role, err := r.GetRoleByName(ctx, *params.RoleName)
		if err != nil {
			return User{}, fmt.Errorf("role %q: %w", *params.RoleName, err)
		}
		roleID = &role.ID
	}

	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, role_id, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, params.Email, params.PasswordHash, params.FirstName, params.LastName, params.Phone, roleID, params.IsSuperuser)
	if db.IsUniqueViolation(err, "users_email_lower_idx") {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}
	return r.GetUserByID(ctx, id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` `+userFrom+` WHERE lower(u.email) = lower($1)`, email))
}

func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` `+userFrom+` WHERE u.id = $1`, userID))
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` `+userFrom+` ORDER BY u.email`)
}

func (r *Repository) ListActiveUsersByRole(ctx context.Context, roleName string) ([]User, error) {
	return r.queryUsers(ctx, `
		SELECT `+userColumns+` `+userFrom+`
		WHERE u.is_active AND lower(r.name) = lower($1)
		ORDER BY u.first_name, u.last_name, u.email
	`, roleName)
}

func (r *Repository) queryUsers(ctx context.Context, sql string, args ...any) ([]User, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetPermissions returns the union of role and direct permission codenames.
func (r *Repository) GetPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.codename
		FROM users u JOIN role_permissions rp ON rp.role_id = u.role_id
		WHERE u.id = $1
		UNION
		SELECT up.codename FROM user_permissions up WHERE up.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *Repository) SetUserRole(ctx context.Context, userID uuid.UUID, roleName *string) error {
	var roleID *uuid.UUID
	if roleName != nil {
		role, err := r.GetRoleByName(ctx, *roleName)
		if err != nil {
			return err
		}
		roleID = &role.ID
	}
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = now() WHERE id = $1`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetUserPermissions(ctx context.Context, userID uuid.UUID, codenames []string) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, codename := range codenames {
		if _, err = tx.Exec(ctx, `INSERT INTO user_permissions (user_id, codename) VALUES ($1, $2)`, userID, codename); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) TouchLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, userID)
	return err
}

func (r *Repository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT r.id, r.name, r.description,
		       COALESCE(array_agg(rp.codename ORDER BY rp.codename) FILTER (WHERE rp.codename IS NOT NULL), '{}')
		FROM roles r LEFT JOIN role_permissions rp ON rp.role_id = r.id
		WHERE lower(r.name) = lower($1)
		GROUP BY r.id
	`, name).Scan(&role.ID, &role.Name, &role.Description, &role.Permissions)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return role, err
}

func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.description,
		       COALESCE(array_agg(rp.codename ORDER BY rp.codename) FILTER (WHERE rp.codename IS NOT NULL), '{}')
		FROM roles r LEFT JOIN role_permissions rp ON rp.role_id = r.id
		GROUP BY r.id
		ORDER BY r.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]Role, 0)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.Permissions); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// UpsertRole creates the role or updates its description, then replaces its permission set.
func (r *Repository) UpsertRole(ctx context.Context, role Role) (_ Role, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Role{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO roles (id, name, description) VALUES ($1, $2, $3)
		ON CONFLICT ((lower(name))) DO UPDATE SET description = EXCLUDED.description
		RETURNING id
	`, uuid.New(), role.Name, role.Description).Scan(&id)
	if err != nil {
		return Role{}, err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return Role{}, err
	}
	for _, codename := range role.Permissions {
		if _, err = tx.Exec(ctx, `INSERT INTO role_permissions (role_id, codename) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, codename); err != nil {
			return Role{}, err
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return Role{}, err
	}

	role.ID = id
	return role, nil
}
