package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rivo_backend/internal/clients/domain"
	"rivo_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activeAssignmentIndex = "client_assignments_one_active_idx"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
	q    querier
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

// WithinTx runs fn with a Repository bound to a fresh transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx TxStore) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&Repository{pool: r.pool, q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const clientColumns = `c.id, c.name, c.email, c.phone, c.current_stage, c.context, c.chat_session_id, c.created_at, c.updated_at`

func scanClient(row pgx.Row, extra ...any) (domain.Client, error) {
	var (
		c     domain.Client
		stage string
		ctx   []byte
	)
	dest := append([]any{&c.ID, &c.Name, &c.Email, &c.Phone, &stage, &ctx, &c.ChatSessionID, &c.CreatedAt, &c.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Client{}, ErrNotFound
		}
		return domain.Client{}, err
	}
	c.CurrentStage = domain.Stage(stage)
	c.Context = json.RawMessage(ctx)
	return c, nil
}

func (r *Repository) CreateClient(ctx context.Context, in NewClient) (domain.Client, error) {
	return scanClient(r.q.QueryRow(ctx, `
		INSERT INTO clients AS c (id, name, email, phone, current_stage)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+clientColumns,
		uuid.New(), in.Name, in.Email, in.Phone, string(in.Stage)))
}

func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	return scanClient(r.q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients c WHERE c.id = $1`, id))
}

func (r *Repository) GetClientAssignedTo(ctx context.Context, id, userID uuid.UUID) (domain.Client, error) {
	return scanClient(r.q.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM clients c
		JOIN client_assignments a ON a.client_id = c.id AND a.is_active
		WHERE c.id = $1 AND a.assigned_to = $2
	`, id, userID))
}

func (r *Repository) GetClientBySession(ctx context.Context, sessionID uuid.UUID) (domain.Client, error) {
	return scanClient(r.q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients c WHERE c.chat_session_id = $1`, sessionID))
}

func (r *Repository) ListClients(ctx context.Context) ([]domain.ClientWithAssignee, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+clientColumns+`, u.id, u.email, u.first_name, u.last_name
		FROM clients c
		LEFT JOIN client_assignments a ON a.client_id = c.id AND a.is_active
		LEFT JOIN users u ON u.id = a.assigned_to
		ORDER BY c.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ClientWithAssignee, 0)
	for rows.Next() {
		var (
			userID             *uuid.UUID
			email, first, last *string
		)
		c, err := scanClient(rows, &userID, &email, &first, &last)
		if err != nil {
			return nil, err
		}
		item := domain.ClientWithAssignee{Client: c}
		if userID != nil {
			item.Assignee = &domain.UserRef{ID: *userID, Email: deref(email), FirstName: deref(first), LastName: deref(last)}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Repository) ListClientsAssignedTo(ctx context.Context, userID uuid.UUID) ([]domain.Client, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients c
		JOIN client_assignments a ON a.client_id = c.id AND a.is_active
		WHERE a.assigned_to = $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) ListStageHistory(ctx context.Context, clientID uuid.UUID) ([]domain.StageHistory, error) {
	rows, err := r.q.Query(ctx, `
		SELECT h.id, h.client_id, h.from_stage, h.to_stage, h.remarks, h.created_at,
		       u.id, u.email, u.first_name, u.last_name
		FROM client_stage_history h
		LEFT JOIN users u ON u.id = h.changed_by
		WHERE h.client_id = $1
		ORDER BY h.created_at DESC, h.id
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StageHistory, 0)
	for rows.Next() {
		var (
			h                  domain.StageHistory
			from               *string
			to                 string
			userID             *uuid.UUID
			email, first, last *string
		)
		if err := rows.Scan(&h.ID, &h.ClientID, &from, &to, &h.Remarks, &h.CreatedAt, &userID, &email, &first, &last); err != nil {
			return nil, err
		}
		if from != nil {
			s := domain.Stage(*from)
			h.FromStage = &s
		}
		h.ToStage = domain.Stage(to)
		if userID != nil {
			h.ChangedBy = &domain.UserRef{ID: *userID, Email: deref(email), FirstName: deref(first), LastName: deref(last)}
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *Repository) GetActiveAssignment(ctx context.Context, clientID uuid.UUID) (domain.Assignment, error) {
	var (
		a                  domain.Assignment
		userID             *uuid.UUID
		email, first, last *string
	)
	err := r.q.QueryRow(ctx, `
		SELECT a.id, a.client_id, a.assigned_by, a.is_active, a.remarks, a.created_at,
		       u.id, u.email, u.first_name, u.last_name
		FROM client_assignments a
		LEFT JOIN users u ON u.id = a.assigned_to
		WHERE a.client_id = $1 AND a.is_active
	`, clientID).Scan(&a.ID, &a.ClientID, &a.AssignedBy, &a.IsActive, &a.Remarks, &a.CreatedAt, &userID, &email, &first, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, ErrNotFound
	}
	if err != nil {
		return domain.Assignment{}, err
	}
	if userID != nil {
		a.AssignedTo = &domain.UserRef{ID: *userID, Email: deref(email), FirstName: deref(first), LastName: deref(last)}
	}
	return a, nil
}

// UpsertChatField sets one contact field on the client bound to sessionID,
// creating that client first if needed. The bool reports whether it was created.
func (r *Repository) UpsertChatField(ctx context.Context, sessionID uuid.UUID, field ChatField, value string) (domain.Client, bool, error) {
	switch field {
	case ChatFieldName, ChatFieldEmail, ChatFieldPhone:
	default:
		return domain.Client{}, false, fmt.Errorf("unsupported chat field %q", field)
	}

	col := string(field)
	var inserted bool
	c, err := scanClient(r.q.QueryRow(ctx, `
		INSERT INTO clients AS c (id, chat_session_id, `+col+`)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_session_id) WHERE chat_session_id IS NOT NULL
		DO UPDATE SET `+col+` = EXCLUDED.`+col+`, updated_at = now()
		RETURNING `+clientColumns+`, (c.xmax = 0)
	`, uuid.New(), sessionID, value), &inserted)
	if err != nil {
		return domain.Client{}, false, err
	}
	return c, inserted, nil
}

func (r *Repository) UpdateDetails(ctx context.Context, id uuid.UUID, u DetailsUpdate) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE clients SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			updated_at = now()
		WHERE id = $1
	`, id, u.Name, u.Email, u.Phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteClient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LockClient reads the client and holds its row lock until the transaction ends.
func (r *Repository) LockClient(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	return scanClient(r.q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients c WHERE c.id = $1 FOR UPDATE`, id))
}

func (r *Repository) UpdateStage(ctx context.Context, id uuid.UUID, stage domain.Stage) error {
	tag, err := r.q.Exec(ctx, `UPDATE clients SET current_stage = $2, updated_at = now() WHERE id = $1`, id, string(stage))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateContext(ctx context.Context, id uuid.UUID, value json.RawMessage) error {
	tag, err := r.q.Exec(ctx, `UPDATE clients SET context = $2::jsonb, updated_at = now() WHERE id = $1`, id, string(value))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) InsertStageHistory(ctx context.Context, in NewStageHistory) (domain.StageHistory, error) {
	h := domain.StageHistory{
		ID:        uuid.New(),
		ClientID:  in.ClientID,
		FromStage: in.FromStage,
		ToStage:   in.ToStage,
		Remarks:   in.Remarks,
	}
	if in.ChangedBy != nil {
		h.ChangedBy = &domain.UserRef{ID: *in.ChangedBy}
	}

	var from *string
	if in.FromStage != nil {
		s := string(*in.FromStage)
		from = &s
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO client_stage_history (id, client_id, from_stage, to_stage, changed_by, remarks)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, h.ID, in.ClientID, from, string(in.ToStage), in.ChangedBy, in.Remarks).Scan(&h.CreatedAt)
	return h, err
}

func (r *Repository) HasStageHistory(ctx context.Context, clientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM client_stage_history WHERE client_id = $1)`, clientID).Scan(&exists)
	return exists, err
}

func (r *Repository) DeactivateAssignments(ctx context.Context, clientID uuid.UUID) (int64, error) {
	tag, err := r.q.Exec(ctx, `UPDATE client_assignments SET is_active = false WHERE client_id = $1 AND is_active`, clientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) InsertAssignment(ctx context.Context, in NewAssignment) (domain.Assignment, error) {
	a := domain.Assignment{
		ID:         uuid.New(),
		ClientID:   in.ClientID,
		AssignedBy: in.AssignedBy,
		IsActive:   true,
		Remarks:    in.Remarks,
	}
	if in.AssignedTo != nil {
		a.AssignedTo = &domain.UserRef{ID: *in.AssignedTo}
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO client_assignments (id, client_id, assigned_to, assigned_by, is_active, remarks)
		VALUES ($1, $2, $3, $4, true, $5)
		RETURNING created_at
	`, a.ID, in.ClientID, in.AssignedTo, in.AssignedBy, in.Remarks).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err, activeAssignmentIndex) {
		return domain.Assignment{}, ErrActiveAssignmentExists
	}
	if db.IsForeignKeyViolation(err) {
		return domain.Assignment{}, ErrNotFound
	}
	return a, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
