package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sender types.
const (
	SenderBot    = "bot"
	SenderClient = "client"
)

// Data types. Anything other than DataMessage tags the message as a client field.
const (
	DataMessage = "message"
	DataName    = "name"
	DataEmail   = "email"
	DataPhone   = "phone"
)

// Message is one stored chat line.
type Message struct {
	ID         uuid.UUID  `db:"id"`
	SessionID  uuid.UUID  `db:"session_id"`
	ClientID   *uuid.UUID `db:"client_id"`
	Message    string     `db:"message"`
	SenderType string     `db:"sender_type"`
	DataType   string     `db:"data_type"`
	SentAt     time.Time  `db:"sent_at"`
}

// NewMessage is a chat line to append.
type NewMessage struct {
	SessionID  uuid.UUID
	ClientID   *uuid.UUID
	Message    string
	SenderType string
	DataType   string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const messageColumns = `id, session_id, client_id, message, sender_type, data_type, sent_at`

// Insert appends a message to the session log.
func (r *Repository) Insert(ctx context.Context, in NewMessage) (Message, error) {
	rows, err := r.pool.Query(ctx, `
		INSERT INTO chat_history (id, session_id, client_id, message, sender_type, data_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+messageColumns,
		uuid.New(), in.SessionID, in.ClientID, in.Message, in.SenderType, in.DataType,
	)
	if err != nil {
		return Message{}, err
	}
	return pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Message])
}

// ListBySession returns a session's messages in send order.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat_history
		WHERE session_id = $1
		ORDER BY sent_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Message])
}

// LinkSession attaches every unlinked message of a session to clientID.
func (r *Repository) LinkSession(ctx context.Context, sessionID, clientID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chat_history SET client_id = $2
		WHERE session_id = $1 AND client_id IS NULL`, sessionID, clientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
