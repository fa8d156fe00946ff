package repository

import (
	"context"
	"encoding/json"
	"errors"

	"rivo_backend/internal/clients/domain"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrActiveAssignmentExists is returned when the one-active-assignment index rejects an insert.
	ErrActiveAssignmentExists = errors.New("client already has an active assignment")
)

// ChatField names the client columns chat intake may fill.
type ChatField string

const (
	ChatFieldName  ChatField = "name"
	ChatFieldEmail ChatField = "email"
	ChatFieldPhone ChatField = "phone"
)

// NewClient holds the values for a directly created client.
type NewClient struct {
	Name  string
	Email string
	Phone string
	Stage domain.Stage
}

// DetailsUpdate carries optional contact field changes. Nil means unchanged.
type DetailsUpdate struct {
	Name  *string
	Email *string
	Phone *string
}

// IsEmpty reports whether no field is set.
func (u DetailsUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil
}

// NewStageHistory is an entry to append to the stage log.
type NewStageHistory struct {
	ClientID  uuid.UUID
	FromStage *domain.Stage
	ToStage   domain.Stage
	ChangedBy *uuid.UUID
	Remarks   string
}

// NewAssignment is an entry to append to the assignment log.
type NewAssignment struct {
	ClientID   uuid.UUID
	AssignedTo *uuid.UUID
	AssignedBy *uuid.UUID
	Remarks    string
}

// ClientReader is the read side of client storage.
type ClientReader interface {
	GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error)
	GetClientAssignedTo(ctx context.Context, id, userID uuid.UUID) (domain.Client, error)
	GetClientBySession(ctx context.Context, sessionID uuid.UUID) (domain.Client, error)
	ListClients(ctx context.Context) ([]domain.ClientWithAssignee, error)
	ListClientsAssignedTo(ctx context.Context, userID uuid.UUID) ([]domain.Client, error)
	ListStageHistory(ctx context.Context, clientID uuid.UUID) ([]domain.StageHistory, error)
	GetActiveAssignment(ctx context.Context, clientID uuid.UUID) (domain.Assignment, error)
}

// ClientWriter is the write side of client storage outside lifecycle transactions.
type ClientWriter interface {
	CreateClient(ctx context.Context, c NewClient) (domain.Client, error)
	UpsertChatField(ctx context.Context, sessionID uuid.UUID, field ChatField, value string) (domain.Client, bool, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, update DetailsUpdate) error
	DeleteClient(ctx context.Context, id uuid.UUID) error
}

// TxStore is what lifecycle operations may do while holding the client row lock.
type TxStore interface {
	LockClient(ctx context.Context, id uuid.UUID) (domain.Client, error)
	UpdateStage(ctx context.Context, id uuid.UUID, stage domain.Stage) error
	UpdateContext(ctx context.Context, id uuid.UUID, context json.RawMessage) error
	InsertStageHistory(ctx context.Context, h NewStageHistory) (domain.StageHistory, error)
	HasStageHistory(ctx context.Context, clientID uuid.UUID) (bool, error)
	DeactivateAssignments(ctx context.Context, clientID uuid.UUID) (int64, error)
	InsertAssignment(ctx context.Context, a NewAssignment) (domain.Assignment, error)
}

// Transactor runs fn inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx TxStore) error) error
}

var (
	_ ClientReader = (*Repository)(nil)
	_ ClientWriter = (*Repository)(nil)
	_ TxStore      = (*Repository)(nil)
	_ Transactor   = (*Repository)(nil)
)
