// Package domain holds the client pipeline model shared by the clients module's layers.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a lead or customer moving through the pipeline.
type Client struct {
	ID            uuid.UUID
	Name          string
	Email         string
	Phone         string
	CurrentStage  Stage
	Context       json.RawMessage
	ChatSessionID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsComplete reports whether name, email and phone are all present.
func (c Client) IsComplete() bool {
	return strings.TrimSpace(c.Name) != "" &&
		strings.TrimSpace(c.Email) != "" &&
		strings.TrimSpace(c.Phone) != ""
}

// UserRef is the minimal view of a staff user attached to history and assignment rows.
type UserRef struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string
}

// Name returns the full name, falling back to the email.
func (u UserRef) Name() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// StageHistory is one immutable stage transition.
type StageHistory struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	FromStage *Stage
	ToStage   Stage
	ChangedBy *UserRef
	Remarks   string
	CreatedAt time.Time
}

// Assignment is one row of the append-only assignment log.
type Assignment struct {
	ID         uuid.UUID
	ClientID   uuid.UUID
	AssignedTo *UserRef
	AssignedBy *uuid.UUID
	IsActive   bool
	Remarks    string
	CreatedAt  time.Time
}

// ClientWithAssignee pairs a client with the user of its active assignment, if any.
type ClientWithAssignee struct {
	Client
	Assignee *UserRef
}

// EmptyContext is the context of a client nobody has summarized yet.
var EmptyContext = json.RawMessage(`{}`)

// Remarks used by chat intake initialization.
const (
	RemarksCollectedViaChat   = "Client information collected via chat."
	RemarksAwaitingAssignment = "Awaiting assignment"
)
