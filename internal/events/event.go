// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/google/uuid"

	"rivo_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent = events.NewBaseEvent
	SubscribeAll = events.SubscribeAll
)

// =============================================================================
// Clients Domain Events
// =============================================================================

// ClientCreated is published when a client row is inserted, directly or by chat intake.
type ClientCreated struct {
	BaseEvent
	ClientID uuid.UUID  `json:"clientId"`
	Name     string     `json:"name"`
	Source   string     `json:"source"`
	ActorID  *uuid.UUID `json:"actorId,omitempty"`
}

func (e ClientCreated) EventName() string { return "clients.client.created" }

// ClientStageChanged is published after a stage transition has been committed.
type ClientStageChanged struct {
	BaseEvent
	ClientID  uuid.UUID  `json:"clientId"`
	FromStage string     `json:"fromStage"`
	ToStage   string     `json:"toStage"`
	ChangedBy *uuid.UUID `json:"changedBy,omitempty"`
	Remarks   string     `json:"remarks,omitempty"`
}

func (e ClientStageChanged) EventName() string { return "clients.stage.changed" }

// ClientAssigned is published after a new active assignment has been committed.
// AssignedTo is nil for the pending placeholder created by intake.
type ClientAssigned struct {
	BaseEvent
	ClientID   uuid.UUID  `json:"clientId"`
	ClientName string     `json:"clientName"`
	AssignedTo *uuid.UUID `json:"assignedTo,omitempty"`
	AssignedBy *uuid.UUID `json:"assignedBy,omitempty"`
	Remarks    string     `json:"remarks,omitempty"`
}

func (e ClientAssigned) EventName() string { return "clients.client.assigned" }

// ClientInitialized is published once chat intake has promoted a session to a tracked lead.
type ClientInitialized struct {
	BaseEvent
	ClientID  uuid.UUID `json:"clientId"`
	SessionID uuid.UUID `json:"sessionId"`
}

func (e ClientInitialized) EventName() string { return "clients.client.initialized" }

// ClientContextUpdated is published when the summarizer stores a new context blob.
type ClientContextUpdated struct {
	BaseEvent
	ClientID uuid.UUID `json:"clientId"`
	Failed   bool      `json:"failed"`
}

func (e ClientContextUpdated) EventName() string { return "clients.context.updated" }
