// Package service implements the client lifecycle: creation, stage
// transitions, exclusive assignment and chat intake initialization.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"rivo_backend/internal/auth/policy"
	"rivo_backend/internal/clients/domain"
	"rivo_backend/internal/clients/repository"
	"rivo_backend/internal/events"
	"rivo_backend/platform/apperr"
	"rivo_backend/platform/logger"
	"rivo_backend/platform/phone"
	"rivo_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgClientNotFound    = "Client not found"
	msgNotAssignedToYou  = "Client not found or not assigned to you"
	msgInvalidStage      = "Invalid stage"
	msgAssignmentRace    = "client was assigned concurrently, retry"
	msgInvalidEmail      = "invalid email address"
	msgInvalidContextDoc = "context must be a JSON object"
)

// Repository is the storage the lifecycle needs.
type Repository interface {
	repository.ClientReader
	repository.ClientWriter
	repository.Transactor
}

// UserDirectory resolves staff users owned by the auth module.
type UserDirectory interface {
	// GetActiveUser returns an apperr NotFound for missing or inactive users.
	GetActiveUser(ctx context.Context, id uuid.UUID) (domain.UserRef, error)
	// GetActiveCSM returns BadRequest when no csm role exists and NotFound when id is not an active CSM.
	GetActiveCSM(ctx context.Context, id uuid.UUID) (domain.UserRef, error)
	// ListCSMUsers returns active CSMs, empty when the role does not exist.
	ListCSMUsers(ctx context.Context) ([]domain.UserRef, error)
}

type Service struct {
	repo        Repository
	users       UserDirectory
	eventBus    events.Bus
	phoneRegion string
	log         *logger.Logger
}

func New(repo Repository, users UserDirectory, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, users: users, eventBus: eventBus, phoneRegion: phone.DefaultRegion, log: log}
}

// SetPhoneRegion sets the region used for phone numbers without a country prefix.
func (s *Service) SetPhoneRegion(region string) {
	if region != "" {
		s.phoneRegion = region
	}
}

// =============================================================================
// Queries
// =============================================================================

// Get returns a client by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	c, err := s.repo.GetClient(ctx, id)
	return c, mapNotFound(err, msgClientNotFound)
}

// GetForViewer applies dashboard scoping: admins see every client, CSMs only
// clients actively assigned to them.
func (s *Service) GetForViewer(ctx context.Context, id uuid.UUID, viewer policy.Subject) (domain.Client, error) {
	if viewer.IsAdmin() {
		return s.Get(ctx, id)
	}
	if !viewer.IsCSM() {
		return domain.Client{}, apperr.Forbidden("forbidden")
	}
	c, err := s.repo.GetClientAssignedTo(ctx, id, viewer.UserID)
	return c, mapNotFound(err, msgNotAssignedToYou)
}

// List returns every client with its active assignee, newest first.
func (s *Service) List(ctx context.Context) ([]domain.ClientWithAssignee, error) {
	return s.repo.ListClients(ctx)
}

// ListAssignedTo returns the clients actively assigned to userID.
func (s *Service) ListAssignedTo(ctx context.Context, userID uuid.UUID) ([]domain.Client, error) {
	return s.repo.ListClientsAssignedTo(ctx, userID)
}

// History returns the stage log of a client, newest first.
func (s *Service) History(ctx context.Context, clientID uuid.UUID) ([]domain.StageHistory, error) {
	return s.repo.ListStageHistory(ctx, clientID)
}

// ActiveAssignee returns the user the client is currently assigned to, or nil
// when it is unassigned or only holds the pending placeholder.
func (s *Service) ActiveAssignee(ctx context.Context, clientID uuid.UUID) (*uuid.UUID, error) {
	a, err := s.repo.GetActiveAssignment(ctx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if a.AssignedTo == nil {
		return nil, nil
	}
	id := a.AssignedTo.ID
	return &id, nil
}

// ListCSMUsers lists assignable CSMs.
func (s *Service) ListCSMUsers(ctx context.Context) ([]domain.UserRef, error) {
	return s.users.ListCSMUsers(ctx)
}

// =============================================================================
// Direct CRUD
// =============================================================================

// CreateInput holds a directly created client. Stage defaults to lead.
type CreateInput struct {
	Name  string
	Email string
	Phone string
	Stage string
}

// Create inserts a client without writing a stage history row.
func (s *Service) Create(ctx context.Context, in CreateInput, actor *uuid.UUID) (domain.Client, error) {
	stage := domain.DefaultStage
	if strings.TrimSpace(in.Stage) != "" {
		parsed, ok := domain.ParseStage(strings.TrimSpace(in.Stage))
		if !ok {
			return domain.Client{}, apperr.Validation(msgInvalidStage)
		}
		stage = parsed
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.Client{}, err
	}

	c, err := s.repo.CreateClient(ctx, repository.NewClient{
		Name:  sanitize.Line(in.Name),
		Email: email,
		Phone: phone.NormalizeE164(in.Phone, s.phoneRegion),
		Stage: stage,
	})
	if err != nil {
		return domain.Client{}, err
	}

	s.eventBus.Publish(ctx, events.ClientCreated{
		BaseEvent: events.NewBaseEvent(),
		ClientID:  c.ID,
		Name:      c.Name,
		Source:    "api",
		ActorID:   actor,
	})
	return c, nil
}

// UpdateInput is the combined field, stage and assignment update. Nil fields are untouched.
type UpdateInput struct {
	Name     *string
	Email    *string
	Phone    *string
	Stage    *string
	AssignTo *string
	Remarks  string
}

// Update applies contact field changes, then a stage change, then an
// assignment. Stage changes need change_client_stage and assignment needs
// assign_client. An assign_to naming no active user is ignored.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, actor policy.Subject) error {
	var stage domain.Stage
	if in.Stage != nil {
		if !actor.Can(policy.PermChangeClientStage) {
			return apperr.Forbidden("missing permission " + policy.PermChangeClientStage)
		}
		parsed, ok := domain.ParseStage(strings.TrimSpace(*in.Stage))
		if !ok {
			return apperr.Validation(msgInvalidStage)
		}
		stage = parsed
	}
	if in.AssignTo != nil && !actor.Can(policy.PermAssignClient) {
		return apperr.Forbidden("missing permission " + policy.PermAssignClient)
	}

	var update repository.DetailsUpdate
	if in.Phone != nil {
		normalized := phone.NormalizeE164(*in.Phone, s.phoneRegion)
		update.Phone = &normalized
	}
	if in.Name != nil {
		name := sanitize.Line(*in.Name)
		update.Name = &name
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return err
		}
		update.Email = &email
	}

	if update.IsEmpty() {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	} else if err := s.repo.UpdateDetails(ctx, id, update); err != nil {
		return mapNotFound(err, msgClientNotFound)
	}

	actorID := actor.UserID
	if in.Stage != nil {
		if _, err := s.SetStage(ctx, id, stage, &actorID, in.Remarks); err != nil {
			return err
		}
	}

	if in.AssignTo != nil {
		assigneeID, err := uuid.Parse(strings.TrimSpace(*in.AssignTo))
		if err != nil {
			return nil
		}
		if _, err := s.users.GetActiveUser(ctx, assigneeID); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return nil
			}
			return err
		}
		if _, err := s.Assign(ctx, id, &assigneeID, &actorID, in.Remarks); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a client and, by cascade, its history and assignments.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor policy.Subject) error {
	if !actor.Can(policy.PermChangeClient) {
		return apperr.Forbidden("missing permission " + policy.PermChangeClient)
	}
	return mapNotFound(s.repo.DeleteClient(ctx, id), msgClientNotFound)
}

// =============================================================================
// Lifecycle
// =============================================================================

// StageResult reports the outcome of SetStage.
type StageResult struct {
	Client  domain.Client
	Changed bool
	From    domain.Stage
}

// SetStage moves the client to stage. Equal stages write nothing. Otherwise
// one history row is appended and the current stage overwritten, atomically
// with the client row locked.
func (s *Service) SetStage(ctx context.Context, clientID uuid.UUID, stage domain.Stage, actor *uuid.UUID, remarks string) (StageResult, error) {
	if !stage.IsValid() {
		return StageResult{}, apperr.Validation(msgInvalidStage)
	}

	var result StageResult
	err := s.repo.WithinTx(ctx, func(tx repository.TxStore) error {
		c, err := tx.LockClient(ctx, clientID)
		if err != nil {
			return err
		}
		result.Client = c
		result.From = c.CurrentStage
		if c.CurrentStage == stage {
			return nil
		}

		from := c.CurrentStage
		if _, err := tx.InsertStageHistory(ctx, repository.NewStageHistory{
			ClientID:  clientID,
			FromStage: &from,
			ToStage:   stage,
			ChangedBy: actor,
			Remarks:   remarks,
		}); err != nil {
			return fmt.Errorf("insert stage history: %w", err)
		}
		if err := tx.UpdateStage(ctx, clientID, stage); err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		result.Client.CurrentStage = stage
		result.Changed = true
		return nil
	})
	if err != nil {
		return StageResult{}, mapNotFound(err, msgClientNotFound)
	}

	if result.Changed {
		s.log.StageChanged(clientID.String(), string(result.From), string(stage))
		s.eventBus.Publish(ctx, events.ClientStageChanged{
			BaseEvent: events.NewBaseEvent(),
			ClientID:  clientID,
			FromStage: string(result.From),
			ToStage:   string(stage),
			ChangedBy: actor,
			Remarks:   remarks,
		})
	}
	return result, nil
}

// ChangeStageAsStaff is the dashboard stage change: scoped like GetForViewer.
func (s *Service) ChangeStageAsStaff(ctx context.Context, clientID uuid.UUID, stage string, remarks string, actor policy.Subject) (StageResult, error) {
	if _, err := s.GetForViewer(ctx, clientID, actor); err != nil {
		return StageResult{}, err
	}
	parsed, ok := domain.ParseStage(strings.TrimSpace(stage))
	if !ok {
		return StageResult{}, apperr.Validation(msgInvalidStage)
	}
	actorID := actor.UserID
	return s.SetStage(ctx, clientID, parsed, &actorID, remarks)
}

// Assign deactivates the client's active assignment, if any, and inserts a
// new active one for assignee (nil for a pending placeholder). Both writes
// happen in one transaction with the client row locked.
func (s *Service) Assign(ctx context.Context, clientID uuid.UUID, assignee, actor *uuid.UUID, remarks string) (domain.Assignment, error) {
	var (
		assignment domain.Assignment
		client     domain.Client
	)
	err := s.repo.WithinTx(ctx, func(tx repository.TxStore) error {
		c, err := tx.LockClient(ctx, clientID)
		if err != nil {
			return err
		}
		client = c
		assignment, err = assignWithin(ctx, tx, clientID, assignee, actor, remarks)
		return err
	})
	if err != nil {
		return domain.Assignment{}, mapAssignError(err)
	}

	s.publishAssigned(ctx, client, assignment)
	return assignment, nil
}

func assignWithin(ctx context.Context, tx repository.TxStore, clientID uuid.UUID, assignee, actor *uuid.UUID, remarks string) (domain.Assignment, error) {
	if _, err := tx.DeactivateAssignments(ctx, clientID); err != nil {
		return domain.Assignment{}, fmt.Errorf("deactivate assignments: %w", err)
	}
	return tx.InsertAssignment(ctx, repository.NewAssignment{
		ClientID:   clientID,
		AssignedTo: assignee,
		AssignedBy: actor,
		Remarks:    remarks,
	})
}

func (s *Service) publishAssigned(ctx context.Context, c domain.Client, a domain.Assignment) {
	var assignedTo *uuid.UUID
	csm := ""
	if a.AssignedTo != nil {
		id := a.AssignedTo.ID
		assignedTo = &id
		csm = id.String()
	}
	s.log.ClientAssigned(c.ID.String(), csm)
	s.eventBus.Publish(ctx, events.ClientAssigned{
		BaseEvent:  events.NewBaseEvent(),
		ClientID:   c.ID,
		ClientName: c.Name,
		AssignedTo: assignedTo,
		AssignedBy: a.AssignedBy,
		Remarks:    a.Remarks,
	})
}

// AssignToCSM is the admin dashboard assignment: the target must be an active CSM.
func (s *Service) AssignToCSM(ctx context.Context, clientID, csmID uuid.UUID, actor policy.Subject) (domain.UserRef, error) {
	if _, err := s.Get(ctx, clientID); err != nil {
		return domain.UserRef{}, err
	}
	csm, err := s.users.GetActiveCSM(ctx, csmID)
	if err != nil {
		return domain.UserRef{}, err
	}
	actorID := actor.UserID
	if _, err := s.Assign(ctx, clientID, &csm.ID, &actorID, ""); err != nil {
		return domain.UserRef{}, err
	}
	return csm, nil
}

// Initialize promotes a completed chat client to a tracked lead exactly once:
// an initial history row moving it to lead, then a pending assignment. The
// guard (any stage history at all) is checked under the row lock. It returns
// false when the client was already initialized.
func (s *Service) Initialize(ctx context.Context, clientID uuid.UUID, contextDoc json.RawMessage) (bool, error) {
	if len(contextDoc) > 0 && !isJSONObject(contextDoc) {
		return false, apperr.Validation(msgInvalidContextDoc)
	}

	var (
		client     domain.Client
		assignment domain.Assignment
		from       domain.Stage
	)
	initialized := false
	err := s.repo.WithinTx(ctx, func(tx repository.TxStore) error {
		c, err := tx.LockClient(ctx, clientID)
		if err != nil {
			return err
		}
		seen, err := tx.HasStageHistory(ctx, clientID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}

		if len(contextDoc) > 0 && string(contextDoc) != "{}" {
			if err := tx.UpdateContext(ctx, clientID, contextDoc); err != nil {
				return err
			}
			c.Context = contextDoc
		}

		var fromStage *domain.Stage
		if c.CurrentStage != domain.StageLead {
			prev := c.CurrentStage
			fromStage = &prev
		}
		if _, err := tx.InsertStageHistory(ctx, repository.NewStageHistory{
			ClientID:  clientID,
			FromStage: fromStage,
			ToStage:   domain.StageLead,
			Remarks:   domain.RemarksCollectedViaChat,
		}); err != nil {
			return fmt.Errorf("insert stage history: %w", err)
		}
		if c.CurrentStage != domain.StageLead {
			if err := tx.UpdateStage(ctx, clientID, domain.StageLead); err != nil {
				return err
			}
		}
		from = c.CurrentStage
		c.CurrentStage = domain.StageLead

		assignment, err = assignWithin(ctx, tx, clientID, nil, nil, domain.RemarksAwaitingAssignment)
		if err != nil {
			return err
		}
		client = c
		initialized = true
		return nil
	})
	if err != nil {
		return false, mapAssignError(err)
	}
	if !initialized {
		return false, nil
	}

	s.log.StageChanged(clientID.String(), string(from), string(domain.StageLead))
	s.eventBus.Publish(ctx, events.ClientStageChanged{
		BaseEvent: events.NewBaseEvent(),
		ClientID:  clientID,
		FromStage: string(from),
		ToStage:   string(domain.StageLead),
		Remarks:   domain.RemarksCollectedViaChat,
	})
	s.publishAssigned(ctx, client, assignment)

	initEvent := events.ClientInitialized{BaseEvent: events.NewBaseEvent(), ClientID: clientID}
	if client.ChatSessionID != nil {
		initEvent.SessionID = *client.ChatSessionID
	}
	s.eventBus.Publish(ctx, initEvent)
	return true, nil
}

// SetContext stores a summarizer result on the client.
func (s *Service) SetContext(ctx context.Context, clientID uuid.UUID, contextDoc json.RawMessage) error {
	if !isJSONObject(contextDoc) {
		return apperr.Validation(msgInvalidContextDoc)
	}
	err := s.repo.WithinTx(ctx, func(tx repository.TxStore) error {
		return tx.UpdateContext(ctx, clientID, contextDoc)
	})
	return mapNotFound(err, msgClientNotFound)
}

// =============================================================================
// Chat intake support
// =============================================================================

// RecordChatField stores one intake field on the session's client, creating
// the client on the first field. Email must parse and is lowercased.
func (s *Service) RecordChatField(ctx context.Context, sessionID uuid.UUID, field repository.ChatField, value string) (domain.Client, error) {
	switch field {
	case repository.ChatFieldEmail:
		email, err := normalizeEmail(value)
		if err != nil {
			return domain.Client{}, err
		}
		value = email
	case repository.ChatFieldName:
		value = sanitize.Line(value)
	default:
		value = strings.TrimSpace(value)
	}
	if value == "" {
		return domain.Client{}, apperr.Validation(fmt.Sprintf("%s must not be blank", field))
	}

	c, created, err := s.repo.UpsertChatField(ctx, sessionID, field, value)
	if err != nil {
		return domain.Client{}, err
	}
	if created {
		s.eventBus.Publish(ctx, events.ClientCreated{
			BaseEvent: events.NewBaseEvent(),
			ClientID:  c.ID,
			Name:      c.Name,
			Source:    "chat",
		})
	}
	return c, nil
}

// ClientForSession returns the client bound to a chat session, if any.
func (s *Service) ClientForSession(ctx context.Context, sessionID uuid.UUID) (*domain.Client, error) {
	c, err := s.repo.GetClientBySession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// =============================================================================
// helpers
// =============================================================================

func normalizeEmail(raw string) (string, error) {
	email := sanitize.Email(raw)
	if email == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation(msgInvalidEmail)
	}
	return email, nil
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]any
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}

func mapNotFound(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}

func mapAssignError(err error) error {
	switch {
	case errors.Is(err, repository.ErrActiveAssignmentExists):
		return apperr.Conflict(msgAssignmentRace)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(msgClientNotFound)
	default:
		return err
	}
}
