// Package notification provides event handlers that tell staff about client
// lifecycle changes: an email to the CSM on assignment and live dashboard
// updates over SSE. Domain modules only publish events and never see the
// mail transport or the open streams.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"rivo_backend/internal/auth/policy"
	"rivo_backend/internal/clients/domain"
	"rivo_backend/internal/email"
	"rivo_backend/internal/events"
	apphttp "rivo_backend/internal/http"
	"rivo_backend/internal/notification/sse"
	"rivo_backend/platform/config"
	"rivo_backend/platform/httpkit"
	"rivo_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StaffDirectory resolves the recipient of an assignment email.
type StaffDirectory interface {
	GetActiveUser(ctx context.Context, id uuid.UUID) (domain.UserRef, error)
}

// AssignmentReader reports who currently owns a client.
type AssignmentReader interface {
	ActiveAssignee(ctx context.Context, clientID uuid.UUID) (*uuid.UUID, error)
}

// SubjectResolver loads the caller's role for stream scoping.
type SubjectResolver interface {
	Subject(ctx context.Context, userID uuid.UUID) (policy.Subject, error)
}

// Deps are the collaborators owned by other modules.
type Deps struct {
	Users       StaffDirectory
	Assignments AssignmentReader
	Subjects    SubjectResolver
}

// Module handles all notification-related event subscriptions.
type Module struct {
	sender email.Sender
	deps   Deps
	cfg    config.NotificationConfig
	sse    *sse.Service
	log    *logger.Logger
}

// New creates a new notification module.
func New(sender email.Sender, deps Deps, cfg config.NotificationConfig, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	log = log.WithComponent("notification")
	return &Module{
		sender: sender,
		deps:   deps,
		cfg:    cfg,
		sse:    sse.New(log),
		log:    log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the dashboard event stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/dashboard/events", m.sse.Handler(m.resolveViewer))
}

// SSE exposes the stream hub so shutdown can close open connections.
func (m *Module) SSE() *sse.Service { return m.sse }

func (m *Module) resolveViewer(c *gin.Context) (sse.Viewer, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return sse.Viewer{}, false
	}
	subject, err := m.deps.Subjects.Subject(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return sse.Viewer{}, false
	}
	if !subject.Active {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return sse.Viewer{}, false
	}
	if !subject.IsAdmin() && !subject.IsCSM() {
		httpkit.Error(c, http.StatusForbidden, "You do not have permission to perform this action.", nil)
		return sse.Viewer{}, false
	}
	return sse.Viewer{UserID: subject.UserID, Admin: subject.IsAdmin()}, true
}

// RegisterHandlers subscribes the module to client lifecycle events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	events.SubscribeAll(bus, m,
		events.ClientCreated{},
		events.ClientStageChanged{},
		events.ClientAssigned{},
		events.ClientInitialized{},
		events.ClientContextUpdated{},
	)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.ClientCreated:
		m.sse.PublishToAdmins(sse.Event{
			Type:     sse.EventClientCreated,
			ClientID: e.ClientID,
			Message:  e.Name,
			Data:     map[string]string{"source": e.Source},
		}, nil)
		return nil
	case events.ClientStageChanged:
		return m.handleStageChanged(ctx, e)
	case events.ClientAssigned:
		return m.handleClientAssigned(ctx, e)
	case events.ClientInitialized:
		m.sse.PublishToAdmins(sse.Event{Type: sse.EventClientInitialized, ClientID: e.ClientID}, nil)
		return nil
	case events.ClientContextUpdated:
		return m.handleContextUpdated(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleStageChanged(ctx context.Context, e events.ClientStageChanged) error {
	assignee := m.activeAssignee(ctx, e.ClientID)
	to := domain.Stage(e.ToStage)
	m.sse.PublishToAdmins(sse.Event{
		Type:     sse.EventClientStageChanged,
		ClientID: e.ClientID,
		Message:  fmt.Sprintf("Stage updated to %s", to.Label()),
		Data: map[string]string{
			"from": e.FromStage,
			"to":   e.ToStage,
		},
	}, assignee)
	return nil
}

func (m *Module) handleContextUpdated(ctx context.Context, e events.ClientContextUpdated) error {
	m.sse.PublishToAdmins(sse.Event{
		Type:     sse.EventClientContextUpdated,
		ClientID: e.ClientID,
		Data:     map[string]bool{"failed": e.Failed},
	}, m.activeAssignee(ctx, e.ClientID))
	return nil
}

func (m *Module) handleClientAssigned(ctx context.Context, e events.ClientAssigned) error {
	m.sse.PublishToAdmins(sse.Event{
		Type:     sse.EventClientAssigned,
		ClientID: e.ClientID,
		Message:  e.ClientName,
		Data:     map[string]any{"assignedTo": e.AssignedTo},
	}, e.AssignedTo)

	// The intake placeholder has nobody to notify.
	if e.AssignedTo == nil {
		return nil
	}

	csm, err := m.deps.Users.GetActiveUser(ctx, *e.AssignedTo)
	if err != nil {
		return fmt.Errorf("load assignee %s: %w", e.AssignedTo, err)
	}
	if csm.Email == "" {
		m.log.Warn("assignee has no email, skipping notification", slog.String("user_id", csm.ID.String()))
		return nil
	}

	if err := m.sender.SendClientAssignedEmail(ctx, csm.Email, csm.Name(), e.ClientName, m.clientURL(e.ClientID)); err != nil {
		m.log.Error("failed to send client assigned email",
			slog.String("client_id", e.ClientID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}
	m.log.Info("client assigned email sent", slog.String("client_id", e.ClientID.String()))
	return nil
}

func (m *Module) activeAssignee(ctx context.Context, clientID uuid.UUID) *uuid.UUID {
	if m.deps.Assignments == nil {
		return nil
	}
	id, err := m.deps.Assignments.ActiveAssignee(ctx, clientID)
	if err != nil {
		m.log.Warn("assignee lookup failed", slog.String("client_id", clientID.String()), slog.String("error", err.Error()))
		return nil
	}
	return id
}

func (m *Module) clientURL(clientID uuid.UUID) string {
	base := strings.TrimRight(m.cfg.GetAppBaseURL(), "/")
	return fmt.Sprintf("%s/dashboard/client/%s", base, clientID)
}

var (
	_ apphttp.Module = (*Module)(nil)
	_ events.Handler = (*Module)(nil)
)
