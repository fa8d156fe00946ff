package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"rivo_backend/internal/auth/policy"
	"rivo_backend/internal/clients/domain"
	"rivo_backend/internal/clients/service"
	"rivo_backend/internal/clients/transport"
	"rivo_backend/platform/httpkit"
	"rivo_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidClientID  = "invalid client id"
)

// SubjectResolver loads the caller's current role and permissions.
type SubjectResolver interface {
	Subject(ctx context.Context, userID uuid.UUID) (policy.Subject, error)
}

// Handler serves the /clients resource.
type Handler struct {
	svc      *service.Service
	subjects SubjectResolver
	val      *validator.Validator
}

func New(svc *service.Service, subjects SubjectResolver, val *validator.Validator) *Handler {
	return &Handler{svc: svc, subjects: subjects, val: val}
}

// RegisterRoutes mounts the client routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

func (h *Handler) List(c *gin.Context) {
	if _, ok := resolveSubject(c, h.subjects); !ok {
		return
	}

	rows, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.ClientListItem, 0, len(rows))
	for _, row := range rows {
		var assignedTo *string
		if row.Assignee != nil {
			email := row.Assignee.Email
			assignedTo = &email
		}
		items = append(items, transport.ClientListItem{
			ID:         row.ID.String(),
			Name:       row.Name,
			Email:      row.Email,
			Phone:      row.Phone,
			Stage:      string(row.CurrentStage),
			AssignedTo: assignedTo,
			Context:    contextOrEmpty(row.Context),
		})
	}
	httpkit.OK(c, transport.ClientListResponse{Clients: items, Stages: domain.StageChoices()})
}

func (h *Handler) Create(c *gin.Context) {
	subject, ok := resolveSubject(c, h.subjects)
	if !ok {
		return
	}

	var req transport.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	actor := subject.UserID
	client, err := h.svc.Create(c.Request.Context(), service.CreateInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Stage: req.Stage,
	}, &actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.CreateClientResponse{ID: client.ID.String()})
}

func (h *Handler) Get(c *gin.Context) {
	if _, ok := resolveSubject(c, h.subjects); !ok {
		return
	}
	id, ok := parseClientID(c)
	if !ok {
		return
	}

	client, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	history, err := h.svc.History(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.HistoryItem, 0, len(history))
	for _, entry := range history {
		item := transport.HistoryItem{
			From: stagePtr(entry.FromStage),
			To:   string(entry.ToStage),
			At:   entry.CreatedAt,
		}
		if entry.ChangedBy != nil {
			email := entry.ChangedBy.Email
			item.By = &email
		}
		items = append(items, item)
	}

	httpkit.OK(c, transport.ClientDetailResponse{
		Client: transport.ClientBody{
			ID:      client.ID.String(),
			Name:    client.Name,
			Email:   client.Email,
			Phone:   client.Phone,
			Stage:   string(client.CurrentStage),
			Context: contextOrEmpty(client.Context),
		},
		History: items,
		Stages:  domain.StageChoices(),
	})
}

func (h *Handler) Update(c *gin.Context) {
	subject, ok := resolveSubject(c, h.subjects)
	if !ok {
		return
	}
	id, ok := parseClientID(c)
	if !ok {
		return
	}

	var req transport.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	err := h.svc.Update(c.Request.Context(), id, service.UpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Stage:    req.Stage,
		AssignTo: req.AssignTo,
		Remarks:  req.Remarks,
	}, subject)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.MessageResponse{Message: "Updated"})
}

func (h *Handler) Delete(c *gin.Context) {
	subject, ok := resolveSubject(c, h.subjects)
	if !ok {
		return
	}
	id, ok := parseClientID(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), id, subject)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// resolveSubject loads the caller's policy subject, answering 401 for
// unauthenticated or deactivated callers.
func resolveSubject(c *gin.Context, subjects SubjectResolver) (policy.Subject, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return policy.Subject{}, false
	}
	subject, err := subjects.Subject(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return policy.Subject{}, false
	}
	if !subject.Active {
		httpkit.Error(c, http.StatusUnauthorized, "account is inactive", nil)
		return policy.Subject{}, false
	}
	return subject, true
}

func parseClientID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidClientID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func stagePtr(s *domain.Stage) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func contextOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return domain.EmptyContext
	}
	return raw
}
