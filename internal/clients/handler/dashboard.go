package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"rivo_backend/internal/clients/domain"
	"rivo_backend/internal/clients/service"
	"rivo_backend/internal/clients/transport"
	"rivo_backend/platform/httpkit"
	"rivo_backend/platform/logger"
	"rivo_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgForbidden = "You do not have permission to perform this action."

// TranscriptLinker returns a short-lived link to a client's archived chat
// transcript, or "" when none is archived.
type TranscriptLinker interface {
	TranscriptURL(ctx context.Context, client domain.Client) (string, error)
}

// DashboardHandler serves the role-scoped staff dashboard API.
type DashboardHandler struct {
	svc         *service.Service
	subjects    SubjectResolver
	transcripts TranscriptLinker
	val         *validator.Validator
	log         *logger.Logger
}

func NewDashboard(svc *service.Service, subjects SubjectResolver, transcripts TranscriptLinker, val *validator.Validator, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, subjects: subjects, transcripts: transcripts, val: val, log: log}
}

// RegisterRoutes mounts the dashboard routes on an authenticated group.
func (h *DashboardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.GET("/clients", h.AdminClients)
	admin.GET("/csm-users", h.CSMUsers)
	admin.POST("/assign", h.Assign)

	rg.GET("/csm/clients", h.CSMClients)
	rg.GET("/client/:id", h.ClientDetail)
	rg.POST("/client/:id/stage", h.ChangeStage)
}

func (h *DashboardHandler) AdminClients(c *gin.Context) {
	subject, ok := resolveSubject(c, h.subjects)
	if !ok {
		return
	}
	if !subject.IsAdmin() {
		httpkit.Error(c, http.StatusForbidden, msgForbidden, nil)
		return
	}

	rows, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.AdminClientItem, 0, len(rows))
	for _, row := range rows {
		item := transport.AdminClientItem{
			ID:           row.ID.String(),
			Name:         row.Name,
			Email:        row.Email,
			Phone:        row.Phone,
			Stage:        string(row.CurrentStage),
			StageDisplay: row.CurrentStage.Label(),
			CreatedAt:    row.CreatedAt,
		}
		if row.Assignee != nil {
			summary := toUserSummary(*row.Assignee)
			item.AssignedTo = &summary
		}
		items = append(items, item)
	}
	httpkit.OK(c, transport.AdminClientsResponse{Clients: items})
}

func (h *DashboardHandler) CSMUsers(c *gin.Context) {
	subject, ok := resolveSubject(c, h.subjects)
	if !ok {
		return
	}
	if !subject.IsAdmin() {
		httpkit.Error(c, http.StatusForbidden, msgForbidden, nil)
		return
	}

	users, err := h.svc.ListCSMUsers(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, toUserSummary(u))
	}
	httpkit.OK(c, transport.CSMUsersResponse{CSMUsers: out})
}

func (h *DashboardHandler) Assign(c *gin.Context) {
	subject, ok := resolveSubject(c, h.subjects)
	if !ok {
		return
	}
	if !subject.IsAdmin() {
		httpkit.Error(c, http.StatusForbidden, msgForbidden, nil)
		return
	}

	var req transport.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.CSMID) == "" {
		httpkit.Error(c, http.StatusBadRequest, "client_id and csm_id required", nil)
		return
	}
	clientID, err := uuid.Parse(strings.TrimSpace(req.ClientID))
	if err != nil {
		httpkit.Error(c, http.StatusNotFound, "Client not found", nil)
		return
	}
	csmID, err := uuid.Parse(strings.TrimSpace(req.CSMID))
	if err != nil {
		httpkit.Error(c, http.StatusNotFound, "CSM user not found", nil)
		return
	}

	csm, err := h.svc.AssignToCSM(c.Request.Context(), clientID, csmID, subject)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.MessageResponse{Message: fmt.Sprintf("Client assigned to %s", csm.Name())})
}

func (h *DashboardHandler) CSMClients(c *gin.Context) {
	subject, ok := resolveSubject(c, h.subjects)
	if !ok {
		return
	}
	if !subject.IsCSM() {
		httpkit.Error(c, http.StatusForbidden, msgForbidden, nil)
		return
	}

	clients, err := h.svc.ListAssignedTo(c.Request.Context(), subject.UserID)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.DashboardClient, 0, len(clients))
	for _, client := range clients {
		out = append(out, toDashboardClient(client))
	}
	httpkit.OK(c, transport.CSMClientsResponse{Clients: out})
}

func (h *DashboardHandler) ClientDetail(c *gin.Context) {
	subject, ok := resolveSubject(c, h.subjects)
	if !ok {
		return
	}
	if !subject.IsStaff() {
		httpkit.Error(c, http.StatusForbidden, msgForbidden, nil)
		return
	}
	id, ok := parseClientID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	client, err := h.svc.GetForViewer(ctx, id, subject)
	if httpkit.HandleError(c, err) {
		return
	}
	history, err := h.svc.History(ctx, id)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.StageHistoryItem, 0, len(history))
	for _, entry := range history {
		item := transport.StageHistoryItem{
			FromStage: stagePtr(entry.FromStage),
			ToStage:   string(entry.ToStage),
			Remarks:   entry.Remarks,
			CreatedAt: entry.CreatedAt,
		}
		if entry.ChangedBy != nil {
			name := entry.ChangedBy.Name()
			item.ChangedBy = &name
		}
		items = append(items, item)
	}

	resp := transport.DashboardDetailResponse{
		Client:       toDashboardClient(client),
		StageHistory: items,
		StageChoices: domain.StageChoices(),
	}
	if h.transcripts != nil {
		url, err := h.transcripts.TranscriptURL(ctx, client)
		if err != nil {
			h.log.WithContext(ctx).Warn("transcript link unavailable", "client_id", client.ID.String(), "error", err.Error())
		}
		resp.TranscriptURL = url
	}
	httpkit.OK(c, resp)
}

func (h *DashboardHandler) ChangeStage(c *gin.Context) {
	subject, ok := resolveSubject(c, h.subjects)
	if !ok {
		return
	}
	if !subject.IsStaff() {
		httpkit.Error(c, http.StatusForbidden, msgForbidden, nil)
		return
	}
	id, ok := parseClientID(c)
	if !ok {
		return
	}

	var req transport.ChangeStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.ChangeStageAsStaff(c.Request.Context(), id, req.NewStage, req.Remarks, subject)
	if httpkit.HandleError(c, err) {
		return
	}
	stage := result.Client.CurrentStage
	httpkit.OK(c, transport.ChangeStageResponse{
		Message: fmt.Sprintf("Stage updated to %s", stage.Label()),
		Stage:   string(stage),
	})
}

func toUserSummary(u domain.UserRef) transport.UserSummary {
	return transport.UserSummary{ID: u.ID.String(), Name: u.Name(), Email: u.Email}
}

func toDashboardClient(c domain.Client) transport.DashboardClient {
	return transport.DashboardClient{
		ID:           c.ID.String(),
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Stage:        string(c.CurrentStage),
		StageDisplay: c.CurrentStage.Label(),
		Context:      contextOrEmpty(c.Context),
		CreatedAt:    c.CreatedAt,
	}
}
