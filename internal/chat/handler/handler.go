package handler

import (
	"net/http"
	"strings"

	"rivo_backend/internal/chat/repository"
	"rivo_backend/internal/chat/service"
	"rivo_backend/internal/chat/transport"
	"rivo_backend/platform/httpkit"
	"rivo_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the public chat endpoints on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/stream", h.Send)
	rg.GET("/history", h.History)
}

func (h *Handler) Send(c *gin.Context) {
	var req transport.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	// uuid.Parse accepts either case, so the widget may send uppercase ids.
	sessionID, err := uuid.Parse(strings.TrimSpace(req.SessionID))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "session_id must be a valid UUID", nil)
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), service.SendInput{
		SessionID:  sessionID,
		Message:    req.Message,
		SenderType: req.SenderType,
		DataType:   req.DataType,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, toMessageResponse(msg))
}

func (h *Handler) History(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("session_id"))
	if raw == "" {
		httpkit.Error(c, http.StatusBadRequest, "session_id is required", nil)
		return
	}
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "session_id must be a valid UUID", nil)
		return
	}

	messages, err := h.svc.History(c.Request.Context(), sessionID)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageResponse(m))
	}
	httpkit.OK(c, transport.HistoryResponse{SessionID: sessionID.String(), Messages: out})
}

func toMessageResponse(m repository.Message) transport.MessageResponse {
	return transport.MessageResponse{
		ID:         m.ID.String(),
		SessionID:  m.SessionID.String(),
		Message:    m.Message,
		SenderType: m.SenderType,
		DataType:   m.DataType,
		SentAt:     m.SentAt,
	}
}
