package handler

import (
	"net/http"

	"rivo_backend/internal/auth"
	"rivo_backend/internal/auth/policy"
	"rivo_backend/internal/auth/service"
	"rivo_backend/internal/auth/transport"
	"rivo_backend/platform/httpkit"
	"rivo_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the login endpoint on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
}

func (h *Handler) Login(c *gin.Context) {
	var req transport.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "email and password are required", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.LoginResponse{
		Token: result.AccessToken,
		User: transport.UserSummary{
			ID:    result.Profile.ID.String(),
			Email: result.Profile.Email,
			Name:  result.Profile.Name(),
			Role:  loginRole(result.Profile),
		},
	})
}

// loginRole reports superusers without a role as "admin" and roleless users as null.
func loginRole(p auth.Profile) *string {
	role := p.Role
	if role == "" && p.IsSuperuser {
		role = policy.RoleAdmin
	}
	if role == "" {
		return nil
	}
	return &role
}

func (h *Handler) GetMe(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	profile, err := h.svc.GetMe(c.Request.Context(), id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toProfileResponse(profile))
}

func toProfileResponse(p auth.Profile) transport.ProfileResponse {
	perms := p.Permissions
	if perms == nil {
		perms = []string{}
	}
	return transport.ProfileResponse{
		ID:          p.ID.String(),
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Phone:       p.Phone,
		Role:        p.Role,
		IsSuperuser: p.IsSuperuser,
		Permissions: perms,
		LastLoginAt: p.LastLoginAt,
		CreatedAt:   p.CreatedAt,
	}
}
