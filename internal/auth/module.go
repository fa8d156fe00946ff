// Package auth provides the authentication bounded context module.
// This file defines the module that encapsulates all auth setup and route registration.
package auth

import (
	"rivo_backend/internal/auth/handler"
	"rivo_backend/internal/auth/repository"
	"rivo_backend/internal/auth/service"
	apphttp "rivo_backend/internal/http"
	"rivo_backend/platform/config"
	"rivo_backend/platform/logger"
	"rivo_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, log *logger.Logger, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool), cfg, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Service returns the auth service for use by adapters and operator tooling.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// /account/login is the path the staff dashboard has always posted to.
	for _, prefix := range []string{"/auth", "/account"} {
		group := ctx.V1.Group(prefix)
		group.Use(ctx.AuthRateLimiter.RateLimit())
		m.handler.RegisterRoutes(group)
	}

	ctx.Protected.GET("/users/me", m.handler.GetMe)
}

var _ apphttp.Module = (*Module)(nil)
