// Package chat provides the public chat intake bounded context module.
// This file defines the module that encapsulates all chat setup and route registration.
package chat

import (
	"rivo_backend/internal/chat/handler"
	"rivo_backend/internal/chat/repository"
	"rivo_backend/internal/chat/service"
	apphttp "rivo_backend/internal/http"
	"rivo_backend/platform/config"
	"rivo_backend/platform/lock"
	"rivo_backend/platform/logger"
	"rivo_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the chat bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the chat module. followUp may be nil.
func NewModule(pool *pgxpool.Pool, clients service.ClientIntake, locker lock.Locker, followUp service.FollowUp, cfg config.IntakeConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, clients, locker, followUp, service.Config{
		PhoneRegion: cfg.GetPhoneDefaultRegion(),
		LockTimeout: cfg.GetIntakeLockTTL(),
	}, log.WithComponent("chat"))
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "chat"
}

// Service returns the chat intake service.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the chat log for transcript readers (summarizer, archive).
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts the public, rate-limited chat routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/chat")
	group.Use(ctx.PublicRateLimiter.RateLimit())
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
