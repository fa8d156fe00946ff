// Package clients provides the client pipeline bounded context module.
// This file defines the module that encapsulates all clients setup and route registration.
package clients

import (
	"rivo_backend/internal/clients/domain"
	"rivo_backend/internal/clients/handler"
	"rivo_backend/internal/clients/repository"
	"rivo_backend/internal/clients/service"
	"rivo_backend/internal/events"
	apphttp "rivo_backend/internal/http"
	"rivo_backend/platform/logger"
	"rivo_backend/platform/validator"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps are the collaborators owned by other modules.
type Deps struct {
	Users    service.UserDirectory
	Subjects handler.SubjectResolver
	// Transcripts is optional; without it the dashboard omits transcript links.
	Transcripts handler.TranscriptLinker
	// PhoneRegion is the default region for phone numbers without a country prefix.
	PhoneRegion string
}

// Module is the clients bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	dashboard *handler.DashboardHandler
	service   *service.Service
}

// NewModule creates and initializes the clients module with all its dependencies.
func NewModule(pool *pgxpool.Pool, deps Deps, eventBus events.Bus, val *validator.Validator, log *logger.Logger) (*Module, error) {
	if err := val.RegisterValidation("client_stage", func(fl govalidator.FieldLevel) bool {
		return domain.Stage(fl.Field().String()).IsValid()
	}); err != nil {
		return nil, err
	}

	svc := service.New(repository.New(pool), deps.Users, eventBus, log.WithComponent("clients"))
	svc.SetPhoneRegion(deps.PhoneRegion)
	return &Module{
		handler:   handler.New(svc, deps.Subjects, val),
		dashboard: handler.NewDashboard(svc, deps.Subjects, deps.Transcripts, val, log),
		service:   svc,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "clients"
}

// Service returns the client lifecycle service for chat intake and background jobs.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts clients and dashboard routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/clients"))
	m.dashboard.RegisterRoutes(ctx.Protected.Group("/dashboard"))
}

var _ apphttp.Module = (*Module)(nil)
