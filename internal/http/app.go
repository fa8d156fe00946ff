// Package http holds the pieces every HTTP-facing module shares: the Module
// contract and the App the router is built from.
package http

import (
	"context"

	"rivo_backend/platform/config"
	"rivo_backend/platform/logger"
)

// RouterConfig is the slice of configuration the router itself reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs GET /api/ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled in cmd/api and handed to router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health may be nil, in which case readiness always succeeds.
	Health  HealthChecker
	Modules []Module
}
