// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"meteo_backend/platform/config"
	"meteo_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes using the shared RouterContext.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for routes outside /api/v1.
	Engine *gin.Engine
	// V1 is the /api/v1 route group. Requests carrying a bearer token are
	// identified, anonymous requests pass through.
	V1 *gin.RouterGroup
	// Protected is the /api/v1 group that requires a valid access token.
	Protected *gin.RouterGroup
	// Config is the JWT configuration for auth middleware (scoped access).
	Config config.JWTConfig
	// RateLimiter is the per-IP limiter for upstream-backed routes.
	RateLimiter *httpkit.IPRateLimiter
}
