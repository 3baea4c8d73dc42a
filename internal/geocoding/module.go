// Package geocoding provides the city search bounded context module.
package geocoding

import (
	"github.com/redis/go-redis/v9"

	"meteo_backend/internal/geocoding/handler"
	"meteo_backend/internal/geocoding/service"
	apphttp "meteo_backend/internal/http"
	"meteo_backend/platform/config"
	"meteo_backend/platform/logger"
	"meteo_backend/platform/validator"
)

// Module wires the city search routes.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the geocoding module. cache may be nil.
func NewModule(cfg config.GeocodingConfig, cache *redis.Client, val *validator.Validator, log *logger.Logger) *Module {
	upstream := service.NewOpenMeteoClient(cfg, log)
	svc := service.New(upstream, cache, cfg.GetGeocodingCacheTTL(), cfg.GetGeocodingCount(), log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "geocoding"
}

// Service returns the search service for other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the search endpoint at the path the suggestion
// widget queries and under the versioned API.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	limit := ctx.RateLimiter.RateLimit()

	ctx.Engine.GET("/search-field/", limit, m.handler.Search)
	ctx.V1.Group("/geocoding").GET("/search", limit, m.handler.Search)
}

var _ apphttp.Module = (*Module)(nil)
