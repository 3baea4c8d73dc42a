// Package weather provides the weather search bounded context module.
package weather

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	apphttp "meteo_backend/internal/http"
	"meteo_backend/internal/weather/handler"
	"meteo_backend/internal/weather/repository"
	"meteo_backend/internal/weather/service"
	"meteo_backend/platform/config"
	"meteo_backend/platform/logger"
)

// Module is the weather bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the weather module on top of a city resolver. Without
// a Redis client anonymous visitors get no history.
func NewModule(pool *pgxpool.Pool, sessionCache *redis.Client, resolver service.CityResolver, cfg config.WeatherConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)

	var sessions repository.SessionStore
	if sessionCache != nil {
		sessions = repository.NewRedisSessions(sessionCache, service.SessionTTL, service.HistoryLimit)
	}

	svc := service.New(resolver, service.NewForecastClient(cfg, log), repo, sessions, log)
	return &Module{handler: handler.New(svc)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "weather"
}

// RegisterRoutes mounts weather routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	limit := ctx.RateLimiter.RateLimit()

	public := ctx.V1.Group("/weather")
	public.GET("/search", limit, m.handler.Search)
	public.GET("/stats/cities", m.handler.CityStats)
	public.GET("/history", m.handler.History)
}

var _ apphttp.Module = (*Module)(nil)
