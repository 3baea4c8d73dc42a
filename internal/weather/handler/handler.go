package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"meteo_backend/internal/weather/service"
	"meteo_backend/internal/weather/transport"
	"meteo_backend/platform/httpkit"
)

const (
	msgInvalidRequest = "invalid request"

	// SessionCookie carries the anonymous visitor's history session.
	SessionCookie = "meteo_session"
)

// Handler handles HTTP requests for weather search.
type Handler struct {
	svc *service.Service
}

// New creates a new weather handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Search resolves the city from the form and returns its forecast.
// GET /api/v1/weather/search
func (h *Handler) Search(c *gin.Context) {
	var req transport.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var caller service.Caller
	newSession := false
	if id, ok := userID(c); ok {
		caller.UserID = &id
	} else {
		caller.SessionID = sessionID(c)
		if caller.SessionID == "" {
			caller.SessionID = uuid.NewString()
			newSession = true
		}
	}

	result, err := h.svc.Search(c.Request.Context(), req, caller)
	if httpkit.HandleError(c, err) {
		return
	}
	if newSession {
		setSession(c, caller.SessionID)
	}
	httpkit.OK(c, result)
}

// History lists the caller's recent searches: the stored history for a
// signed-in user, the session history otherwise.
// GET /api/v1/weather/history
func (h *Handler) History(c *gin.Context) {
	var (
		items []transport.HistoryItem
		err   error
	)
	if id, ok := userID(c); ok {
		items, err = h.svc.History(c.Request.Context(), id)
	} else {
		items, err = h.svc.SessionHistory(c.Request.Context(), sessionID(c))
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, items)
}

// CityStats counts searches per city.
// GET /api/v1/weather/stats/cities
func (h *Handler) CityStats(c *gin.Context) {
	stats, err := h.svc.CityStats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

func userID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.GetIdentity(c)
	if identity == nil || !identity.IsAuthenticated() {
		return uuid.Nil, false
	}
	return identity.UserID(), true
}

// sessionID returns the session from the cookie, or "" when the cookie is
// missing or not one we issued.
func sessionID(c *gin.Context) string {
	raw, err := c.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return ""
	}
	return id.String()
}

func setSession(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, int(service.SessionTTL.Seconds()), "/", "", c.Request.TLS != nil, true)
}
