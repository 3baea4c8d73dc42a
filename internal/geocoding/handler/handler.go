package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meteo_backend/internal/geocoding/service"
	"meteo_backend/internal/geocoding/transport"
	"meteo_backend/platform/httpkit"
	"meteo_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler exposes city search.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Search handles GET /search-field/?q=...
// The answer is a bare JSON array so the suggestion widget can consume it directly.
func (h *Handler) Search(c *gin.Context) {
	var req transport.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}

	cities, err := h.svc.Search(c.Request.Context(), req.Query)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, cities)
}
