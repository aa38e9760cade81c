package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockwarehouse/internal/models"
	"stockwarehouse/internal/repository"
)

// AdminHandler serves warehouse metadata and health endpoints.
type AdminHandler struct {
	queries *repository.QueryRepository
	sources *repository.SourceRepository
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(queries *repository.QueryRepository, sources *repository.SourceRepository) *AdminHandler {
	return &AdminHandler{
		queries: queries,
		sources: sources,
	}
}

// Health handles GET /health
func (h *AdminHandler) Health(c *gin.Context) {
	counters, err := h.queries.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"time":       time.Now().UTC().Format(time.RFC3339),
		"warehouse":  counters,
	})
}

// Sources handles GET /sources
func (h *AdminHandler) Sources(c *gin.Context) {
	sources, err := h.sources.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(sources), "sources": sources})
}
