package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tedxsdg/talksearch/internal/resources"
	"github.com/tedxsdg/talksearch/internal/search"
)

// Handler handles API requests
type Handler struct {
	searchEngine *search.Engine
	initializer  *resources.Initializer
	logger       *log.Logger
}

// NewHandler creates a new handler
func NewHandler(searchEngine *search.Engine, initializer *resources.Initializer, logger *log.Logger) *Handler {
	return &Handler{
		searchEngine: searchEngine,
		initializer:  initializer,
		logger:       logger,
	}
}

// HealthCheck provides a simple health check endpoint. It reports initializer
// progress without ever blocking on readiness.
func (h *Handler) HealthCheck(c *gin.Context) {
	state := h.initializer.State()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"ready":     state == resources.StateReady,
		"state":     state.String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Search answers a free-text query with the most similar talks. Requests
// arriving before readiness block until the initializer finishes; search
// failures come back as a single diagnostic element, never a 5xx.
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, []gin.H{{"error": "Query parameter is required"}})
		return
	}

	results := h.searchEngine.Search(c.Request.Context(), query)
	c.JSON(http.StatusOK, results)
}
