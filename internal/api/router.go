package api

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tedxsdg/talksearch/internal/auth"
	"github.com/tedxsdg/talksearch/internal/resources"
	"github.com/tedxsdg/talksearch/internal/search"
)

// NewRouter sets up the API router. jwtManager may be nil, which leaves the
// /api group unauthenticated.
func NewRouter(
	searchEngine *search.Engine,
	initializer *resources.Initializer,
	jwtManager *auth.JWTManager,
	metrics *Metrics,
	allowedOrigins []string,
	logger *log.Logger,
) *gin.Engine {
	// Create gin router
	router := gin.New()

	// Set up middleware
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	if metrics != nil {
		router.Use(metrics.Middleware())
	}

	// Set up CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Create handler
	handler := NewHandler(searchEngine, initializer, logger)

	// Public routes
	router.GET("/", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})))

	// Search routes; auth only bites when a JWT secret is configured
	apiGroup := router.Group("/api")
	apiGroup.Use(AuthMiddleware(jwtManager, logger))
	{
		apiGroup.GET("/search", handler.Search)
	}

	return router
}
