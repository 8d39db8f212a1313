package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ryde/internal/handler"
	"ryde/internal/middleware"
	"ryde/internal/realtime"
	"ryde/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler      *handler.RideHandler
	DriverHandler    *handler.DriverHandler
	WSHandler        *handler.WSHandler
	Verifier         realtime.TokenVerifier
	Directory        realtime.ActorDirectory
	IdempotencyStore redis.IdempotencyStoreInterface // nil disables replay
	NewRelicApp      *newrelic.Application
	AllowedOrigins   []string
	Log              *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributes())
	}

	router.Use(middleware.MetricsMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Realtime sessions. The handshake authenticates, so a bearer token is optional here.
	ws := router.Group("/ws", middleware.OptionalActor(deps.Verifier, deps.Directory))
	{
		ws.GET("/driver/:id", deps.WSHandler.Driver)
		ws.GET("/boda_rider/:id", deps.WSHandler.Driver)
		ws.GET("/customer/:id", deps.WSHandler.Customer)
	}

	// API v1 routes.
	v1 := router.Group("/v1", middleware.RequireActor(deps.Verifier, deps.Directory, deps.Log))
	if deps.IdempotencyStore != nil {
		v1.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore, deps.Log))
	}
	{
		// Ride routes.
		rides := v1.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("", deps.RideHandler.GetAll)
			rides.GET("/available", deps.RideHandler.Available)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/accept", deps.RideHandler.AcceptRide)
			rides.POST("/:id/decline", deps.RideHandler.DeclineRide)
			rides.POST("/:id/status", deps.RideHandler.UpdateStatus)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/location", deps.DriverHandler.UpdateLocation)
			drivers.GET("/nearby", deps.DriverHandler.Nearby)
		}
	}

	return router
}
