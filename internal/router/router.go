package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"token-launcher/internal/handlers"
	"token-launcher/internal/middleware"
	"token-launcher/internal/services"
)

// Options wires the status API.
type Options struct {
	Launches   *handlers.LaunchHandler
	Health     map[string]handlers.Pinger
	Stream     *services.LaunchStream // nil disables /api/stream/launches
	AllowedIPs []string
	Logger     logrus.FieldLogger
}

// SetupRouter builds the read-only status API. /health and /metrics are open;
// /api is limited to localhost and AllowedIPs.
func SetupRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(opts.Logger))

	// ============ Health Check ============
	r.GET("/health", handlers.HealthCheckHandler(opts.Health))

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ API Routes ============
	localhostOnly := middleware.NewLocalhostOnly(opts.Logger, opts.AllowedIPs)
	api := r.Group("/api", localhostOnly.Restrict())
	{
		api.GET("/launches", opts.Launches.ListLaunchesHandler)
		api.GET("/launches/:id", opts.Launches.GetLaunchHandler)
		api.GET("/tokens/:address/launch", opts.Launches.GetLaunchByTokenHandler)
		if opts.Stream != nil {
			api.GET("/stream/launches", handlers.LaunchStreamHandler(opts.Stream))
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}
