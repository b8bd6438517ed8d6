// Package server assembles the gin engine: middleware order, routes,
// and the operational endpoints.
package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/impermachat/server/internal/v1/config"
	"github.com/impermachat/server/internal/v1/health"
	"github.com/impermachat/server/internal/v1/middleware"
	"github.com/impermachat/server/internal/v1/public"
	"github.com/impermachat/server/internal/v1/room"
	"github.com/impermachat/server/internal/v1/views"
)

// New builds the router. The chat routes all sit behind the identity
// middleware, so a browser without a connection id cookie gets one
// minted on the response; that first request itself reaches the
// handlers without the cookie.
func New(cfg *config.Config, registry *room.Registry, renderer views.Renderer) *gin.Engine {
	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	if origins := allowedOrigins(cfg.AllowedOrigins); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	if cfg.OtelEnabled {
		router.Use(otelgin.Middleware("impermachat"))
	}

	publicHandlers := public.NewHandlers(renderer)
	roomHandlers := room.NewHandlers(registry, renderer)
	healthHandlers := health.NewHandler(registry)

	chat := router.Group("/")
	chat.Use(middleware.EnsureIdentity())
	{
		chat.GET("/", publicHandlers.Index)
		chat.POST("/", publicHandlers.CreateRoom)
		chat.GET("/room/:roomID", roomHandlers.RenderRoom)
		chat.GET("/room/:roomID/connect", roomHandlers.Connect)
		chat.POST("/room/:roomID/live", roomHandlers.Typing)
		chat.POST("/room/:roomID/submit", roomHandlers.Submit)
		chat.POST("/room/:roomID/name", roomHandlers.SetName)
	}

	router.Static("/assets", "./assets")
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health/live", healthHandlers.Liveness)
	router.GET("/health/ready", healthHandlers.Readiness)

	return router
}

func allowedOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
