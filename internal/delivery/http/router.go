package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/delivery/http/middleware"
	"storybook-server/internal/delivery/websocket"
)

// NewRouter собирает Gin роутер: middleware, CORS, маршруты API,
// WebSocket и метрики Prometheus.
func NewRouter(cfg *config.Config, handler *Handler, wsManager *websocket.Manager, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.ZapLogger(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	router.GET("/ws", gin.WrapH(wsManager.Handler()))

	handler.RegisterRoutes(router)

	// Prometheus middleware подключается после регистрации маршрутов,
	// чтобы метрики получили шаблоны путей
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	return router
}
