package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/adstudio-backend/internal/http/handlers"
	httpMW "github.com/yungbote/adstudio-backend/internal/http/middleware"
	"github.com/yungbote/adstudio-backend/internal/observability"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    string
	StaticDir      string
	StaticPrefix   string
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	ContentHandler     *httpH.ContentHandler
	PerformanceHandler *httpH.PerformanceHandler
	RealtimeHandler    *httpH.RealtimeHandler
	HealthHandler      *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Locally stored images
	if cfg.StaticDir != "" && cfg.StaticPrefix != "" {
		r.Static(cfg.StaticPrefix, cfg.StaticDir)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Content generation
	if h := cfg.ContentHandler; h != nil {
		api.POST("/content/generate", h.Generate)
		api.POST("/content/generate-stream", h.GenerateStream)
		api.POST("/content/regenerate-image", h.RegenerateImage)
		api.POST("/content/regenerate-copy", h.RegenerateCopy)
		api.POST("/content/intent", h.ClassifyIntent)
	}

	// Performance
	if h := cfg.PerformanceHandler; h != nil {
		api.POST("/performance/predict/:id", h.Predict)
		api.GET("/performance/:id", h.Summary)
		api.GET("/performance/:id/detailed", h.Detailed)
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		api.GET("/events/stream", cfg.RealtimeHandler.SSEStream)
	}

	return r
}
