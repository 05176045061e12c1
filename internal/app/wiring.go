package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/adstudio-backend/internal/data/repos/content"
	httpserver "github.com/yungbote/adstudio-backend/internal/http"
	httpH "github.com/yungbote/adstudio-backend/internal/http/handlers"
	httpMW "github.com/yungbote/adstudio-backend/internal/http/middleware"
	"github.com/yungbote/adstudio-backend/internal/observability"
	"github.com/yungbote/adstudio-backend/internal/platform/imagestore"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/prompts"
	"github.com/yungbote/adstudio-backend/internal/realtime"
	"github.com/yungbote/adstudio-backend/internal/services"
)

type Repos struct {
	Content     content.ContentRepo
	Performance content.PerformanceRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Content:     content.NewContentRepo(db, log),
		Performance: content.NewPerformanceRepo(db, log),
	}
}

type Services struct {
	Auth       services.AuthService
	Intent     services.IntentClassifier
	RAG        services.RAGService
	Simulation services.SimulationService
	Generation services.GenerationService
	Notifier   services.GenerationNotifier
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, hub *realtime.SSEHub) (Services, error) {
	log.Info("Wiring services...")
	registry, err := prompts.Load()
	if err != nil {
		return Services{}, err
	}
	log.Info("Prompt catalog loaded", "source", registry.Source())

	// With a bus every replica publishes to redis and the forwarder feeds
	// the local hub; without one events go to the hub directly.
	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	if clients.SSEBus != nil {
		emitter = &services.RedisEmitter{Bus: clients.SSEBus, Log: log}
	}
	notifier := services.NewGenerationNotifier(emitter)

	var rag services.RAGService
	if clients.Embedder != nil && clients.VectorStore != nil {
		rag = services.NewRAGService(log, clients.Embedder, clients.VectorStore, repos.Performance)
	}

	intent := services.NewIntentClassifier(log, clients.Completer, registry)
	writer := services.NewCopywriter(log, clients.Completer, registry)
	sim := services.NewSimulationService(db, log, clients.Completer, registry, repos.Content, repos.Performance, rag, services.SimulationConfig{
		PersonaCount: cfg.PersonaCount,
		Scale:        services.UniformScale(cfg.ScaleMin, cfg.ScaleMax),
		Notifier:     notifier,
	})
	gen := services.NewGenerationService(db, log, writer, intent, rag, sim, clients.Images, repos.Content, notifier, services.GenerationConfig{
		Timeout: cfg.GenerationTimeout,
	})

	return Services{
		Auth:       services.NewAuthService(log, cfg.JWTSecretKey),
		Intent:     intent,
		RAG:        rag,
		Simulation: sim,
		Generation: gen,
		Notifier:   notifier,
	}, nil
}

type Handlers struct {
	Health      *httpH.HealthHandler
	Content     *httpH.ContentHandler
	Performance *httpH.PerformanceHandler
	Realtime    *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, svc Services, clients Clients, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Checker{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.SSEBus != nil {
		checks["redis"] = clients.SSEBus.Ping
	}
	return Handlers{
		Health:      httpH.NewHealthHandler(checks),
		Content:     httpH.NewContentHandler(log, svc.Generation, svc.Intent),
		Performance: httpH.NewPerformanceHandler(log, svc.Simulation),
		Realtime:    httpH.NewRealtimeHandler(log, hub),
	}
}

func wireServer(log *logger.Logger, cfg Config, svc Services, handlers Handlers) *httpserver.Server {
	log.Info("Wiring router...")
	rc := httpserver.RouterConfig{
		Log:                log,
		ServiceName:        cfg.ServiceName,
		CORSOrigins:        cfg.CORSOrigins,
		Metrics:            observability.Current(),
		AuthMiddleware:     httpMW.NewAuthMiddleware(log, svc.Auth),
		ContentHandler:     handlers.Content,
		PerformanceHandler: handlers.Performance,
		RealtimeHandler:    handlers.Realtime,
		HealthHandler:      handlers.Health,
	}
	if storeCfg, err := imagestore.ResolveConfigFromEnv(); err == nil && storeCfg.Mode == imagestore.ModeLocal {
		rc.StaticDir = storeCfg.Dir
		rc.StaticPrefix = storeCfg.URLPrefix
	}
	return httpserver.NewServer(rc)
}
