package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/adstudio-backend/internal/observability"
	"github.com/yungbote/adstudio-backend/internal/platform/embedding"
	"github.com/yungbote/adstudio-backend/internal/platform/gemini"
	"github.com/yungbote/adstudio-backend/internal/platform/imagegen"
	"github.com/yungbote/adstudio-backend/internal/platform/imagestore"
	"github.com/yungbote/adstudio-backend/internal/platform/llm"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/platform/openai"
	"github.com/yungbote/adstudio-backend/internal/platform/qdrant"
	"github.com/yungbote/adstudio-backend/internal/realtime/bus"
	"github.com/yungbote/adstudio-backend/internal/services"
)

type Clients struct {
	OpenAI *openai.Client
	Gemini *gemini.Client

	Completer   llm.Completer
	Images      services.ImageProviders
	ImageStore  *imagestore.Store
	Embedder    embedding.Embedder
	VectorStore services.VectorStore
	SSEBus      bus.Bus
}

// wireClients builds provider clients. OpenAI and Gemini are created when
// their keys are present; the configured providers must be among them.
// Qdrant and Redis are optional and their features are disabled when absent.
func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	if oc, err := openai.NewClient(log); err == nil {
		out.OpenAI = oc
	} else {
		log.Debug("OpenAI client disabled", "reason", err)
	}
	if gc, err := gemini.NewClient(ctx, log); err == nil {
		out.Gemini = gc
	} else {
		log.Debug("Gemini client disabled", "reason", err)
	}

	// Text
	switch cfg.LLMProvider {
	case "gemini":
		if out.Gemini == nil {
			return Clients{}, fmt.Errorf("LLM_PROVIDER=gemini requires GEMINI_API_KEY")
		}
		out.Completer = observability.InstrumentCompleter("gemini", out.Gemini)
	default:
		if out.OpenAI == nil {
			return Clients{}, fmt.Errorf("LLM_PROVIDER=openai requires OPENAI_API_KEY")
		}
		out.Completer = observability.InstrumentCompleter("openai", out.OpenAI)
	}

	// Image storage
	storeCfg, err := imagestore.ResolveConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("image storage config: %w", err)
	}
	backend, err := newImageBackend(ctx, storeCfg)
	if err != nil {
		return Clients{}, err
	}
	out.ImageStore = imagestore.New(log, backend, storeCfg.MaxDimension, nil)

	images, err := wireImageProviders(log, cfg, out.OpenAI, out.Gemini, out.ImageStore)
	if err != nil {
		return Clients{}, err
	}
	out.Images = images

	// Embeddings + vectors
	emb, err := wireEmbedder(log, cfg, out.OpenAI, out.Gemini)
	if err != nil {
		log.Warn("Embeddings disabled; similarity search off", "provider", cfg.EmbeddingProvider, "error", err)
	} else {
		out.Embedder = emb
		if vs, err := wireVectorStore(ctx, log); err != nil {
			log.Warn("Vector store disabled; similarity search off", "error", err)
		} else {
			out.VectorStore = vs
		}
	}

	// Redis
	if rcfg := bus.RedisConfigFromEnv(); rcfg.Addr != "" {
		b, err := bus.NewRedisBus(log, rcfg)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		out.SSEBus = b
	}
	return out, nil
}

func newImageBackend(ctx context.Context, cfg imagestore.Config) (imagestore.Backend, error) {
	switch cfg.Mode {
	case imagestore.ModeGCS, imagestore.ModeGCSEmulator:
		b, err := imagestore.NewGCSBackend(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init gcs image backend: %w", err)
		}
		return b, nil
	default:
		b, err := imagestore.NewLocalBackend(cfg.Dir, cfg.URLPrefix)
		if err != nil {
			return nil, fmt.Errorf("init local image backend: %w", err)
		}
		return b, nil
	}
}

// wireImageProviders registers every provider whose credentials exist under
// its request name. The Gemini client, when present, also serves product
// reference photos.
func wireImageProviders(log *logger.Logger, cfg Config, oc *openai.Client, gc *gemini.Client, saver imagegen.Saver) (services.ImageProviders, error) {
	byName := map[string]imagegen.TextToImage{}
	mock := imagegen.NewMock(log, saver)
	byName["mock"] = observability.InstrumentTextToImage(mock)

	var ref imagegen.ReferenceImage
	if oc != nil {
		p := observability.InstrumentTextToImage(imagegen.NewOpenAI(log, oc, saver))
		byName["openai"] = p
		byName["dalle"] = p
	}
	if gc != nil {
		g := imagegen.NewGemini(log, gc, saver)
		byName["gemini"] = observability.InstrumentTextToImage(g)
		byName["nanobanana"] = byName["gemini"]
		ref = g
	}
	if rep, err := imagegen.NewReplicate(log, imagegen.ReplicateConfigFromEnv(), saver); err == nil {
		byName["replicate"] = observability.InstrumentTextToImage(rep)
	} else {
		log.Debug("Replicate provider disabled", "reason", err)
	}

	def, ok := byName[cfg.ImageProvider]
	if !ok {
		return services.ImageProviders{}, fmt.Errorf("IMAGE_PROVIDER=%s has no credentials configured", cfg.ImageProvider)
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	log.Info("Image providers ready", "default", cfg.ImageProvider, "available", strings.Join(names, ","), "reference", ref != nil)
	return services.ImageProviders{Default: def, ByName: byName, Reference: ref}, nil
}

func wireEmbedder(log *logger.Logger, cfg Config, oc *openai.Client, gc *gemini.Client) (embedding.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		if oc == nil {
			return nil, fmt.Errorf("missing OPENAI_API_KEY")
		}
		return embedding.NewOpenAI(oc), nil
	case "gemini":
		if gc == nil {
			return nil, fmt.Errorf("missing GEMINI_API_KEY")
		}
		return embedding.NewGemini(gc), nil
	default:
		return embedding.NewVoyage(log, embedding.VoyageConfigFromEnv())
	}
}

func wireVectorStore(ctx context.Context, log *logger.Logger) (services.VectorStore, error) {
	qcfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return nil, err
	}
	store, err := qdrant.NewStore(log, qcfg, nil)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure qdrant collection: %w", err)
	}
	return instrumentVectorStore(store), nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
}
