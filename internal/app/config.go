package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/adstudio-backend/internal/platform/embedding"
	"github.com/yungbote/adstudio-backend/internal/platform/envutil"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/utils"
)

type ConfigErrorCode string

const (
	ConfigErrorUnknownLLMProvider       ConfigErrorCode = "unknown_llm_provider"
	ConfigErrorUnknownImageProvider     ConfigErrorCode = "unknown_image_provider"
	ConfigErrorUnknownEmbeddingProvider ConfigErrorCode = "unknown_embedding_provider"
	ConfigErrorInvalidScale             ConfigErrorCode = "invalid_simulation_scale"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid config"
	}
	if e.Cause != nil {
		return fmt.Sprintf("invalid config (code=%s value=%q): %v", e.Code, e.Value, e.Cause)
	}
	return fmt.Sprintf("invalid config (code=%s value=%q)", e.Code, e.Value)
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

type Config struct {
	Port         string
	Environment  string
	ServiceName  string
	Version      string
	JWTSecretKey string
	CORSOrigins  string
	MetricsAddr  string
	StaticDir    string

	LLMProvider       string
	ImageProvider     string
	EmbeddingProvider string

	PersonaCount      int
	ScaleMin          int
	ScaleMax          int
	GenerationTimeout time.Duration
	ShutdownGrace     time.Duration
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:              utils.GetEnv("PORT", "8080", log),
		Environment:       utils.GetEnv("APP_ENV", "development", log),
		ServiceName:       utils.GetEnv("SERVICE_NAME", "adstudio-api", log),
		Version:           utils.GetEnv("APP_VERSION", "dev", log),
		JWTSecretKey:      utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		CORSOrigins:       utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log),
		MetricsAddr:       utils.GetEnv("METRICS_ADDR", ":9090", log),
		StaticDir:         utils.GetEnv("STATIC_DIR", "storage", log),
		LLMProvider:       strings.ToLower(utils.GetEnv("LLM_PROVIDER", "openai", log)),
		ImageProvider:     strings.ToLower(utils.GetEnv("IMAGE_PROVIDER", "mock", log)),
		EmbeddingProvider: utils.GetEnv("EMBEDDING_PROVIDER", "", log),
		PersonaCount:      utils.GetEnvAsInt("SIMULATION_PERSONA_COUNT", 20, log),
		ScaleMin:          utils.GetEnvAsInt("SIMULATION_SCALE_MIN", 200, log),
		ScaleMax:          utils.GetEnvAsInt("SIMULATION_SCALE_MAX", 500, log),
		GenerationTimeout: envutil.Seconds("GENERATION_TIMEOUT_SECONDS", 10*time.Minute),
		ShutdownGrace:     envutil.Seconds("SHUTDOWN_GRACE_SECONDS", 30*time.Second),
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case "openai", "gemini":
	default:
		return &ConfigError{Code: ConfigErrorUnknownLLMProvider, Value: c.LLMProvider}
	}
	switch c.ImageProvider {
	case "mock", "openai", "gemini", "replicate":
	default:
		return &ConfigError{Code: ConfigErrorUnknownImageProvider, Value: c.ImageProvider}
	}
	p, err := embedding.ParseProvider(c.EmbeddingProvider)
	if err != nil {
		return &ConfigError{Code: ConfigErrorUnknownEmbeddingProvider, Value: c.EmbeddingProvider, Cause: err}
	}
	c.EmbeddingProvider = p
	if c.ScaleMin <= 0 || c.ScaleMax < c.ScaleMin {
		return &ConfigError{Code: ConfigErrorInvalidScale, Value: fmt.Sprintf("%d..%d", c.ScaleMin, c.ScaleMax)}
	}
	return nil
}
