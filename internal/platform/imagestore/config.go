package imagestore

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type Mode string

const (
	ModeLocal       Mode = "local"
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
)

type Config struct {
	Mode Mode
	// Dir and URLPrefix apply to local mode.
	Dir       string
	URLPrefix string
	// Bucket, CDNDomain, PublicBaseURL and EmulatorHost apply to GCS modes.
	Bucket        string
	CDNDomain     string
	PublicBaseURL string
	EmulatorHost  string
	// MaxDimension bounds both sides of optimized images.
	MaxDimension int
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode         ConfigErrorCode = "invalid_mode"
	ConfigErrorMissingBucket       ConfigErrorCode = "missing_bucket"
	ConfigErrorMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
	ConfigErrorInvalidURL          ConfigErrorCode = "invalid_url"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid image storage config"
	}
	switch e.Code {
	case ConfigErrorInvalidMode:
		return fmt.Sprintf("invalid IMAGE_STORAGE_MODE=%q (allowed: %q, %q, %q)", e.Value, ModeLocal, ModeGCS, ModeGCSEmulator)
	case ConfigErrorMissingBucket:
		return "IMAGE_GCS_BUCKET_NAME is required for GCS image storage"
	case ConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("IMAGE_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST", ModeGCSEmulator)
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid URL %q; expected absolute URL like http://fake-gcs:4443", e.Value)
	default:
		return "invalid image storage config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ResolveConfigFromEnv() (Config, error) {
	staticDir := strings.TrimSpace(os.Getenv("STATIC_DIR"))
	if staticDir == "" {
		staticDir = "storage"
	}
	cfg := Config{
		Mode:          Mode(strings.ToLower(strings.TrimSpace(os.Getenv("IMAGE_STORAGE_MODE")))),
		Dir:           filepath.Join(staticDir, "images"),
		URLPrefix:     "/static/images",
		Bucket:        strings.TrimSpace(os.Getenv("IMAGE_GCS_BUCKET_NAME")),
		CDNDomain:     strings.TrimSpace(os.Getenv("IMAGE_CDN_DOMAIN")),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("OBJECT_STORAGE_PUBLIC_BASE_URL")), "/"),
		EmulatorHost:  strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/"),
		MaxDimension:  2048,
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeLocal
	}
	return cfg, ValidateConfig(cfg)
}

func ValidateConfig(cfg Config) error {
	switch cfg.Mode {
	case ModeLocal:
		return nil
	case ModeGCS, ModeGCSEmulator:
	default:
		return &ConfigError{Code: ConfigErrorInvalidMode, Value: string(cfg.Mode)}
	}
	if cfg.Bucket == "" {
		return &ConfigError{Code: ConfigErrorMissingBucket}
	}
	if cfg.PublicBaseURL != "" {
		if err := checkAbsURL(cfg.PublicBaseURL); err != nil {
			return err
		}
	}
	if cfg.Mode == ModeGCSEmulator {
		if cfg.EmulatorHost == "" {
			return &ConfigError{Code: ConfigErrorMissingEmulatorHost}
		}
		return checkAbsURL(cfg.EmulatorHost)
	}
	return nil
}

func checkAbsURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: raw, Cause: err}
	}
	return nil
}
