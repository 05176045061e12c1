package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSBackend uploads into a Cloud Storage bucket (or the fake-gcs emulator).
type GCSBackend struct {
	client        *storage.Client
	bucket        string
	mode          Mode
	cdnDomain     string
	publicBaseURL string
	emulatorHost  string
	prefix        string
}

func NewGCSBackend(ctx context.Context, cfg Config) (*GCSBackend, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	base := cfg.PublicBaseURL
	if base == "" && cfg.Mode == ModeGCSEmulator {
		base = cfg.EmulatorHost
	}
	return &GCSBackend{
		client:        client,
		bucket:        cfg.Bucket,
		mode:          cfg.Mode,
		cdnDomain:     cfg.CDNDomain,
		publicBaseURL: base,
		emulatorHost:  cfg.EmulatorHost,
		prefix:        "images/",
	}, nil
}

func newStorageClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	switch cfg.Mode {
	case ModeGCS:
		opts := clientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ModeGCSEmulator:
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ConfigError{Code: ConfigErrorInvalidMode, Value: string(cfg.Mode)}
	}
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func (b *GCSBackend) Name() string { return string(b.mode) }

func (b *GCSBackend) Put(ctx context.Context, filename string, data []byte) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	key := b.prefix + filename
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "image/png"
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", "", fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", "", fmt.Errorf("close object writer: %w", err)
	}
	return b.publicURL(key), fmt.Sprintf("gs://%s/%s", b.bucket, key), nil
}

func (b *GCSBackend) publicURL(key string) string {
	return gcsPublicURL(b.mode, b.bucket, key, b.cdnDomain, b.publicBaseURL)
}

func gcsPublicURL(mode Mode, bucket, key, cdnDomain, publicBaseURL string) string {
	key = strings.TrimLeft(key, "/")
	switch {
	case cdnDomain != "":
		return fmt.Sprintf("https://%s/%s", cdnDomain, key)
	case mode == ModeGCSEmulator && publicBaseURL != "":
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", publicBaseURL, url.PathEscape(bucket), url.PathEscape(key))
	case publicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", publicBaseURL, bucket, key)
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
	}
}
