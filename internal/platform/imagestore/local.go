package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend writes into a directory served under URLPrefix.
type LocalBackend struct {
	dir       string
	urlPrefix string
}

func NewLocalBackend(dir, urlPrefix string) (*LocalBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("image directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/static/images"
	}
	return &LocalBackend{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (b *LocalBackend) Name() string { return string(ModeLocal) }

func (b *LocalBackend) Dir() string { return b.dir }

func (b *LocalBackend) Put(ctx context.Context, filename string, data []byte) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	path := filepath.Join(b.dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", err
	}
	return b.urlPrefix + "/" + filepath.Base(filename), path, nil
}
