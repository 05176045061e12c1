// Package imagestore persists generated images and hands back a public URL.
package imagestore

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/adstudio-backend/internal/platform/httpx"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

const maxDownloadBytes = 32 << 20

// Stored describes a saved image. OriginalURL is empty for SaveBytes.
type Stored struct {
	PublicURL   string `json:"public_url"`
	FilePath    string `json:"file_path"`
	OriginalURL string `json:"original_url,omitempty"`
	SizeBytes   int    `json:"size"`
}

// Backend writes one object and reports where it landed.
type Backend interface {
	Put(ctx context.Context, filename string, data []byte) (publicURL, filePath string, err error)
	Name() string
}

type Store struct {
	log     *logger.Logger
	backend Backend
	http    *http.Client
	maxDim  int
	now     func() time.Time
}

func New(log *logger.Logger, backend Backend, maxDim int, hc *http.Client) *Store {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	if maxDim <= 0 {
		maxDim = 2048
	}
	return &Store{
		log:     log.With("service", "ImageStore", "backend", backend.Name()),
		backend: backend,
		http:    hc,
		maxDim:  maxDim,
		now:     time.Now,
	}
}

// SaveFromURL downloads src (http(s) or a base64 data URL) and stores it. The
// filename hash is taken from the URL so repeated saves of one URL collide
// only within the same second.
func (s *Store) SaveFromURL(ctx context.Context, src string, optimize bool) (*Stored, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errors.New("image url required")
	}
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(src, "data:") {
		data, err = decodeDataURL(src)
	} else {
		data, err = s.download(ctx, src)
	}
	if err != nil {
		return nil, err
	}
	st, err := s.put(ctx, data, hashKey([]byte(src)), optimize)
	if err != nil {
		return nil, err
	}
	st.OriginalURL = src
	return st, nil
}

func (s *Store) SaveBytes(ctx context.Context, data []byte, optimize bool) (*Stored, error) {
	if len(data) == 0 {
		return nil, errors.New("image bytes required")
	}
	return s.put(ctx, data, hashKey(data), optimize)
}

func (s *Store) put(ctx context.Context, data []byte, hash string, optimize bool) (*Stored, error) {
	if optimize {
		before := len(data)
		data = Optimize(data, s.maxDim)
		s.log.Debug("Image optimized", "bytes_before", before, "bytes_after", len(data))
	}
	filename := fmt.Sprintf("%s_%s.png", s.now().Format("20060102_150405"), hash)
	publicURL, filePath, err := s.backend.Put(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("store image %s: %w", filename, err)
	}
	s.log.Info("Image stored", "file", filePath, "bytes", len(data))
	return &Stored{PublicURL: publicURL, FilePath: filePath, SizeBytes: len(data)}, nil
}

func (s *Store) download(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build image download request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	raw, err := httpx.ReadBody(resp, maxDownloadBytes)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpx.StatusError{Service: "image_download", StatusCode: resp.StatusCode, Body: httpx.Truncate(raw, 256)}
	}
	if len(raw) == 0 {
		return nil, errors.New("downloaded image is empty")
	}
	return raw, nil
}

func decodeDataURL(src string) ([]byte, error) {
	comma := strings.IndexByte(src, ',')
	if comma < 0 || !strings.Contains(src[:comma], ";base64") {
		return nil, errors.New("unsupported data url")
	}
	data, err := base64.StdEncoding.DecodeString(src[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return data, nil
}

func hashKey(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])[:12]
}
