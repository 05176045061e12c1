// Package imagegen wraps hosted image models behind two small interfaces:
// prompt-only synthesis and synthesis that keeps a product from a reference
// photo. Every provider persists its output through a Saver.
package imagegen

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/yungbote/adstudio-backend/internal/platform/imagestore"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

// Result is the outcome of one synthesis. OriginURL is set only for images the
// provider hosts; inline output has no URL until it is stored.
type Result struct {
	OriginURL string `json:"origin_url"`
	LocalURL  string `json:"local_url,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
	Provider  string `json:"provider"`
}

// URL prefers the stored copy.
func (r Result) URL() string {
	if r.LocalURL != "" {
		return r.LocalURL
	}
	return r.OriginURL
}

type TextToImage interface {
	GenerateFromText(ctx context.Context, prompt string, width, height int) (Result, error)
	Name() string
}

type ReferenceImage interface {
	GenerateFromReference(ctx context.Context, image []byte, mimeType, prompt string) (Result, error)
	Name() string
}

type Saver interface {
	SaveFromURL(ctx context.Context, url string, optimize bool) (*imagestore.Stored, error)
	SaveBytes(ctx context.Context, data []byte, optimize bool) (*imagestore.Stored, error)
}

type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string { return fmt.Sprintf("%s image generation failed: %v", e.Provider, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

func wrap(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Provider: provider, Err: err}
}

// store fills LocalURL/FilePath. A storage failure is logged and the result
// keeps only its origin URL, which is empty for inline bytes.
func store(ctx context.Context, log *logger.Logger, saver Saver, res Result, data []byte) Result {
	if len(data) > 0 {
		res.OriginURL = ""
	}
	if saver == nil {
		return res
	}
	var (
		st  *imagestore.Stored
		err error
	)
	if len(data) > 0 {
		st, err = saver.SaveBytes(ctx, data, true)
	} else {
		st, err = saver.SaveFromURL(ctx, res.OriginURL, true)
	}
	if err != nil {
		log.Warn("Image storage failed; returning origin url only", "provider", res.Provider, "error", err)
		return res
	}
	res.LocalURL = st.PublicURL
	res.FilePath = st.FilePath
	return res
}

var aspectRatios = []struct {
	label string
	ratio float64
}{
	{"1:1", 1},
	{"16:9", 16.0 / 9.0},
	{"9:16", 9.0 / 16.0},
	{"4:3", 4.0 / 3.0},
	{"3:4", 3.0 / 4.0},
}

// AspectRatio maps pixel dimensions to the nearest supported label within
// 0.1, defaulting to "1:1".
func AspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}
	r := float64(width) / float64(height)
	for _, ar := range aspectRatios {
		if math.Abs(r-ar.ratio) < 0.1 {
			return ar.label
		}
	}
	return "1:1"
}

// Dimensions is the inverse of AspectRatio at a 1024px long edge. Unknown
// labels yield a square.
func Dimensions(aspect string) (int, int) {
	switch strings.TrimSpace(aspect) {
	case "16:9":
		return 1024, 576
	case "9:16":
		return 576, 1024
	case "4:3":
		return 1024, 768
	case "3:4":
		return 768, 1024
	default:
		return 1024, 1024
	}
}
