// Package embedding turns text into vectors for similarity search. Providers
// distinguish stored documents from search queries where the API supports it.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/adstudio-backend/internal/platform/gemini"
	"github.com/yungbote/adstudio-backend/internal/platform/openai"
)

type InputKind string

const (
	KindDocument InputKind = "document"
	KindQuery    InputKind = "query"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string, kind InputKind) ([][]float32, error)
	Name() string
}

// EmbedOne is a convenience for single-text calls.
func EmbedOne(ctx context.Context, e Embedder, text string, kind InputKind) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text}, kind)
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%s: empty embedding", e.Name())
	}
	return vecs[0], nil
}

type openAIEmbedder struct {
	c *openai.Client
}

func NewOpenAI(c *openai.Client) Embedder { return &openAIEmbedder{c: c} }

func (e *openAIEmbedder) Name() string { return "openai" }

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string, _ InputKind) ([][]float32, error) {
	return e.c.Embed(ctx, texts)
}

type geminiEmbedder struct {
	c *gemini.Client
}

func NewGemini(c *gemini.Client) Embedder { return &geminiEmbedder{c: c} }

func (e *geminiEmbedder) Name() string { return "gemini" }

func (e *geminiEmbedder) Embed(ctx context.Context, texts []string, kind InputKind) ([][]float32, error) {
	task := "RETRIEVAL_DOCUMENT"
	if kind == KindQuery {
		task = "RETRIEVAL_QUERY"
	}
	return e.c.Embed(ctx, texts, task)
}

// ParseProvider normalizes EMBEDDING_PROVIDER.
func ParseProvider(raw string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(raw)); p {
	case "", "voyage":
		return "voyage", nil
	case "openai", "gemini":
		return p, nil
	default:
		return "", fmt.Errorf("unknown EMBEDDING_PROVIDER %q", raw)
	}
}
