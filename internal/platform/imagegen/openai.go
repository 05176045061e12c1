package imagegen

import (
	"context"

	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/platform/openai"
)

type OpenAI struct {
	log   *logger.Logger
	c     *openai.Client
	saver Saver
}

func NewOpenAI(log *logger.Logger, c *openai.Client, saver Saver) *OpenAI {
	return &OpenAI{log: log.With("provider", "openai"), c: c, saver: saver}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) GenerateFromText(ctx context.Context, prompt string, width, height int) (Result, error) {
	img, err := p.c.GenerateImage(ctx, prompt, openAISize(width, height))
	if err != nil {
		return Result{}, wrap(p.Name(), err)
	}
	return store(ctx, p.log, p.saver, Result{OriginURL: img.URL, Provider: p.Name()}, img.Bytes), nil
}

// openAISize picks one of the three sizes the images endpoint accepts.
func openAISize(width, height int) string {
	switch {
	case width > 0 && height > 0 && float64(width)/float64(height) > 1.1:
		return "1536x1024"
	case width > 0 && height > 0 && float64(height)/float64(width) > 1.1:
		return "1024x1536"
	default:
		return "1024x1024"
	}
}
