package imagegen

import (
	"context"
	"fmt"

	"github.com/yungbote/adstudio-backend/internal/platform/gemini"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

// Gemini serves both interfaces with the Gemini image model.
type Gemini struct {
	log   *logger.Logger
	c     *gemini.Client
	saver Saver
}

func NewGemini(log *logger.Logger, c *gemini.Client, saver Saver) *Gemini {
	return &Gemini{log: log.With("provider", "gemini"), c: c, saver: saver}
}

func (p *Gemini) Name() string { return "gemini" }

func (p *Gemini) GenerateFromText(ctx context.Context, prompt string, width, height int) (Result, error) {
	if ar := AspectRatio(width, height); ar != "1:1" {
		prompt = fmt.Sprintf("%s\nAspect ratio: %s.", prompt, ar)
	}
	img, err := p.c.GenerateImage(ctx, prompt)
	if err != nil {
		return Result{}, wrap(p.Name(), err)
	}
	return p.finish(ctx, img), nil
}

func (p *Gemini) GenerateFromReference(ctx context.Context, image []byte, mimeType, prompt string) (Result, error) {
	img, err := p.c.GenerateImageFromReference(ctx, image, mimeType, prompt)
	if err != nil {
		return Result{}, wrap(p.Name(), err)
	}
	return p.finish(ctx, img), nil
}

func (p *Gemini) finish(ctx context.Context, img gemini.Image) Result {
	return store(ctx, p.log, p.saver, Result{Provider: p.Name()}, img.Bytes)
}
