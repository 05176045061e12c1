package observability

import (
	"context"
	"time"

	"github.com/yungbote/adstudio-backend/internal/platform/imagegen"
	"github.com/yungbote/adstudio-backend/internal/platform/llm"
)

// InstrumentCompleter records latency and outcome of every completion.
func InstrumentCompleter(provider string, c llm.Completer) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		start := time.Now()
		out, err := c.Complete(ctx, req)
		Current().ObserveLLMRequest(provider, err, time.Since(start))
		return out, err
	})
}

type instrumentedImage struct {
	imagegen.TextToImage
}

// InstrumentTextToImage wraps p so each generation is timed under its name.
func InstrumentTextToImage(p imagegen.TextToImage) imagegen.TextToImage {
	if p == nil {
		return nil
	}
	return instrumentedImage{p}
}

func (i instrumentedImage) GenerateFromText(ctx context.Context, prompt string, width, height int) (imagegen.Result, error) {
	start := time.Now()
	res, err := i.TextToImage.GenerateFromText(ctx, prompt, width, height)
	Current().ObserveImage(i.Name(), err, time.Since(start))
	return res, err
}
