package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yungbote/adstudio-backend/internal/pkg/retry"
	"github.com/yungbote/adstudio-backend/internal/platform/envutil"
	"github.com/yungbote/adstudio-backend/internal/platform/httpx"
	"github.com/yungbote/adstudio-backend/internal/platform/llm"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

const providerName = "gemini"

const (
	DefaultModel      = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"
	DefaultEmbedModel = "gemini-embedding-001"
)

var ErrNoImage = errors.New("gemini response contained no image")

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	ImageModel      string
	EmbedModel      string
	EmbedDimensions int32
	TextPolicy      retry.Policy
	ImagePolicy     retry.Policy
	HTTPClient      *http.Client
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:          envutil.String("GEMINI_API_KEY", ""),
		BaseURL:         envutil.String("GEMINI_BASE_URL", ""),
		Model:           envutil.String("GEMINI_MODEL", DefaultModel),
		ImageModel:      envutil.String("GEMINI_IMAGE_MODEL", DefaultImageModel),
		EmbedModel:      envutil.String("GEMINI_EMBED_MODEL", DefaultEmbedModel),
		EmbedDimensions: int32(envutil.Int("GEMINI_EMBED_DIMENSIONS", 1024)),
		TextPolicy:      retry.TextCompletion,
		ImagePolicy:     retry.ImageSynthesis,
	}
}

type Client struct {
	log *logger.Logger
	cfg Config
	g   *genai.Client
}

func NewClient(ctx context.Context, log *logger.Logger) (*Client, error) {
	return NewClientWithConfig(ctx, log, ConfigFromEnv())
}

func NewClientWithConfig(ctx context.Context, log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	g, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{log: log.With("service", "GeminiClient"), cfg: cfg, g: g}, nil
}

func (c *Client) Model() string { return c.cfg.Model }

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if s := strings.TrimSpace(req.System); s != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: s}}}
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	return llm.Call(ctx, c.cfg.TextPolicy, c.log, providerName, func(ctx context.Context) (string, error) {
		resp, err := c.g.Models.GenerateContent(ctx, c.cfg.Model, contents, config)
		if err != nil {
			return "", classify(err)
		}
		return textFromResponse(resp)
	})
}

// Embed returns one vector per input. taskType is a Gemini task type such as
// RETRIEVAL_DOCUMENT or RETRIEVAL_QUERY; empty leaves the model default.
func (c *Client) Embed(ctx context.Context, inputs []string, taskType string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	contents := make([]*genai.Content, 0, len(inputs))
	for _, in := range inputs {
		s := strings.TrimSpace(in)
		if s == "" {
			s = " "
		}
		contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: s}}})
	}
	config := &genai.EmbedContentConfig{TaskType: taskType}
	if c.cfg.EmbedDimensions > 0 {
		dims := c.cfg.EmbedDimensions
		config.OutputDimensionality = &dims
	}

	var out [][]float32
	err := retry.Do(ctx, c.cfg.TextPolicy, c.retryHooks("embed"), func(ctx context.Context) error {
		resp, err := c.g.Models.EmbedContent(ctx, c.cfg.EmbedModel, contents, config)
		if err != nil {
			return classify(err)
		}
		if resp == nil || len(resp.Embeddings) != len(inputs) {
			return fmt.Errorf("gemini embeddings: requested=%d returned=%d", len(inputs), embeddingCount(resp))
		}
		vecs := make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			if e == nil || len(e.Values) == 0 {
				return fmt.Errorf("gemini embeddings: empty vector at index %d", i)
			}
			vecs[i] = e.Values
		}
		out = vecs
		return nil
	})
	return out, err
}

type Image struct {
	Bytes    []byte
	MimeType string
}

// GenerateImage renders prompt with the image model.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (Image, error) {
	return c.generateImage(ctx, []*genai.Part{{Text: prompt}})
}

// GenerateImageFromReference renders a new scene that keeps the product in
// the reference photo.
func (c *Client) GenerateImageFromReference(ctx context.Context, ref []byte, mimeType, prompt string) (Image, error) {
	if len(ref) == 0 {
		return Image{}, fmt.Errorf("reference image is empty")
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(ref)
	}
	return c.generateImage(ctx, []*genai.Part{
		{InlineData: &genai.Blob{Data: ref, MIMEType: mimeType}},
		{Text: prompt},
	})
}

func (c *Client) generateImage(ctx context.Context, parts []*genai.Part) (Image, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	config := &genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}

	var out Image
	hooks := c.retryHooks("image")
	hooks.Retryable = func(err error) bool {
		return errors.Is(err, ErrNoImage) || errors.Is(err, llm.ErrBlocked) || httpx.IsRetryableError(err)
	}
	err := retry.Do(ctx, c.cfg.ImagePolicy, hooks, func(ctx context.Context) error {
		resp, err := c.g.Models.GenerateContent(ctx, c.cfg.ImageModel, contents, config)
		if err != nil {
			return classify(err)
		}
		img, err := imageFromResponse(resp)
		if err != nil {
			return err
		}
		out = img
		return nil
	})
	return out, err
}

func (c *Client) retryHooks(op string) retry.Hooks {
	return retry.Hooks{
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.log.Warn("Gemini request retrying",
				"op", op,
				"attempt", attempt,
				"sleep", delay.String(),
				"error", err.Error(),
			)
		},
	}
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", llm.ErrEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", llm.ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil &&
		resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", llm.ErrBlocked
	}
	return resp.Text(), nil
}

func imageFromResponse(resp *genai.GenerateContentResponse) (Image, error) {
	if resp == nil {
		return Image{}, ErrNoImage
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return Image{}, fmt.Errorf("%w: %s", llm.ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return Image{Bytes: part.InlineData.Data, MimeType: mime}, nil
		}
	}
	return Image{}, ErrNoImage
}

func embeddingCount(resp *genai.EmbedContentResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Embeddings)
}

// classify maps SDK errors onto httpx.StatusError so the shared retry
// classification applies.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &httpx.StatusError{Service: providerName, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &httpx.StatusError{Service: providerName, StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return err
}
