package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/adstudio-backend/internal/pkg/retry"
	"github.com/yungbote/adstudio-backend/internal/platform/envutil"
	"github.com/yungbote/adstudio-backend/internal/platform/httpx"
	"github.com/yungbote/adstudio-backend/internal/platform/llm"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

const providerName = "openai"

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	EmbedModel string
	// EmbedDimensions is sent when > 0 (text-embedding-3 models support it).
	EmbedDimensions int
	ImageModel      string
	Timeout         time.Duration
	TextPolicy      retry.Policy
	ImagePolicy     retry.Policy
	HTTPClient      *http.Client
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:          envutil.String("OPENAI_API_KEY", ""),
		BaseURL:         strings.TrimRight(envutil.String("OPENAI_BASE_URL", "https://api.openai.com"), "/"),
		Model:           envutil.String("OPENAI_MODEL", "gpt-4.1-mini"),
		EmbedModel:      envutil.String("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		EmbedDimensions: envutil.Int("OPENAI_EMBED_DIMENSIONS", 0),
		ImageModel:      envutil.String("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		Timeout:         envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 180*time.Second),
		TextPolicy:      retry.TextCompletion,
		ImagePolicy:     retry.ImageSynthesis,
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("missing OPENAI_API_KEY")
	}
	return cfg, nil
}

// Client talks to the OpenAI REST API (Responses, Embeddings, Images).
type Client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func NewClient(log *logger.Logger) (*Client, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(log, cfg)
}

func NewClientWithConfig(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 180 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		log:  log.With("service", "OpenAIClient"),
		cfg:  cfg,
		http: hc,
	}, nil
}

func (c *Client) Model() string { return c.cfg.Model }

type apiError struct {
	httpx.StatusError
	retryAfter time.Duration
}

func (e *apiError) RetryAfter() time.Duration { return e.retryAfter }

func (c *Client) doOnce(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, err := httpx.ReadBody(resp, 0)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{
			StatusError: httpx.StatusError{Service: providerName, StatusCode: resp.StatusCode, Body: httpx.Truncate(raw, 2048)},
			retryAfter:  httpx.RetryAfterDuration(resp, 0, 30*time.Second),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("openai decode error: %w; raw=%s", err, httpx.Truncate(raw, 512))
	}
	return nil
}

func (c *Client) do(ctx context.Context, policy retry.Policy, method, path string, body any, out any) error {
	return retry.Do(ctx, policy, retry.Hooks{
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.log.Warn("OpenAI request retrying",
				"path", path,
				"attempt", attempt,
				"max_attempts", policy.Attempts,
				"sleep", delay.String(),
				"error", err.Error(),
			)
		},
	}, func(ctx context.Context) error {
		return c.doOnce(ctx, method, path, body, out)
	})
}

// -------------------- Responses API --------------------

type responsesInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model           string           `json:"model"`
	Instructions    string           `json:"instructions,omitempty"`
	Input           []responsesInput `json:"input"`
	Temperature     *float64         `json:"temperature,omitempty"`
	MaxOutputTokens int              `json:"max_output_tokens,omitempty"`
	Text            *struct {
		Format map[string]any `json:"format"`
	} `json:"text,omitempty"`
}

type responsesResponse struct {
	Status            string `json:"status"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details,omitempty"`
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
}

func (r responsesResponse) outputText() (text string, refused bool) {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case "output_text":
				b.WriteString(part.Text)
			case "refusal":
				refused = true
			}
		}
	}
	return b.String(), refused
}

// Complete implements llm.Completer on the Responses API. Refusals and
// content-filter truncation surface as llm.ErrBlocked so they are retried.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	temp := req.Temperature
	body := responsesRequest{
		Model:           c.cfg.Model,
		Instructions:    strings.TrimSpace(req.System),
		Input:           []responsesInput{{Role: "user", Content: req.Prompt}},
		Temperature:     &temp,
		MaxOutputTokens: req.MaxTokens,
	}
	if req.JSON {
		body.Text = &struct {
			Format map[string]any `json:"format"`
		}{Format: map[string]any{"type": "json_object"}}
	}

	return llm.Call(ctx, c.cfg.TextPolicy, c.log, providerName, func(ctx context.Context) (string, error) {
		var resp responsesResponse
		if err := c.doOnce(ctx, http.MethodPost, "/v1/responses", body, &resp); err != nil {
			return "", err
		}
		text, refused := resp.outputText()
		if refused {
			return "", llm.ErrBlocked
		}
		if resp.IncompleteDetails != nil && resp.IncompleteDetails.Reason == "content_filter" {
			return "", llm.ErrBlocked
		}
		return text, nil
	})
}

// -------------------- Embeddings --------------------

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp embeddingsResponse
	req := embeddingsRequest{Model: c.cfg.EmbedModel, Input: clean, Dimensions: c.cfg.EmbedDimensions}
	if err := c.do(ctx, c.cfg.TextPolicy, http.MethodPost, "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for pos, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			idx = pos
		}
		if idx >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[idx] = vec
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("openai embeddings missing index %d: requested=%d returned=%d model=%s", i, len(clean), len(resp.Data), c.cfg.EmbedModel)
		}
	}
	return out, nil
}

// -------------------- Images API --------------------

type imagesGenerationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n,omitempty"`
	Size   string `json:"size,omitempty"`
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

type Image struct {
	Bytes         []byte
	MimeType      string
	URL           string
	RevisedPrompt string
}

// GenerateImage returns decoded bytes when the API answers with b64_json,
// otherwise the hosted URL.
func (c *Client) GenerateImage(ctx context.Context, prompt, size string) (Image, error) {
	var out Image
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return out, errors.New("image prompt required")
	}
	req := imagesGenerationRequest{Model: c.cfg.ImageModel, Prompt: prompt, N: 1, Size: size}

	var resp imagesGenerationResponse
	if err := c.do(ctx, c.cfg.ImagePolicy, http.MethodPost, "/v1/images/generations", req, &resp); err != nil {
		return out, err
	}
	if len(resp.Data) == 0 {
		return out, errors.New("no image returned")
	}
	item := resp.Data[0]
	out.RevisedPrompt = strings.TrimSpace(item.RevisedPrompt)
	if b64 := strings.TrimSpace(item.B64JSON); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(raw) == 0 {
			return out, fmt.Errorf("decode image base64: %w", err)
		}
		out.Bytes = raw
		out.MimeType = "image/png"
		return out, nil
	}
	if u := strings.TrimSpace(item.URL); u != "" {
		if _, err := url.Parse(u); err != nil {
			return out, fmt.Errorf("invalid image url: %w", err)
		}
		out.URL = u
		return out, nil
	}
	return out, errors.New("image response missing b64_json and url")
}
