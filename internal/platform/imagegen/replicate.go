package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/adstudio-backend/internal/pkg/retry"
	"github.com/yungbote/adstudio-backend/internal/platform/envutil"
	"github.com/yungbote/adstudio-backend/internal/platform/httpx"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

const (
	ReplicateSDXL     = "stability-ai/sdxl:39ed52f2a78e934b3ba6e2a89f5b1c712de7dfea535525255b1aa35c5565e08b"
	ReplicateIdeogram = "ideogram-ai/ideogram-v2-turbo"
)

var errPredictionPending = errors.New("replicate prediction still running")

type ReplicateConfig struct {
	APIToken     string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	Policy       retry.Policy
	HTTPClient   *http.Client
}

func ReplicateConfigFromEnv() ReplicateConfig {
	return ReplicateConfig{
		APIToken:     envutil.String("REPLICATE_API_TOKEN", ""),
		BaseURL:      envutil.String("REPLICATE_BASE_URL", "https://api.replicate.com"),
		Model:        envutil.String("REPLICATE_MODEL", ReplicateSDXL),
		PollInterval: time.Second,
		Policy:       retry.ImageSynthesis,
	}
}

// Replicate runs predictions over the Replicate HTTP API. Models pinned with
// ":version" go through /v1/predictions; bare "owner/name" models use the
// official-model endpoint.
type Replicate struct {
	log   *logger.Logger
	cfg   ReplicateConfig
	http  *http.Client
	saver Saver
}

func NewReplicate(log *logger.Logger, cfg ReplicateConfig, saver Saver) (*Replicate, error) {
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, fmt.Errorf("missing REPLICATE_API_TOKEN")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.replicate.com"
	}
	if cfg.Model == "" {
		cfg.Model = ReplicateSDXL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 90 * time.Second}
	}
	return &Replicate{log: log.With("provider", "replicate"), cfg: cfg, http: hc, saver: saver}, nil
}

func (p *Replicate) Name() string { return "replicate" }

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (p *Replicate) GenerateFromText(ctx context.Context, prompt string, width, height int) (Result, error) {
	if width <= 0 || height <= 0 {
		width, height = 1024, 1024
	}
	body := map[string]any{"input": replicateInput(p.cfg.Model, prompt, width, height)}
	path := "/v1/predictions"
	if _, version, ok := strings.Cut(p.cfg.Model, ":"); ok {
		body["version"] = version
	} else {
		path = "/v1/models/" + p.cfg.Model + "/predictions"
	}

	var outURL string
	err := retry.Do(ctx, p.cfg.Policy, retry.Hooks{
		OnRetry: func(attempt int, delay time.Duration, err error) {
			p.log.Warn("Replicate prediction retrying", "attempt", attempt, "sleep", delay.String(), "error", err.Error())
		},
	}, func(ctx context.Context) error {
		pred, err := p.create(ctx, path, body)
		if err != nil {
			return err
		}
		pred, err = p.await(ctx, pred)
		if err != nil {
			return err
		}
		u, err := firstOutputURL(pred.Output)
		if err != nil {
			return err
		}
		outURL = u
		return nil
	})
	if err != nil {
		return Result{}, wrap(p.Name(), err)
	}
	res := Result{OriginURL: outURL, Provider: p.Name()}
	return store(ctx, p.log, p.saver, res, nil), nil
}

func (p *Replicate) create(ctx context.Context, path string, body any) (prediction, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return prediction{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.cfg.BaseURL, "/")+path, bytes.NewReader(raw))
	if err != nil {
		return prediction{}, err
	}
	req.Header.Set("Prefer", "wait")
	return p.do(req)
}

// await polls until the prediction reaches a terminal state or ctx ends.
func (p *Replicate) await(ctx context.Context, pred prediction) (prediction, error) {
	for {
		switch pred.Status {
		case "succeeded":
			return pred, nil
		case "failed", "canceled":
			return pred, fmt.Errorf("replicate prediction %s %s: %v", pred.ID, pred.Status, pred.Error)
		}
		if pred.URLs.Get == "" {
			return pred, errPredictionPending
		}
		if err := retry.Sleep(ctx, p.cfg.PollInterval); err != nil {
			return pred, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return pred, err
		}
		next, err := p.do(req)
		if err != nil {
			return pred, err
		}
		pred = next
	}
}

func (p *Replicate) do(req *http.Request) (prediction, error) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.http.Do(req)
	if err != nil {
		return prediction{}, err
	}
	raw, err := httpx.ReadBody(resp, 0)
	if err != nil {
		return prediction{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return prediction{}, &httpx.StatusError{Service: "replicate", StatusCode: resp.StatusCode, Body: httpx.Truncate(raw, 1024)}
	}
	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return prediction{}, fmt.Errorf("replicate decode: %w", err)
	}
	return pred, nil
}

// replicateInput shapes parameters per model family.
func replicateInput(model, prompt string, width, height int) map[string]any {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "sdxl"):
		return map[string]any{
			"prompt":              prompt,
			"width":               width,
			"height":              height,
			"num_outputs":         1,
			"guidance_scale":      7.5,
			"num_inference_steps": 50,
			"scheduler":           "K_EULER",
			"refine":              "expert_ensemble_refiner",
			"high_noise_frac":     0.8,
		}
	case strings.Contains(m, "ideogram"):
		return map[string]any{
			"prompt":              prompt,
			"aspect_ratio":        AspectRatio(width, height),
			"magic_prompt_option": "Auto",
			"style_type":          "Auto",
		}
	default:
		return map[string]any{"prompt": prompt, "width": width, "height": height}
	}
}

func firstOutputURL(raw json.RawMessage) (string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 && list[0] != "" {
		return list[0], nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	return "", fmt.Errorf("unexpected replicate output: %s", httpx.Truncate(raw, 200))
}
