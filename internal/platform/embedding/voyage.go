package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/adstudio-backend/internal/pkg/retry"
	"github.com/yungbote/adstudio-backend/internal/platform/envutil"
	"github.com/yungbote/adstudio-backend/internal/platform/httpx"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

type VoyageConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Policy     retry.Policy
	HTTPClient *http.Client
}

func VoyageConfigFromEnv() VoyageConfig {
	return VoyageConfig{
		APIKey:  envutil.String("VOYAGE_API_KEY", ""),
		BaseURL: envutil.String("VOYAGE_BASE_URL", "https://api.voyageai.com"),
		Model:   envutil.String("VOYAGE_MODEL", "voyage-3-large"),
		Policy:  retry.TextCompletion,
	}
}

// Voyage calls the Voyage AI embeddings endpoint.
type Voyage struct {
	log  *logger.Logger
	cfg  VoyageConfig
	http *http.Client
}

func NewVoyage(log *logger.Logger, cfg VoyageConfig) (*Voyage, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing VOYAGE_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.voyageai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "voyage-3-large"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Voyage{log: log.With("service", "VoyageEmbedder"), cfg: cfg, http: hc}, nil
}

func (v *Voyage) Name() string { return "voyage" }

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (v *Voyage) Embed(ctx context.Context, texts []string, kind InputKind) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	body, err := json.Marshal(voyageRequest{Input: texts, Model: v.cfg.Model, InputType: string(kind)})
	if err != nil {
		return nil, err
	}

	var out [][]float32
	err = retry.Do(ctx, v.cfg.Policy, retry.Hooks{
		OnRetry: func(attempt int, delay time.Duration, err error) {
			v.log.Warn("Voyage request retrying", "attempt", attempt, "sleep", delay.String(), "error", err.Error())
		},
	}, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(v.cfg.BaseURL, "/")+"/v1/embeddings", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		resp, err := v.http.Do(req)
		if err != nil {
			return err
		}
		raw, err := httpx.ReadBody(resp, 0)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &httpx.StatusError{Service: "voyage", StatusCode: resp.StatusCode, Body: httpx.Truncate(raw, 1024)}
		}
		var parsed voyageResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("voyage decode: %w", err)
		}
		vecs := make([][]float32, len(texts))
		for _, d := range parsed.Data {
			if d.Index >= 0 && d.Index < len(vecs) {
				vecs[d.Index] = d.Embedding
			}
		}
		for i := range vecs {
			if len(vecs[i]) == 0 {
				return fmt.Errorf("voyage embeddings missing index %d", i)
			}
		}
		out = vecs
		return nil
	})
	return out, err
}
