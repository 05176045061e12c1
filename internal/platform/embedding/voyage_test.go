package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/yungbote/adstudio-backend/internal/pkg/retry"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResp(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Header: make(http.Header), Body: io.NopCloser(bytes.NewBufferString(body))}
}

func newTestVoyage(t *testing.T, fn roundTripFunc) *Voyage {
	t.Helper()
	v, err := NewVoyage(logger.NewNop(), VoyageConfig{
		APIKey:     "vk",
		BaseURL:    "http://voyage.test",
		Policy:     retry.Policy{Attempts: 3},
		HTTPClient: &http.Client{Transport: fn},
	})
	if err != nil {
		t.Fatalf("NewVoyage: %v", err)
	}
	return v
}

func TestVoyageSendsInputType(t *testing.T) {
	var captured voyageRequest
	v := newTestVoyage(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/embeddings" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return jsonResp(http.StatusOK, `{"data":[{"index":0,"embedding":[0.1,0.2]}]}`), nil
	})
	vec, err := EmbedOne(context.Background(), v, "serum", KindQuery)
	if err != nil {
		t.Fatalf("EmbedOne: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("vector length: want=2 got=%d", len(vec))
	}
	if captured.InputType != "query" || captured.Model != "voyage-3-large" {
		t.Fatalf("request: got=%+v", captured)
	}
}

func TestVoyageRetriesRateLimit(t *testing.T) {
	var calls int32
	v := newTestVoyage(t, func(r *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return jsonResp(http.StatusTooManyRequests, `{}`), nil
		}
		return jsonResp(http.StatusOK, `{"data":[{"index":0,"embedding":[1]}]}`), nil
	})
	if _, err := v.Embed(context.Background(), []string{"x"}, KindDocument); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls: want=2 got=%d", calls)
	}
}

func TestParseProvider(t *testing.T) {
	cases := map[string]string{"": "voyage", "OpenAI": "openai", " gemini ": "gemini"}
	for in, want := range cases {
		got, err := ParseProvider(in)
		if err != nil || got != want {
			t.Fatalf("ParseProvider(%q): want=%q got=%q err=%v", in, want, got, err)
		}
	}
	if _, err := ParseProvider("cohere"); err == nil {
		t.Fatalf("unknown provider should fail")
	}
}
