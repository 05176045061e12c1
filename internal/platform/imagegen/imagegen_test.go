package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/yungbote/adstudio-backend/internal/pkg/retry"
	"github.com/yungbote/adstudio-backend/internal/platform/imagestore"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type fakeSaver struct {
	fail      bool
	fromURL   []string
	fromBytes int
}

func (s *fakeSaver) SaveFromURL(ctx context.Context, url string, optimize bool) (*imagestore.Stored, error) {
	s.fromURL = append(s.fromURL, url)
	if s.fail {
		return nil, errors.New("disk full")
	}
	return &imagestore.Stored{PublicURL: "/static/images/x.png", FilePath: "/tmp/x.png", OriginalURL: url}, nil
}

func (s *fakeSaver) SaveBytes(ctx context.Context, data []byte, optimize bool) (*imagestore.Stored, error) {
	s.fromBytes++
	if s.fail {
		return nil, errors.New("disk full")
	}
	return &imagestore.Stored{PublicURL: "/static/images/y.png", FilePath: "/tmp/y.png", SizeBytes: len(data)}, nil
}

func TestAspectRatio(t *testing.T) {
	cases := []struct {
		w, h int
		want string
	}{
		{1024, 1024, "1:1"},
		{1920, 1080, "16:9"},
		{1080, 1920, "9:16"},
		{1024, 768, "4:3"},
		{768, 1024, "3:4"},
		{3000, 1000, "1:1"},
		{0, 10, "1:1"},
	}
	for _, c := range cases {
		if got := AspectRatio(c.w, c.h); got != c.want {
			t.Fatalf("AspectRatio(%d,%d): want=%s got=%s", c.w, c.h, c.want, got)
		}
	}
	for _, label := range []string{"1:1", "16:9", "9:16", "4:3", "3:4"} {
		w, h := Dimensions(label)
		if got := AspectRatio(w, h); got != label {
			t.Fatalf("Dimensions(%s) round trip: got=%s", label, got)
		}
	}
}

func TestMockRendersAndStores(t *testing.T) {
	saver := &fakeSaver{}
	p := NewMock(logger.NewNop(), saver)
	res, err := p.GenerateFromText(context.Background(), "A serum bottle on marble", 320, 180)
	if err != nil {
		t.Fatalf("GenerateFromText: %v", err)
	}
	if res.Provider != "mock" || res.LocalURL != "/static/images/y.png" || saver.fromBytes != 1 {
		t.Fatalf("result: got=%+v saves=%d", res, saver.fromBytes)
	}
	if res.OriginURL != "" || res.URL() != res.LocalURL {
		t.Fatalf("inline image: want no origin url got=%q", res.OriginURL)
	}

	raw, err := p.Render("x", 320, 180)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 180 {
		t.Fatalf("size: got=%v", img.Bounds())
	}
}

func TestStoreFailureLeavesInlineImageWithoutURL(t *testing.T) {
	p := NewMock(logger.NewNop(), &fakeSaver{fail: true})
	res, err := p.GenerateFromText(context.Background(), "x", 64, 64)
	if err != nil {
		t.Fatalf("GenerateFromText: %v", err)
	}
	if res.LocalURL != "" || res.FilePath != "" || res.OriginURL != "" || res.URL() != "" {
		t.Fatalf("want empty urls, got=%+v", res)
	}
}

func TestStoreFailureKeepsHostedOriginURL(t *testing.T) {
	res := store(context.Background(), logger.NewNop(), &fakeSaver{fail: true},
		Result{OriginURL: "https://cdn.example.com/a.png", Provider: "openai"}, nil)
	if res.URL() != "https://cdn.example.com/a.png" || res.LocalURL != "" {
		t.Fatalf("hosted image: want origin fallback got=%+v", res)
	}
}

func TestReplicateVersionedModelPolls(t *testing.T) {
	var polls int32
	var created map[string]any
	saver := &fakeSaver{}
	p, err := NewReplicate(logger.NewNop(), ReplicateConfig{
		APIToken:     "r8_test",
		BaseURL:      "http://replicate.test",
		Model:        ReplicateSDXL,
		PollInterval: 1,
		Policy:       retry.Policy{Attempts: 1},
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			switch {
			case r.Method == http.MethodPost && r.URL.Path == "/v1/predictions":
				if r.Header.Get("Prefer") != "wait" {
					t.Fatalf("Prefer header missing")
				}
				_ = json.NewDecoder(r.Body).Decode(&created)
				return jsonResp(`{"id":"p1","status":"processing","urls":{"get":"http://replicate.test/v1/predictions/p1"}}`), nil
			case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/p1":
				if atomic.AddInt32(&polls, 1) < 2 {
					return jsonResp(`{"id":"p1","status":"processing","urls":{"get":"http://replicate.test/v1/predictions/p1"}}`), nil
				}
				return jsonResp(`{"id":"p1","status":"succeeded","output":["https://replicate.delivery/out.png"]}`), nil
			}
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
			return nil, nil
		})},
	}, saver)
	if err != nil {
		t.Fatalf("NewReplicate: %v", err)
	}

	res, err := p.GenerateFromText(context.Background(), "serum", 1024, 1024)
	if err != nil {
		t.Fatalf("GenerateFromText: %v", err)
	}
	if res.OriginURL != "https://replicate.delivery/out.png" {
		t.Fatalf("origin: got=%q", res.OriginURL)
	}
	if len(saver.fromURL) != 1 || saver.fromURL[0] != res.OriginURL {
		t.Fatalf("saver should download origin url: %v", saver.fromURL)
	}
	if !strings.HasPrefix(ReplicateSDXL, "stability-ai/sdxl:") || created["version"] == nil {
		t.Fatalf("versioned model should send version: %v", created)
	}
	input, _ := created["input"].(map[string]any)
	if input["scheduler"] != "K_EULER" {
		t.Fatalf("sdxl params missing: %v", input)
	}
}

func TestReplicateFailedPrediction(t *testing.T) {
	p, _ := NewReplicate(logger.NewNop(), ReplicateConfig{
		APIToken: "r8_test",
		BaseURL:  "http://replicate.test",
		Model:    ReplicateIdeogram,
		Policy:   retry.Policy{Attempts: 1},
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/v1/models/ideogram-ai/ideogram-v2-turbo/predictions" {
				t.Fatalf("path: got=%q", r.URL.Path)
			}
			return jsonResp(`{"id":"p2","status":"failed","error":"nsfw"}`), nil
		})},
	}, nil)
	_, err := p.GenerateFromText(context.Background(), "x", 1920, 1080)
	var ge *Error
	if !errors.As(err, &ge) || ge.Provider != "replicate" {
		t.Fatalf("want *imagegen.Error from replicate, got=%v", err)
	}
}

func TestReplicateInputIdeogramUsesAspectRatio(t *testing.T) {
	in := replicateInput(ReplicateIdeogram, "p", 1920, 1080)
	if in["aspect_ratio"] != "16:9" {
		t.Fatalf("aspect_ratio: got=%v", in["aspect_ratio"])
	}
	if _, ok := in["width"]; ok {
		t.Fatalf("ideogram input should not carry width")
	}
}

func TestOpenAISize(t *testing.T) {
	if openAISize(1920, 1080) != "1536x1024" || openAISize(1080, 1920) != "1024x1536" || openAISize(0, 0) != "1024x1024" {
		t.Fatalf("openAISize mapping wrong")
	}
}

func jsonResp(body string) *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Header: make(http.Header), Body: io.NopCloser(strings.NewReader(body))}
}
