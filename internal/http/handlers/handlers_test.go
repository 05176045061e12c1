package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/adstudio-backend/internal/domain"
	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/http/response"
	"github.com/yungbote/adstudio-backend/internal/pkg/llmjson"
	"github.com/yungbote/adstudio-backend/internal/platform/ctxutil"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/realtime"
	"github.com/yungbote/adstudio-backend/internal/services"
)

var testUser = uuid.MustParse("6f1c2b1e-3a43-4c55-9f0e-2f6f9d1c0a11")

type fakeGeneration struct {
	gen    *services.GenerateRequest
	image  *services.RegenerateImageRequest
	copy   *services.RegenerateCopyRequest
	events []services.ProgressEvent
	err    error
}

func (f *fakeGeneration) result() *services.GenerationResult {
	return &services.GenerationResult{
		Draft:          content.Draft{Copy: content.Copy{Tone: "casual", Text: "Your glow, but brighter."}},
		GenerationTime: 1.5,
	}
}

func (f *fakeGeneration) Generate(_ context.Context, req services.GenerateRequest) (*services.GenerationResult, error) {
	f.gen = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.result(), nil
}

func (f *fakeGeneration) GenerateStream(_ context.Context, req services.GenerateRequest, sink services.ProgressSink) error {
	f.gen = &req
	for _, ev := range f.events {
		sink.Emit(ev)
	}
	return f.err
}

func (f *fakeGeneration) RegenerateImage(_ context.Context, req services.RegenerateImageRequest) (*services.GenerationResult, error) {
	f.image = &req
	return f.result(), f.err
}

func (f *fakeGeneration) RegenerateCopy(_ context.Context, req services.RegenerateCopyRequest) (*services.GenerationResult, error) {
	f.copy = &req
	return f.result(), f.err
}

type fakeIntent struct{ text string }

func (f *fakeIntent) ClassifyIntent(_ context.Context, text string) content.Intent {
	f.text = text
	return content.Intent{Type: content.IntentImage, Intent: "change background"}
}

type fakeSim struct {
	force  bool
	err    error
	detail *services.PerformanceDetail
}

func (f *fakeSim) PredictPerformance(context.Context, uuid.UUID) (*types.Performance, error) {
	return nil, errors.New("unused")
}

func (f *fakeSim) Predict(_ context.Context, id uuid.UUID, force bool) (*services.Prediction, error) {
	f.force = force
	if f.err != nil {
		return nil, f.err
	}
	return &services.Prediction{
		Performance: &types.Performance{ContentID: id, Impressions: 1200, Clicks: 600, CTR: 50},
		IsNew:       force,
	}, nil
}

func (f *fakeSim) Summary(context.Context, uuid.UUID) (*services.PerformanceSummary, error) {
	return &services.PerformanceSummary{Exists: false}, nil
}

func (f *fakeSim) Detailed(context.Context, uuid.UUID) (*services.PerformanceDetail, error) {
	return f.detail, nil
}

func withUser(c *gin.Context) {
	ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: testUser})
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

type testAPI struct {
	engine *gin.Engine
	gen    *fakeGeneration
	intent *fakeIntent
	sim    *fakeSim
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	api := &testAPI{engine: gin.New(), gen: &fakeGeneration{}, intent: &fakeIntent{}, sim: &fakeSim{}}

	ch := NewContentHandler(log, api.gen, api.intent)
	ph := NewPerformanceHandler(log, api.sim)

	g := api.engine.Group("/api", withUser)
	g.POST("/content/generate", ch.Generate)
	g.POST("/content/generate-stream", ch.GenerateStream)
	g.POST("/content/regenerate-image", ch.RegenerateImage)
	g.POST("/content/regenerate-copy", ch.RegenerateCopy)
	g.POST("/content/intent", ch.ClassifyIntent)
	g.POST("/performance/predict/:id", ph.Predict)
	g.GET("/performance/:id", ph.Summary)
	g.GET("/performance/:id/detailed", ph.Detailed)
	return api
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.APIError {
	t.Helper()
	var env response.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env.Error
}

const serumBody = `{
	"product_name": "Vitamin C Serum",
	"product_description": "Brightening serum",
	"category": "beauty",
	"target_ages": ["20-29"],
	"target_genders": ["female"],
	"target_interests": ["skincare"],
	"customPrompt": "make it warmer",
	"regenerate_type": "auto",
	"copy_tone": "casual"
}`

func TestGenerateMapsRequest(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPost, "/api/content/generate", serumBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	req := api.gen.gen
	if req == nil {
		t.Fatal("generation service not called")
	}
	if req.UserID != testUser {
		t.Fatalf("user: want=%s got=%s", testUser, req.UserID)
	}
	if req.Product.Name != "Vitamin C Serum" || req.Target.Ages[0] != "20-29" {
		t.Fatalf("product/target not mapped: %+v %+v", req.Product, req.Target)
	}
	if req.CustomRequest != "make it warmer" {
		t.Fatalf("customPrompt alias: got=%q", req.CustomRequest)
	}
	if !req.SaveToDB {
		t.Fatal("save_to_db should default to true")
	}
	if req.Strategy != nil {
		t.Fatalf("no strategy was sent, got %+v", req.Strategy)
	}

	var out struct {
		Success bool                      `json:"success"`
		Data    services.GenerationResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.Data.Draft.Copy.Text != "Your glow, but brighter." {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestGenerateRejectsMissingProductName(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPost, "/api/content/generate", `{"category":"beauty"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", rec.Code)
	}
	if e := decodeEnvelope(t, rec); e.Code != "invalid_request" {
		t.Fatalf("code: want=invalid_request got=%q", e.Code)
	}
	if api.gen.gen != nil {
		t.Fatal("service should not be called")
	}
}

func TestGenerateFailureEnvelope(t *testing.T) {
	api := newTestAPI(t)
	api.gen.err = &services.PipelineError{Stage: "image", Err: errors.New("provider down")}
	rec := api.do(http.MethodPost, "/api/content/generate", serumBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", rec.Code)
	}
	e := decodeEnvelope(t, rec)
	if e.Code != "generation_failed" || e.Message != "image stage failed: provider down" {
		t.Fatalf("envelope: got=%+v", e)
	}
}

func TestGenerateStreamWritesFramesInOrder(t *testing.T) {
	api := newTestAPI(t)
	api.gen.events = []services.ProgressEvent{
		{Type: services.EventProgress, Step: 1, Total: 8, Message: "Analyzing target"},
		{Type: services.EventProgress, Step: 2, Total: 8, Message: "Choosing strategy"},
		services.CompleteEvent(&services.GenerationResult{GenerationTime: 2}),
	}
	rec := api.do(http.MethodPost, "/api/content/generate-stream", serumBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type: got=%q", ct)
	}

	var events []string
	var frames []services.ProgressEvent
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			events = append(events, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			var ev services.ProgressEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			frames = append(frames, ev)
		}
	}
	want := []string{"progress", "progress", "complete"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("events: want=%v got=%v", want, events)
	}
	if frames[1].Step != 2 || !frames[2].Terminal() || frames[2].GenerationTime != 2 {
		t.Fatalf("frames: got=%+v", frames)
	}
}

func TestRegenerateCopyRebuildsStrategy(t *testing.T) {
	api := newTestAPI(t)
	body := `{
		"product_name": "Vitamin C Serum",
		"strategy_name": "Glow Up",
		"core_message": "Visible glow in a week",
		"copy_tone": "impact",
		"save_to_db": false,
		"image": {"prompt": "serum bottle on marble", "original_url": "https://img/1.png", "provider": "dalle"}
	}`
	rec := api.do(http.MethodPost, "/api/content/regenerate-copy", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	req := api.gen.copy
	if req.Strategy.Name != "Glow Up" || req.Strategy.CoreMessage != "Visible glow in a week" {
		t.Fatalf("strategy: got=%+v", req.Strategy)
	}
	if req.SaveToDB {
		t.Fatal("save_to_db=false ignored")
	}
	if req.Image.Prompt != "serum bottle on marble" || req.CopyTone != "impact" {
		t.Fatalf("image/tone: got=%+v %q", req.Image, req.CopyTone)
	}
}

func TestRegenerateRequiresStrategy(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/content/regenerate-copy", "/api/content/regenerate-image"} {
		rec := api.do(http.MethodPost, path, `{"product_name":"Serum"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: want=400 got=%d", path, rec.Code)
		}
	}
}

func TestRegenerateImageUsesPriorPrompt(t *testing.T) {
	api := newTestAPI(t)
	body := `{
		"product_name": "Vitamin C Serum",
		"selected_strategy": {"id": 2, "name": "Clean Science", "core_message": "Dermatologist tested"},
		"copy": {"tone": "professional", "text": "Clinically proven radiance."},
		"image": {"prompt": "serum bottle on marble"},
		"custom_request": "blue background",
		"image_provider": "replicate"
	}`
	rec := api.do(http.MethodPost, "/api/content/regenerate-image", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	req := api.gen.image
	if req.ImagePrompt != "serum bottle on marble" || req.CustomRequest != "blue background" {
		t.Fatalf("prompt/custom: got=%q %q", req.ImagePrompt, req.CustomRequest)
	}
	if req.Strategy.ID != 2 || req.Copy.Text != "Clinically proven radiance." || req.ImageProvider != "replicate" {
		t.Fatalf("mapping: got=%+v", req)
	}
}

func TestClassifyIntent(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPost, "/api/content/intent", `{"text":"change the background"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if api.intent.text != "change the background" {
		t.Fatalf("text: got=%q", api.intent.text)
	}
	if !strings.Contains(rec.Body.String(), `"type":"image"`) {
		t.Fatalf("body: %s", rec.Body.String())
	}
}

func TestPredictHandler(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		name   string
		path   string
		err    error
		status int
		code   string
		force  bool
	}{
		{"stored", "/api/performance/predict/" + id.String(), nil, http.StatusOK, "", false},
		{"forced", "/api/performance/predict/" + id.String() + "?force=true", nil, http.StatusOK, "", true},
		{"bad id", "/api/performance/predict/not-a-uuid", nil, http.StatusBadRequest, "invalid_id", false},
		{"missing", "/api/performance/predict/" + id.String(), services.ErrContentNotFound, http.StatusNotFound, "content_not_found", false},
		{"malformed", "/api/performance/predict/" + id.String(), &llmjson.MalformedOutputError{Raw: "nope"}, http.StatusBadGateway, "malformed_llm_output", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.sim.err = tc.err
			rec := api.do(http.MethodPost, tc.path, "")
			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.code != "" {
				if e := decodeEnvelope(t, rec); e.Code != tc.code {
					t.Fatalf("code: want=%s got=%s", tc.code, e.Code)
				}
				return
			}
			if api.sim.force != tc.force {
				t.Fatalf("force: want=%v got=%v", tc.force, api.sim.force)
			}
			if !strings.Contains(rec.Body.String(), `"impressions":1200`) {
				t.Fatalf("body: %s", rec.Body.String())
			}
		})
	}
}

func TestPerformanceReads(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New().String()

	rec := api.do(http.MethodGet, "/api/performance/"+id, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"exists":false`) {
		t.Fatalf("summary: got=%d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(http.MethodGet, "/api/performance/"+id+"/detailed", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("detailed without data: want=404 got=%d", rec.Code)
	}

	api.sim.detail = &services.PerformanceDetail{DataSource: "ai_simulation", Metrics: &content.Metrics{Impressions: 900}}
	rec = api.do(http.MethodGet, "/api/performance/"+id+"/detailed", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"impressions":900`) {
		t.Fatalf("detailed: got=%d %s", rec.Code, rec.Body.String())
	}
}

func TestRealtimeRequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRealtimeHandler(logger.NewNop(), realtime.NewSSEHub(logger.NewNop()))
	r := gin.New()
	r.GET("/api/events/stream", h.SSEStream)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/stream", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", rec.Code)
	}
}

func TestRealtimeStreamsUserChannel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := realtime.NewSSEHub(logger.NewNop())
	h := NewRealtimeHandler(logger.NewNop(), hub)
	r := gin.New()
	r.GET("/api/events/stream", withUser, h.SSEStream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	respCh := make(chan *http.Response, 1)
	go func() {
		resp, err := srv.Client().Do(req)
		if err != nil {
			close(respCh)
			return
		}
		respCh <- resp
	}()

	channel := realtime.UserChannel(testUser)
	for hub.Subscribers(channel) == 0 {
		if ctx.Err() != nil {
			t.Fatal("client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast(realtime.SSEMessage{Channel: channel, Event: realtime.SSEEventPerformanceReady, Data: map[string]any{"is_new": true}})

	resp, ok := <-respCh
	if !ok {
		t.Fatal("stream request failed")
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type: got=%q", ct)
	}
	sc := bufio.NewScanner(resp.Body)
	var frame string
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data: ") {
			frame = line
			break
		}
	}
	if !strings.Contains(frame, `"event":"PerformanceReady"`) {
		t.Fatalf("frame: got=%q", frame)
	}

	cancel()
	for hub.Subscribers(channel) != 0 {
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		checks map[string]Checker
		status int
	}{
		{"no checks", nil, http.StatusOK},
		{"healthy", map[string]Checker{"db": func(context.Context) error { return nil }}, http.StatusOK},
		{"degraded", map[string]Checker{"redis": func(context.Context) error { return errors.New("refused") }}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/healthcheck", NewHealthHandler(tc.checks).HealthCheck)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d", tc.status, rec.Code)
			}
		})
	}
}
