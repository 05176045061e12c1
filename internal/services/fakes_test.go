package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	contentrepo "github.com/yungbote/adstudio-backend/internal/data/repos/content"
	"github.com/yungbote/adstudio-backend/internal/data/repos/testutil"
	types "github.com/yungbote/adstudio-backend/internal/domain"
	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/platform/imagegen"
	"github.com/yungbote/adstudio-backend/internal/platform/llm"
	"github.com/yungbote/adstudio-backend/internal/platform/qdrant"
	"github.com/yungbote/adstudio-backend/internal/prompts"
)

// Keys identify catalog prompts by a phrase unique to each.
const (
	callInsights    = "consumer-insight analyst"
	callStrategies  = "marketing strategist"
	callCopies      = "advertising copywriter"
	callImagePrompt = "expert at writing prompts for image generation"
	callEditPrompt  = "modifying image generation prompts"
	callIntent      = "route regeneration requests"
	callPersonas    = "builds realistic audience panels"
	callReactions   = "marketing performance analyst"
	callScene       = "EXACT product"
)

var allCalls = []string{
	callInsights, callStrategies, callCopies, callImagePrompt, callEditPrompt,
	callIntent, callPersonas, callReactions, callScene,
}

const (
	insightsJSON   = `{"target_ages":["20-29","30-39"],"target_interests":["skincare","wellness"],"pain_points":["dull skin"],"preferred_channels":["instagram"],"tone_preferences":["casual"],"lifestyle":"urban","purchase_motivations":["results"]}`
	strategiesJSON = "```json\n" + `{"strategies":[{"name":"Glow Up","core_message":"Visible radiance in 7 days"},{"name":"Clean Science","core_message":"Backed by research"},{"name":"Daily Ritual","core_message":"A moment for you"}]}` + "\n```"
	copiesJSON     = `{"copies":[{"tone":"professional","text":"Clinically proven radiance.","hashtags":["#vitaminc"]},{"tone":"casual","text":"Your glow, but brighter."},{"tone":"impact","text":"7 days. Real glow."}]}`
	personasJSON   = `[{"name":"Mina","age":24,"occupation":"designer"},{"name":"Joon","age":27,"occupation":"engineer"},{"name":"Sora","age":22,"occupation":"student"},{"name":"Hana","age":29,"occupation":"nurse"}]`
	reactionsJSON  = `{"reactions":[{"persona_name":"Mina","will_click":true,"engagement_action":"like","will_convert":true,"brand_recall":80},{"persona_name":"Joon","will_click":true,"engagement_action":null,"will_convert":false,"brand_recall":60},{"persona_name":"Sora","will_click":false,"engagement_action":null,"will_convert":false,"brand_recall":40},{"persona_name":"Hana","will_click":false,"engagement_action":"save","will_convert":false,"brand_recall":20}],"overall_metrics":{"total_impressions":4,"total_clicks":2}}`
)

// fakeLLM answers catalog prompts with canned output and counts calls.
type fakeLLM struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     map[string]int
	temps     map[string][]float64
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		responses: map[string]string{
			callInsights:    insightsJSON,
			callStrategies:  strategiesJSON,
			callCopies:      copiesJSON,
			callImagePrompt: `"A glass serum bottle on wet marble, morning light"`,
			callEditPrompt:  "A glass serum bottle on pink marble, morning light",
			callIntent:      `{"type":"image","intent":"warmer background","modifications":["background color"]}`,
			callPersonas:    personasJSON,
			callReactions:   reactionsJSON,
			callScene:       "A woman holding the serum in a bright bathroom",
		},
		errs:  map[string]error{},
		calls: map[string]int{},
		temps: map[string][]float64{},
	}
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range allCalls {
		if !strings.Contains(req.System, key) && !(req.System == "" && strings.Contains(req.Prompt, key)) {
			continue
		}
		f.calls[key]++
		f.temps[key] = append(f.temps[key], req.Temperature)
		if err := f.errs[key]; err != nil {
			return "", err
		}
		return f.responses[key], nil
	}
	return "", errors.New("fake llm: unrecognised prompt")
}

func (f *fakeLLM) set(key, response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key] = response
}

func (f *fakeLLM) fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[key] = err
}

func (f *fakeLLM) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

type fakeTextImage struct {
	name  string
	calls int
	last  string
	err   error
}

func (p *fakeTextImage) Name() string { return p.name }

func (p *fakeTextImage) GenerateFromText(ctx context.Context, prompt string, width, height int) (imagegen.Result, error) {
	p.calls++
	p.last = prompt
	if p.err != nil {
		return imagegen.Result{}, p.err
	}
	return imagegen.Result{
		OriginURL: "https://images.example.com/" + p.name + ".png",
		LocalURL:  "/static/images/" + p.name + ".png",
		Provider:  p.name,
	}, nil
}

type fakeReferenceImage struct {
	calls int
	mime  string
}

func (p *fakeReferenceImage) Name() string { return "gemini" }

func (p *fakeReferenceImage) GenerateFromReference(ctx context.Context, image []byte, mimeType, prompt string) (imagegen.Result, error) {
	p.calls++
	p.mime = mimeType
	return imagegen.Result{LocalURL: "/static/images/scene.png", Provider: "gemini"}, nil
}

// fakeRAG records indexing and serves fixed references.
type fakeRAG struct {
	mu      sync.Mutex
	refs    []content.Reference
	err     error
	queries []ReferenceQuery
	indexed []uuid.UUID
}

func (r *fakeRAG) Index(ctx context.Context, id, text string, metadata map[string]any) error {
	return nil
}

func (r *fakeRAG) IndexContent(ctx context.Context, row *types.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, row.ID)
	return nil
}

func (r *fakeRAG) Search(ctx context.Context, queryText string, filter qdrant.Filter, limit int) ([]qdrant.Match, error) {
	return nil, r.err
}

func (r *fakeRAG) References(ctx context.Context, q ReferenceQuery) ([]content.Reference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	if r.err != nil {
		return nil, r.err
	}
	return r.refs, nil
}

func (r *fakeRAG) Forget(ctx context.Context, ids []string) error { return nil }

type recordedEvent struct {
	userID uuid.UUID
	ev     ProgressEvent
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
	ready  []uuid.UUID
}

func (n *fakeNotifier) GenerationEvent(userID uuid.UUID, ev ProgressEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{userID: userID, ev: ev})
}

func (n *fakeNotifier) PerformanceReady(userID uuid.UUID, contentID uuid.UUID, isNew bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = append(n.ready, contentID)
}

// harness is a generation service over fakes and a private database.
type harness struct {
	db       *gorm.DB
	llm      *fakeLLM
	text     *fakeTextImage
	alt      *fakeTextImage
	ref      *fakeReferenceImage
	rag      *fakeRAG
	notifier *fakeNotifier
	contents contentrepo.ContentRepo
	perfs    contentrepo.PerformanceRepo
	sim      SimulationService
	svc      GenerationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	registry := prompts.MustDefault()

	h := &harness{
		db:       db,
		llm:      newFakeLLM(),
		text:     &fakeTextImage{name: "dalle"},
		alt:      &fakeTextImage{name: "replicate"},
		ref:      &fakeReferenceImage{},
		rag:      &fakeRAG{},
		notifier: &fakeNotifier{},
		contents: contentrepo.NewContentRepo(db, log),
		perfs:    contentrepo.NewPerformanceRepo(db, log),
	}
	h.sim = NewSimulationService(db, log, h.llm, registry, h.contents, h.perfs, h.rag, SimulationConfig{
		PersonaCount: 4,
		Scale:        FixedScale(300),
		Notifier:     h.notifier,
	})
	h.svc = NewGenerationService(
		db,
		log,
		NewCopywriter(log, h.llm, registry),
		NewIntentClassifier(log, h.llm, registry),
		h.rag,
		h.sim,
		ImageProviders{
			Default:   h.text,
			ByName:    map[string]imagegen.TextToImage{"dalle": h.text, "replicate": h.alt},
			Reference: h.ref,
		},
		h.contents,
		h.notifier,
		GenerationConfig{},
	)
	return h
}

func serumRequest() GenerateRequest {
	return GenerateRequest{
		UserID: uuid.New(),
		Product: content.Product{
			Name:        "Vitamin C Serum",
			Description: "Brightening serum with 15% vitamin C",
			Category:    "beauty",
		},
		Target: content.Target{
			Ages:    []string{"20-29"},
			Genders: []string{"female"},
		},
		SaveToDB: true,
	}
}
