package services

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	contentrepo "github.com/yungbote/adstudio-backend/internal/data/repos/content"
	types "github.com/yungbote/adstudio-backend/internal/domain"
	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/observability"
	"github.com/yungbote/adstudio-backend/internal/pkg/dbctx"
	"github.com/yungbote/adstudio-backend/internal/platform/imagegen"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

var tracer = otel.Tracer("github.com/yungbote/adstudio-backend/internal/services")

const (
	totalSteps            = 8
	generationRAGLimit    = 3
	referenceProviderNote = " (product-based)"
	failureRecordTimeout  = 10 * time.Second
)

// Mode is the pipeline shape, resolved once per request.
type Mode int

const (
	ModeFullGeneration Mode = iota
	ModeImageOnly
	ModeCopyOnly
)

func (m Mode) String() string {
	switch m {
	case ModeImageOnly:
		return "image_only"
	case ModeCopyOnly:
		return "copy_only"
	default:
		return "full_generation"
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "full_generation":
		*m = ModeFullGeneration
	case "image_only":
		*m = ModeImageOnly
	case "copy_only":
		*m = ModeCopyOnly
	default:
		return fmt.Errorf("unknown generation mode %q", b)
	}
	return nil
}

// Raw regenerate_type values accepted from callers.
const (
	RegenerateAll   = "all"
	RegenerateImage = "image"
	RegenerateCopy  = "copy"
	RegenerateAuto  = "auto"
)

type GenerateRequest struct {
	UserID          uuid.UUID
	ProjectID       *uuid.UUID
	ParentContentID *uuid.UUID

	Product content.Product
	Target  content.Target

	RegenerateType string
	CustomRequest  string
	StrategyID     int
	CopyTone       string
	SaveToDB       bool
	ImageProvider  string
	AspectRatio    string

	// Strategy skips insights and strategy generation when set.
	Strategy            *content.Strategy
	PreviousCopy        *content.Copy
	PreviousImage       *content.Image
	PreviousImagePrompt string
}

type RegenerateImageRequest struct {
	UserID          uuid.UUID
	ProjectID       *uuid.UUID
	ParentContentID *uuid.UUID
	Product         content.Product
	Target          content.Target
	Strategy        content.Strategy
	Copy            content.Copy
	ImagePrompt     string
	CustomRequest   string
	SaveToDB        bool
	ImageProvider   string
	AspectRatio     string
}

type RegenerateCopyRequest struct {
	UserID          uuid.UUID
	ProjectID       *uuid.UUID
	ParentContentID *uuid.UUID
	Product         content.Product
	Target          content.Target
	Strategy        content.Strategy
	CopyTone        string
	Image           content.Image
	SaveToDB        bool
}

type GenerationResult struct {
	Mode                  Mode                    `json:"mode"`
	Intent                *content.Intent         `json:"intent,omitempty"`
	Draft                 content.Draft           `json:"draft"`
	Insights              *content.TargetInsights `json:"target_insights,omitempty"`
	ReferencesUsed        int                     `json:"references_used"`
	ContentID             *uuid.UUID              `json:"content_id"`
	PerformancePrediction *content.Metrics        `json:"performance_prediction"`
	GenerationTime        float64                 `json:"generation_time"`
}

// PipelineError is a failure of a mandatory stage.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string { return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err) }

func (e *PipelineError) Unwrap() error { return e.Err }

// ImageProviders selects an image backend per request. Reference may be nil,
// in which case product photos are ignored.
type ImageProviders struct {
	Default   imagegen.TextToImage
	ByName    map[string]imagegen.TextToImage
	Reference imagegen.ReferenceImage
}

func (p ImageProviders) text(name string) imagegen.TextToImage {
	if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
		if t, ok := p.ByName[name]; ok {
			return t
		}
	}
	return p.Default
}

type GenerationConfig struct {
	// Timeout bounds one pipeline run after it is detached from the caller.
	Timeout time.Duration
}

type GenerationService interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error)
	GenerateStream(ctx context.Context, req GenerateRequest, sink ProgressSink) error
	RegenerateImage(ctx context.Context, req RegenerateImageRequest) (*GenerationResult, error)
	RegenerateCopy(ctx context.Context, req RegenerateCopyRequest) (*GenerationResult, error)
}

type generationService struct {
	db          *gorm.DB
	log         *logger.Logger
	writer      Copywriter
	intent      IntentClassifier
	rag         RAGService
	sim         SimulationService
	images      ImageProviders
	contentRepo contentrepo.ContentRepo
	notifier    GenerationNotifier
	cfg         GenerationConfig
	now         func() time.Time
}

// NewGenerationService wires the orchestrator. rag, sim and notifier are
// optional; their stages are skipped when nil.
func NewGenerationService(
	db *gorm.DB,
	log *logger.Logger,
	writer Copywriter,
	intent IntentClassifier,
	rag RAGService,
	sim SimulationService,
	images ImageProviders,
	contentRepo contentrepo.ContentRepo,
	notifier GenerationNotifier,
	cfg GenerationConfig,
) GenerationService {
	return &generationService{
		db:          db,
		log:         log.With("service", "GenerationService"),
		writer:      writer,
		intent:      intent,
		rag:         rag,
		sim:         sim,
		images:      images,
		contentRepo: contentRepo,
		notifier:    notifier,
		cfg:         cfg,
		now:         time.Now,
	}
}

// run is the state of one pipeline execution.
type run struct {
	id         uuid.UUID
	req        GenerateRequest
	mode       Mode
	intent     *content.Intent
	draft      content.Draft
	insights   *content.TargetInsights
	refs       []content.Reference
	row        *types.Content
	prediction *content.Metrics
	started    time.Time
	step       int
	sink       ProgressSink
}

func (r *run) emit(ev ProgressEvent) {
	if r.sink != nil {
		r.sink.Emit(ev)
	}
}

func (s *generationService) Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error) {
	return s.execute(ctx, req, nil)
}

func (s *generationService) GenerateStream(ctx context.Context, req GenerateRequest, sink ProgressSink) error {
	_, err := s.execute(ctx, req, sink)
	return err
}

func (s *generationService) RegenerateImage(ctx context.Context, req RegenerateImageRequest) (*GenerationResult, error) {
	strategy := req.Strategy
	prior := req.Copy
	return s.execute(ctx, GenerateRequest{
		UserID:              req.UserID,
		ProjectID:           req.ProjectID,
		ParentContentID:     req.ParentContentID,
		Product:             req.Product,
		Target:              req.Target,
		RegenerateType:      RegenerateImage,
		CustomRequest:       req.CustomRequest,
		SaveToDB:            req.SaveToDB,
		ImageProvider:       req.ImageProvider,
		AspectRatio:         req.AspectRatio,
		Strategy:            &strategy,
		PreviousCopy:        &prior,
		PreviousImagePrompt: req.ImagePrompt,
	}, nil)
}

func (s *generationService) RegenerateCopy(ctx context.Context, req RegenerateCopyRequest) (*GenerationResult, error) {
	strategy := req.Strategy
	if strategy.ID == 0 {
		strategy.ID = 1
	}
	prior := req.Image
	return s.execute(ctx, GenerateRequest{
		UserID:              req.UserID,
		ProjectID:           req.ProjectID,
		ParentContentID:     req.ParentContentID,
		Product:             req.Product,
		Target:              req.Target,
		RegenerateType:      RegenerateCopy,
		CopyTone:            req.CopyTone,
		SaveToDB:            req.SaveToDB,
		Strategy:            &strategy,
		PreviousImage:       &prior,
		PreviousImagePrompt: prior.Prompt,
	}, nil)
}

// detach keeps a run alive after the client goes away; generated assets are
// paid for and persisted either way.
func (s *generationService) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(base, s.cfg.Timeout)
	}
	return context.WithCancel(base)
}

func (s *generationService) execute(ctx context.Context, req GenerateRequest, sink ProgressSink) (*GenerationResult, error) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	r := &run{
		id:      uuid.New(),
		req:     req,
		started: s.now(),
		sink:    s.relay(req.UserID, sink),
	}
	r.draft.Product = req.Product
	r.draft.Target = req.Target

	ctx, span := tracer.Start(ctx, "generation.run", trace.WithAttributes(
		attribute.String("run_id", r.id.String()),
		attribute.String("regenerate_type", req.RegenerateType),
	))
	defer span.End()

	s.resolveMode(ctx, r)
	span.SetAttributes(attribute.String("mode", r.mode.String()))
	log := s.log.With("run_id", r.id, "mode", r.mode.String(), "product", req.Product.Name)
	log.Info("Generation started")

	res, err := s.pipeline(ctx, r)
	observability.Current().ObserveGeneration(r.mode.String(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Generation failed", "error", err)
		s.recordFailure(ctx, r, err)
		r.emit(ErrorEvent(err))
		return nil, err
	}
	log.Info("Generation finished", "content_id", res.ContentID, "seconds", res.GenerationTime)
	r.emit(CompleteEvent(res))
	return res, nil
}

// resolveMode maps the raw regenerate type onto a Mode. An unclassifiable
// auto request runs the full pipeline.
func (s *generationService) resolveMode(ctx context.Context, r *run) {
	custom := strings.TrimSpace(r.req.CustomRequest)
	switch strings.ToLower(strings.TrimSpace(r.req.RegenerateType)) {
	case RegenerateImage:
		r.mode = ModeImageOnly
	case RegenerateCopy:
		r.mode = ModeCopyOnly
	case RegenerateAuto:
		if custom == "" || s.intent == nil {
			r.mode = ModeFullGeneration
			return
		}
		intent := s.intent.ClassifyIntent(ctx, custom)
		r.intent = &intent
		switch intent.Type {
		case content.IntentImage:
			r.mode = ModeImageOnly
		case content.IntentCopy:
			r.mode = ModeCopyOnly
		default:
			r.mode = ModeFullGeneration
		}
	default:
		r.mode = ModeFullGeneration
	}
}

type stageFunc func(ctx context.Context, r *run) error

func (s *generationService) pipeline(ctx context.Context, r *run) (*GenerationResult, error) {
	stages := []struct {
		name    string
		message string
		fn      stageFunc
	}{
		{"target_insights", "Analyzing target audience", s.analyzeTarget},
		{"strategy", "Generating marketing strategies", s.chooseStrategy},
		{"copy", "Writing ad copy", s.writeCopy},
		{"image_prompt", "Converting copy to an image prompt", s.buildImagePrompt},
		{"image", "Generating image", s.synthesizeImage},
		{"persist", "Saving content", s.persist},
		{"index", "Indexing content for similarity search", s.index},
		{"performance", "Predicting performance", s.predict},
	}
	for _, st := range stages {
		if err := s.stage(ctx, r, st.name, st.message, st.fn); err != nil {
			return nil, err
		}
	}

	elapsed := s.now().Sub(r.started).Seconds()
	res := &GenerationResult{
		Mode:                  r.mode,
		Intent:                r.intent,
		Draft:                 r.draft,
		Insights:              r.insights,
		ReferencesUsed:        len(r.refs),
		PerformancePrediction: r.prediction,
		GenerationTime:        math.Round(elapsed*100) / 100,
	}
	if r.row != nil {
		id := r.row.ID
		res.ContentID = &id
	}
	return res, nil
}

func (s *generationService) stage(ctx context.Context, r *run, name, message string, fn stageFunc) error {
	r.step++
	r.emit(ProgressEvent{Type: EventProgress, Step: r.step, Total: totalSteps, Message: message})

	ctx, span := tracer.Start(ctx, "generation."+name)
	defer span.End()
	start := time.Now()
	err := fn(ctx, r)
	observability.Current().ObserveGenerationStage(name, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &PipelineError{Stage: name, Err: err}
	}
	return nil
}

func (s *generationService) analyzeTarget(ctx context.Context, r *run) error {
	t := &r.draft.Target
	defer func() {
		if len(t.Ages) == 0 {
			t.Ages = []string{content.DefaultAgeString}
		}
	}()
	if r.req.Strategy != nil || (len(t.Ages) > 0 && len(t.Interests) > 0) {
		return nil
	}
	insights, err := s.writer.TargetInsights(ctx, r.draft.Product, *t)
	if err != nil {
		s.log.Warn("Target insights unavailable; continuing with user target", "error", err)
		return nil
	}
	r.insights = insights
	if len(t.Ages) == 0 && len(insights.TargetAges) > 0 {
		t.Ages = insights.TargetAges
	}
	if len(t.Interests) == 0 && len(insights.TargetInterests) > 0 {
		t.Interests = insights.TargetInterests
	}
	return nil
}

func (s *generationService) chooseStrategy(ctx context.Context, r *run) error {
	if r.req.Strategy != nil {
		st := *r.req.Strategy
		r.draft.Strategy = &st
		return nil
	}
	r.refs = s.generationReferences(ctx, r)

	strategies, err := s.writer.Strategies(ctx, r.draft.Product, r.draft.Target, r.refs)
	if err != nil {
		return err
	}
	if len(strategies) == 0 {
		return fmt.Errorf("no strategies returned")
	}
	r.draft.Strategies = strategies
	selected := strategies[0]
	if r.req.StrategyID > 0 {
		for _, st := range strategies {
			if st.ID == r.req.StrategyID {
				selected = st
				break
			}
		}
	}
	r.draft.Strategy = &selected
	return nil
}

// generationReferences is best-effort: any failure yields no references.
func (s *generationService) generationReferences(ctx context.Context, r *run) []content.Reference {
	if s.rag == nil {
		return nil
	}
	p, t := r.draft.Product, r.draft.Target
	q := ReferenceQuery{
		Text:     fmt.Sprintf("Product: %s\nDescription: %s\nCategory: %s", p.Name, p.Description, p.Category),
		Category: p.Category,
		Limit:    generationRAGLimit,
	}
	if len(t.Ages) == 1 {
		q.TargetAge = t.Ages[0]
	}
	if len(t.Genders) == 1 && !strings.EqualFold(t.Genders[0], content.GenderAnyLabel) {
		q.TargetGender = t.Genders[0]
	}
	refs, err := s.rag.References(ctx, q)
	if err != nil {
		s.log.Warn("Reference lookup failed; generating without references", "error", err)
		return nil
	}
	return refs
}

func (s *generationService) writeCopy(ctx context.Context, r *run) error {
	if r.mode == ModeImageOnly {
		if r.req.PreviousCopy != nil {
			r.draft.Copy = *r.req.PreviousCopy
		} else {
			r.draft.Copy = content.Copy{Tone: r.req.CopyTone, Hashtags: []string{}}
		}
		return nil
	}
	copies, err := s.writer.Copies(ctx, r.draft.Product, r.draft.Target, *r.draft.Strategy, r.req.CopyTone)
	if err != nil {
		return err
	}
	if len(copies) == 0 {
		return fmt.Errorf("no copies returned")
	}
	r.draft.Copy = pickCopy(copies, r.req.CopyTone)
	return nil
}

func pickCopy(copies []content.Copy, tone string) content.Copy {
	tone = strings.ToLower(strings.TrimSpace(tone))
	if tone != "" {
		for _, c := range copies {
			if strings.EqualFold(c.Tone, tone) {
				return c
			}
		}
	}
	return copies[0]
}

func (s *generationService) buildImagePrompt(ctx context.Context, r *run) error {
	if r.mode == ModeCopyOnly {
		if r.req.PreviousImage != nil {
			r.draft.Image = *r.req.PreviousImage
		}
		if r.draft.Image.Prompt == "" {
			r.draft.Image.Prompt = r.req.PreviousImagePrompt
		}
		return nil
	}
	custom := strings.TrimSpace(r.req.CustomRequest)
	previous := strings.TrimSpace(r.req.PreviousImagePrompt)

	var (
		prompt string
		err    error
	)
	switch {
	case r.mode == ModeImageOnly && custom != "" && previous != "":
		prompt, err = s.writer.EditImagePrompt(ctx, previous, custom)
	default:
		source := r.draft.Copy.Text
		if source == "" {
			source = firstNonEmpty(r.draft.Product.Description, r.draft.Product.Name)
		}
		if custom != "" {
			source = source + ". " + custom
		}
		prompt, err = s.writer.ImagePrompt(ctx, source, r.draft.Product, r.draft.Target, *r.draft.Strategy)
	}
	if err != nil {
		return err
	}
	r.draft.Image.Prompt = prompt
	return nil
}

func (s *generationService) synthesizeImage(ctx context.Context, r *run) error {
	if r.mode == ModeCopyOnly {
		return nil
	}
	if res, ok, err := s.fromReference(ctx, r); ok || err != nil {
		if err != nil {
			return err
		}
		r.draft.Image = imageFromResult(r.draft.Image.Prompt, res)
		r.draft.Image.Provider = res.Provider + referenceProviderNote
		return nil
	}

	provider := s.images.text(r.req.ImageProvider)
	if provider == nil {
		return fmt.Errorf("no image provider configured")
	}
	w, h := imagegen.Dimensions(r.req.AspectRatio)
	res, err := provider.GenerateFromText(ctx, r.draft.Image.Prompt, w, h)
	if err != nil {
		return err
	}
	r.draft.Image = imageFromResult(r.draft.Image.Prompt, res)
	if r.draft.Image.Provider == "" {
		r.draft.Image.Provider = provider.Name()
	}
	return nil
}

// fromReference runs the product-photo branch. ok is false when the branch
// does not apply, including a missing photo on disk.
func (s *generationService) fromReference(ctx context.Context, r *run) (imagegen.Result, bool, error) {
	path := strings.TrimSpace(r.req.Product.ImagePath)
	if path == "" || s.images.Reference == nil {
		return imagegen.Result{}, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn("Product image unavailable; falling back to text-to-image", "path", path, "error", err)
		return imagegen.Result{}, false, nil
	}
	scene, err := s.writer.ReferenceScenePrompt(ctx, r.draft.Product, r.draft.Target, *r.draft.Strategy, r.req.CustomRequest)
	if err != nil {
		return imagegen.Result{}, true, err
	}
	res, err := s.images.Reference.GenerateFromReference(ctx, data, http.DetectContentType(data), scene)
	if err != nil {
		return imagegen.Result{}, true, err
	}
	if res.Provider == "" {
		res.Provider = s.images.Reference.Name()
	}
	return res, true, nil
}

func imageFromResult(prompt string, res imagegen.Result) content.Image {
	return content.Image{
		Prompt:      prompt,
		OriginalURL: res.OriginURL,
		LocalURL:    res.LocalURL,
		FilePath:    res.FilePath,
		Provider:    res.Provider,
	}
}

// persist is best-effort: a failed write leaves the result without an id.
func (s *generationService) persist(ctx context.Context, r *run) error {
	r.draft.GenerationTime = int(s.now().Sub(r.started).Seconds())
	if !r.req.SaveToDB {
		return nil
	}
	row := contentRecord(&r.req, &r.draft)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.contentRepo.Create(dbctx.Context{Ctx: ctx, Tx: tx}, row)
	})
	if err != nil {
		s.log.Warn("Content not saved; returning result without id", "run_id", r.id, "error", err)
		return nil
	}
	r.row = row
	return nil
}

func (s *generationService) index(ctx context.Context, r *run) error {
	if r.row == nil || s.rag == nil {
		return nil
	}
	if err := s.rag.IndexContent(ctx, r.row); err != nil {
		s.log.Warn("Content indexing failed", "content_id", r.row.ID, "error", err)
	}
	return nil
}

func (s *generationService) predict(ctx context.Context, r *run) error {
	if r.row == nil || s.sim == nil {
		return nil
	}
	perf, err := s.sim.PredictPerformance(ctx, r.row.ID)
	if err != nil {
		s.log.Warn("Performance prediction unavailable", "content_id", r.row.ID, "error", err)
		return nil
	}
	r.prediction = perf.Metrics()
	return nil
}

// recordFailure writes a failed row when the caller asked for persistence
// within a project.
func (s *generationService) recordFailure(ctx context.Context, r *run, cause error) {
	if r.req.ProjectID == nil || !r.req.SaveToDB {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureRecordTimeout)
	defer cancel()
	elapsed := int(s.now().Sub(r.started).Seconds())
	row := failedRecord(&r.req, cause.Error(), elapsed)
	if err := s.contentRepo.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		s.log.Warn("Failed-generation record not saved", "run_id", r.id, "error", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
