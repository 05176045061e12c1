package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	contentrepo "github.com/yungbote/adstudio-backend/internal/data/repos/content"
	types "github.com/yungbote/adstudio-backend/internal/domain"
	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/observability"
	"github.com/yungbote/adstudio-backend/internal/pkg/dbctx"
	"github.com/yungbote/adstudio-backend/internal/pkg/llmjson"
	"github.com/yungbote/adstudio-backend/internal/platform/llm"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/prompts"
)

const (
	DefaultPersonaCount = 100
	// SimulationConfidence marks a row as model output rather than measurement.
	SimulationConfidence = 0.75
	storedSampleSize     = 10
	calibrationLimit     = 5
	calibrationInPrompt  = 3
)

var ErrContentNotFound = errors.New("content not found")

// ScalePolicy returns the campaign-size multiplier applied to cohort counts.
type ScalePolicy func() int

// UniformScale draws an integer uniformly from [min, max].
func UniformScale(min, max int) ScalePolicy {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return func() int { return min + rand.IntN(max-min+1) }
}

// FixedScale always returns factor.
func FixedScale(factor int) ScalePolicy {
	return func() int { return factor }
}

type SimulationConfig struct {
	PersonaCount int
	Scale        ScalePolicy
	// Notifier, when set, announces stored predictions to the content owner.
	Notifier GenerationNotifier
}

type Prediction struct {
	Performance *types.Performance
	IsNew       bool
}

type PerformanceSummary struct {
	Exists          bool             `json:"exists"`
	DataSource      string           `json:"data_source,omitempty"`
	Metrics         *content.Metrics `json:"metrics,omitempty"`
	ConfidenceScore float64          `json:"confidence_score,omitempty"`
	IsAIPrediction  bool             `json:"is_ai_prediction"`
}

type PerformanceDetail struct {
	ID              uuid.UUID                `json:"id"`
	ContentID       uuid.UUID                `json:"content_id"`
	DataSource      string                   `json:"data_source"`
	Metrics         *content.Metrics         `json:"metrics"`
	PersonasData    *content.PersonasPayload `json:"personas_data,omitempty"`
	TargetBreakdown map[string]any           `json:"target_breakdown,omitempty"`
	ConfidenceScore float64                  `json:"confidence_score"`
	CreatedAt       time.Time                `json:"created_at"`
}

type SimulationService interface {
	// PredictPerformance runs a fresh simulation and stores it. A nil result
	// with an error means no prediction is available.
	PredictPerformance(ctx context.Context, contentID uuid.UUID) (*types.Performance, error)
	// Predict returns the stored prediction unless force is set or none exists.
	Predict(ctx context.Context, contentID uuid.UUID, force bool) (*Prediction, error)
	Summary(ctx context.Context, contentID uuid.UUID) (*PerformanceSummary, error)
	Detailed(ctx context.Context, contentID uuid.UUID) (*PerformanceDetail, error)
}

type simulationService struct {
	db          *gorm.DB
	log         *logger.Logger
	llm         llm.Completer
	prompts     *prompts.Registry
	contentRepo contentrepo.ContentRepo
	perfRepo    contentrepo.PerformanceRepo
	rag         RAGService
	cfg         SimulationConfig
	flight      singleflight.Group
}

// NewSimulationService wires the persona simulator. rag may be nil, which
// disables calibration.
func NewSimulationService(
	db *gorm.DB,
	log *logger.Logger,
	completer llm.Completer,
	registry *prompts.Registry,
	contentRepo contentrepo.ContentRepo,
	perfRepo contentrepo.PerformanceRepo,
	rag RAGService,
	cfg SimulationConfig,
) SimulationService {
	if cfg.PersonaCount <= 0 {
		cfg.PersonaCount = DefaultPersonaCount
	}
	if cfg.Scale == nil {
		cfg.Scale = UniformScale(200, 500)
	}
	return &simulationService{
		db:          db,
		log:         log.With("service", "SimulationService"),
		llm:         completer,
		prompts:     registry,
		contentRepo: contentRepo,
		perfRepo:    perfRepo,
		rag:         rag,
		cfg:         cfg,
	}
}

func (s *simulationService) PredictPerformance(ctx context.Context, contentID uuid.UUID) (*types.Performance, error) {
	perf, err := s.predictPerformance(ctx, contentID)
	impressions := 0
	if perf != nil {
		impressions = perf.Impressions
	}
	observability.Current().ObserveSimulation(impressions, err)
	if err != nil && !errors.Is(err, ErrContentNotFound) {
		s.log.Warn("Performance prediction failed", "content_id", contentID, "error", err)
	}
	return perf, err
}

func (s *simulationService) predictPerformance(ctx context.Context, contentID uuid.UUID) (*types.Performance, error) {
	row, err := s.contentRepo.GetByID(dbctx.Context{Ctx: ctx}, contentID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		s.log.Warn("Performance prediction skipped; content missing", "content_id", contentID)
		return nil, ErrContentNotFound
	}

	var (
		personas []content.Persona
		refs     []content.Reference
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		personas, err = s.generatePersonas(gctx, row)
		return err
	})
	g.Go(func() error {
		refs = s.calibrationReferences(gctx, row)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sim, err := s.simulateReactions(ctx, row, personas, refs)
	if err != nil {
		return nil, err
	}

	perf, err := s.buildPerformance(row, personas, sim.Reactions)
	if err != nil {
		return nil, err
	}
	if err := s.replace(ctx, perf); err != nil {
		return nil, err
	}
	s.log.Info("Performance predicted",
		"content_id", contentID,
		"personas", len(personas),
		"references", len(refs),
		"impressions", perf.Impressions,
		"ctr", perf.CTR,
	)
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.PerformanceReady(row.UserID, row.ID, true)
	}
	return perf, nil
}

func (s *simulationService) Predict(ctx context.Context, contentID uuid.UUID, force bool) (*Prediction, error) {
	if !force {
		existing, err := s.perfRepo.GetByContentID(dbctx.Context{Ctx: ctx}, contentID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &Prediction{Performance: existing}, nil
		}
	}
	v, err, _ := s.flight.Do(contentID.String(), func() (any, error) {
		return s.PredictPerformance(ctx, contentID)
	})
	if err != nil {
		return nil, err
	}
	return &Prediction{Performance: v.(*types.Performance), IsNew: true}, nil
}

func (s *simulationService) Summary(ctx context.Context, contentID uuid.UUID) (*PerformanceSummary, error) {
	perf, err := s.perfRepo.GetByContentID(dbctx.Context{Ctx: ctx}, contentID)
	if err != nil {
		return nil, err
	}
	if perf == nil {
		return &PerformanceSummary{Exists: false}, nil
	}
	return &PerformanceSummary{
		Exists:          true,
		DataSource:      string(perf.Source),
		Metrics:         perf.Metrics(),
		ConfidenceScore: perf.ConfidenceScore,
		IsAIPrediction:  perf.Source == types.DataSourceAISimulation,
	}, nil
}

func (s *simulationService) Detailed(ctx context.Context, contentID uuid.UUID) (*PerformanceDetail, error) {
	perf, err := s.perfRepo.GetByContentID(dbctx.Context{Ctx: ctx}, contentID)
	if err != nil || perf == nil {
		return nil, err
	}
	out := &PerformanceDetail{
		ID:              perf.ID,
		ContentID:       perf.ContentID,
		DataSource:      string(perf.Source),
		Metrics:         perf.Metrics(),
		ConfidenceScore: perf.ConfidenceScore,
		CreatedAt:       perf.CreatedAt,
	}
	if len(perf.PersonasData) > 0 {
		var payload content.PersonasPayload
		if err := json.Unmarshal(perf.PersonasData, &payload); err != nil {
			s.log.Warn("Stored personas payload unreadable", "content_id", contentID, "error", err)
		} else {
			out.PersonasData = &payload
		}
	}
	if len(perf.TargetBreakdown) > 0 {
		_ = json.Unmarshal(perf.TargetBreakdown, &out.TargetBreakdown)
	}
	return out, nil
}

func (s *simulationService) generatePersonas(ctx context.Context, row *types.Content) ([]content.Persona, error) {
	in := prompts.Input{
		TargetAge:       row.TargetAgeGroup,
		TargetGender:    row.TargetGender,
		TargetInterests: strings.Join(decodeStrings(row.TargetInterests), ", "),
		PersonaCount:    s.cfg.PersonaCount,
	}
	p, err := s.prompts.Build(prompts.PromptPersonas, in)
	if err != nil {
		return nil, err
	}
	raw, err := s.llm.Complete(ctx, p.Request())
	if err != nil {
		return nil, fmt.Errorf("personas: %w", err)
	}
	personas, err := llmjson.Decode[[]content.Persona](raw)
	if err != nil {
		return nil, err
	}
	if len(personas) == 0 {
		return nil, fmt.Errorf("personas: model returned none")
	}
	return personas, nil
}

// calibrationReferences never fails; missing references only weaken the
// prompt.
func (s *simulationService) calibrationReferences(ctx context.Context, row *types.Content) []content.Reference {
	if s.rag == nil {
		return nil
	}
	refs, err := s.rag.References(ctx, ReferenceQuery{
		Text:         ContentDocument(row.CopyText, row.ImagePrompt),
		TargetAge:    singleSegment(row.TargetAgeGroup, content.AgeAutoLabel),
		TargetGender: singleSegment(row.TargetGender, content.GenderAnyLabel),
		Limit:        calibrationLimit,
		ExcludeID:    row.ID.String(),
	})
	if err != nil {
		s.log.Warn("Calibration lookup failed; simulating without references", "content_id", row.ID, "error", err)
		return nil
	}
	return refs
}

func (s *simulationService) simulateReactions(ctx context.Context, row *types.Content, personas []content.Persona, refs []content.Reference) (*content.SimulationResult, error) {
	personasJSON, err := json.Marshal(personas)
	if err != nil {
		return nil, err
	}
	strategy := decodeStrategy(row.Strategy)
	in := prompts.Input{
		ProductName:  row.ProductName,
		CopyText:     row.CopyText,
		Hashtags:     strings.Join(decodeStrings(row.Hashtags), " "),
		References:   formatReferences(refs, calibrationInPrompt),
		PersonaCount: len(personas),
		PersonasJSON: string(personasJSON),
	}
	if strategy != nil {
		in.StrategyName = strategy.Name
		in.StrategyCoreMessage = strategy.CoreMessage
	}
	p, err := s.prompts.Build(prompts.PromptReactions, in)
	if err != nil {
		return nil, err
	}
	raw, err := s.llm.Complete(ctx, p.Request())
	if err != nil {
		return nil, fmt.Errorf("reactions: %w", err)
	}
	out, err := llmjson.Decode[content.SimulationResult](raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CohortMetrics summarises reactions before scaling. Rates are percentages.
type CohortMetrics struct {
	Impressions    int
	Clicks         int
	Engagements    int
	Conversions    int
	AvgBrandRecall float64
}

func Cohort(reactions []content.Reaction) CohortMetrics {
	m := CohortMetrics{Impressions: len(reactions)}
	var recall float64
	for _, r := range reactions {
		if r.WillClick {
			m.Clicks++
		}
		if r.EngagementAction != nil && *r.EngagementAction != "" {
			m.Engagements++
		}
		if r.WillConvert {
			m.Conversions++
		}
		recall += r.BrandRecall
	}
	if m.Impressions > 0 {
		m.AvgBrandRecall = recall / float64(m.Impressions)
	}
	return m
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}

// ScaleMetrics multiplies counts by factor. Rates come from the scaled counts
// so clicks/impressions*100 equals CTR exactly.
func ScaleMetrics(c CohortMetrics, factor int) content.Metrics {
	if factor < 1 {
		factor = 1
	}
	impressions := c.Impressions * factor
	clicks := c.Clicks * factor
	return content.Metrics{
		Impressions:      impressions,
		Clicks:           clicks,
		CTR:              percent(clicks, impressions),
		EngagementRate:   percent(c.Engagements*factor, impressions),
		ConversionRate:   percent(c.Conversions*factor, impressions),
		BrandRecallScore: c.AvgBrandRecall,
		ConfidenceScore:  SimulationConfidence,
	}
}

func (s *simulationService) buildPerformance(row *types.Content, personas []content.Persona, reactions []content.Reaction) (*types.Performance, error) {
	factor := s.cfg.Scale()
	m := ScaleMetrics(Cohort(reactions), factor)

	payload, err := json.Marshal(content.PersonasPayload{
		Personas:        head(personas, storedSampleSize),
		Reactions:       head(reactions, storedSampleSize),
		SimulationScale: factor,
	})
	if err != nil {
		return nil, err
	}
	breakdown, err := json.Marshal(map[string]any{
		"target_age":    row.TargetAgeGroup,
		"target_gender": row.TargetGender,
		"interests":     decodeStrings(row.TargetInterests),
		"persona_count": len(personas),
	})
	if err != nil {
		return nil, err
	}
	return &types.Performance{
		ContentID:        row.ID,
		Source:           types.DataSourceAISimulation,
		Impressions:      m.Impressions,
		Clicks:           m.Clicks,
		CTR:              m.CTR,
		EngagementRate:   m.EngagementRate,
		ConversionRate:   m.ConversionRate,
		BrandRecallScore: m.BrandRecallScore,
		ConfidenceScore:  m.ConfidenceScore,
		TargetBreakdown:  datatypes.JSON(breakdown),
		PersonasData:     datatypes.JSON(payload),
	}, nil
}

// replace stores perf as the only row for its content.
func (s *simulationService) replace(ctx context.Context, perf *types.Performance) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.perfRepo.DeleteByContentID(dbc, perf.ContentID); err != nil {
			return err
		}
		return s.perfRepo.Create(dbc, perf)
	})
}

// singleSegment returns a stored target display value usable as an exact
// payload filter: one segment that is not the wildcard label.
func singleSegment(display, wildcard string) string {
	display = strings.TrimSpace(display)
	if display == "" || strings.Contains(display, ",") || strings.EqualFold(display, wildcard) {
		return ""
	}
	return display
}

func head[T any](xs []T, n int) []T {
	if len(xs) <= n {
		return xs
	}
	return xs[:n]
}
