package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/adstudio-backend/internal/domain"
	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/pkg/dbctx"
	"github.com/yungbote/adstudio-backend/internal/pkg/llmjson"
)

func TestScaleMetricsKeepsRatesConsistent(t *testing.T) {
	cases := []struct {
		cohort CohortMetrics
		factor int
	}{
		{CohortMetrics{Impressions: 100, Clicks: 7, Engagements: 12, Conversions: 2, AvgBrandRecall: 55.5}, 200},
		{CohortMetrics{Impressions: 100, Clicks: 33, Engagements: 0, Conversions: 1}, 377},
		{CohortMetrics{Impressions: 3, Clicks: 3, Engagements: 3, Conversions: 3}, 500},
		{CohortMetrics{Impressions: 9, Clicks: 1}, 0},
	}
	for _, tc := range cases {
		m := ScaleMetrics(tc.cohort, tc.factor)
		factor := tc.factor
		if factor < 1 {
			factor = 1
		}
		if m.Impressions != tc.cohort.Impressions*factor || m.Clicks != tc.cohort.Clicks*factor {
			t.Fatalf("counts not scaled: %+v factor=%d", m, factor)
		}
		want := float64(m.Clicks) / float64(m.Impressions) * 100
		if math.Abs(m.CTR-want) > 1e-9 {
			t.Fatalf("ctr: want=%v got=%v", want, m.CTR)
		}
		if m.BrandRecallScore != tc.cohort.AvgBrandRecall || m.ConfidenceScore != SimulationConfidence {
			t.Fatalf("unscaled fields changed: %+v", m)
		}
	}
}

func TestScaleMetricsEmptyCohort(t *testing.T) {
	m := ScaleMetrics(CohortMetrics{}, 300)
	if m.Impressions != 0 || m.CTR != 0 || m.EngagementRate != 0 {
		t.Fatalf("empty cohort: %+v", m)
	}
}

func TestCohortCounts(t *testing.T) {
	like, empty := "like", ""
	c := Cohort([]content.Reaction{
		{WillClick: true, EngagementAction: &like, WillConvert: true, BrandRecall: 90},
		{WillClick: true, EngagementAction: &empty, BrandRecall: 30},
		{BrandRecall: 0},
	})
	if c.Impressions != 3 || c.Clicks != 2 || c.Engagements != 1 || c.Conversions != 1 {
		t.Fatalf("cohort: %+v", c)
	}
	if c.AvgBrandRecall != 40 {
		t.Fatalf("avg recall: want=40 got=%v", c.AvgBrandRecall)
	}
}

func TestCohortFromModelReactions(t *testing.T) {
	raw := `{"reactions":[
		{"persona_name":"A","will_click":true,"engagement_action":"Like","will_convert":true,"brand_recall":80},
		{"persona_name":"B","will_click":true,"engagement_action":"","brand_recall":40},
		{"persona_name":"C","engagement_action":"none","brand_recall":20},
		{"persona_name":"D","engagement_action":null,"brand_recall":0}
	]}`
	res, err := llmjson.Decode[content.SimulationResult](raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if a := res.Reactions[0].EngagementAction; a == nil || *a != "like" {
		t.Fatalf("action should be lowercased: %v", a)
	}
	for _, r := range res.Reactions[1:] {
		if r.EngagementAction != nil {
			t.Fatalf("%s: empty action should be nil, got=%q", r.PersonaName, *r.EngagementAction)
		}
	}
	c := Cohort(res.Reactions)
	if c.Impressions != 4 || c.Clicks != 2 || c.Engagements != 1 || c.Conversions != 1 {
		t.Fatalf("cohort: %+v", c)
	}

	if _, err := llmjson.Decode[content.SimulationResult](`{"reactions":[{"persona_name":"E","engagement_action":"retweet"}]}`); err == nil {
		t.Fatalf("unknown engagement action should fail validation")
	}
}

func TestUniformScaleBounds(t *testing.T) {
	scale := UniformScale(200, 500)
	for i := 0; i < 1000; i++ {
		if f := scale(); f < 200 || f > 500 {
			t.Fatalf("factor out of range: %d", f)
		}
	}
	if f := UniformScale(10, 3)(); f != 10 {
		t.Fatalf("inverted bounds should collapse to min: %d", f)
	}
}

func storedContent(t *testing.T, h *harness) *types.Content {
	t.Helper()
	row := &types.Content{
		UserID:         uuid.New(),
		ProductName:    "Vitamin C Serum",
		Category:       "beauty",
		TargetAgeGroup: "20-29",
		TargetGender:   "female",
		CopyText:       "Clinically proven radiance.",
		ImagePrompt:    "A serum bottle on marble",
		ImageURL:       "/static/images/serum.png",
		Strategy:       jsonOrNull(content.Strategy{ID: 1, Name: "Glow Up", CoreMessage: "Visible radiance"}),
		Status:         types.ContentStatusCompleted,
	}
	if err := h.contents.Create(dbctx.Context{Ctx: context.Background()}, row); err != nil {
		t.Fatalf("create content: %v", err)
	}
	return row
}

func panel(n int) (personas, reactions string) {
	ps := make([]content.Persona, n)
	rs := make([]content.Reaction, n)
	for i := range ps {
		ps[i] = content.Persona{Name: fmt.Sprintf("persona-%d", i), Age: 20 + i}
		rs[i] = content.Reaction{PersonaName: ps[i].Name, WillClick: i%4 == 0, BrandRecall: 50}
	}
	pb, _ := json.Marshal(ps)
	rb, _ := json.Marshal(content.SimulationResult{Reactions: rs})
	return string(pb), string(rb)
}

func TestPredictPerformanceStoresOneRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	row := storedContent(t, h)
	personas, reactions := panel(12)
	h.llm.set(callPersonas, personas)
	h.llm.set(callReactions, reactions)

	for i := 0; i < 2; i++ {
		if _, err := h.sim.PredictPerformance(ctx, row.ID); err != nil {
			t.Fatalf("PredictPerformance #%d: %v", i, err)
		}
	}
	perf, err := h.perfs.GetByContentID(dbctx.Context{Ctx: ctx}, row.ID)
	if err != nil || perf == nil {
		t.Fatalf("stored performance: %+v (%v)", perf, err)
	}
	if perf.Impressions != 12*300 || perf.Clicks != 3*300 {
		t.Fatalf("scaled counts: impressions=%d clicks=%d", perf.Impressions, perf.Clicks)
	}
	if perf.Source != types.DataSourceAISimulation || perf.ConfidenceScore != SimulationConfidence {
		t.Fatalf("provenance: source=%s confidence=%v", perf.Source, perf.ConfidenceScore)
	}

	detail, err := h.sim.Detailed(ctx, row.ID)
	if err != nil || detail == nil || detail.PersonasData == nil {
		t.Fatalf("Detailed: %+v (%v)", detail, err)
	}
	if len(detail.PersonasData.Personas) != storedSampleSize || len(detail.PersonasData.Reactions) != storedSampleSize {
		t.Fatalf("stored sample: personas=%d reactions=%d", len(detail.PersonasData.Personas), len(detail.PersonasData.Reactions))
	}
	if detail.PersonasData.SimulationScale != 300 {
		t.Fatalf("simulation scale: got=%d", detail.PersonasData.SimulationScale)
	}
	if detail.TargetBreakdown["target_age"] != "20-29" {
		t.Fatalf("target breakdown: %v", detail.TargetBreakdown)
	}
}

func TestPredictReusesStoredPrediction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	row := storedContent(t, h)

	first, err := h.sim.Predict(ctx, row.ID, false)
	if err != nil || !first.IsNew {
		t.Fatalf("first Predict: %+v (%v)", first, err)
	}
	again, err := h.sim.Predict(ctx, row.ID, false)
	if err != nil {
		t.Fatalf("second Predict: %v", err)
	}
	if again.IsNew || again.Performance.ID != first.Performance.ID {
		t.Fatalf("stored prediction should be returned: %+v", again)
	}
	if n := h.llm.count(callPersonas); n != 1 {
		t.Fatalf("persona calls: want=1 got=%d", n)
	}

	forced, err := h.sim.Predict(ctx, row.ID, true)
	if err != nil || !forced.IsNew {
		t.Fatalf("forced Predict: %+v (%v)", forced, err)
	}
	if n := h.llm.count(callPersonas); n != 2 {
		t.Fatalf("persona calls after force: want=2 got=%d", n)
	}
}

func TestPredictMissingContent(t *testing.T) {
	h := newHarness(t)
	_, err := h.sim.Predict(context.Background(), uuid.New(), false)
	if !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("want ErrContentNotFound, got %v", err)
	}
}

func TestPredictMalformedReactions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	row := storedContent(t, h)
	h.llm.set(callReactions, "Sure! Here is the analysis you asked for.")

	_, err := h.sim.PredictPerformance(ctx, row.ID)
	if !errors.Is(err, llmjson.ErrMalformedOutput) {
		t.Fatalf("want ErrMalformedOutput, got %v", err)
	}
	if perf, _ := h.perfs.GetByContentID(dbctx.Context{Ctx: ctx}, row.ID); perf != nil {
		t.Fatalf("nothing should be stored on failure")
	}
}

func TestPredictCalibrationExcludesSelf(t *testing.T) {
	h := newHarness(t)
	row := storedContent(t, h)
	if _, err := h.sim.PredictPerformance(context.Background(), row.ID); err != nil {
		t.Fatalf("PredictPerformance: %v", err)
	}
	if len(h.rag.queries) != 1 {
		t.Fatalf("calibration queries: want=1 got=%d", len(h.rag.queries))
	}
	q := h.rag.queries[0]
	if q.ExcludeID != row.ID.String() || q.Limit != calibrationLimit || q.TargetGender != "female" {
		t.Fatalf("calibration query: %+v", q)
	}
}

func TestSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	row := storedContent(t, h)

	empty, err := h.sim.Summary(ctx, row.ID)
	if err != nil || empty.Exists {
		t.Fatalf("summary before prediction: %+v (%v)", empty, err)
	}
	if _, err := h.sim.PredictPerformance(ctx, row.ID); err != nil {
		t.Fatalf("PredictPerformance: %v", err)
	}
	sum, err := h.sim.Summary(ctx, row.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !sum.Exists || !sum.IsAIPrediction || sum.Metrics == nil || sum.Metrics.Impressions != 1200 {
		t.Fatalf("summary: %+v", sum)
	}
	if detail, err := h.sim.Detailed(ctx, uuid.New()); err != nil || detail != nil {
		t.Fatalf("Detailed for unknown content: %+v (%v)", detail, err)
	}
}

func TestSingleSegment(t *testing.T) {
	cases := []struct {
		display, wildcard, want string
	}{
		{"20-29", content.AgeAutoLabel, "20-29"},
		{"20-29, 30-39", content.AgeAutoLabel, ""},
		{"AI auto", content.AgeAutoLabel, ""},
		{"any", content.GenderAnyLabel, ""},
		{" female ", content.GenderAnyLabel, "female"},
		{"", content.GenderAnyLabel, ""},
	}
	for _, tc := range cases {
		if got := singleSegment(tc.display, tc.wildcard); got != tc.want {
			t.Fatalf("singleSegment(%q): want=%q got=%q", tc.display, tc.want, got)
		}
	}
}
