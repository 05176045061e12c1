package services

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/yungbote/adstudio-backend/internal/data/repos/testutil"
	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/pkg/llmjson"
	"github.com/yungbote/adstudio-backend/internal/prompts"
)

func TestPolishImagePrompt(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`"a bottle on marble."`, "a bottle on marble, high quality, professional photography, detailed, 8k"},
		{"Detailed 8K shot, High Quality, professional photography", "Detailed 8K shot, High Quality, professional photography"},
		{"  ", "high quality, professional photography, detailed, 8k"},
		{"`studio shot, detailed`", "studio shot, detailed, high quality, professional photography, 8k"},
	}
	for _, tc := range cases {
		if got := polishImagePrompt(tc.in); got != tc.want {
			t.Fatalf("polishImagePrompt(%q): want=%q got=%q", tc.in, tc.want, got)
		}
	}
}

func TestFormatReferences(t *testing.T) {
	if got := formatReferences(nil, 3); got != "" {
		t.Fatalf("no references should render empty, got %q", got)
	}
	refs := []content.Reference{
		{CopyText: "a", Score: 0.9, Performance: &content.Metrics{CTR: 4.2}},
		{CopyText: "b", Score: 0.8},
		{CopyText: "c", Score: 0.7},
	}
	var out []map[string]any
	if err := json.Unmarshal([]byte(formatReferences(refs, 2)), &out); err != nil {
		t.Fatalf("references should render as JSON: %v", err)
	}
	if len(out) != 2 || out[0]["copy"] != "a" {
		t.Fatalf("rendered: %v", out)
	}
}

func newTestCopywriter(t *testing.T) (Copywriter, *fakeLLM) {
	t.Helper()
	f := newFakeLLM()
	return NewCopywriter(testutil.Logger(t), f, prompts.MustDefault()), f
}

func TestStrategiesAssignsIDs(t *testing.T) {
	w, _ := newTestCopywriter(t)
	got, err := w.Strategies(context.Background(), serumRequest().Product, serumRequest().Target, nil)
	if err != nil {
		t.Fatalf("Strategies: %v", err)
	}
	for i, st := range got {
		if st.ID != i+1 {
			t.Fatalf("strategy %d id: got=%d", i, st.ID)
		}
	}
}

func TestStrategiesMalformed(t *testing.T) {
	w, f := newTestCopywriter(t)
	f.set(callStrategies, `{"strategies":[]}`)
	_, err := w.Strategies(context.Background(), serumRequest().Product, serumRequest().Target, nil)
	var merr *llmjson.MalformedOutputError
	if !errors.As(err, &merr) {
		t.Fatalf("empty strategy list should be malformed output, got %v", err)
	}
}

func TestTargetInsightsToleratesLooseShapes(t *testing.T) {
	w, f := newTestCopywriter(t)
	f.set(callInsights, "```json {\"target_ages\":\"20-29, 30-39\",\"target_interests\":[\"skincare\",\" \",7],\"lifestyle\":\" urban \"}\n```")
	got, err := w.TargetInsights(context.Background(), serumRequest().Product, serumRequest().Target)
	if err != nil {
		t.Fatalf("TargetInsights: %v", err)
	}
	if !reflect.DeepEqual(got.TargetAges, []string{"20-29", "30-39"}) {
		t.Fatalf("ages from a string: got=%v", got.TargetAges)
	}
	if !reflect.DeepEqual(got.TargetInterests, []string{"skincare", "7"}) {
		t.Fatalf("interests: got=%v", got.TargetInterests)
	}
	if got.Lifestyle != "urban" || len(got.PainPoints) != 0 {
		t.Fatalf("insights: %+v", got)
	}

	f.set(callInsights, `["not", "an", "object"]`)
	_, err = w.TargetInsights(context.Background(), serumRequest().Product, serumRequest().Target)
	var merr *llmjson.MalformedOutputError
	if !errors.As(err, &merr) {
		t.Fatalf("array output should be malformed, got %v", err)
	}
}

func TestCopiesFillDerivedFields(t *testing.T) {
	w, _ := newTestCopywriter(t)
	st := content.Strategy{ID: 1, Name: "Glow Up", CoreMessage: "Visible radiance"}
	got, err := w.Copies(context.Background(), serumRequest().Product, serumRequest().Target, st, "")
	if err != nil {
		t.Fatalf("Copies: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("copies: want=3 got=%d", len(got))
	}
	for _, c := range got {
		if c.Length != len([]rune(c.Text)) {
			t.Fatalf("length of %q: got=%d", c.Text, c.Length)
		}
		if c.Hashtags == nil {
			t.Fatalf("hashtags should never be nil")
		}
	}
}

func TestReferenceScenePromptTemperature(t *testing.T) {
	w, f := newTestCopywriter(t)
	ctx := context.Background()
	p, tg := serumRequest().Product, serumRequest().Target
	st := content.Strategy{Name: "Glow Up", CoreMessage: "Visible radiance"}

	if _, err := w.ReferenceScenePrompt(ctx, p, tg, st, ""); err != nil {
		t.Fatalf("ReferenceScenePrompt: %v", err)
	}
	if _, err := w.ReferenceScenePrompt(ctx, p, tg, st, "put it on a beach"); err != nil {
		t.Fatalf("ReferenceScenePrompt with request: %v", err)
	}
	temps := f.temps[callScene]
	if len(temps) != 2 || temps[0] != 0.5 || temps[1] != editTemperature {
		t.Fatalf("temperatures: %v", temps)
	}
}

func TestEditImagePromptRequiresRequest(t *testing.T) {
	w, f := newTestCopywriter(t)
	if _, err := w.EditImagePrompt(context.Background(), "a prompt", ""); err == nil {
		t.Fatalf("empty request should be rejected before calling the model")
	}
	if n := f.count(callEditPrompt); n != 0 {
		t.Fatalf("edit calls: want=0 got=%d", n)
	}
	got, err := w.EditImagePrompt(context.Background(), "a prompt", "pink")
	if err != nil || !strings.Contains(got, "pink marble") {
		t.Fatalf("EditImagePrompt: %q (%v)", got, err)
	}
}
