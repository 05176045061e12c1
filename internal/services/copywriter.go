package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/pkg/llmjson"
	"github.com/yungbote/adstudio-backend/internal/platform/llm"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/prompts"
)

// editTemperature is used whenever a user instruction modifies existing
// output, where the model should stay close to its input.
const editTemperature = 0.3

var qualityKeywords = []string{"high quality", "professional photography", "detailed", "8k"}

// Copywriter owns every text-model call of the generation pipeline.
type Copywriter interface {
	TargetInsights(ctx context.Context, product content.Product, target content.Target) (*content.TargetInsights, error)
	Strategies(ctx context.Context, product content.Product, target content.Target, refs []content.Reference) ([]content.Strategy, error)
	Copies(ctx context.Context, product content.Product, target content.Target, strategy content.Strategy, tone string) ([]content.Copy, error)
	ImagePrompt(ctx context.Context, copyText string, product content.Product, target content.Target, strategy content.Strategy) (string, error)
	EditImagePrompt(ctx context.Context, original, request string) (string, error)
	ReferenceScenePrompt(ctx context.Context, product content.Product, target content.Target, strategy content.Strategy, customRequest string) (string, error)
}

type copywriter struct {
	log     *logger.Logger
	llm     llm.Completer
	prompts *prompts.Registry
}

func NewCopywriter(log *logger.Logger, completer llm.Completer, registry *prompts.Registry) Copywriter {
	return &copywriter{
		log:     log.With("service", "Copywriter"),
		llm:     completer,
		prompts: registry,
	}
}

func (c *copywriter) complete(ctx context.Context, name prompts.PromptName, in prompts.Input, temperature *float64) (string, error) {
	p, err := c.prompts.Build(name, in)
	if err != nil {
		return "", err
	}
	req := p.Request()
	if temperature != nil {
		req.Temperature = *temperature
	}
	out, err := c.llm.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func targetInput(product content.Product, target content.Target) prompts.Input {
	return prompts.Input{
		ProductName:        product.Name,
		ProductDescription: product.Description,
		Category:           product.Category,
		TargetAge:          target.AgeDisplay(),
		TargetGender:       target.GenderDisplay(),
		TargetInterests:    target.InterestsDisplay(),
		IncomeLevel:        target.IncomeLevel,
	}
}

func (c *copywriter) TargetInsights(ctx context.Context, product content.Product, target content.Target) (*content.TargetInsights, error) {
	raw, err := c.complete(ctx, prompts.PromptTargetInsights, targetInput(product, target), nil)
	if err != nil {
		return nil, err
	}
	obj, err := llmjson.ParseObject(raw)
	if err != nil {
		return nil, err
	}
	lifestyle, _ := obj["lifestyle"].(string)
	return &content.TargetInsights{
		TargetAges:          stringList(obj["target_ages"]),
		TargetInterests:     stringList(obj["target_interests"]),
		PainPoints:          stringList(obj["pain_points"]),
		PreferredChannels:   stringList(obj["preferred_channels"]),
		TonePreferences:     stringList(obj["tone_preferences"]),
		Lifestyle:           strings.TrimSpace(lifestyle),
		PurchaseMotivations: stringList(obj["purchase_motivations"]),
	}, nil
}

// stringList reads an insight field the model may return either as a list
// or as one comma separated string.
func stringList(v any) []string {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []any:
		for _, e := range t {
			switch x := e.(type) {
			case string:
				parts = append(parts, x)
			case json.Number:
				parts = append(parts, x.String())
			}
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *copywriter) Strategies(ctx context.Context, product content.Product, target content.Target, refs []content.Reference) ([]content.Strategy, error) {
	in := targetInput(product, target)
	in.References = formatReferences(refs, 3)
	raw, err := c.complete(ctx, prompts.PromptStrategies, in, nil)
	if err != nil {
		return nil, err
	}
	list, err := llmjson.Decode[content.StrategyList](raw)
	if err != nil {
		return nil, err
	}
	if n := len(list.Strategies); n != 3 {
		c.log.Warn("Unexpected strategy count", "want", 3, "got", n)
	}
	for i := range list.Strategies {
		if list.Strategies[i].ID == 0 {
			list.Strategies[i].ID = i + 1
		}
	}
	return list.Strategies, nil
}

func (c *copywriter) Copies(ctx context.Context, product content.Product, target content.Target, strategy content.Strategy, tone string) ([]content.Copy, error) {
	in := targetInput(product, target)
	in.StrategyName = strategy.Name
	in.StrategyCoreMessage = strategy.CoreMessage
	in.CopyTone = tone
	raw, err := c.complete(ctx, prompts.PromptCopies, in, nil)
	if err != nil {
		return nil, err
	}
	list, err := llmjson.Decode[content.CopyList](raw)
	if err != nil {
		return nil, err
	}
	for i := range list.Copies {
		cp := &list.Copies[i]
		if cp.Length == 0 {
			cp.Length = len([]rune(cp.Text))
		}
		if cp.Hashtags == nil {
			cp.Hashtags = []string{}
		}
	}
	return list.Copies, nil
}

func (c *copywriter) ImagePrompt(ctx context.Context, copyText string, product content.Product, target content.Target, strategy content.Strategy) (string, error) {
	in := targetInput(product, target)
	in.CopyText = copyText
	in.StrategyName = strategy.Name
	raw, err := c.complete(ctx, prompts.PromptImagePrompt, in, nil)
	if err != nil {
		return "", err
	}
	return polishImagePrompt(raw), nil
}

func (c *copywriter) EditImagePrompt(ctx context.Context, original, request string) (string, error) {
	raw, err := c.complete(ctx, prompts.PromptImagePromptEdit, prompts.Input{ImagePrompt: original, CustomRequest: request}, nil)
	if err != nil {
		return "", err
	}
	return cleanPromptText(raw), nil
}

// ReferenceScenePrompt writes the instruction sent along with a product photo.
// A custom request lowers the temperature so the product stays untouched.
func (c *copywriter) ReferenceScenePrompt(ctx context.Context, product content.Product, target content.Target, strategy content.Strategy, customRequest string) (string, error) {
	in := targetInput(product, target)
	in.StrategyName = strategy.Name
	in.StrategyCoreMessage = strategy.CoreMessage
	in.CustomRequest = customRequest
	var temp *float64
	if strings.TrimSpace(customRequest) != "" {
		t := editTemperature
		temp = &t
	}
	raw, err := c.complete(ctx, prompts.PromptReferenceScene, in, temp)
	if err != nil {
		return "", err
	}
	return cleanPromptText(raw), nil
}

func cleanPromptText(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"'`")
	return strings.TrimSpace(s)
}

// polishImagePrompt strips wrapping quotes and appends quality keywords the
// model left out.
func polishImagePrompt(raw string) string {
	s := cleanPromptText(raw)
	lower := strings.ToLower(s)
	var missing []string
	for _, kw := range qualityKeywords {
		if !strings.Contains(lower, kw) {
			missing = append(missing, kw)
		}
	}
	if len(missing) == 0 {
		return s
	}
	if s == "" {
		return strings.Join(missing, ", ")
	}
	return strings.TrimRight(s, " ,.") + ", " + strings.Join(missing, ", ")
}

// formatReferences renders up to limit references as a compact JSON list for
// prompt context. It returns "" when nothing is usable.
func formatReferences(refs []content.Reference, limit int) string {
	if len(refs) == 0 {
		return ""
	}
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	type promptRef struct {
		Copy        string           `json:"copy"`
		ImagePrompt string           `json:"image_prompt,omitempty"`
		Similarity  float64          `json:"similarity"`
		Performance *content.Metrics `json:"performance,omitempty"`
	}
	out := make([]promptRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, promptRef{
			Copy:        r.CopyText,
			ImagePrompt: r.ImagePrompt,
			Similarity:  r.Score,
			Performance: r.Performance,
		})
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
