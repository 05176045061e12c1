package services

import (
	"context"
	"strings"

	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/pkg/llmjson"
	"github.com/yungbote/adstudio-backend/internal/platform/llm"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/prompts"
)

// IntentClassifier routes a free-text regeneration request. It never fails:
// anything unclear becomes a full regeneration.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, text string) content.Intent
}

type intentClassifier struct {
	log     *logger.Logger
	llm     llm.Completer
	prompts *prompts.Registry
}

func NewIntentClassifier(log *logger.Logger, completer llm.Completer, registry *prompts.Registry) IntentClassifier {
	return &intentClassifier{
		log:     log.With("service", "IntentClassifier"),
		llm:     completer,
		prompts: registry,
	}
}

func (s *intentClassifier) ClassifyIntent(ctx context.Context, text string) content.Intent {
	text = strings.TrimSpace(text)
	fallback := content.Intent{Type: content.IntentAll, Intent: text, Modifications: []string{}}
	if text == "" {
		return fallback
	}
	p, err := s.prompts.Build(prompts.PromptIntent, prompts.Input{CustomRequest: text})
	if err != nil {
		s.log.Warn("Intent prompt build failed", "error", err)
		return fallback
	}
	raw, err := s.llm.Complete(ctx, p.Request())
	if err != nil {
		s.log.Warn("Intent classification failed; regenerating everything", "error", err)
		return fallback
	}
	out, err := llmjson.Decode[content.Intent](raw)
	if err != nil {
		s.log.Warn("Intent output malformed; regenerating everything", "error", err)
		return fallback
	}
	if out.Modifications == nil {
		out.Modifications = []string{}
	}
	s.log.Debug("Intent classified", "type", out.Type, "intent", out.Intent)
	return out
}
