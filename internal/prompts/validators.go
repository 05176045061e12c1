package prompts

import (
	"fmt"
	"strings"
)

type Validator func(Input) error

func RequireNonEmpty(field string, get func(Input) string) Validator {
	return func(in Input) error {
		if get == nil {
			return fmt.Errorf("validator for %s: getter is nil", field)
		}
		if strings.TrimSpace(get(in)) == "" {
			return fmt.Errorf("%s required", field)
		}
		return nil
	}
}

func RequirePositive(field string, get func(Input) int) Validator {
	return func(in Input) error {
		if get(in) <= 0 {
			return fmt.Errorf("%s must be positive", field)
		}
		return nil
	}
}

// validators are keyed by prompt name; the YAML catalog only carries text.
var validators = map[PromptName][]Validator{
	PromptTargetInsights: {
		RequireNonEmpty("ProductName", func(in Input) string { return in.ProductName }),
	},
	PromptStrategies: {
		RequireNonEmpty("ProductName", func(in Input) string { return in.ProductName }),
	},
	PromptCopies: {
		RequireNonEmpty("ProductName", func(in Input) string { return in.ProductName }),
		RequireNonEmpty("StrategyName", func(in Input) string { return in.StrategyName }),
	},
	PromptImagePrompt: {
		RequireNonEmpty("CopyText", func(in Input) string { return in.CopyText }),
	},
	PromptImagePromptEdit: {
		RequireNonEmpty("ImagePrompt", func(in Input) string { return in.ImagePrompt }),
		RequireNonEmpty("CustomRequest", func(in Input) string { return in.CustomRequest }),
	},
	PromptReferenceScene: {
		RequireNonEmpty("ProductName", func(in Input) string { return in.ProductName }),
	},
	PromptIntent: {
		RequireNonEmpty("CustomRequest", func(in Input) string { return in.CustomRequest }),
	},
	PromptPersonas: {
		RequirePositive("PersonaCount", func(in Input) int { return in.PersonaCount }),
	},
	PromptReactions: {
		RequireNonEmpty("PersonasJSON", func(in Input) string { return in.PersonasJSON }),
	},
}
