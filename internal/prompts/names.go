package prompts

type PromptName string

const (
	// Generation pipeline
	PromptTargetInsights  PromptName = "target_insights"
	PromptStrategies      PromptName = "strategies"
	PromptCopies          PromptName = "copies"
	PromptImagePrompt     PromptName = "image_prompt"
	PromptImagePromptEdit PromptName = "image_prompt_edit"
	PromptReferenceScene  PromptName = "reference_scene"

	// Regeneration routing
	PromptIntent PromptName = "intent"

	// Performance simulation
	PromptPersonas  PromptName = "personas"
	PromptReactions PromptName = "reactions"
)

// All lists every prompt the catalog must define.
var All = []PromptName{
	PromptTargetInsights,
	PromptStrategies,
	PromptCopies,
	PromptImagePrompt,
	PromptImagePromptEdit,
	PromptReferenceScene,
	PromptIntent,
	PromptPersonas,
	PromptReactions,
}
