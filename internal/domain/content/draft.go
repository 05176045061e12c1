package content

import "strings"

const (
	ToneProfessional = "professional"
	ToneCasual       = "casual"
	ToneImpact       = "impact"
)

type Strategy struct {
	ID             int    `json:"id"`
	Name           string `json:"name" validate:"required"`
	CoreMessage    string `json:"core_message" validate:"required"`
	Emotion        string `json:"emotion,omitempty"`
	ExpectedEffect string `json:"expected_effect,omitempty"`
	// PerformancePrediction is an optional model estimate attached to the strategy.
	PerformancePrediction map[string]any `json:"performance_prediction,omitempty"`
}

type StrategyList struct {
	Strategies []Strategy `json:"strategies" validate:"required,min=1,dive"`
}

type Copy struct {
	ID       int      `json:"id,omitempty"`
	Tone     string   `json:"tone" validate:"required"`
	Text     string   `json:"text" validate:"required"`
	Hashtags []string `json:"hashtags"`
	Length   int      `json:"length"`
}

type CopyList struct {
	Copies []Copy `json:"copies" validate:"required,min=1,dive"`
}

type Image struct {
	Prompt      string `json:"prompt"`
	OriginalURL string `json:"original_url"`
	LocalURL    string `json:"local_url,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	Provider    string `json:"provider"`
}

// URL prefers the locally stored copy.
func (i Image) URL() string {
	if i.LocalURL != "" {
		return i.LocalURL
	}
	return i.OriginalURL
}

type Product struct {
	Name        string `json:"product_name"`
	Description string `json:"product_description"`
	Category    string `json:"category"`
	// ImagePath is an optional reference photo on local disk.
	ImagePath string `json:"product_image_path,omitempty"`
}

type Target struct {
	Ages        []string `json:"target_ages"`
	Genders     []string `json:"target_genders"`
	Interests   []string `json:"target_interests"`
	IncomeLevel string   `json:"target_income_level,omitempty"`
}

const (
	AgeAutoLabel     = "AI auto"
	GenderAnyLabel   = "any"
	DefaultAgeString = "20-29"
)

// AgeDisplay joins ages for prompts and storage. Empty ages render as the
// auto-fill label.
func (t Target) AgeDisplay() string {
	if len(t.Ages) == 0 {
		return AgeAutoLabel
	}
	return strings.Join(t.Ages, ", ")
}

func (t Target) GenderDisplay() string {
	if len(t.Genders) == 0 {
		return GenderAnyLabel
	}
	return strings.Join(t.Genders, ", ")
}

func (t Target) InterestsDisplay() string { return strings.Join(t.Interests, ", ") }

// Draft is the working state of one pipeline run.
type Draft struct {
	Product        Product    `json:"product"`
	Target         Target     `json:"target"`
	Strategies     []Strategy `json:"strategies,omitempty"`
	Strategy       *Strategy  `json:"selected_strategy,omitempty"`
	Copy           Copy       `json:"copy"`
	Image          Image      `json:"image"`
	GenerationTime int        `json:"generation_time"`
}

type TargetInsights struct {
	TargetAges          []string `json:"target_ages"`
	TargetInterests     []string `json:"target_interests"`
	PainPoints          []string `json:"pain_points"`
	PreferredChannels   []string `json:"preferred_channels"`
	TonePreferences     []string `json:"tone_preferences"`
	Lifestyle           string   `json:"lifestyle"`
	PurchaseMotivations []string `json:"purchase_motivations"`
}

type IntentType string

const (
	IntentAll   IntentType = "all"
	IntentImage IntentType = "image"
	IntentCopy  IntentType = "copy"
)

type Intent struct {
	Type          IntentType `json:"type" validate:"required,oneof=all image copy"`
	Intent        string     `json:"intent"`
	Modifications []string   `json:"modifications"`
}

// Reference is a similar past content with its metrics, used as prompt context.
type Reference struct {
	ContentID    string   `json:"content_id"`
	Score        float64  `json:"similarity_score"`
	CopyText     string   `json:"copy_text"`
	ImagePrompt  string   `json:"image_prompt"`
	TargetAge    string   `json:"target_age"`
	TargetGender string   `json:"target_gender"`
	Category     string   `json:"category"`
	Performance  *Metrics `json:"performance,omitempty"`
}
