package content

import (
	"encoding/json"
	"strings"
)

type SNSUsage struct {
	Platforms  []string `json:"platforms"`
	DailyHours float64  `json:"daily_hours"`
}

type AdSensitivity struct {
	Level    string   `json:"level"`
	Triggers []string `json:"triggers"`
}

type Persona struct {
	Name             string        `json:"name" validate:"required"`
	Age              int           `json:"age"`
	Occupation       string        `json:"occupation"`
	Personality      string        `json:"personality"`
	SNSUsage         SNSUsage      `json:"sns_usage"`
	PurchaseBehavior string        `json:"purchase_behavior"`
	AdSensitivity    AdSensitivity `json:"ad_sensitivity"`
}

type Reaction struct {
	PersonaName      string  `json:"persona_name"`
	WillClick        bool    `json:"will_click"`
	EngagementAction *string `json:"engagement_action" validate:"omitempty,oneof=like comment share save"`
	WillConvert      bool    `json:"will_convert"`
	BrandRecall      float64 `json:"brand_recall" validate:"min=0,max=100"`
	Reason           string  `json:"reason"`
}

// UnmarshalJSON folds the model's spellings of "no engagement" ("", "none",
// "null") into a nil action and lowercases the rest.
func (r *Reaction) UnmarshalJSON(b []byte) error {
	type plain Reaction
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.EngagementAction != nil {
		action := strings.ToLower(strings.TrimSpace(*p.EngagementAction))
		switch action {
		case "", "none", "null":
			p.EngagementAction = nil
		default:
			p.EngagementAction = &action
		}
	}
	*r = Reaction(p)
	return nil
}

// OverallMetrics is the model's own cohort summary. Counts are recomputed
// from the reactions before use.
type OverallMetrics struct {
	TotalImpressions int     `json:"total_impressions"`
	TotalClicks      int     `json:"total_clicks"`
	CTR              float64 `json:"ctr"`
	EngagementRate   float64 `json:"engagement_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
	AvgBrandRecall   float64 `json:"avg_brand_recall"`
}

type SimulationResult struct {
	Reactions      []Reaction     `json:"reactions" validate:"required,min=1,dive"`
	OverallMetrics OverallMetrics `json:"overall_metrics"`
}

// PersonasPayload is what Performance.PersonasData stores.
type PersonasPayload struct {
	Personas        []Persona  `json:"personas"`
	Reactions       []Reaction `json:"reactions"`
	SimulationScale int        `json:"simulation_scale"`
}
