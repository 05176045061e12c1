package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DataSource string

const (
	DataSourceAISimulation DataSource = "ai_simulation"
	DataSourceRealData     DataSource = "real_data"
)

// Performance holds measured or simulated metrics for one Content row.
// Rates are percentages; BrandRecallScore is 0-100; ConfidenceScore is 0-1.
type Performance struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ContentID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"content_id"`
	Source    DataSource `gorm:"column:data_source;not null;size:20" json:"data_source"`

	Impressions      int     `gorm:"column:impressions;not null;default:0" json:"impressions"`
	Clicks           int     `gorm:"column:clicks;not null;default:0" json:"clicks"`
	CTR              float64 `gorm:"column:ctr;not null;default:0" json:"ctr"`
	EngagementRate   float64 `gorm:"column:engagement_rate;not null;default:0" json:"engagement_rate"`
	ConversionRate   float64 `gorm:"column:conversion_rate;not null;default:0" json:"conversion_rate"`
	BrandRecallScore float64 `gorm:"column:brand_recall_score;not null;default:0" json:"brand_recall_score"`
	ConfidenceScore  float64 `gorm:"column:confidence_score" json:"confidence_score"`

	TargetBreakdown datatypes.JSON `gorm:"column:target_breakdown;type:jsonb" json:"target_breakdown,omitempty"`
	PersonasData    datatypes.JSON `gorm:"column:personas_data;type:jsonb" json:"personas_data,omitempty"`

	TrackingURL       string `gorm:"column:tracking_url;size:500" json:"tracking_url,omitempty"`
	CampaignStartDate string `gorm:"column:campaign_start_date;size:50" json:"campaign_start_date,omitempty"`
	CampaignEndDate   string `gorm:"column:campaign_end_date;size:50" json:"campaign_end_date,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Performance) TableName() string { return "performance" }

func (p *Performance) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Source == "" {
		p.Source = DataSourceAISimulation
	}
	return nil
}

// Metrics is the public projection of a Performance row.
type Metrics struct {
	Impressions      int     `json:"impressions"`
	Clicks           int     `json:"clicks"`
	CTR              float64 `json:"ctr"`
	EngagementRate   float64 `json:"engagement_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
	BrandRecallScore float64 `json:"brand_recall_score"`
	ConfidenceScore  float64 `json:"confidence_score"`
}

func (p *Performance) Metrics() *Metrics {
	if p == nil {
		return nil
	}
	return &Metrics{
		Impressions:      p.Impressions,
		Clicks:           p.Clicks,
		CTR:              p.CTR,
		EngagementRate:   p.EngagementRate,
		ConversionRate:   p.ConversionRate,
		BrandRecallScore: p.BrandRecallScore,
		ConfidenceScore:  p.ConfidenceScore,
	}
}
