package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Content is one generation or regeneration event. Rows are written once and
// never updated; a regeneration creates a new row pointing at its parent.
type Content struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ProjectID       *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`
	ParentContentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_content_id,omitempty"`

	ProductName        string `gorm:"column:product_name" json:"product_name"`
	ProductDescription string `gorm:"column:product_description" json:"product_description"`
	Category           string `gorm:"column:category;index" json:"category"`

	TargetAgeGroup    string         `gorm:"column:target_age_group;size:100" json:"target_age_group"`
	TargetGender      string         `gorm:"column:target_gender;size:50" json:"target_gender"`
	TargetIncomeLevel string         `gorm:"column:target_income_level;size:50" json:"target_income_level,omitempty"`
	TargetInterests   datatypes.JSON `gorm:"column:target_interests;type:jsonb" json:"target_interests"`

	Strategy      datatypes.JSON `gorm:"column:strategy;type:jsonb" json:"strategy"`
	CopyText      string         `gorm:"column:copy_text" json:"copy_text"`
	CopyTone      string         `gorm:"column:copy_tone;size:50" json:"copy_tone"`
	Hashtags      datatypes.JSON `gorm:"column:hashtags;type:jsonb" json:"hashtags"`
	ImagePrompt   string         `gorm:"column:image_prompt" json:"image_prompt"`
	ImageURL      string         `gorm:"column:image_url;size:500" json:"image_url"`
	ImageProvider string         `gorm:"column:image_provider;size:50" json:"image_provider"`

	Status         Status `gorm:"column:status;not null;size:20;index" json:"status"`
	GenerationTime int    `gorm:"column:generation_time" json:"generation_time"`
	ErrorMessage   string `gorm:"column:error_message" json:"error_message,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Content) TableName() string { return "content" }

func (c *Content) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}
	return nil
}

// ResolveStatus picks completed only when both copy and image are present.
func ResolveStatus(copyText, imageURL string) Status {
	if copyText != "" && imageURL != "" {
		return StatusCompleted
	}
	return StatusDraft
}
