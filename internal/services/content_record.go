package services

import (
	"encoding/json"

	"gorm.io/datatypes"

	types "github.com/yungbote/adstudio-backend/internal/domain"
	"github.com/yungbote/adstudio-backend/internal/domain/content"
)

func jsonOrNull(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

func decodeStrategy(raw datatypes.JSON) *content.Strategy {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var st content.Strategy
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil
	}
	return &st
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// contentRecord flattens a draft into a row. Status follows the fields that
// are actually present so partial regenerations stay drafts.
func contentRecord(req *GenerateRequest, d *content.Draft) *types.Content {
	row := &types.Content{
		UserID:             req.UserID,
		ProjectID:          req.ProjectID,
		ParentContentID:    req.ParentContentID,
		ProductName:        d.Product.Name,
		ProductDescription: d.Product.Description,
		Category:           d.Product.Category,
		TargetAgeGroup:     d.Target.AgeDisplay(),
		TargetGender:       d.Target.GenderDisplay(),
		TargetIncomeLevel:  d.Target.IncomeLevel,
		TargetInterests:    jsonOrNull(nonNil(d.Target.Interests)),
		Hashtags:           jsonOrNull(nonNil(d.Copy.Hashtags)),
		CopyText:           d.Copy.Text,
		CopyTone:           d.Copy.Tone,
		ImagePrompt:        d.Image.Prompt,
		ImageURL:           d.Image.URL(),
		ImageProvider:      d.Image.Provider,
		GenerationTime:     d.GenerationTime,
	}
	if d.Strategy != nil {
		row.Strategy = jsonOrNull(d.Strategy)
	}
	row.Status = content.ResolveStatus(row.CopyText, row.ImageURL)
	return row
}

// failedRecord keeps only what identifies the request.
func failedRecord(req *GenerateRequest, msg string, elapsed int) *types.Content {
	return &types.Content{
		UserID:             req.UserID,
		ProjectID:          req.ProjectID,
		ParentContentID:    req.ParentContentID,
		ProductName:        req.Product.Name,
		ProductDescription: req.Product.Description,
		Category:           req.Product.Category,
		TargetAgeGroup:     req.Target.AgeDisplay(),
		TargetGender:       req.Target.GenderDisplay(),
		TargetIncomeLevel:  req.Target.IncomeLevel,
		TargetInterests:    jsonOrNull(nonNil(req.Target.Interests)),
		Status:             types.ContentStatusFailed,
		ErrorMessage:       msg,
		GenerationTime:     elapsed,
	}
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
