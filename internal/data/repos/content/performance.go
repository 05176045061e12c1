package content

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/adstudio-backend/internal/data/dberr"
	types "github.com/yungbote/adstudio-backend/internal/domain"
	"github.com/yungbote/adstudio-backend/internal/pkg/dbctx"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

type PerformanceRepo interface {
	// Create fails with dberr.ErrConflict when the content already has a row.
	Create(dbc dbctx.Context, row *types.Performance) error
	GetByContentID(dbc dbctx.Context, contentID uuid.UUID) (*types.Performance, error)
	GetByContentIDs(dbc dbctx.Context, contentIDs []uuid.UUID) (map[uuid.UUID]*types.Performance, error)
	DeleteByContentID(dbc dbctx.Context, contentID uuid.UUID) error
}

type performanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPerformanceRepo(db *gorm.DB, baseLog *logger.Logger) PerformanceRepo {
	return &performanceRepo{db: db, log: baseLog.With("repo", "PerformanceRepo")}
}

func (r *performanceRepo) tx(dbc dbctx.Context) *gorm.DB { return dbc.DB(r.db) }

func (r *performanceRepo) Create(dbc dbctx.Context, row *types.Performance) error {
	if row == nil {
		return nil
	}
	if row.ContentID == uuid.Nil {
		return errors.New("performance content_id required")
	}
	return dberr.Classify(r.tx(dbc).Create(row).Error)
}

func (r *performanceRepo) GetByContentID(dbc dbctx.Context, contentID uuid.UUID) (*types.Performance, error) {
	if contentID == uuid.Nil {
		return nil, nil
	}
	var row types.Performance
	err := r.tx(dbc).Where("content_id = ?", contentID).Limit(1).Find(&row).Error
	if err != nil {
		return nil, dberr.Classify(err)
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *performanceRepo) GetByContentIDs(dbc dbctx.Context, contentIDs []uuid.UUID) (map[uuid.UUID]*types.Performance, error) {
	out := make(map[uuid.UUID]*types.Performance, len(contentIDs))
	if len(contentIDs) == 0 {
		return out, nil
	}
	var rows []*types.Performance
	if err := r.tx(dbc).Where("content_id IN ?", contentIDs).Find(&rows).Error; err != nil {
		return nil, dberr.Classify(err)
	}
	for _, row := range rows {
		out[row.ContentID] = row
	}
	return out, nil
}

func (r *performanceRepo) DeleteByContentID(dbc dbctx.Context, contentID uuid.UUID) error {
	if contentID == uuid.Nil {
		return nil
	}
	return dberr.Classify(r.tx(dbc).Where("content_id = ?", contentID).Delete(&types.Performance{}).Error)
}
