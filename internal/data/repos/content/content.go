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

type ContentRepo interface {
	Create(dbc dbctx.Context, row *types.Content) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Content, error)
	DeleteByProjectID(dbc dbctx.Context, projectID uuid.UUID) (int64, error)
	DeleteByUserID(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type contentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return &contentRepo{db: db, log: baseLog.With("repo", "ContentRepo")}
}

func (r *contentRepo) tx(dbc dbctx.Context) *gorm.DB { return dbc.DB(r.db) }

func (r *contentRepo) Create(dbc dbctx.Context, row *types.Content) error {
	if row == nil {
		return nil
	}
	if row.UserID == uuid.Nil {
		return errors.New("content user_id required")
	}
	if row.Status == types.ContentStatusFailed && row.ErrorMessage == "" {
		return errors.New("failed content requires an error message")
	}
	if row.Status == types.ContentStatusCompleted && (row.CopyText == "" || row.ImageURL == "") {
		return errors.New("completed content requires copy text and image url")
	}
	return dberr.Classify(r.tx(dbc).Create(row).Error)
}

func (r *contentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Content, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Content
	err := r.tx(dbc).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dberr.Classify(err)
	}
	return &row, nil
}

// DeleteByProjectID hard-deletes a project's contents and their performance rows.
func (r *contentRepo) DeleteByProjectID(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	if projectID == uuid.Nil {
		return 0, nil
	}
	return r.cascade(dbc, "project_id = ?", projectID)
}

func (r *contentRepo) DeleteByUserID(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, nil
	}
	return r.cascade(dbc, "user_id = ?", userID)
}

func (r *contentRepo) cascade(dbc dbctx.Context, where string, id uuid.UUID) (int64, error) {
	var deleted int64
	run := func(tx *gorm.DB) error {
		ids := tx.Model(&types.Content{}).Unscoped().Select("id").Where(where, id)
		if err := tx.Where("content_id IN (?)", ids).Delete(&types.Performance{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where(where, id).Delete(&types.Content{})
		deleted = res.RowsAffected
		return res.Error
	}
	var err error
	if dbc.Tx != nil {
		err = run(dbc.Tx.WithContext(dbc.Ctx))
	} else {
		err = r.db.WithContext(dbc.Ctx).Transaction(run)
	}
	if err != nil {
		return 0, dberr.Classify(err)
	}
	r.log.Info("Cascade deleted contents", "scope", where, "rows", deleted)
	return deleted, nil
}
