package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	contentrepo "github.com/yungbote/adstudio-backend/internal/data/repos/content"
	types "github.com/yungbote/adstudio-backend/internal/domain"
	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/pkg/dbctx"
	"github.com/yungbote/adstudio-backend/internal/platform/embedding"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/platform/qdrant"
)

// VectorStore is the slice of qdrant.Store used here.
type VectorStore interface {
	Upsert(ctx context.Context, points []qdrant.Point) error
	Search(ctx context.Context, vector []float32, limit int, filter qdrant.Filter) ([]qdrant.Match, error)
	Delete(ctx context.Context, ids []string) error
}

// ReferenceQuery selects past content for prompt context. Empty filter fields
// are ignored.
type ReferenceQuery struct {
	Text         string
	TargetAge    string
	TargetGender string
	Category     string
	Limit        int
	// ExcludeID drops the content being evaluated from its own references.
	ExcludeID string
}

type RAGService interface {
	Index(ctx context.Context, id, text string, metadata map[string]any) error
	IndexContent(ctx context.Context, row *types.Content) error
	Search(ctx context.Context, queryText string, filter qdrant.Filter, limit int) ([]qdrant.Match, error)
	// References returns hits that have a Performance row, best first.
	References(ctx context.Context, q ReferenceQuery) ([]content.Reference, error)
	Forget(ctx context.Context, ids []string) error
}

type ragService struct {
	log      *logger.Logger
	embedder embedding.Embedder
	store    VectorStore
	perfRepo contentrepo.PerformanceRepo
}

func NewRAGService(log *logger.Logger, embedder embedding.Embedder, store VectorStore, perfRepo contentrepo.PerformanceRepo) RAGService {
	return &ragService{
		log:      log.With("service", "RAGService"),
		embedder: embedder,
		store:    store,
		perfRepo: perfRepo,
	}
}

// ContentDocument is the text embedded for one content row.
func ContentDocument(copyText, imagePrompt string) string {
	return fmt.Sprintf("Copy: %s\nImage prompt: %s", copyText, imagePrompt)
}

func (s *ragService) Index(ctx context.Context, id, text string, metadata map[string]any) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("index: id required")
	}
	vec, err := embedding.EmbedOne(ctx, s.embedder, text, embedding.KindDocument)
	if err != nil {
		return fmt.Errorf("index %s: %w", id, err)
	}
	return s.store.Upsert(ctx, []qdrant.Point{{ID: id, Vector: vec, Payload: metadata}})
}

func (s *ragService) IndexContent(ctx context.Context, row *types.Content) error {
	if row == nil {
		return nil
	}
	strategyName := ""
	if st := decodeStrategy(row.Strategy); st != nil {
		strategyName = st.Name
	}
	id := row.ID.String()
	meta := map[string]any{
		"content_id":    id,
		"copy_text":     row.CopyText,
		"image_prompt":  row.ImagePrompt,
		"target_age":    row.TargetAgeGroup,
		"target_gender": row.TargetGender,
		"category":      row.Category,
		"product_name":  row.ProductName,
		"strategy_name": strategyName,
		"copy_tone":     row.CopyTone,
	}
	if err := s.Index(ctx, id, ContentDocument(row.CopyText, row.ImagePrompt), meta); err != nil {
		return err
	}
	s.log.Debug("Content indexed", "content_id", id)
	return nil
}

func (s *ragService) Search(ctx context.Context, queryText string, filter qdrant.Filter, limit int) ([]qdrant.Match, error) {
	vec, err := embedding.EmbedOne(ctx, s.embedder, queryText, embedding.KindQuery)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return s.store.Search(ctx, vec, limit, filter)
}

func (s *ragService) References(ctx context.Context, q ReferenceQuery) ([]content.Reference, error) {
	filter := qdrant.Filter{
		"target_age":    q.TargetAge,
		"target_gender": q.TargetGender,
		"category":      q.Category,
	}
	matches, err := s.Search(ctx, q.Text, filter, q.Limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		if m.ID == q.ExcludeID {
			continue
		}
		if id, err := uuid.Parse(m.ID); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []content.Reference{}, nil
	}
	perfs, err := s.perfRepo.GetByContentIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return nil, fmt.Errorf("load reference performance: %w", err)
	}

	out := make([]content.Reference, 0, len(perfs))
	for _, m := range matches {
		if m.ID == q.ExcludeID {
			continue
		}
		id, err := uuid.Parse(m.ID)
		if err != nil {
			continue
		}
		perf, ok := perfs[id]
		if !ok {
			continue
		}
		out = append(out, content.Reference{
			ContentID:    m.ID,
			Score:        m.Score,
			CopyText:     payloadString(m.Payload, "copy_text"),
			ImagePrompt:  payloadString(m.Payload, "image_prompt"),
			TargetAge:    payloadString(m.Payload, "target_age"),
			TargetGender: payloadString(m.Payload, "target_gender"),
			Category:     payloadString(m.Payload, "category"),
			Performance:  perf.Metrics(),
		})
	}
	s.log.Info("Performance references resolved", "hits", len(matches), "with_performance", len(out))
	return out, nil
}

func (s *ragService) Forget(ctx context.Context, ids []string) error {
	return s.store.Delete(ctx, ids)
}

func payloadString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}
