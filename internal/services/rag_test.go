package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	contentrepo "github.com/yungbote/adstudio-backend/internal/data/repos/content"
	"github.com/yungbote/adstudio-backend/internal/data/repos/testutil"
	types "github.com/yungbote/adstudio-backend/internal/domain"
	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/pkg/dbctx"
	"github.com/yungbote/adstudio-backend/internal/platform/embedding"
	"github.com/yungbote/adstudio-backend/internal/platform/qdrant"
)

type fakeEmbedder struct {
	kinds []embedding.InputKind
	err   error
}

func (e *fakeEmbedder) Name() string { return "fake" }

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string, kind embedding.InputKind) ([][]float32, error) {
	e.kinds = append(e.kinds, kind)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeVectorStore struct {
	upserts []qdrant.Point
	filter  qdrant.Filter
	limit   int
	matches []qdrant.Match
	deleted []string
}

func (s *fakeVectorStore) Upsert(ctx context.Context, points []qdrant.Point) error {
	s.upserts = append(s.upserts, points...)
	return nil
}

func (s *fakeVectorStore) Search(ctx context.Context, vector []float32, limit int, filter qdrant.Filter) ([]qdrant.Match, error) {
	s.filter = filter
	s.limit = limit
	return s.matches, nil
}

func (s *fakeVectorStore) Delete(ctx context.Context, ids []string) error {
	s.deleted = append(s.deleted, ids...)
	return nil
}

func TestRAGIndexContentPayload(t *testing.T) {
	emb := &fakeEmbedder{}
	store := &fakeVectorStore{}
	svc := NewRAGService(testutil.Logger(t), emb, store, nil)

	row := &types.Content{
		ID:             uuid.New(),
		CopyText:       "Glow daily.",
		ImagePrompt:    "serum on marble",
		TargetAgeGroup: "20-29",
		TargetGender:   "female",
		Category:       "beauty",
		Strategy:       jsonOrNull(content.Strategy{Name: "Glow Up"}),
	}
	if err := svc.IndexContent(context.Background(), row); err != nil {
		t.Fatalf("IndexContent: %v", err)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("upserts: want=1 got=%d", len(store.upserts))
	}
	p := store.upserts[0]
	if p.ID != row.ID.String() || p.Payload["strategy_name"] != "Glow Up" || p.Payload["target_age"] != "20-29" {
		t.Fatalf("point: %+v", p)
	}
	if emb.kinds[0] != embedding.KindDocument {
		t.Fatalf("index should embed as a document, got %s", emb.kinds[0])
	}
}

func TestRAGIndexRequiresID(t *testing.T) {
	svc := NewRAGService(testutil.Logger(t), &fakeEmbedder{}, &fakeVectorStore{}, nil)
	if err := svc.Index(context.Background(), " ", "text", nil); err == nil {
		t.Fatalf("blank id should be rejected")
	}
}

func TestRAGReferencesJoinPerformance(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	contents := contentrepo.NewContentRepo(db, log)
	perfs := contentrepo.NewPerformanceRepo(db, log)

	mk := func(withPerf bool) uuid.UUID {
		c := &types.Content{UserID: uuid.New(), Status: types.ContentStatusDraft}
		if err := contents.Create(dbctx.Context{Ctx: ctx}, c); err != nil {
			t.Fatalf("create content: %v", err)
		}
		if withPerf {
			if err := perfs.Create(dbctx.Context{Ctx: ctx}, &types.Performance{ContentID: c.ID, Impressions: 1000, Clicks: 40, CTR: 4}); err != nil {
				t.Fatalf("create performance: %v", err)
			}
		}
		return c.ID
	}
	self, measured, unmeasured := mk(true), mk(true), mk(false)

	emb := &fakeEmbedder{}
	store := &fakeVectorStore{matches: []qdrant.Match{
		{ID: self.String(), Score: 0.99, Payload: map[string]any{"copy_text": "self"}},
		{ID: measured.String(), Score: 0.9, Payload: map[string]any{"copy_text": "measured", "category": "beauty"}},
		{ID: unmeasured.String(), Score: 0.8},
		{ID: "not-a-uuid", Score: 0.7},
	}}
	svc := NewRAGService(log, emb, store, perfs)

	refs, err := svc.References(ctx, ReferenceQuery{
		Text:         "serum",
		TargetGender: "female",
		Category:     "beauty",
		Limit:        5,
		ExcludeID:    self.String(),
	})
	if err != nil {
		t.Fatalf("References: %v", err)
	}
	if len(refs) != 1 || refs[0].ContentID != measured.String() {
		t.Fatalf("references: %+v", refs)
	}
	if refs[0].CopyText != "measured" || refs[0].Performance == nil || refs[0].Performance.CTR != 4 {
		t.Fatalf("reference fields: %+v", refs[0])
	}
	if store.limit != 5 || store.filter["target_gender"] != "female" || store.filter["target_age"] != "" {
		t.Fatalf("search: limit=%d filter=%v", store.limit, store.filter)
	}
	if emb.kinds[0] != embedding.KindQuery {
		t.Fatalf("search should embed as a query, got %s", emb.kinds[0])
	}
}

func TestRAGReferencesEmbeddingFailure(t *testing.T) {
	svc := NewRAGService(testutil.Logger(t), &fakeEmbedder{err: errors.New("quota")}, &fakeVectorStore{}, nil)
	if _, err := svc.References(context.Background(), ReferenceQuery{Text: "x", Limit: 3}); err == nil {
		t.Fatalf("embedding failure should surface")
	}
}
