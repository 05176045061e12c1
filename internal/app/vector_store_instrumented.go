package app

import (
	"context"
	"time"

	"github.com/yungbote/adstudio-backend/internal/observability"
	"github.com/yungbote/adstudio-backend/internal/platform/qdrant"
	"github.com/yungbote/adstudio-backend/internal/services"
)

type instrumentedVectorStore struct {
	inner   services.VectorStore
	metrics *observability.Metrics
}

func instrumentVectorStore(inner services.VectorStore) services.VectorStore {
	if inner == nil {
		return nil
	}
	return &instrumentedVectorStore{
		inner:   inner,
		metrics: observability.Current(),
	}
}

func (s *instrumentedVectorStore) Upsert(ctx context.Context, points []qdrant.Point) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, points)
	s.metrics.ObserveVectorStore("upsert", err, time.Since(start))
	return err
}

func (s *instrumentedVectorStore) Search(ctx context.Context, vector []float32, limit int, filter qdrant.Filter) ([]qdrant.Match, error) {
	start := time.Now()
	out, err := s.inner.Search(ctx, vector, limit, filter)
	s.metrics.ObserveVectorStore("search", err, time.Since(start))
	return out, err
}

func (s *instrumentedVectorStore) Delete(ctx context.Context, ids []string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, ids)
	s.metrics.ObserveVectorStore("delete", err, time.Since(start))
	return err
}
