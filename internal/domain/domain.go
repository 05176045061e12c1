package domain

import (
	"github.com/yungbote/adstudio-backend/internal/domain/content"
)

type Content = content.Content
type ContentStatus = content.Status
type Performance = content.Performance
type PerformanceDataSource = content.DataSource

const (
	ContentStatusDraft     = content.StatusDraft
	ContentStatusCompleted = content.StatusCompleted
	ContentStatusFailed    = content.StatusFailed

	DataSourceAISimulation = content.DataSourceAISimulation
	DataSourceRealData     = content.DataSourceRealData
)

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&Content{},
		&Performance{},
	}
}
