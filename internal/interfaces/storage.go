package interfaces

import (
	"context"

	"github.com/ternarybob/checkin/internal/models"
)

// HistoryStorage archives one RunReport per invocation. The archive is a
// supplement for diagnostics; its absence never affects the check-in flow.
type HistoryStorage interface {
	StoreRun(ctx context.Context, report *models.RunReport) error
	GetRun(ctx context.Context, id string) (*models.RunReport, error)
	RecentRuns(ctx context.Context, limit int) ([]*models.RunReport, error)
}

// SessionStore is the session cache contract used by the OAuth
// authenticators and the orchestrator.
type SessionStore interface {
	Save(entry *models.SessionEntry, ttlHours int) error
	Load(accountName, provider string) (*models.SessionEntry, error)
	Delete(accountName, provider string) error
	ClearAll() (int, error)
	CleanupExpired() (int, error)
}
