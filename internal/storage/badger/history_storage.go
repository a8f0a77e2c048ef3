package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/models"
)

// HistoryStorage implements the HistoryStorage interface for Badger
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *HistoryStorage) StoreRun(ctx context.Context, report *models.RunReport) error {
	if report.ID == "" {
		return fmt.Errorf("run report ID is required")
	}

	if err := s.db.Store().Upsert(report.ID, report); err != nil {
		return fmt.Errorf("failed to store run report: %w", err)
	}

	s.logger.Debug().
		Str("run_id", report.ID).
		Int("success_count", report.SuccessCount).
		Int("total_count", report.TotalCount).
		Msg("Run report archived")
	return nil
}

func (s *HistoryStorage) GetRun(ctx context.Context, id string) (*models.RunReport, error) {
	var report models.RunReport
	if err := s.db.Store().Get(id, &report); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("run report not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}
	return &report, nil
}

func (s *HistoryStorage) RecentRuns(ctx context.Context, limit int) ([]*models.RunReport, error) {
	var reports []models.RunReport
	if err := s.db.Store().Find(&reports, nil); err != nil {
		return nil, fmt.Errorf("failed to list run reports: %w", err)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}

	result := make([]*models.RunReport, len(reports))
	for i := range reports {
		result[i] = &reports[i]
	}
	return result, nil
}
