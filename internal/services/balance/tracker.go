package balance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/models"
)

// Tracker owns the persisted balance records, one per
// "{account}_{method}" key, in a single JSON file. Records survive across
// runs so the next invocation can report recharge and usage deltas.
type Tracker struct {
	path    string
	logger  arbor.ILogger
	mu      sync.Mutex
	records map[string]models.BalanceRecord
}

// NewTracker loads the existing record file. A missing file starts an
// empty history; a corrupt file is logged and replaced on the next save.
func NewTracker(path string, logger arbor.ILogger) *Tracker {
	t := &Tracker{
		path:    path,
		logger:  logger,
		records: make(map[string]models.BalanceRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to read balance data file")
		}
		return t
	}
	if err := json.Unmarshal(data, &t.records); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Corrupt balance data file, starting fresh")
		t.records = make(map[string]models.BalanceRecord)
	}
	return t
}

// Get returns the stored record for the key, if any.
func (t *Tracker) Get(key string) (models.BalanceRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[key]
	return record, ok
}

// Save stores the record under the key and rewrites the data file.
func (t *Tracker) Save(key string, record models.BalanceRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	t.records[key] = record

	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create balance data dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(t.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode balance data: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write balance data file: %w", err)
	}
	return nil
}

// ComputeDelta compares the current balance with the stored record for
// the key. With no prior record every delta is zero.
func (t *Tracker) ComputeDelta(key string, current models.UserBalance) models.BalanceDelta {
	previous, ok := t.Get(key)
	if !ok {
		return models.BalanceDelta{}
	}
	return models.BalanceDelta{
		Recharge:    (current.Quota + current.Used) - (previous.Quota + previous.Used),
		UsedChange:  current.Used - previous.Used,
		QuotaChange: current.Quota - previous.Quota,
	}
}
