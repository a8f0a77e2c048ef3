package balance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/checkin/internal/models"
)

// ComputeHash digests the current quota values keyed by account. Equal
// balances across runs produce equal hashes, which is what lets an
// all-green unchanged run skip its notification. Map marshaling sorts
// keys, so the JSON form is canonical.
func ComputeHash(outcomes []models.CheckInOutcome) string {
	quotas := make(map[string][]float64)
	for _, outcome := range outcomes {
		if outcome.Balance == nil {
			continue
		}
		quotas[outcome.Account] = append(quotas[outcome.Account], outcome.Balance.Quota)
	}
	if len(quotas) == 0 {
		return ""
	}

	data, err := json.Marshal(quotas)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// LoadPreviousHash reads the hash persisted by the last run. Absence is
// an empty string, which never equals a computed hash.
func LoadPreviousHash(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveHash persists the hash for the next run's comparison.
func SaveHash(path, hash string) error {
	if err := os.WriteFile(path, []byte(hash), 0644); err != nil {
		return fmt.Errorf("failed to write balance hash file: %w", err)
	}
	return nil
}
