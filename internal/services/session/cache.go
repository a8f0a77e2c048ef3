package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/models"
)

var _ interfaces.SessionStore = (*Cache)(nil)

// Cache persists authenticated sessions as one JSON file per
// (provider, account) pair so interactive OAuth logins survive between
// runs. Corrupt or expired entries are deleted on read and reported as
// absent, never as errors.
type Cache struct {
	dir    string
	logger arbor.ILogger
}

// NewCache creates the cache directory if needed.
func NewCache(dir string, logger arbor.ILogger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session cache dir: %w", err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

func (c *Cache) entryPath(accountName, provider string) string {
	name := fmt.Sprintf("%s_%s.json", sanitize(provider), sanitize(accountName))
	return filepath.Join(c.dir, name)
}

// sanitize keeps cache filenames safe for account names that contain
// path separators or spaces.
func sanitize(s string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "_", "..", "-")
	return replacer.Replace(s)
}

// Save writes the session with an expiry of ttlHours from now.
func (c *Cache) Save(entry *models.SessionEntry, ttlHours int) error {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	now := time.Now()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(time.Duration(ttlHours) * time.Hour)

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	path := c.entryPath(entry.AccountName, entry.Provider)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	c.logger.Info().
		Str("account", entry.AccountName).
		Str("provider", entry.Provider).
		Str("expires_at", entry.ExpiresAt.Format(time.RFC3339)).
		Msg("Session cached")
	return nil
}

// Load returns the cached session, or nil if none is usable. Expired and
// unreadable entries are removed as a side effect.
func (c *Cache) Load(accountName, provider string) (*models.SessionEntry, error) {
	path := c.entryPath(accountName, provider)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var entry models.SessionEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("Corrupt session file removed")
		os.Remove(path)
		return nil, nil
	}

	if entry.Expired(time.Now()) {
		c.logger.Info().
			Str("account", accountName).
			Str("provider", provider).
			Str("expired_at", entry.ExpiresAt.Format(time.RFC3339)).
			Msg("Cached session expired, removed")
		os.Remove(path)
		return nil, nil
	}

	return &entry, nil
}

// Delete removes one cached session. Missing files are not an error.
func (c *Cache) Delete(accountName, provider string) error {
	err := os.Remove(c.entryPath(accountName, provider))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// ClearAll removes every cached session and returns how many were removed.
func (c *Cache) ClearAll() (int, error) {
	return c.removeMatching(func(*models.SessionEntry) bool { return true })
}

// CleanupExpired removes only entries past their expiry, plus any file
// that no longer parses.
func (c *Cache) CleanupExpired() (int, error) {
	now := time.Now()
	return c.removeMatching(func(entry *models.SessionEntry) bool {
		return entry == nil || entry.Expired(now)
	})
}

func (c *Cache) removeMatching(shouldRemove func(*models.SessionEntry) bool) (int, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to scan session cache: %w", err)
	}

	removed := 0
	for _, path := range matches {
		var entry *models.SessionEntry
		if data, err := os.ReadFile(path); err == nil {
			var e models.SessionEntry
			if json.Unmarshal(data, &e) == nil {
				entry = &e
			}
		}
		if !shouldRemove(entry) {
			continue
		}
		if err := os.Remove(path); err != nil {
			c.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove session file")
			continue
		}
		removed++
	}
	return removed, nil
}
