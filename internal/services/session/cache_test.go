package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := NewCache(t.TempDir(), arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	return cache
}

func TestSaveAndLoad(t *testing.T) {
	cache := newTestCache(t)

	entry := &models.SessionEntry{
		AccountName: "alice",
		Provider:    "anyrouter",
		Cookies:     map[string]string{"session": "abc123"},
		UserID:      "42",
		Username:    "alice",
	}
	if err := cache.Save(entry, 24); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := cache.Load("alice", "anyrouter")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected cached entry")
	}
	if loaded.Cookies["session"] != "abc123" {
		t.Errorf("cookies not round-tripped: %+v", loaded.Cookies)
	}
	if loaded.UserID != "42" {
		t.Errorf("UserID = %q", loaded.UserID)
	}
	if !loaded.ExpiresAt.After(time.Now().Add(23 * time.Hour)) {
		t.Errorf("expiry too soon: %v", loaded.ExpiresAt)
	}
}

func TestLoadMissingEntry(t *testing.T) {
	cache := newTestCache(t)

	loaded, err := cache.Load("never-saved", "anyrouter")
	if err != nil {
		t.Fatalf("Load of missing entry should not error: %v", err)
	}
	if loaded != nil {
		t.Fatal("expected nil for missing entry")
	}
}

func TestLoadExpiredEntryRemovesFile(t *testing.T) {
	cache := newTestCache(t)

	entry := &models.SessionEntry{
		AccountName: "alice",
		Provider:    "anyrouter",
		Cookies:     map[string]string{"session": "x"},
	}
	if err := cache.Save(entry, 24); err != nil {
		t.Fatal(err)
	}

	// Rewrite with an expiry in the past; the file still exists on disk.
	path := cache.entryPath("alice", "anyrouter")
	rewritten := `{"account_name":"alice","provider":"anyrouter","cookies":{"session":"x"},"created_at":"2020-01-01T00:00:00Z","expires_at":"2020-01-02T00:00:00Z"}`
	if err := os.WriteFile(path, []byte(rewritten), 0600); err != nil {
		t.Fatal(err)
	}

	loaded, err := cache.Load("alice", "anyrouter")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != nil {
		t.Fatal("expired entry should load as nil")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expired entry file should have been removed")
	}
}

func TestLoadCorruptEntryRemovesFile(t *testing.T) {
	cache := newTestCache(t)

	path := cache.entryPath("alice", "anyrouter")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	loaded, err := cache.Load("alice", "anyrouter")
	if err != nil {
		t.Fatalf("Load of corrupt entry should not error: %v", err)
	}
	if loaded != nil {
		t.Fatal("corrupt entry should load as nil")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt entry file should have been removed")
	}
}

func TestCleanupExpired(t *testing.T) {
	cache := newTestCache(t)

	fresh := &models.SessionEntry{AccountName: "fresh", Provider: "anyrouter", Cookies: map[string]string{"s": "1"}}
	if err := cache.Save(fresh, 24); err != nil {
		t.Fatal(err)
	}
	expired := `{"account_name":"old","provider":"anyrouter","cookies":{},"created_at":"2020-01-01T00:00:00Z","expires_at":"2020-01-02T00:00:00Z"}`
	if err := os.WriteFile(cache.entryPath("old", "anyrouter"), []byte(expired), 0600); err != nil {
		t.Fatal(err)
	}

	removed, err := cache.CleanupExpired()
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if loaded, _ := cache.Load("fresh", "anyrouter"); loaded == nil {
		t.Error("fresh entry should survive cleanup")
	}
}

func TestClearAll(t *testing.T) {
	cache := newTestCache(t)

	for _, name := range []string{"a", "b", "c"} {
		entry := &models.SessionEntry{AccountName: name, Provider: "anyrouter", Cookies: map[string]string{"s": "1"}}
		if err := cache.Save(entry, 24); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := cache.ClearAll()
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	matches, _ := filepath.Glob(filepath.Join(cache.dir, "*.json"))
	if len(matches) != 0 {
		t.Errorf("%d files remain after ClearAll", len(matches))
	}
}

func TestSanitizeFilenames(t *testing.T) {
	cache := newTestCache(t)

	entry := &models.SessionEntry{
		AccountName: "weird/../name with spaces",
		Provider:    "anyrouter",
		Cookies:     map[string]string{"s": "1"},
	}
	if err := cache.Save(entry, 24); err != nil {
		t.Fatalf("Save with hostile name failed: %v", err)
	}

	loaded, err := cache.Load("weird/../name with spaces", "anyrouter")
	if err != nil || loaded == nil {
		t.Fatalf("Load after sanitized save failed: %v", err)
	}
}
