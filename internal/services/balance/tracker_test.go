package balance

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/models"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "balance_data.json")
	return NewTracker(path, arbor.NewLogger())
}

func TestComputeDeltaNoPriorRecord(t *testing.T) {
	tracker := newTestTracker(t)

	delta := tracker.ComputeDelta("alice_cookies", models.UserBalance{Quota: 5, Used: 1})
	if !delta.IsZero() {
		t.Errorf("expected zero delta without prior record, got %+v", delta)
	}
}

func TestComputeDelta(t *testing.T) {
	tracker := newTestTracker(t)

	if err := tracker.Save("alice_cookies", models.BalanceRecord{Quota: 10, Used: 2}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Recharged $5, spent $1 of it.
	delta := tracker.ComputeDelta("alice_cookies", models.UserBalance{Quota: 14, Used: 3})
	if delta.Recharge != 5 {
		t.Errorf("Recharge = %v, want 5", delta.Recharge)
	}
	if delta.UsedChange != 1 {
		t.Errorf("UsedChange = %v, want 1", delta.UsedChange)
	}
	if delta.QuotaChange != 4 {
		t.Errorf("QuotaChange = %v, want 4", delta.QuotaChange)
	}
}

func TestComputeDeltaAdditiveAcrossRuns(t *testing.T) {
	tracker := newTestTracker(t)
	key := "alice_cookies"

	old := models.UserBalance{Quota: 10, Used: 0}
	mid := models.UserBalance{Quota: 12, Used: 1}
	newer := models.UserBalance{Quota: 15, Used: 4}

	if err := tracker.Save(key, models.BalanceRecord{Quota: old.Quota, Used: old.Used}); err != nil {
		t.Fatal(err)
	}
	first := tracker.ComputeDelta(key, mid)
	if err := tracker.Save(key, models.BalanceRecord{Quota: mid.Quota, Used: mid.Used}); err != nil {
		t.Fatal(err)
	}
	second := tracker.ComputeDelta(key, newer)

	if err := tracker.Save(key, models.BalanceRecord{Quota: old.Quota, Used: old.Used}); err != nil {
		t.Fatal(err)
	}
	direct := tracker.ComputeDelta(key, newer)

	if first.Recharge+second.Recharge != direct.Recharge {
		t.Errorf("recharge not additive: %v + %v != %v", first.Recharge, second.Recharge, direct.Recharge)
	}
}

func TestTrackerPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balance_data.json")
	logger := arbor.NewLogger()

	tracker := NewTracker(path, logger)
	record := models.BalanceRecord{Quota: 7.5, Used: 2.25, Timestamp: time.Now()}
	if err := tracker.Save("bob_github", record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := NewTracker(path, logger)
	got, ok := reloaded.Get("bob_github")
	if !ok {
		t.Fatal("record not found after reload")
	}
	if got.Quota != 7.5 || got.Used != 2.25 {
		t.Errorf("reloaded record = %+v", got)
	}
}

func TestTrackerCorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "balance_data.json")
	if err := writeFile(path, "{broken"); err != nil {
		t.Fatal(err)
	}

	tracker := NewTracker(path, arbor.NewLogger())
	if _, ok := tracker.Get("anything"); ok {
		t.Error("corrupt file should yield an empty tracker")
	}
}
