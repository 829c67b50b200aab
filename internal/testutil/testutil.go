// Package testutil holds helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/mindweave/internal/storage"
	"github.com/starford/mindweave/internal/store"
)

// TestDB opens a fresh SQLite store in t's temp dir and closes it on cleanup.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "mindweave.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestVault returns an empty vault directory and a provider rooted at it.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vault, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("open test vault: %v", err)
	}
	return vault.Root(), vault
}

// StepClock returns a clock that moves forward by step on every call,
// starting one step after start. It is safe for concurrent use.
func StepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

// FixedClock always returns at.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
