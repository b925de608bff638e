package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitialize(t *testing.T) {
	dir := t.TempDir()

	db, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "recall.db")); os.IsNotExist(err) {
		t.Error("Database file not created")
	}

	version, err := db.GetSchemaVersion()
	if err != nil {
		t.Fatalf("GetSchemaVersion failed: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version: got %d, want %d", version, SchemaVersion)
	}
}

func TestOpenUninitialized(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected error opening uninitialized store")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := setupDB(t)

	// Running migrations again on a current schema must be a no-op.
	applied, err := db.RunMigrations()
	if err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if applied != 0 {
		t.Errorf("applied: got %d, want 0", applied)
	}
}

func TestWriteLockContention(t *testing.T) {
	dir := t.TempDir()

	held := newWriteLocker(dir)
	if err := held.acquire(defaultTimeout); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// A second locker on the same store must time out and name the owner.
	waiter := newWriteLocker(dir)
	err := waiter.acquire(20 * time.Millisecond)
	if err == nil {
		t.Fatal("second acquire should time out while the lock is held")
	}
	if !strings.Contains(err.Error(), fmt.Sprintf("pid %d", os.Getpid())) {
		t.Errorf("timeout error should name the owner: %v", err)
	}

	if err := held.release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := waiter.acquire(defaultTimeout); err != nil {
		t.Errorf("acquire after release failed: %v", err)
	}
	waiter.release()
}
