package db

import (
	"encoding/json"
	"testing"
)

func TestPutAndGetRecord(t *testing.T) {
	db := setupDB(t)

	data := json.RawMessage(`{"front":"capital of France?","back":"Paris"}`)
	if err := db.PutRecord("cards", "c1", data, StatusPending); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	rec, err := db.GetRecord("cards", "c1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if rec == nil {
		t.Fatal("record not found")
	}
	if string(rec.Data) != string(data) {
		t.Errorf("data mismatch: got %s", rec.Data)
	}
	if rec.SyncStatus != StatusPending {
		t.Errorf("status: got %s, want pending", rec.SyncStatus)
	}
	if rec.Checksum != Checksum(data) {
		t.Error("checksum not computed from data")
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestGetRecordMissing(t *testing.T) {
	db := setupDB(t)

	rec, err := db.GetRecord("cards", "nope")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if rec != nil {
		t.Error("expected nil for missing record")
	}
}

func TestPutRecordUpsertPreservesCreatedAt(t *testing.T) {
	db := setupDB(t)

	if err := db.PutRecord("notes", "n1", json.RawMessage(`{"v":1}`), StatusPending); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}
	first, _ := db.GetRecord("notes", "n1")

	if err := db.PutRecord("notes", "n1", json.RawMessage(`{"v":2}`), StatusSynced); err != nil {
		t.Fatalf("PutRecord upsert failed: %v", err)
	}
	second, _ := db.GetRecord("notes", "n1")

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("created_at changed on upsert")
	}
	if second.SyncStatus != StatusSynced {
		t.Errorf("status: got %s, want synced", second.SyncStatus)
	}
	if string(second.Data) != `{"v":2}` {
		t.Errorf("data not replaced: %s", second.Data)
	}

	// Exactly one row per (table, record) pair
	recs, err := db.ListRecordsByTable("notes")
	if err != nil {
		t.Fatalf("ListRecordsByTable failed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("rows: got %d, want 1", len(recs))
	}
}

func TestMarkRecordSyncedBumpsVersion(t *testing.T) {
	db := setupDB(t)

	db.PutRecord("notes", "n1", json.RawMessage(`{"v":1}`), StatusPending)
	if err := db.MarkRecordSynced("notes", "n1"); err != nil {
		t.Fatalf("MarkRecordSynced failed: %v", err)
	}

	rec, _ := db.GetRecord("notes", "n1")
	if rec.SyncStatus != StatusSynced {
		t.Errorf("status: got %s, want synced", rec.SyncStatus)
	}
	if rec.SyncVersion != 1 {
		t.Errorf("sync_version: got %d, want 1", rec.SyncVersion)
	}
}

func TestDeleteRecord(t *testing.T) {
	db := setupDB(t)

	db.PutRecord("notes", "n1", json.RawMessage(`{"v":1}`), StatusSynced)
	if err := db.DeleteRecord("notes", "n1"); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	rec, _ := db.GetRecord("notes", "n1")
	if rec != nil {
		t.Error("record still present after delete")
	}

	// Deleting an absent record is a no-op
	if err := db.DeleteRecord("notes", "n1"); err != nil {
		t.Errorf("delete of missing record: %v", err)
	}
}

func TestStorageUsageTracksRecords(t *testing.T) {
	db := setupDB(t)

	data := json.RawMessage(`{"body":"0123456789"}`)
	db.PutRecord("notes", "n1", data, StatusPending)

	usage, err := db.StorageUsage()
	if err != nil {
		t.Fatalf("StorageUsage failed: %v", err)
	}
	if usage != int64(len(data)) {
		t.Errorf("usage: got %d, want %d", usage, len(data))
	}

	db.DeleteRecord("notes", "n1")
	usage, _ = db.StorageUsage()
	if usage != 0 {
		t.Errorf("usage after delete: got %d, want 0", usage)
	}
}

func TestListRecordsByStatus(t *testing.T) {
	db := setupDB(t)

	db.PutRecord("notes", "a", json.RawMessage(`{}`), StatusPending)
	db.PutRecord("notes", "b", json.RawMessage(`{}`), StatusSynced)
	db.PutRecord("cards", "c", json.RawMessage(`{}`), StatusPending)

	pending, err := db.ListRecordsByStatus(StatusPending)
	if err != nil {
		t.Fatalf("ListRecordsByStatus failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending: got %d, want 2", len(pending))
	}
}
