package db

import (
	"encoding/json"
	"testing"
)

func TestInsertConflictDefaults(t *testing.T) {
	db := setupDB(t)

	c := &SyncConflict{
		TableName:  "notes",
		RecordID:   "n1",
		LocalData:  json.RawMessage(`{"v":1}`),
		RemoteData: json.RawMessage(`{"v":2}`),
	}
	if err := db.InsertConflict(c); err != nil {
		t.Fatalf("InsertConflict failed: %v", err)
	}
	if c.ConflictID == "" {
		t.Error("conflict ID not assigned")
	}
	if c.Severity != SeverityMedium {
		t.Errorf("severity: got %s, want medium", c.Severity)
	}

	got, err := db.GetConflict(c.ConflictID)
	if err != nil {
		t.Fatalf("GetConflict failed: %v", err)
	}
	if got == nil {
		t.Fatal("conflict not found")
	}
	if got.Resolved {
		t.Error("new conflict should be unresolved")
	}
	if string(got.RemoteData) != `{"v":2}` {
		t.Errorf("remote data: got %s", got.RemoteData)
	}
}

func TestGetConflictMissing(t *testing.T) {
	db := setupDB(t)

	got, err := db.GetConflict("nope")
	if err != nil {
		t.Fatalf("GetConflict failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing conflict")
	}
}

func TestListConflictsFilters(t *testing.T) {
	db := setupDB(t)

	db.InsertConflict(&SyncConflict{ConflictID: "c1", TableName: "notes", RecordID: "a", Severity: SeverityLow})
	db.InsertConflict(&SyncConflict{ConflictID: "c2", TableName: "notes", RecordID: "b", Severity: SeverityHigh})
	db.InsertConflict(&SyncConflict{ConflictID: "c3", TableName: "cards", RecordID: "c", Severity: SeverityHigh})

	if err := db.MarkConflictResolved("c3", "keep_remote"); err != nil {
		t.Fatalf("MarkConflictResolved failed: %v", err)
	}

	high := SeverityHigh
	conflicts, err := db.ListConflicts(ListConflictsOptions{Severity: &high})
	if err != nil {
		t.Fatalf("ListConflicts failed: %v", err)
	}
	if len(conflicts) != 2 {
		t.Errorf("high severity: got %d, want 2", len(conflicts))
	}

	unresolved := false
	conflicts, _ = db.ListConflicts(ListConflictsOptions{Resolved: &unresolved})
	if len(conflicts) != 2 {
		t.Errorf("unresolved: got %d, want 2", len(conflicts))
	}

	count, err := db.CountUnresolvedConflicts()
	if err != nil {
		t.Fatalf("CountUnresolvedConflicts failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count: got %d, want 2", count)
	}
}

func TestMarkConflictResolvedRecordsStrategy(t *testing.T) {
	db := setupDB(t)

	db.InsertConflict(&SyncConflict{ConflictID: "c1", TableName: "notes", RecordID: "a"})
	db.MarkConflictResolved("c1", "keep_local")

	got, _ := db.GetConflict("c1")
	if !got.Resolved {
		t.Error("conflict not marked resolved")
	}
	if got.ResolutionStrategy != "keep_local" {
		t.Errorf("strategy: got %q", got.ResolutionStrategy)
	}
}
