package db

import "testing"

func TestSyncStateLifecycle(t *testing.T) {
	db := setupDB(t)

	// Unlinked device has no state.
	state, err := db.GetSyncState()
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state != nil {
		t.Fatal("expected nil state before link")
	}

	if err := db.SetSyncState("device-1"); err != nil {
		t.Fatalf("SetSyncState failed: %v", err)
	}
	state, _ = db.GetSyncState()
	if state == nil {
		t.Fatal("state missing after link")
	}
	if state.DeviceID != "device-1" {
		t.Errorf("device: got %s", state.DeviceID)
	}
	if state.LastSyncTimestamp != "" {
		t.Errorf("fresh watermark should be empty, got %q", state.LastSyncTimestamp)
	}
	if state.LastSuccessfulSync != nil {
		t.Error("fresh state should have no successful sync")
	}

	if err := db.AdvanceWatermark("2026-01-02T03:04:05Z"); err != nil {
		t.Fatalf("AdvanceWatermark failed: %v", err)
	}
	state, _ = db.GetSyncState()
	if state.LastSyncTimestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("watermark: got %q", state.LastSyncTimestamp)
	}
	if state.LastSuccessfulSync == nil {
		t.Error("successful sync time not recorded")
	}

	if err := db.RecordSyncError("server unreachable"); err != nil {
		t.Fatalf("RecordSyncError failed: %v", err)
	}
	state, _ = db.GetSyncState()
	if state.LastError != "server unreachable" {
		t.Errorf("last error: got %q", state.LastError)
	}

	// A successful sync clears the stored error.
	db.AdvanceWatermark("2026-01-02T03:05:00Z")
	state, _ = db.GetSyncState()
	if state.LastError != "" {
		t.Errorf("error not cleared: %q", state.LastError)
	}

	if err := db.ClearSyncState(); err != nil {
		t.Fatalf("ClearSyncState failed: %v", err)
	}
	state, _ = db.GetSyncState()
	if state != nil {
		t.Error("state still present after unlink")
	}
}

func TestSetSyncStateReplacesExisting(t *testing.T) {
	db := setupDB(t)

	db.SetSyncState("device-1")
	db.AdvanceWatermark("2026-01-01T00:00:00Z")

	// Relinking resets the watermark: the new device identity starts clean.
	db.SetSyncState("device-2")
	state, _ := db.GetSyncState()
	if state.DeviceID != "device-2" {
		t.Errorf("device: got %s", state.DeviceID)
	}
	if state.LastSyncTimestamp != "" {
		t.Errorf("watermark not reset: %q", state.LastSyncTimestamp)
	}
}
