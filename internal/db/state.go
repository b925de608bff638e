package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SyncState is the single persisted row tracking sync progress for this device.
// last_sync_timestamp is the server watermark: the point up to which remote
// changes have been pulled and applied.
type SyncState struct {
	DeviceID           string
	LastSyncTimestamp  string
	LastSuccessfulSync *time.Time
	LastError          string
}

// GetSyncState returns the current sync state, or nil if the device has not
// been linked to a server yet.
func (db *DB) GetSyncState() (*SyncState, error) {
	var s SyncState
	var lastSuccess sql.NullTime

	err := db.conn.QueryRow(`
		SELECT device_id, last_sync_timestamp, last_successful_sync, last_error
		FROM sync_state LIMIT 1
	`).Scan(&s.DeviceID, &s.LastSyncTimestamp, &lastSuccess, &s.LastError)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastSuccess.Valid {
		s.LastSuccessfulSync = &lastSuccess.Time
	}
	return &s, nil
}

// SetSyncState creates or replaces the sync state row (used on device link).
func (db *DB) SetSyncState(deviceID string) error {
	return db.withWriteLock(func() error {
		if _, err := db.conn.Exec(`DELETE FROM sync_state`); err != nil {
			return err
		}
		_, err := db.conn.Exec(`
			INSERT INTO sync_state (device_id, last_sync_timestamp, last_error)
			VALUES (?, '', '')
		`, deviceID)
		return err
	})
}

// AdvanceWatermark moves the pull watermark forward and records a successful
// sync. Callers must only invoke this after every pulled change applied cleanly.
func (db *DB) AdvanceWatermark(latestTimestamp string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			UPDATE sync_state
			SET last_sync_timestamp = ?, last_successful_sync = ?, last_error = ''
		`, latestTimestamp, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("advance watermark: %w", err)
		}
		return nil
	})
}

// RecordSyncError stores the most recent cycle failure for display.
func (db *DB) RecordSyncError(msg string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`UPDATE sync_state SET last_error = ?`, msg)
		return err
	})
}

// ClearSyncState removes the sync state (used on device unlink).
func (db *DB) ClearSyncState() error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`DELETE FROM sync_state`)
		return err
	})
}
