package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// SyncStatus tracks where a record or queued change sits in the sync lifecycle.
type SyncStatus string

const (
	StatusPending  SyncStatus = "pending"
	StatusSynced   SyncStatus = "synced"
	StatusConflict SyncStatus = "conflict"
	StatusError    SyncStatus = "error"
)

// LocalRecord is one synchronized entity instance.
// Exactly one row exists per (TableName, RecordID).
type LocalRecord struct {
	TableName   string
	RecordID    string
	Data        json.RawMessage
	SyncStatus  SyncStatus
	SyncVersion int64
	Checksum    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Checksum computes the content hash used for integrity and change detection.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// PutRecord inserts or updates a record, recomputing its checksum and bumping
// updated_at. created_at is preserved for existing rows. The storage byte
// accounting is adjusted by the payload size delta.
func (db *DB) PutRecord(table, id string, data json.RawMessage, status SyncStatus) error {
	return db.withWriteLock(func() error {
		now := time.Now().UTC()

		var oldSize int
		var createdAt time.Time
		err := db.conn.QueryRow(
			`SELECT LENGTH(data), created_at FROM records WHERE table_name = ? AND record_id = ?`,
			table, id,
		).Scan(&oldSize, &createdAt)
		if err == sql.ErrNoRows {
			createdAt = now
		} else if err != nil {
			return fmt.Errorf("check existing record %s/%s: %w", table, id, err)
		}

		_, err = db.conn.Exec(`
			INSERT INTO records (table_name, record_id, data, sync_status, checksum, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(table_name, record_id) DO UPDATE SET
				data = excluded.data,
				sync_status = excluded.sync_status,
				checksum = excluded.checksum,
				updated_at = excluded.updated_at
		`, table, id, string(data), status, Checksum(data), createdAt, now)
		if err != nil {
			return fmt.Errorf("put record %s/%s: %w", table, id, err)
		}

		return db.adjustUsage(int64(len(data) - oldSize))
	})
}

// MarkRecordSynced sets a record to synced and bumps its sync_version.
// Called after the server acknowledges the corresponding change.
func (db *DB) MarkRecordSynced(table, id string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			UPDATE records SET sync_status = ?, sync_version = sync_version + 1, updated_at = ?
			WHERE table_name = ? AND record_id = ?
		`, StatusSynced, time.Now().UTC(), table, id)
		if err != nil {
			return fmt.Errorf("mark synced %s/%s: %w", table, id, err)
		}
		return nil
	})
}

// GetRecord returns a record, or nil if it does not exist.
func (db *DB) GetRecord(table, id string) (*LocalRecord, error) {
	row := db.conn.QueryRow(`
		SELECT table_name, record_id, data, sync_status, sync_version, checksum, created_at, updated_at
		FROM records WHERE table_name = ? AND record_id = ?
	`, table, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", table, id, err)
	}
	return rec, nil
}

// ListRecordsByTable returns all records in a table, ordered by record_id.
func (db *DB) ListRecordsByTable(table string) ([]LocalRecord, error) {
	return db.listRecords(`
		SELECT table_name, record_id, data, sync_status, sync_version, checksum, created_at, updated_at
		FROM records WHERE table_name = ? ORDER BY record_id
	`, table)
}

// ListRecordsByStatus returns all records with the given sync status.
func (db *DB) ListRecordsByStatus(status SyncStatus) ([]LocalRecord, error) {
	return db.listRecords(`
		SELECT table_name, record_id, data, sync_status, sync_version, checksum, created_at, updated_at
		FROM records WHERE sync_status = ? ORDER BY table_name, record_id
	`, status)
}

func (db *DB) listRecords(query string, args ...any) ([]LocalRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []LocalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// DeleteRecord removes a record. No-op if it does not exist.
func (db *DB) DeleteRecord(table, id string) error {
	return db.withWriteLock(func() error {
		var oldSize int64
		err := db.conn.QueryRow(
			`SELECT LENGTH(data) FROM records WHERE table_name = ? AND record_id = ?`,
			table, id,
		).Scan(&oldSize)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("check record %s/%s: %w", table, id, err)
		}

		if _, err := db.conn.Exec(
			`DELETE FROM records WHERE table_name = ? AND record_id = ?`, table, id,
		); err != nil {
			return fmt.Errorf("delete record %s/%s: %w", table, id, err)
		}

		return db.adjustUsage(-oldSize)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*LocalRecord, error) {
	var rec LocalRecord
	var data string
	err := row.Scan(&rec.TableName, &rec.RecordID, &data, &rec.SyncStatus,
		&rec.SyncVersion, &rec.Checksum, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Data = json.RawMessage(data)
	return &rec, nil
}

// --- Storage accounting ---

// adjustUsage applies a byte-size delta to the running usage counter.
// Must be called under the write lock.
func (db *DB) adjustUsage(delta int64) error {
	_, err := db.conn.Exec(`
		INSERT INTO storage_meta (key, value) VALUES ('bytes_used', MAX(0, ?))
		ON CONFLICT(key) DO UPDATE SET value = MAX(0, value + ?)
	`, delta, delta)
	if err != nil {
		return fmt.Errorf("adjust storage usage: %w", err)
	}
	return nil
}

// StorageUsage returns the tracked payload byte count.
func (db *DB) StorageUsage() (int64, error) {
	var bytes int64
	err := db.conn.QueryRow(`SELECT value FROM storage_meta WHERE key = 'bytes_used'`).Scan(&bytes)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return bytes, err
}
