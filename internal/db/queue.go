package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation is the kind of mutation a queued change carries.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// DefaultMaxRetries bounds push attempts per queued change before it is
// marked error and surfaced rather than silently dropped.
const DefaultMaxRetries = 3

// QueuedChange is one pending outbound mutation awaiting server acknowledgment.
type QueuedChange struct {
	ID           string
	TableName    string
	RecordID     string
	Operation    Operation
	Data         json.RawMessage
	OriginalData json.RawMessage
	Timestamp    time.Time
	RetryCount   int
	MaxRetries   int
	SyncStatus   SyncStatus
}

// newChangeID builds a time-ordered change ID: a UTC timestamp prefix keeps
// lexical order aligned with creation order, the uuid suffix breaks ties.
func newChangeID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102150405.000000000"), uuid.NewString()[:8])
}

// EnqueueChange appends a change to the queue and returns its ID.
// originalData is the record pre-image, kept for conflict diffing.
func (db *DB) EnqueueChange(table, id string, op Operation, data, originalData json.RawMessage) (string, error) {
	now := time.Now()
	changeID := newChangeID(now)

	err := db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT INTO change_queue (id, table_name, record_id, operation, data, original_data, timestamp, retry_count, max_retries, sync_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		`, changeID, table, id, op, nullableJSON(data), nullableJSON(originalData), now.UTC(), DefaultMaxRetries, StatusPending)
		if err != nil {
			return fmt.Errorf("enqueue change %s/%s: %w", table, id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return changeID, nil
}

// ListChanges returns all queued changes in timestamp order.
func (db *DB) ListChanges() ([]QueuedChange, error) {
	return db.listChanges(`
		SELECT id, table_name, record_id, operation, data, original_data, timestamp, retry_count, max_retries, sync_status
		FROM change_queue ORDER BY timestamp ASC, id ASC
	`)
}

// ListPendingChanges returns up to limit pending changes in timestamp order.
// Changes already marked error are excluded; they stay visible via ErroredChanges.
func (db *DB) ListPendingChanges(limit int) ([]QueuedChange, error) {
	return db.listChanges(`
		SELECT id, table_name, record_id, operation, data, original_data, timestamp, retry_count, max_retries, sync_status
		FROM change_queue WHERE sync_status = ? ORDER BY timestamp ASC, id ASC LIMIT ?
	`, StatusPending, limit)
}

// ErroredChanges returns changes that exhausted their retries.
func (db *DB) ErroredChanges() ([]QueuedChange, error) {
	return db.listChanges(`
		SELECT id, table_name, record_id, operation, data, original_data, timestamp, retry_count, max_retries, sync_status
		FROM change_queue WHERE sync_status = ? ORDER BY timestamp ASC, id ASC
	`, StatusError)
}

func (db *DB) listChanges(query string, args ...any) ([]QueuedChange, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []QueuedChange
	for rows.Next() {
		var c QueuedChange
		var data, originalData sql.NullString
		if err := rows.Scan(&c.ID, &c.TableName, &c.RecordID, &c.Operation, &data, &originalData,
			&c.Timestamp, &c.RetryCount, &c.MaxRetries, &c.SyncStatus); err != nil {
			return nil, fmt.Errorf("scan queued change: %w", err)
		}
		if data.Valid {
			c.Data = json.RawMessage(data.String)
		}
		if originalData.Valid {
			c.OriginalData = json.RawMessage(originalData.String)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// BumpRetry increments a change's retry count. When the count exceeds
// max_retries the change transitions to error status and is no longer
// eligible for push; it remains in the queue for diagnostics.
func (db *DB) BumpRetry(changeID string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			UPDATE change_queue
			SET retry_count = retry_count + 1,
			    sync_status = CASE WHEN retry_count + 1 > max_retries THEN ? ELSE sync_status END
			WHERE id = ?
		`, StatusError, changeID)
		if err != nil {
			return fmt.Errorf("bump retry %s: %w", changeID, err)
		}
		return nil
	})
}

// RemoveChange deletes a change from the queue. Only called once the server
// has acknowledged it.
func (db *DB) RemoveChange(changeID string) error {
	return db.withWriteLock(func() error {
		if _, err := db.conn.Exec(`DELETE FROM change_queue WHERE id = ?`, changeID); err != nil {
			return fmt.Errorf("remove change %s: %w", changeID, err)
		}
		return nil
	})
}

// CountPendingChanges returns the number of changes still awaiting push.
func (db *DB) CountPendingChanges() (int64, error) {
	var count int64
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM change_queue WHERE sync_status = ?`, StatusPending,
	).Scan(&count)
	return count, err
}

func nullableJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
