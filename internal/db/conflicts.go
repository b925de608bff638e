package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictSeverity grades how risky an automatic resolution would be.
type ConflictSeverity string

const (
	SeverityLow    ConflictSeverity = "low"
	SeverityMedium ConflictSeverity = "medium"
	SeverityHigh   ConflictSeverity = "high"
)

// SyncConflict is a server-detected collision between a queued local change
// and a newer remote version of the same record.
type SyncConflict struct {
	ConflictID         string
	TableName          string
	RecordID           string
	LocalData          json.RawMessage
	RemoteData         json.RawMessage
	LocalVersion       int64
	RemoteVersion      int64
	Severity           ConflictSeverity
	Resolved           bool
	ResolutionStrategy string
	DetectedAt         time.Time
}

// InsertConflict persists a conflict. When the server did not assign an ID a
// fresh one is generated.
func (db *DB) InsertConflict(c *SyncConflict) error {
	return db.withWriteLock(func() error {
		if c.ConflictID == "" {
			c.ConflictID = uuid.NewString()
		}
		if c.Severity == "" {
			c.Severity = SeverityMedium
		}
		if c.DetectedAt.IsZero() {
			c.DetectedAt = time.Now().UTC()
		}

		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO sync_conflicts
				(conflict_id, table_name, record_id, local_data, remote_data, local_version, remote_version, severity, resolved, resolution_strategy, detected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ConflictID, c.TableName, c.RecordID, nullableJSON(c.LocalData), nullableJSON(c.RemoteData),
			c.LocalVersion, c.RemoteVersion, c.Severity, boolToInt(c.Resolved), c.ResolutionStrategy, c.DetectedAt)
		if err != nil {
			return fmt.Errorf("insert conflict %s/%s: %w", c.TableName, c.RecordID, err)
		}
		return nil
	})
}

// ListConflictsOptions filters ListConflicts. Nil fields mean no filter.
type ListConflictsOptions struct {
	Severity *ConflictSeverity
	Resolved *bool
}

// ListConflicts returns conflicts matching the filter, most recent first.
func (db *DB) ListConflicts(opts ListConflictsOptions) ([]SyncConflict, error) {
	query := `
		SELECT conflict_id, table_name, record_id, COALESCE(local_data,'null'), COALESCE(remote_data,'null'),
		       local_version, remote_version, severity, resolved, resolution_strategy, detected_at
		FROM sync_conflicts WHERE 1=1`
	var args []any

	if opts.Severity != nil {
		query += " AND severity = ?"
		args = append(args, *opts.Severity)
	}
	if opts.Resolved != nil {
		query += " AND resolved = ?"
		args = append(args, boolToInt(*opts.Resolved))
	}
	query += " ORDER BY detected_at DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []SyncConflict
	for rows.Next() {
		var c SyncConflict
		var local, remote string
		var resolved int
		if err := rows.Scan(&c.ConflictID, &c.TableName, &c.RecordID, &local, &remote,
			&c.LocalVersion, &c.RemoteVersion, &c.Severity, &resolved, &c.ResolutionStrategy, &c.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		c.LocalData = json.RawMessage(local)
		c.RemoteData = json.RawMessage(remote)
		c.Resolved = resolved != 0
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// GetConflict returns a conflict by ID, or nil when not found.
func (db *DB) GetConflict(conflictID string) (*SyncConflict, error) {
	var c SyncConflict
	var local, remote string
	var resolved int
	err := db.conn.QueryRow(`
		SELECT conflict_id, table_name, record_id, COALESCE(local_data,'null'), COALESCE(remote_data,'null'),
		       local_version, remote_version, severity, resolved, resolution_strategy, detected_at
		FROM sync_conflicts WHERE conflict_id = ?
	`, conflictID).Scan(&c.ConflictID, &c.TableName, &c.RecordID, &local, &remote,
		&c.LocalVersion, &c.RemoteVersion, &c.Severity, &resolved, &c.ResolutionStrategy, &c.DetectedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conflict %s: %w", conflictID, err)
	}
	c.LocalData = json.RawMessage(local)
	c.RemoteData = json.RawMessage(remote)
	c.Resolved = resolved != 0
	return &c, nil
}

// MarkConflictResolved records the strategy a conflict was resolved with.
func (db *DB) MarkConflictResolved(conflictID, strategy string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			UPDATE sync_conflicts SET resolved = 1, resolution_strategy = ? WHERE conflict_id = ?
		`, strategy, conflictID)
		if err != nil {
			return fmt.Errorf("mark conflict resolved %s: %w", conflictID, err)
		}
		return nil
	})
}

// CountUnresolvedConflicts returns the number of conflicts awaiting resolution.
func (db *DB) CountUnresolvedConflicts() (int64, error) {
	var count int64
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM sync_conflicts WHERE resolved = 0`).Scan(&count)
	return count, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
