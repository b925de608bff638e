package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evans/recall/internal/codec"
	"github.com/evans/recall/internal/db"
	"github.com/evans/recall/internal/events"
	"github.com/evans/recall/internal/syncclient"
)

// pushPending reads a network-sized batch of pending changes and pushes
// them. Acknowledged changes leave the queue; rejected ones have their retry
// counters bumped; conflicts are persisted and run through auto-resolution.
func (e *Engine) pushPending(result *CycleResult) error {
	pending, err := e.db.ListPendingChanges(100)
	if err != nil {
		return fmt.Errorf("list pending changes: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	// Adaptive batch size from sampled payload sizes.
	payloads := make([][]byte, len(pending))
	for i, c := range pending {
		payloads[i] = c.Data
	}
	if n := codec.OptimalBatchSize(payloads); len(pending) > n {
		pending = pending[:n]
	}

	wire := make([]syncclient.Change, len(pending))
	for i, c := range pending {
		wire[i] = syncclient.Change{
			ID:        c.ID,
			TableName: c.TableName,
			RecordID:  c.RecordID,
			Operation: string(c.Operation),
			Data:      c.Data,
			Timestamp: c.Timestamp.UTC().Format(time.RFC3339Nano),
		}
	}

	resp, err := e.client.PushChanges(wire)
	if err != nil {
		switch {
		case syncclient.IsNetworkError(err):
			// Transient: changes stay queued untouched for the next cycle.
		case errors.Is(err, syncclient.ErrUnauthorized), errors.Is(err, syncclient.ErrForbidden):
			// A credential failure is a verdict on the session, not on the
			// changes. They stay queued for after re-authentication.
		default:
			// The server refused the batch's content; count the attempt
			// against each change.
			for _, c := range pending {
				if bumpErr := e.db.BumpRetry(c.ID); bumpErr != nil {
					slog.Warn("bump retry", "change", c.ID, "err", bumpErr)
				}
			}
		}
		return fmt.Errorf("push changes: %w", err)
	}

	rejected := make(map[string]string, len(resp.Errors))
	for _, pushErr := range resp.Errors {
		rejected[pushErr.ChangeID] = pushErr.Message
	}
	conflicted := make(map[string]bool, len(resp.Conflicts))
	for _, c := range resp.Conflicts {
		conflicted[c.TableName+"/"+c.RecordID] = true
	}

	for _, c := range pending {
		if msg, ok := rejected[c.ID]; ok {
			slog.Warn("change rejected", "change", c.ID, "table", c.TableName, "record", c.RecordID, "reason", msg)
			if err := e.db.BumpRetry(c.ID); err != nil {
				slog.Warn("bump retry", "change", c.ID, "err", err)
			}
			result.Errored++
			continue
		}

		// Both plainly-applied and conflicted changes have been adjudicated
		// by the server; either way this queue entry is done. Conflicts
		// continue through the resolution flow, which re-queues its outcome.
		if err := e.db.RemoveChange(c.ID); err != nil {
			return fmt.Errorf("remove acked change %s: %w", c.ID, err)
		}
		if conflicted[c.TableName+"/"+c.RecordID] {
			continue
		}
		if c.Operation != db.OpDelete {
			if err := e.db.MarkRecordSynced(c.TableName, c.RecordID); err != nil {
				slog.Warn("mark record synced", "table", c.TableName, "record", c.RecordID, "err", err)
			}
		}
		result.Pushed++
	}

	if len(resp.Conflicts) > 0 {
		if err := e.recordConflicts(resp.Conflicts, pending); err != nil {
			return err
		}
		result.Conflicts = len(resp.Conflicts)
		e.autoResolve()
	}

	return nil
}

// recordConflicts persists server-reported conflicts and flags the affected
// records. The local pre-image comes from the queued change that collided.
func (e *Engine) recordConflicts(conflicts []syncclient.Conflict, pushed []db.QueuedChange) error {
	local := make(map[string]json.RawMessage, len(pushed))
	for _, c := range pushed {
		local[c.TableName+"/"+c.RecordID] = c.Data
	}

	for _, wc := range conflicts {
		conflict := &db.SyncConflict{
			ConflictID:    wc.ConflictID,
			TableName:     wc.TableName,
			RecordID:      wc.RecordID,
			LocalData:     wc.LocalData,
			RemoteData:    wc.RemoteData,
			LocalVersion:  wc.LocalVersion,
			RemoteVersion: wc.RemoteVersion,
			Severity:      db.ConflictSeverity(wc.Severity),
		}
		if len(conflict.LocalData) == 0 {
			conflict.LocalData = local[wc.TableName+"/"+wc.RecordID]
		}
		if err := e.db.InsertConflict(conflict); err != nil {
			return fmt.Errorf("persist conflict %s/%s: %w", wc.TableName, wc.RecordID, err)
		}

		if rec, err := e.db.GetRecord(wc.TableName, wc.RecordID); err == nil && rec != nil {
			if err := e.db.PutRecord(wc.TableName, wc.RecordID, rec.Data, db.StatusConflict); err != nil {
				slog.Warn("flag conflicted record", "table", wc.TableName, "record", wc.RecordID, "err", err)
			}
		}

		e.bus.Publish(events.Event{
			Kind:      events.KindConflictFound,
			Table:     wc.TableName,
			RecordID:  wc.RecordID,
			Conflicts: 1,
		})
	}
	return nil
}

// autoResolve runs the pluggable resolution policy over unresolved local
// conflicts. keep_remote applies the remote copy; keep_local re-queues the
// local copy as a fresh change (resolutions are themselves changes that must
// sync). Policies answering "manual" leave the conflict for the user.
// Failures are logged and left unresolved for the next pass.
func (e *Engine) autoResolve() (resolved, failed int) {
	unresolved := false
	conflicts, err := e.db.ListConflicts(db.ListConflictsOptions{Resolved: &unresolved})
	if err != nil {
		slog.Warn("list conflicts", "err", err)
		return 0, 0
	}

	for _, c := range conflicts {
		strategy := e.Resolver(c)
		if strategy == "manual" {
			continue
		}

		if err := e.applyResolution(c, strategy); err != nil {
			slog.Warn("auto-resolve failed", "conflict", c.ConflictID, "strategy", strategy, "err", err)
			failed++
			continue
		}
		resolved++
	}
	return resolved, failed
}

// Resolve applies a user-chosen strategy to one conflict. keep_local
// re-queues the local copy; keep_remote applies the remote one.
func (e *Engine) Resolve(conflictID, strategy string) error {
	c, err := e.db.GetConflict(conflictID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("conflict %s not found", conflictID)
	}
	if c.Resolved {
		return fmt.Errorf("conflict %s already resolved (%s)", conflictID, c.ResolutionStrategy)
	}
	return e.applyResolution(*c, strategy)
}

func (e *Engine) applyResolution(c db.SyncConflict, strategy string) error {
	if _, err := e.client.ResolveConflict(c.ConflictID, strategy, nil); err != nil {
		return fmt.Errorf("resolve on server: %w", err)
	}

	switch strategy {
	case "keep_remote":
		if err := e.db.PutRecord(c.TableName, c.RecordID, c.RemoteData, db.StatusSynced); err != nil {
			return fmt.Errorf("apply remote copy: %w", err)
		}
	case "keep_local":
		if err := e.db.PutRecord(c.TableName, c.RecordID, c.LocalData, db.StatusPending); err != nil {
			return fmt.Errorf("restore local copy: %w", err)
		}
		if _, err := e.db.EnqueueChange(c.TableName, c.RecordID, db.OpUpdate, c.LocalData, c.RemoteData); err != nil {
			return fmt.Errorf("requeue local copy: %w", err)
		}
	default:
		return fmt.Errorf("unsupported auto strategy %q", strategy)
	}

	return e.db.MarkConflictResolved(c.ConflictID, strategy)
}

// pullAndApply pulls remote changes since the watermark and applies them.
// Priority tables are pulled first, then everything. The watermark advances
// only after a page has fully applied; a partial failure aborts the cycle so
// the next one re-pulls the same changes.
func (e *Engine) pullAndApply(result *CycleResult) error {
	state, err := e.db.GetSyncState()
	if err != nil {
		return fmt.Errorf("get sync state: %w", err)
	}
	if state == nil {
		return fmt.Errorf("device not linked")
	}

	scopes := [][]string{nil}
	if len(e.cfg.PriorityTables) > 0 {
		scopes = [][]string{e.cfg.PriorityTables, nil}
	}

	for _, tables := range scopes {
		since := state.LastSyncTimestamp
		if fresh, err := e.db.GetSyncState(); err == nil && fresh != nil {
			since = fresh.LastSyncTimestamp
		}

		for {
			resp, err := e.client.PullChanges(since, tables)
			if err != nil {
				return fmt.Errorf("pull changes: %w", err)
			}

			applied, err := e.applyRemote(resp.Changes)
			result.Pulled += applied
			if err != nil {
				// Watermark untouched: the next cycle re-pulls this page.
				return fmt.Errorf("apply pulled changes: %w", err)
			}

			// Scoped pulls must not advance the global watermark past
			// changes in tables they exclude.
			if tables == nil && resp.LatestTimestamp != "" {
				if err := e.db.AdvanceWatermark(resp.LatestTimestamp); err != nil {
					return err
				}
				result.Watermark = resp.LatestTimestamp
			}

			if !resp.HasMore {
				break
			}
			since = resp.LatestTimestamp
		}
	}

	return nil
}

// applyRemote applies pulled changes to the record store in order. The upsert
// and delete paths are idempotent, so duplicate delivery is harmless. Returns
// how many changes applied before the first failure.
func (e *Engine) applyRemote(changes []syncclient.Change) (int, error) {
	for i, ch := range changes {
		switch ch.Operation {
		case string(db.OpDelete):
			if err := e.db.DeleteRecord(ch.TableName, ch.RecordID); err != nil {
				return i, fmt.Errorf("apply delete %s/%s: %w", ch.TableName, ch.RecordID, err)
			}
		case string(db.OpInsert), string(db.OpUpdate):
			if len(ch.Data) == 0 {
				return i, fmt.Errorf("apply %s %s/%s: empty payload", ch.Operation, ch.TableName, ch.RecordID)
			}
			if err := e.db.PutRecord(ch.TableName, ch.RecordID, ch.Data, db.StatusSynced); err != nil {
				return i, fmt.Errorf("apply upsert %s/%s: %w", ch.TableName, ch.RecordID, err)
			}
		default:
			return i, fmt.Errorf("apply %s/%s: unknown operation %q", ch.TableName, ch.RecordID, ch.Operation)
		}
	}
	return len(changes), nil
}

// compressConfigFor classifies the link and picks the compression tuning:
// cellular or high-RTT links get max compression with a lower threshold.
func compressConfigFor(net NetworkState) codec.CompressConfig {
	return codec.CompressConfigFor(net.Slow || net.Type == "cellular")
}
