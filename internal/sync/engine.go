// Package sync implements the orchestrator that keeps the local record store
// consistent with the remote store: it drives sync cycles over the change
// queue, routes conflicts, watches connectivity and emits lifecycle events.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/evans/recall/internal/db"
	"github.com/evans/recall/internal/events"
	"github.com/evans/recall/internal/syncclient"
)

// Engine states.
const (
	StateIdle    = "idle"
	StateSyncing = "syncing"
	StateOffline = "offline"
)

// ErrSyncInProgress is returned when a cycle is refused because one is
// already running and force was not set.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrOffline is returned when a cycle is refused because the network is down.
var ErrOffline = errors.New("network unavailable")

// Engine is the sync orchestrator. All collaborators are injected so each
// can be replaced with a test double.
type Engine struct {
	db     *db.DB
	client *syncclient.Client
	bus    *events.Bus
	cfg    Config

	// Resolver decides the automatic conflict resolution strategy.
	// Defaults to LastWriterWins.
	Resolver ResolutionPolicy

	machine    *fsm.FSM
	inProgress atomic.Bool

	mu  stdsync.Mutex
	net NetworkState

	nudge chan struct{}
}

// New creates an engine. The client's Codec should already be configured if
// payload encryption is wanted.
func New(database *db.DB, client *syncclient.Client, bus *events.Bus, cfg Config) *Engine {
	e := &Engine{
		db:       database,
		client:   client,
		bus:      bus,
		cfg:      cfg.withDefaults(),
		Resolver: LastWriterWins,
		nudge:    make(chan struct{}, 1),
	}
	e.net = NetworkState{Type: e.cfg.NetworkType}

	e.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: "sync_start", Src: []string{StateIdle}, Dst: StateSyncing},
			{Name: "sync_done", Src: []string{StateSyncing}, Dst: StateIdle},
			{Name: "sync_fail", Src: []string{StateSyncing}, Dst: StateIdle},
			{Name: "network_lost", Src: []string{StateIdle, StateSyncing}, Dst: StateOffline},
			{Name: "network_restored", Src: []string{StateOffline}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_offline": func(_ context.Context, _ *fsm.Event) {
				e.bus.Publish(events.Event{Kind: events.KindNetworkOffline})
			},
			"network_restored": func(_ context.Context, _ *fsm.Event) {
				e.bus.Publish(events.Event{Kind: events.KindNetworkOnline})
			},
		},
	)
	return e
}

// State returns the current orchestrator state: idle, syncing or offline.
func (e *Engine) State() string {
	return e.machine.Current()
}

// Events returns the engine's event bus for subscribers.
func (e *Engine) Events() *events.Bus {
	return e.bus
}

// Network returns the current connectivity snapshot.
func (e *Engine) Network() NetworkState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net
}

// QueueChange records a local mutation: the record store is updated and the
// change is appended to the durable queue for the next cycle. Delete
// operations remove the local record immediately.
func (e *Engine) QueueChange(table, id string, op db.Operation, data, originalData json.RawMessage) (string, error) {
	switch op {
	case db.OpDelete:
		if err := e.db.DeleteRecord(table, id); err != nil {
			return "", err
		}
	default:
		if err := e.db.PutRecord(table, id, data, db.StatusPending); err != nil {
			return "", err
		}
	}

	changeID, err := e.db.EnqueueChange(table, id, op, data, originalData)
	if err != nil {
		return "", err
	}

	e.bus.Publish(events.Event{Kind: events.KindChangeQueued, Table: table, RecordID: id})
	e.checkStoragePressure()

	// Nudge the run loop; non-blocking, a pending nudge is enough.
	select {
	case e.nudge <- struct{}{}:
	default:
	}

	return changeID, nil
}

// checkStoragePressure raises an advisory event when the tracked usage
// crosses the cap. Writes are never refused: data integrity over availability.
func (e *Engine) checkStoragePressure() {
	usage, err := e.db.StorageUsage()
	if err != nil {
		slog.Debug("storage usage", "err", err)
		return
	}
	if usage >= e.cfg.StorageCap {
		slog.Warn("local storage cap reached", "bytes", usage, "cap", e.cfg.StorageCap)
		e.bus.Publish(events.Event{Kind: events.KindStoragePressure, Bytes: usage})
	}
}

// Sync runs one sync cycle. When a cycle is already running the call is
// refused with ErrSyncInProgress unless force is set; force is meant for
// explicit user action only, and deliberately allows two concurrent cycles.
func (e *Engine) Sync(ctx context.Context, force bool) (*CycleResult, error) {
	if e.inProgress.CompareAndSwap(false, true) {
		defer e.inProgress.Store(false)
	} else if !force {
		return nil, ErrSyncInProgress
	}

	if !e.Network().Connected {
		return nil, ErrOffline
	}

	// State machine bookkeeping; a forced overlapping cycle leaves the
	// machine alone since the owning cycle manages it.
	started := e.machine.Event(ctx, "sync_start") == nil

	e.bus.Publish(events.Event{Kind: events.KindSyncStarted})

	result, err := e.runCycle(ctx)
	if err != nil {
		if dbErr := e.db.RecordSyncError(err.Error()); dbErr != nil {
			slog.Warn("record sync error", "err", dbErr)
		}
		if started {
			e.machine.Event(ctx, "sync_fail")
		}
		e.bus.Publish(events.Event{Kind: events.KindSyncFailed, Err: err})
		return nil, err
	}

	if started {
		e.machine.Event(ctx, "sync_done")
	}
	e.bus.Publish(events.Event{
		Kind:      events.KindSyncCompleted,
		Pushed:    result.Pushed,
		Pulled:    result.Pulled,
		Conflicts: result.Conflicts,
	})
	return result, nil
}

// runCycle executes the cycle steps in order: adapt config, push pending
// changes, handle conflicts, pull remote changes, apply them, advance the
// watermark. The watermark only moves after every pulled change applied.
func (e *Engine) runCycle(ctx context.Context) (*CycleResult, error) {
	var result CycleResult

	// 1. Adapt compression and batch size to current network quality.
	e.adaptToNetwork()

	// 2-4. Push queued changes and handle the outcome.
	if err := e.pushPending(&result); err != nil {
		return nil, err
	}

	// 5-7. Pull remote changes, apply, advance watermark.
	if err := e.pullAndApply(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Run drives the engine until ctx is done: periodic sync, network probing,
// and immediate attempts on queued changes and reconnect. Failed cycles are
// retried with exponential backoff, reset on the next success.
func (e *Engine) Run(ctx context.Context) error {
	syncTicker := time.NewTicker(e.cfg.SyncInterval)
	defer syncTicker.Stop()
	probeTicker := time.NewTicker(e.cfg.ProbeInterval)
	defer probeTicker.Stop()

	retry := newRetrySchedule()
	var notBefore time.Time

	// Initial probe and attempt so startup does not wait a full interval.
	e.Probe(ctx)
	e.attempt(ctx, retry, &notBefore)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-probeTicker.C:
			e.Probe(ctx)
		case <-syncTicker.C:
			e.attempt(ctx, retry, &notBefore)
		case <-e.nudge:
			e.attempt(ctx, retry, &notBefore)
		}
	}
}

// attempt runs a non-forced cycle, honoring the failure backoff window.
func (e *Engine) attempt(ctx context.Context, retry *retrySchedule, notBefore *time.Time) {
	if !e.Network().Connected {
		return
	}
	if time.Now().Before(*notBefore) {
		return
	}

	_, err := e.Sync(ctx, false)
	switch {
	case err == nil:
		retry.reset()
		*notBefore = time.Time{}
	case errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrOffline):
		// not a failure; leave backoff alone
	default:
		wait := retry.next()
		*notBefore = time.Now().Add(wait)
		slog.Warn("sync cycle failed", "err", err, "retry_in", wait)
	}
}

// adaptToNetwork recomputes the client's compression tuning from the
// current network classification.
func (e *Engine) adaptToNetwork() {
	net := e.Network()
	e.client.SetCompress(compressConfigFor(net))
}

// CurrentStatus assembles a point-in-time snapshot for display.
func (e *Engine) CurrentStatus() (*Status, error) {
	st := &Status{
		State:      e.State(),
		Network:    e.Network(),
		StorageCap: e.cfg.StorageCap,
	}

	var err error
	if st.PendingChanges, err = e.db.CountPendingChanges(); err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	if st.OpenConflicts, err = e.db.CountUnresolvedConflicts(); err != nil {
		return nil, fmt.Errorf("count conflicts: %w", err)
	}
	errored, err := e.db.ErroredChanges()
	if err != nil {
		return nil, fmt.Errorf("errored changes: %w", err)
	}
	st.ErroredChanges = len(errored)
	if st.StorageBytes, err = e.db.StorageUsage(); err != nil {
		return nil, fmt.Errorf("storage usage: %w", err)
	}

	state, err := e.db.GetSyncState()
	if err != nil {
		return nil, fmt.Errorf("sync state: %w", err)
	}
	if state != nil {
		st.Watermark = state.LastSyncTimestamp
		st.LastSuccess = state.LastSuccessfulSync
		st.LastError = state.LastError
		st.DeviceID = state.DeviceID
	}
	return st, nil
}
