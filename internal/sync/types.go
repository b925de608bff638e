package sync

import (
	"time"

	"github.com/evans/recall/internal/db"
)

// NetworkState is the derived (never persisted) view of connectivity that
// gates whether sync cycles may start.
type NetworkState struct {
	Connected bool
	Reachable bool
	Type      string // "wifi", "cellular", "unknown"
	Slow      bool
	RTT       time.Duration
}

// Config tunes the sync engine. Zero values fall back to free-tier defaults.
type Config struct {
	SyncInterval   time.Duration
	ProbeInterval  time.Duration
	StorageCap     int64
	PriorityTables []string
	NetworkType    string // connectivity hint from the platform, if any
}

func (c Config) withDefaults() Config {
	if c.SyncInterval <= 0 {
		c.SyncInterval = 30 * time.Second
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 10 * time.Second
	}
	if c.StorageCap <= 0 {
		c.StorageCap = 50 * 1024 * 1024
	}
	if c.NetworkType == "" {
		c.NetworkType = "unknown"
	}
	return c
}

// CycleResult summarises one sync cycle.
type CycleResult struct {
	Pushed    int // changes acknowledged by the server
	Errored   int // changes the server rejected (retry counters bumped)
	Conflicts int // conflicts returned by the push
	Pulled    int // remote changes applied locally
	Watermark string
}

// Status is a point-in-time snapshot for display.
type Status struct {
	State          string
	Network        NetworkState
	PendingChanges int64
	OpenConflicts  int64
	ErroredChanges int
	StorageBytes   int64
	StorageCap     int64
	Watermark      string
	LastSuccess    *time.Time
	LastError      string
	DeviceID       string
}

// ResolutionPolicy decides how a conflict is resolved during the automatic
// pass. It returns one of the server strategies: "keep_local", "keep_remote",
// "merge" or "manual" ("manual" defers to the user and skips the conflict).
type ResolutionPolicy func(c db.SyncConflict) string

// LastWriterWins is the default policy: the side with the higher version
// (the server's ordering of write arrival) wins. Ties go to the remote copy,
// since the server is the sole arbiter of ordering.
func LastWriterWins(c db.SyncConflict) string {
	if c.LocalVersion > c.RemoteVersion {
		return "keep_local"
	}
	return "keep_remote"
}
