package sync

import (
	"testing"
	"time"

	"github.com/evans/recall/internal/db"
)

func TestLastWriterWins(t *testing.T) {
	cases := []struct {
		local, remote int64
		want          string
	}{
		{local: 3, remote: 1, want: "keep_local"},
		{local: 1, remote: 3, want: "keep_remote"},
		{local: 2, remote: 2, want: "keep_remote"}, // ties go to the server
	}
	for _, tc := range cases {
		got := LastWriterWins(db.SyncConflict{LocalVersion: tc.local, RemoteVersion: tc.remote})
		if got != tc.want {
			t.Errorf("local %d remote %d: got %s, want %s", tc.local, tc.remote, got, tc.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("sync interval: got %s", cfg.SyncInterval)
	}
	if cfg.ProbeInterval != 10*time.Second {
		t.Errorf("probe interval: got %s", cfg.ProbeInterval)
	}
	if cfg.StorageCap != 50*1024*1024 {
		t.Errorf("storage cap: got %d", cfg.StorageCap)
	}

	// Explicit values survive.
	cfg = Config{SyncInterval: 5 * time.Second, StorageCap: 1}.withDefaults()
	if cfg.SyncInterval != 5*time.Second || cfg.StorageCap != 1 {
		t.Errorf("explicit config overridden: %+v", cfg)
	}
}

func TestCompressConfigForNetwork(t *testing.T) {
	fast := compressConfigFor(NetworkState{Type: "wifi", RTT: 20 * time.Millisecond})
	cellular := compressConfigFor(NetworkState{Type: "cellular"})
	laggy := compressConfigFor(NetworkState{Type: "wifi", Slow: true})

	if cellular.Level <= fast.Level {
		t.Error("cellular should compress harder than wifi")
	}
	if laggy.Level != cellular.Level {
		t.Error("slow wifi should compress like cellular")
	}
	if cellular.Threshold >= fast.Threshold {
		t.Error("constrained link should compress smaller payloads")
	}
}

func TestRetryScheduleGrowsAndResets(t *testing.T) {
	r := newRetrySchedule()

	first := r.next()
	if first <= 0 {
		t.Fatalf("first interval: %s", first)
	}

	// Intervals trend upward (jitter makes individual steps noisy).
	var last time.Duration
	for i := 0; i < 10; i++ {
		last = r.next()
	}
	if last <= first {
		t.Errorf("backoff did not grow: first %s, tenth %s", first, last)
	}
	if last > 5*time.Minute+5*time.Minute/2 {
		t.Errorf("backoff exceeded cap: %s", last)
	}

	r.reset()
	if again := r.next(); again > 2*first+time.Second {
		t.Errorf("reset did not restart the schedule: %s", again)
	}
}
