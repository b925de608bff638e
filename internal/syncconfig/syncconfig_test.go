package syncconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolateHome points the config and data dirs at a throwaway home.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	return home
}

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	isolateHome(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Premium || cfg.Sync.Enabled {
		t.Errorf("zero config expected, got %+v", cfg)
	}
}

func TestSaveLoadConfigRoundTrip(t *testing.T) {
	isolateHome(t)

	cap := int64(1024)
	in := &Config{Premium: true, Sync: SyncConfig{
		URL: "https://sync.example.com", Enabled: true,
		Interval: "15s", StorageCap: &cap, PriorityTables: "notes,cards",
	}}
	if err := SaveConfig(in); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	out, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if out.Sync.URL != in.Sync.URL || !out.Premium || *out.Sync.StorageCap != cap {
		t.Errorf("round trip: %+v", out)
	}
}

func TestAuthLifecycle(t *testing.T) {
	home := isolateHome(t)

	if IsAuthenticated() {
		t.Fatal("fresh home should not be authenticated")
	}

	if err := SaveAuth(&AuthCredentials{APIKey: "k1", DeviceID: "d1"}); err != nil {
		t.Fatalf("SaveAuth failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(home, ".config", "recall", "auth.json"))
	if err != nil {
		t.Fatalf("auth file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("auth file perms: got %o, want 0600", perm)
	}

	if GetAPIKey() != "k1" {
		t.Errorf("api key: got %q", GetAPIKey())
	}
	id, err := GetDeviceID()
	if err != nil {
		t.Fatalf("GetDeviceID failed: %v", err)
	}
	if id != "d1" {
		t.Errorf("device id: got %q", id)
	}

	if err := ClearAuth(); err != nil {
		t.Fatalf("ClearAuth failed: %v", err)
	}
	if IsAuthenticated() {
		t.Error("still authenticated after ClearAuth")
	}
	// Clearing twice is fine.
	if err := ClearAuth(); err != nil {
		t.Errorf("second ClearAuth: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolateHome(t)

	t.Setenv("RECALL_SYNC_URL", "https://env.example.com")
	t.Setenv("RECALL_AUTH_KEY", "env-key")
	t.Setenv("RECALL_SYNC_INTERVAL", "7s")
	t.Setenv("RECALL_PROBE_INTERVAL", "3s")
	t.Setenv("RECALL_STORAGE_CAP", "4096")
	t.Setenv("RECALL_DATA_DIR", "/tmp/recall-test-data")

	if GetServerURL() != "https://env.example.com" {
		t.Errorf("server url: got %q", GetServerURL())
	}
	if GetAPIKey() != "env-key" {
		t.Errorf("api key: got %q", GetAPIKey())
	}
	if GetSyncInterval() != 7*time.Second {
		t.Errorf("sync interval: got %s", GetSyncInterval())
	}
	if GetProbeInterval() != 3*time.Second {
		t.Errorf("probe interval: got %s", GetProbeInterval())
	}
	if GetStorageCap() != 4096 {
		t.Errorf("storage cap: got %d", GetStorageCap())
	}
	dir, _ := DataDir()
	if dir != "/tmp/recall-test-data" {
		t.Errorf("data dir: got %q", dir)
	}
}

func TestTierDefaults(t *testing.T) {
	isolateHome(t)

	if GetSyncInterval() != freeSyncInterval {
		t.Errorf("free interval: got %s", GetSyncInterval())
	}
	if GetStorageCap() != freeStorageCap {
		t.Errorf("free cap: got %d", GetStorageCap())
	}

	t.Setenv("RECALL_PREMIUM", "1")
	if GetSyncInterval() != premiumSyncInterval {
		t.Errorf("premium interval: got %s", GetSyncInterval())
	}
	if GetStorageCap() != premiumStorageCap {
		t.Errorf("premium cap: got %d", GetStorageCap())
	}
}

func TestGetDeviceIDGeneratesWithoutAuth(t *testing.T) {
	isolateHome(t)

	id, err := GetDeviceID()
	if err != nil {
		t.Fatalf("GetDeviceID failed: %v", err)
	}
	if len(id) != 32 {
		t.Errorf("generated id: got %d hex chars, want 32", len(id))
	}
}
