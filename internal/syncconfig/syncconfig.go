package syncconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	URL            string `json:"url"`
	Enabled        bool   `json:"enabled"`
	Interval       string `json:"interval,omitempty"`        // duration string, default tier-derived
	ProbeInterval  string `json:"probe_interval,omitempty"`  // duration string, default "10s"
	StorageCap     *int64 `json:"storage_cap,omitempty"`     // bytes, default tier-derived
	PriorityTables string `json:"priority_tables,omitempty"` // comma-separated, pulled first
}

// Config is the global recall config stored at ~/.config/recall/config.json.
type Config struct {
	Premium bool       `json:"premium"`
	Sync    SyncConfig `json:"sync"`
}

// AuthCredentials stores authentication state at ~/.config/recall/auth.json.
type AuthCredentials struct {
	APIKey    string `json:"api_key"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	ServerURL string `json:"server_url"`
	DeviceID  string `json:"device_id"`
	ExpiresAt string `json:"expires_at"`
}

const (
	defaultServerURL = "http://localhost:8080"

	// Tier-derived defaults.
	freeSyncInterval    = 30 * time.Second
	premiumSyncInterval = 5 * time.Second
	defaultProbeEvery   = 10 * time.Second
	freeStorageCap      = 50 * 1024 * 1024
	premiumStorageCap   = 500 * 1024 * 1024
)

// ConfigDir returns ~/.config/recall, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "recall")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// DataDir returns the directory holding the local database.
// Priority: RECALL_DATA_DIR env > ~/.local/share/recall.
func DataDir() (string, error) {
	if v := os.Getenv("RECALL_DATA_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "recall"), nil
}

// LoadConfig reads the global config from ~/.config/recall/config.json.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the global config to ~/.config/recall/config.json.
func SaveConfig(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// LoadAuth reads auth credentials from ~/.config/recall/auth.json.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth writes auth credentials to ~/.config/recall/auth.json (0600 perms).
func SaveAuth(creds *AuthCredentials) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "auth.json"), data, 0600)
}

// ClearAuth removes the auth.json file.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetServerURL returns the sync server URL.
// Priority: RECALL_SYNC_URL env > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("RECALL_SYNC_URL"); v != "" {
		return v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.URL != "" {
		return cfg.Sync.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the API key.
// Priority: RECALL_AUTH_KEY env > auth.json.
func GetAPIKey() string {
	if v := os.Getenv("RECALL_AUTH_KEY"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil {
		return creds.APIKey
	}
	return ""
}

// IsAuthenticated returns true if an API key is available.
func IsAuthenticated() bool {
	return GetAPIKey() != ""
}

// IsPremium reports the account tier.
// Priority: RECALL_PREMIUM env > config.json.
func IsPremium() bool {
	if v := os.Getenv("RECALL_PREMIUM"); v != "" {
		return v == "1" || v == "true"
	}
	cfg, err := LoadConfig()
	return err == nil && cfg.Premium
}

// GetSyncInterval returns the periodic sync interval.
// Priority: RECALL_SYNC_INTERVAL env > config.json > tier default (30s free, 5s premium).
func GetSyncInterval() time.Duration {
	if v := os.Getenv("RECALL_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Interval != "" {
		if d, err := time.ParseDuration(cfg.Sync.Interval); err == nil {
			return d
		}
	}
	if IsPremium() {
		return premiumSyncInterval
	}
	return freeSyncInterval
}

// GetProbeInterval returns the network probe interval.
// Priority: RECALL_PROBE_INTERVAL env > config.json > 10s.
func GetProbeInterval() time.Duration {
	if v := os.Getenv("RECALL_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.ProbeInterval != "" {
		if d, err := time.ParseDuration(cfg.Sync.ProbeInterval); err == nil {
			return d
		}
	}
	return defaultProbeEvery
}

// GetStorageCap returns the local storage cap in bytes.
// Priority: RECALL_STORAGE_CAP env > config.json > tier default (50MB free, 500MB premium).
func GetStorageCap() int64 {
	if v := os.Getenv("RECALL_STORAGE_CAP"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.StorageCap != nil && *cfg.Sync.StorageCap > 0 {
		return *cfg.Sync.StorageCap
	}
	if IsPremium() {
		return premiumStorageCap
	}
	return freeStorageCap
}

// GetDeviceID returns the device ID from auth.json, generating one if needed.
func GetDeviceID() (string, error) {
	creds, err := LoadAuth()
	if err != nil {
		return "", err
	}
	if creds != nil && creds.DeviceID != "" {
		return creds.DeviceID, nil
	}
	return GenerateDeviceID()
}

// GenerateDeviceID creates a new random device ID (16 bytes hex).
func GenerateDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
