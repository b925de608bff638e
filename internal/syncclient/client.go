// Package syncclient is the HTTP client for the recall sync server.
// Payload encryption and compression are applied transparently: callers hand
// it plaintext changes and receive plaintext changes back.
package syncclient

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/evans/recall/internal/codec"
)

// Sentinel errors for common server error classes.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrDeviceLimitExceeded = errors.New("device limit exceeded")
	ErrInvalidOperation    = errors.New("invalid operation")
)

// IsNetworkError reports whether err is a transport-level failure (timeout,
// refused connection, DNS) as opposed to a server-side rejection. Transient:
// the next cycle retries it.
func IsNetworkError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Client is an HTTP client for the recall sync server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client

	// Codec encrypts pushed payloads and decrypts pulled ones. Nil disables
	// payload protection (tests, unencrypted accounts).
	Codec *codec.Codec

	// compress tunes payload compression. The orchestrator retunes it as
	// network quality changes, possibly while another cycle is mid-push, so
	// access goes through SetCompress and compressConfig.
	mu       sync.Mutex
	compress codec.CompressConfig
}

// New creates a new sync client for an explicit user context (API key) and
// device identity.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		compress: codec.DefaultCompressConfig,
	}
}

// SetCompress swaps the compression tuning. Safe to call while a push is in
// flight.
func (c *Client) SetCompress(cfg codec.CompressConfig) {
	c.mu.Lock()
	c.compress = cfg
	c.mu.Unlock()
}

func (c *Client) compressConfig() codec.CompressConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compress
}

// --- Device types ---

// Device represents a registered device from the server.
type Device struct {
	ID         string `json:"id"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
	Platform   string `json:"platform"`
	LastSync   string `json:"last_sync,omitempty"`
	Active     bool   `json:"active"`
}

// RegisterDeviceRequest is the body for POST /devices/register.
type RegisterDeviceRequest struct {
	DeviceName        string `json:"device_name"`
	DeviceType        string `json:"device_type"`
	Platform          string `json:"platform"`
	AppVersion        string `json:"app_version"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

type registerDeviceResponse struct {
	Success bool   `json:"success"`
	Device  Device `json:"device"`
}

// ListDevicesResponse is the response from GET /devices.
type ListDevicesResponse struct {
	Success         bool     `json:"success"`
	Devices         []Device `json:"devices"`
	CurrentDeviceID string   `json:"current_device_id"`
	MaxDevices      int      `json:"max_devices"` // -1 means unlimited
	IsPremium       bool     `json:"is_premium"`
}

// --- Change types ---

// Change is a single record mutation on the wire. Data is plaintext on the
// caller side; the client encodes/decodes it at the transport boundary.
type Change struct {
	ID          string          `json:"id"`
	TableName   string          `json:"table_name"`
	RecordID    string          `json:"record_id"`
	Operation   string          `json:"operation"`
	Data        json.RawMessage `json:"data,omitempty"`
	Timestamp   string          `json:"timestamp"`
	SyncVersion int64           `json:"sync_version,omitempty"`
	DeviceID    string          `json:"device_id,omitempty"`
}

// PullChangesResponse is the response from GET /changes.
type PullChangesResponse struct {
	Success         bool     `json:"success"`
	Changes         []Change `json:"changes"`
	LatestTimestamp string   `json:"latest_timestamp"`
	HasMore         bool     `json:"has_more"`
}

// PushError reports a single change the server could not apply.
type PushError struct {
	ChangeID string `json:"change_id"`
	Message  string `json:"message"`
}

// Conflict is a server-detected collision between a pushed change and a
// newer remote version of the same record.
type Conflict struct {
	ConflictID    string          `json:"conflict_id"`
	TableName     string          `json:"table_name"`
	RecordID      string          `json:"record_id"`
	LocalData     json.RawMessage `json:"local_data,omitempty"`
	RemoteData    json.RawMessage `json:"remote_data,omitempty"`
	LocalVersion  int64           `json:"local_version"`
	RemoteVersion int64           `json:"remote_version"`
	Severity      string          `json:"severity"`
	Resolved      bool            `json:"resolved"`
}

// PushChangesResponse is the response from POST /changes.
type PushChangesResponse struct {
	Success      bool        `json:"success"`
	AppliedCount int         `json:"applied_count"`
	Conflicts    []Conflict  `json:"conflicts,omitempty"`
	Errors       []PushError `json:"errors,omitempty"`
}

// --- Conflict resolution types ---

// ResolveConflictResponse is the response from POST /conflicts/resolve.
type ResolveConflictResponse struct {
	Success      bool            `json:"success"`
	ResolvedData json.RawMessage `json:"resolved_data,omitempty"`
}

// AutoResolveResponse is the response from POST /conflicts/auto-resolve.
type AutoResolveResponse struct {
	Success       bool `json:"success"`
	ResolvedCount int  `json:"resolved_count"`
	FailedCount   int  `json:"failed_count"`
}

// --- Stats types ---

// Stats summarises server-side sync state for this account.
type Stats struct {
	TotalRecords    int64  `json:"total_records"`
	TotalChanges    int64  `json:"total_changes"`
	ActiveDevices   int    `json:"active_devices"`
	OpenConflicts   int64  `json:"open_conflicts"`
	LastChangeTime  string `json:"last_change_time,omitempty"`
	StorageBytes    int64  `json:"storage_bytes"`
	StorageCapBytes int64  `json:"storage_cap_bytes"`
}

type statsResponse struct {
	Success bool  `json:"success"`
	Stats   Stats `json:"stats"`
}

// HealthResponse is the response from GET /health.
type HealthResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// --- Device methods ---

// RegisterDevice registers this device with the server. Free-tier accounts at
// their device cap fail with ErrDeviceLimitExceeded.
func (c *Client) RegisterDevice(req *RegisterDeviceRequest) (*Device, error) {
	var resp registerDeviceResponse
	if err := c.do("POST", "/devices/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Device, nil
}

// ListDevices lists the account's registered devices.
func (c *Client) ListDevices() (*ListDevicesResponse, error) {
	var resp ListDevicesResponse
	if err := c.do("GET", "/devices", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeactivateDevice deactivates another device. Deactivating the caller's own
// device is refused locally with ErrInvalidOperation; the server enforces the
// same rule.
func (c *Client) DeactivateDevice(deviceID string) error {
	if deviceID == c.DeviceID {
		return fmt.Errorf("%w: cannot deactivate the current device from itself", ErrInvalidOperation)
	}
	return c.do("POST", fmt.Sprintf("/devices/%s/deactivate", url.PathEscape(deviceID)), struct{}{}, nil)
}

// --- Sync methods ---

// PullChanges fetches remote changes after the given watermark. Payloads are
// decoded (decompressed, field-decrypted) before being returned.
func (c *Client) PullChanges(sinceTimestamp string, tableNames []string) (*PullChangesResponse, error) {
	params := url.Values{}
	params.Set("since_timestamp", sinceTimestamp)
	params.Set("device_id", c.DeviceID)
	if len(tableNames) > 0 {
		params.Set("table_names", strings.Join(tableNames, ","))
	}

	var resp PullChangesResponse
	if err := c.do("GET", "/changes?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	if c.Codec != nil {
		for i := range resp.Changes {
			if len(resp.Changes[i].Data) == 0 {
				continue
			}
			decoded, err := c.Codec.Decode(resp.Changes[i].Data)
			if err != nil {
				return nil, fmt.Errorf("decode change %s: %w", resp.Changes[i].ID, err)
			}
			resp.Changes[i].Data = decoded
		}
	}
	return &resp, nil
}

// PushChanges sends local changes to the server. Payloads are encoded
// (field-encrypted, compressed) before transmission.
func (c *Client) PushChanges(changes []Change) (*PushChangesResponse, error) {
	if c.Codec != nil {
		cfg := c.compressConfig()
		encoded := make([]Change, len(changes))
		copy(encoded, changes)
		for i := range encoded {
			if len(encoded[i].Data) == 0 {
				continue
			}
			encoded[i].Data = c.Codec.Encode(encoded[i].Data, cfg)
		}
		changes = encoded
	}

	body := struct {
		Changes  []Change `json:"changes"`
		DeviceID string   `json:"device_id"`
	}{Changes: changes, DeviceID: c.DeviceID}

	var resp PushChangesResponse
	if err := c.do("POST", "/changes", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Conflict methods ---

// GetConflicts lists conflicts, optionally filtered by severity and resolved state.
func (c *Client) GetConflicts(severity string, resolved *bool) ([]Conflict, error) {
	params := url.Values{}
	if severity != "" {
		params.Set("severity", severity)
	}
	if resolved != nil {
		params.Set("resolved", fmt.Sprintf("%t", *resolved))
	}

	path := "/conflicts"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Success   bool       `json:"success"`
		Conflicts []Conflict `json:"conflicts"`
	}
	if err := c.do("GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conflicts, nil
}

// ResolveConflict resolves a conflict with the given strategy. resolvedData
// is only sent for strategy "manual" or "merge".
func (c *Client) ResolveConflict(conflictID, strategy string, resolvedData json.RawMessage) (*ResolveConflictResponse, error) {
	body := struct {
		ConflictID         string          `json:"conflict_id"`
		ResolutionStrategy string          `json:"resolution_strategy"`
		ResolvedData       json.RawMessage `json:"resolved_data,omitempty"`
	}{ConflictID: conflictID, ResolutionStrategy: strategy, ResolvedData: resolvedData}

	var resp ResolveConflictResponse
	if err := c.do("POST", "/conflicts/resolve", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AutoResolveConflicts asks the server to run its auto-resolution pass.
func (c *Client) AutoResolveConflicts() (*AutoResolveResponse, error) {
	var resp AutoResolveResponse
	if err := c.do("POST", "/conflicts/auto-resolve", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Stats / health ---

// GetStats fetches account-wide sync statistics.
func (c *Client) GetStats() (*Stats, error) {
	var resp statsResponse
	if err := c.do("GET", "/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Stats, nil
}

// Health hits /health to verify server reachability. Also used by the
// network watcher as its connectivity probe.
func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doNoAuth("GET", "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes an authenticated HTTP request.
func (c *Client) do(method, path string, body, result any) error {
	return c.doRequest(method, path, body, result, true)
}

// doNoAuth executes an unauthenticated HTTP request.
func (c *Client) doNoAuth(method, path string, body, result any) error {
	return c.doRequest(method, path, body, result, false)
}

func (c *Client) doRequest(method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	var bodyData []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyData = data
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if err := signRequest(req, bodyData); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return classifyError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// signRequest adds a freshness timestamp, nonce and body hash so the server
// can reject replayed or tampered requests.
func signRequest(req *http.Request, body []byte) error {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("random nonce: %w", err)
	}

	req.Header.Set("X-Request-Timestamp", time.Now().UTC().Format(time.RFC3339))
	req.Header.Set("X-Request-Nonce", hex.EncodeToString(nonce))
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		req.Header.Set("X-Body-SHA256", hex.EncodeToString(sum[:]))
	}
	return nil
}

// classifyError maps HTTP status and server error codes onto sentinel errors.
func classifyError(status int, body []byte) error {
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
		switch apiErr.Code {
		case "device_limit_exceeded":
			return fmt.Errorf("%w: %s", ErrDeviceLimitExceeded, apiErr.Message)
		case "invalid_operation":
			return fmt.Errorf("%w: %s", ErrInvalidOperation, apiErr.Message)
		}
		switch status {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		}
		return &apiErr
	}

	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	}
	return fmt.Errorf("HTTP %d: %s", status, string(body))
}
