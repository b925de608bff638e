package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evans/recall/internal/crypto"
)

// EncryptedSuffix marks fields holding an encryption envelope instead of
// their plaintext value.
const EncryptedSuffix = "_encrypted"

// sensitiveFields is the fixed allowlist of free-text fields encrypted before
// transport. Structural and metadata fields stay plaintext so the server can
// index and query on them.
var sensitiveFields = map[string]bool{
	"content":  true,
	"body":     true,
	"front":    true,
	"back":     true,
	"question": true,
	"answer":   true,
	"summary":  true,
}

// FieldEnvelope is the wire form of one encrypted field.
type FieldEnvelope struct {
	Data string `json:"data"`
	IV   string `json:"iv"`
	Salt string `json:"salt"`
}

// Codec holds the per-user master key. Encode and decode are pure and safe to
// call from multiple goroutines; the key is never mutated after construction.
type Codec struct {
	masterKey []byte
}

// New creates a codec for the given 256-bit master key.
func New(masterKey []byte) (*Codec, error) {
	if len(masterKey) != crypto.KeyLen {
		return nil, fmt.Errorf("master key must be %d bytes", crypto.KeyLen)
	}
	key := make([]byte, len(masterKey))
	copy(key, masterKey)
	return &Codec{masterKey: key}, nil
}

// EncryptFields encrypts every allowlisted string field of the payload with a
// fresh salt+nonce and a payload key re-derived from the master key. Failures
// on a single field are non-fatal: the field stays plaintext and is logged.
func (c *Codec) EncryptFields(payload json.RawMessage) (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	for key, val := range fields {
		if !sensitiveFields[key] {
			continue
		}
		text, ok := val.(string)
		if !ok {
			continue
		}

		env, err := c.encryptField(text)
		if err != nil {
			// EncodingError policy: never block sync on a failed encrypt
			slog.Warn("encrypt field failed, leaving plaintext", "field", key, "err", err)
			continue
		}

		delete(fields, key)
		fields[key+EncryptedSuffix] = env
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return out, nil
}

// DecryptFields inverts EncryptFields. A field that fails to decrypt is left
// in its encrypted form and a warning is surfaced; the record still decodes.
func (c *Codec) DecryptFields(payload json.RawMessage) (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	for key, val := range fields {
		if !strings.HasSuffix(key, EncryptedSuffix) {
			continue
		}

		env, err := parseEnvelope(val)
		if err != nil {
			slog.Warn("decrypt field: bad envelope", "field", key, "err", err)
			continue
		}

		text, err := c.decryptField(env)
		if err != nil {
			slog.Warn("decrypt field failed, leaving encrypted", "field", key, "err", err)
			continue
		}

		delete(fields, key)
		fields[strings.TrimSuffix(key, EncryptedSuffix)] = text
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return out, nil
}

func (c *Codec) encryptField(plaintext string) (FieldEnvelope, error) {
	salt, err := crypto.NewSalt()
	if err != nil {
		return FieldEnvelope{}, err
	}
	nonce, err := crypto.NewNonce()
	if err != nil {
		return FieldEnvelope{}, err
	}

	key := crypto.DerivePayloadKey(c.masterKey, salt)
	ct, err := crypto.Seal(key, nonce, []byte(plaintext))
	if err != nil {
		return FieldEnvelope{}, err
	}

	return FieldEnvelope{
		Data: base64.StdEncoding.EncodeToString(ct),
		IV:   base64.StdEncoding.EncodeToString(nonce),
		Salt: base64.StdEncoding.EncodeToString(salt),
	}, nil
}

func (c *Codec) decryptField(env FieldEnvelope) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return "", fmt.Errorf("decode data: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}

	key := crypto.DerivePayloadKey(c.masterKey, salt)
	plaintext, err := crypto.Open(key, nonce, ct)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// parseEnvelope accepts the decoded-JSON form of a field envelope.
func parseEnvelope(val any) (FieldEnvelope, error) {
	m, ok := val.(map[string]any)
	if !ok {
		return FieldEnvelope{}, fmt.Errorf("not an object")
	}
	var env FieldEnvelope
	if env.Data, ok = m["data"].(string); !ok {
		return FieldEnvelope{}, fmt.Errorf("missing data")
	}
	if env.IV, ok = m["iv"].(string); !ok {
		return FieldEnvelope{}, fmt.Errorf("missing iv")
	}
	if env.Salt, ok = m["salt"].(string); !ok {
		return FieldEnvelope{}, fmt.Errorf("missing salt")
	}
	return env, nil
}
