package codec

import (
	"encoding/json"
	"log/slog"
)

// Encode prepares a record payload for transport: allowlisted fields are
// encrypted, then the whole payload is compressed when it pays off. Both
// steps fall back to the unencoded form on failure rather than blocking sync.
// Uncompressed payloads travel as-is; the Compressed wrapper is only ever
// written with Compressed=true.
func (c *Codec) Encode(payload json.RawMessage, cfg CompressConfig) json.RawMessage {
	encrypted, err := c.EncryptFields(payload)
	if err != nil {
		slog.Warn("payload encrypt failed, sending plaintext", "err", err)
		encrypted = payload
	}

	compressed, err := Compress(encrypted, cfg)
	if err != nil {
		slog.Warn("payload compress failed, sending uncompressed", "err", err)
		return encrypted
	}
	if !compressed.Compressed {
		return encrypted
	}

	out, err := json.Marshal(compressed)
	if err != nil {
		slog.Warn("marshal compressed payload", "err", err)
		return encrypted
	}
	return out
}

// Decode inverts Encode: decompress when the compression wrapper is present,
// then decrypt allowlisted fields. Field-level decrypt failures are isolated
// inside DecryptFields; structural failures surface as errors.
func (c *Codec) Decode(payload json.RawMessage) (json.RawMessage, error) {
	var wrapper Compressed
	if err := json.Unmarshal(payload, &wrapper); err == nil && wrapper.Compressed {
		data, err := Decompress(wrapper)
		if err != nil {
			return nil, err
		}
		payload = data
	}

	return c.DecryptFields(payload)
}
