package codec

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := testCodec(t)

	body := strings.Repeat("the quick brown fox jumps over the lazy dog ", 100)
	payload, _ := json.Marshal(map[string]string{"content": body, "kind": "note"})

	encoded := c.Encode(payload, DefaultCompressConfig)

	// Large repetitive payloads travel inside the compression wrapper.
	var wrapper Compressed
	if err := json.Unmarshal(encoded, &wrapper); err != nil || !wrapper.Compressed {
		t.Fatal("expected compression wrapper")
	}

	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(decoded, &fields); err != nil {
		t.Fatalf("unmarshal decoded: %v", err)
	}
	if fields["content"] != body {
		t.Error("content did not survive the round trip")
	}
	if fields["kind"] != "note" {
		t.Errorf("kind: got %v", fields["kind"])
	}
}

func TestEncodeSmallPayloadSkipsWrapper(t *testing.T) {
	c := testCodec(t)

	payload := json.RawMessage(`{"kind":"note"}`)
	encoded := c.Encode(payload, DefaultCompressConfig)

	var wrapper Compressed
	if err := json.Unmarshal(encoded, &wrapper); err == nil && wrapper.Compressed {
		t.Error("small payload should not be wrapped")
	}

	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	var fields map[string]any
	json.Unmarshal(decoded, &fields)
	if fields["kind"] != "note" {
		t.Errorf("kind: got %v", fields["kind"])
	}
}

func TestDecodePlainPayload(t *testing.T) {
	// Payloads from devices without encryption decode unchanged.
	c := testCodec(t)

	decoded, err := c.Decode(json.RawMessage(`{"front":"plain","deck_id":"d1"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	var fields map[string]any
	json.Unmarshal(decoded, &fields)
	if fields["front"] != "plain" {
		t.Errorf("front: got %v", fields["front"])
	}
}
