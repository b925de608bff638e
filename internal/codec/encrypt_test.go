package codec

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/evans/recall/internal/crypto"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	key := make([]byte, crypto.KeyLen)
	for i := range key {
		key[i] = byte(i * 3)
	}
	c, err := New(key)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New([]byte("too short")); err == nil {
		t.Error("expected key length error")
	}
}

func TestEncryptFieldsAllowlist(t *testing.T) {
	c := testCodec(t)

	payload := json.RawMessage(`{"front":"What is 2+2?","back":"4","deck_id":"d1","position":3}`)
	out, err := c.EncryptFields(payload)
	if err != nil {
		t.Fatalf("EncryptFields failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}

	// Sensitive fields are replaced by envelopes under the suffixed key.
	for _, f := range []string{"front", "back"} {
		if _, present := fields[f]; present {
			t.Errorf("plaintext %q still present", f)
		}
		env, present := fields[f+EncryptedSuffix]
		if !present {
			t.Fatalf("%s%s missing", f, EncryptedSuffix)
		}
		m, ok := env.(map[string]any)
		if !ok {
			t.Fatalf("%s envelope is not an object", f)
		}
		for _, k := range []string{"data", "iv", "salt"} {
			if _, ok := m[k].(string); !ok {
				t.Errorf("%s envelope missing %q", f, k)
			}
		}
	}

	// Structural fields stay plaintext.
	if fields["deck_id"] != "d1" {
		t.Errorf("deck_id altered: %v", fields["deck_id"])
	}
	if fields["position"] != float64(3) {
		t.Errorf("position altered: %v", fields["position"])
	}

	if strings.Contains(string(out), "What is 2+2?") {
		t.Error("plaintext leaked into encrypted payload")
	}
}

func TestDecryptFieldsRoundTrip(t *testing.T) {
	c := testCodec(t)

	payload := json.RawMessage(`{"content":"meeting notes","summary":"short","tag":"work"}`)
	enc, err := c.EncryptFields(payload)
	if err != nil {
		t.Fatalf("EncryptFields failed: %v", err)
	}
	dec, err := c.DecryptFields(enc)
	if err != nil {
		t.Fatalf("DecryptFields failed: %v", err)
	}

	var fields map[string]any
	json.Unmarshal(dec, &fields)
	if fields["content"] != "meeting notes" {
		t.Errorf("content: got %v", fields["content"])
	}
	if fields["summary"] != "short" {
		t.Errorf("summary: got %v", fields["summary"])
	}
	if fields["tag"] != "work" {
		t.Errorf("tag: got %v", fields["tag"])
	}
	if _, present := fields["content"+EncryptedSuffix]; present {
		t.Error("envelope key left behind")
	}
}

func TestDecryptFieldsWrongKeyLeavesEncrypted(t *testing.T) {
	enc, err := testCodec(t).EncryptFields(json.RawMessage(`{"body":"private"}`))
	if err != nil {
		t.Fatalf("EncryptFields failed: %v", err)
	}

	other := make([]byte, crypto.KeyLen)
	for i := range other {
		other[i] = byte(i * 7)
	}
	wrong, _ := New(other)

	dec, err := wrong.DecryptFields(enc)
	if err != nil {
		t.Fatalf("DecryptFields failed: %v", err)
	}

	var fields map[string]any
	json.Unmarshal(dec, &fields)
	if _, present := fields["body"]; present {
		t.Error("field decrypted with the wrong key")
	}
	if _, present := fields["body"+EncryptedSuffix]; !present {
		t.Error("undecryptable field should stay in envelope form")
	}
}

func TestEncryptFieldsSkipsNonStrings(t *testing.T) {
	c := testCodec(t)

	out, err := c.EncryptFields(json.RawMessage(`{"content":42}`))
	if err != nil {
		t.Fatalf("EncryptFields failed: %v", err)
	}

	var fields map[string]any
	json.Unmarshal(out, &fields)
	if fields["content"] != float64(42) {
		t.Errorf("non-string field altered: %v", fields["content"])
	}
}

func TestEncryptFieldsFreshSaltPerCall(t *testing.T) {
	c := testCodec(t)
	payload := json.RawMessage(`{"answer":"same plaintext"}`)

	a, _ := c.EncryptFields(payload)
	b, _ := c.EncryptFields(payload)
	if string(a) == string(b) {
		t.Error("identical plaintexts should produce distinct ciphertexts")
	}
}
