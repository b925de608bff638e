package codec

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressBelowThresholdPassesThrough(t *testing.T) {
	data := []byte(`{"content":"short"}`)

	c, err := Compress(data, DefaultCompressConfig)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if c.Compressed {
		t.Error("small payload should not be compressed")
	}
	if !bytes.Equal(c.Data, data) {
		t.Error("passthrough must not modify data")
	}
}

func TestCompressRoundTrip(t *testing.T) {
	// Repetitive text compresses well past the ratio gate.
	data := []byte(`{"content":"` + strings.Repeat("lorem ipsum dolor sit amet ", 200) + `"}`)

	c, err := Compress(data, DefaultCompressConfig)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if !c.Compressed {
		t.Fatal("repetitive payload should compress")
	}
	if len(c.Data) >= len(data) {
		t.Errorf("compressed size %d not smaller than %d", len(c.Data), len(data))
	}

	got, err := Decompress(c)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round trip mismatch")
	}
}

func TestCompressSkipsIncompressible(t *testing.T) {
	// Pseudo-random bytes will not hit the 10% ratio gate.
	data := make([]byte, 8192)
	x := uint32(2463534242)
	for i := range data {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		data[i] = byte(x)
	}

	c, err := Compress(data, DefaultCompressConfig)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if c.Compressed {
		t.Error("incompressible payload should pass through")
	}
}

func TestCompressConfigFor(t *testing.T) {
	slow := CompressConfigFor(true)
	fast := CompressConfigFor(false)

	if slow.Level <= fast.Level {
		t.Errorf("slow link should compress harder: %d vs %d", slow.Level, fast.Level)
	}
	if slow.Threshold >= fast.Threshold {
		t.Errorf("slow link should compress smaller payloads: %d vs %d", slow.Threshold, fast.Threshold)
	}
}

func TestOptimalBatchSizeClamps(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 16*1024)
	small := []byte("{}")

	if got := OptimalBatchSize(nil); got != 10 {
		t.Errorf("empty: got %d, want 10", got)
	}
	if got := OptimalBatchSize([][]byte{big, big, big}); got != 10 {
		t.Errorf("large items: got %d, want clamp to 10", got)
	}
	if got := OptimalBatchSize([][]byte{small, small}); got != 100 {
		t.Errorf("tiny items: got %d, want clamp to 100", got)
	}

	// ~1KB items target a ~32-item batch.
	mid := bytes.Repeat([]byte("y"), 1024)
	got := OptimalBatchSize([][]byte{mid, mid, mid})
	if got < 10 || got > 100 {
		t.Errorf("mid items: %d outside clamp range", got)
	}
	if got != 32 {
		t.Errorf("mid items: got %d, want 32", got)
	}
}
