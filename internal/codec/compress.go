// Package codec transforms record payloads for transport: adaptive
// compression and field-level encryption of semantically sensitive fields.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

const (
	// minRatio is the compression ratio a payload must reach before the
	// compressed form is adopted; below it the CPU spend is not worth it.
	minRatio = 1.1

	// targetBatchBytes is the compressed-batch size OptimalBatchSize aims for.
	targetBatchBytes = 32 * 1024

	minBatchItems = 10
	maxBatchItems = 100
	sampleItems   = 10
)

// CompressConfig tunes payload compression for the current network quality.
type CompressConfig struct {
	Level     int // flate level, 1..9
	Threshold int // payloads below this size pass through unmodified
}

// DefaultCompressConfig is used when network quality is unknown.
var DefaultCompressConfig = CompressConfig{Level: 6, Threshold: 1024}

// CompressConfigFor returns the compression tuning for the given link:
// constrained links trade CPU for bytes over the wire.
func CompressConfigFor(slowNetwork bool) CompressConfig {
	if slowNetwork {
		return CompressConfig{Level: flate.BestCompression, Threshold: 512}
	}
	return CompressConfig{Level: 6, Threshold: 2048}
}

// Compressed wraps a possibly-compressed payload for transport.
type Compressed struct {
	Compressed bool   `json:"compressed"`
	Data       []byte `json:"data"`
}

// Compress returns the payload wrapped for transport. Payloads below the
// threshold, or that shrink by less than 10%, are passed through unmodified.
func Compress(data []byte, cfg CompressConfig) (Compressed, error) {
	if len(data) < cfg.Threshold {
		return Compressed{Compressed: false, Data: data}, nil
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, cfg.Level)
	if err != nil {
		return Compressed{}, fmt.Errorf("flate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return Compressed{}, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return Compressed{}, fmt.Errorf("compress flush: %w", err)
	}

	if float64(len(data)) < minRatio*float64(buf.Len()) {
		return Compressed{Compressed: false, Data: data}, nil
	}
	return Compressed{Compressed: true, Data: buf.Bytes()}, nil
}

// Decompress inverts Compress.
func Decompress(c Compressed) ([]byte, error) {
	if !c.Compressed {
		return c.Data, nil
	}

	r := flate.NewReader(bytes.NewReader(c.Data))
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return data, nil
}

// OptimalBatchSize estimates how many items fit a ~32KB compressed batch by
// sampling serialized sizes. The result is clamped to [10,100].
func OptimalBatchSize(items [][]byte) int {
	if len(items) == 0 {
		return minBatchItems
	}

	n := len(items)
	if n > sampleItems {
		n = sampleItems
	}
	var total int
	for _, item := range items[:n] {
		total += len(item)
	}
	avg := total / n
	if avg == 0 {
		return maxBatchItems
	}

	size := targetBatchBytes / avg
	if size < minBatchItems {
		return minBatchItems
	}
	if size > maxBatchItems {
		return maxBatchItems
	}
	return size
}
