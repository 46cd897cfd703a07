// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
)

// TargetChunkSize returns floor(sampleRate * chunkDuration): the number of
// buffered samples consumed per analysis frame.
func TargetChunkSize(sampleRate, chunkDuration float64) int {
	return int(math.Floor(sampleRate * chunkDuration))
}

// IngestBuffer accumulates arbitrarily sized sample chunks and releases them
// in fixed chunks of Target() samples. It is a growable ring buffer: taking
// from the front advances an index instead of shifting the remainder.
//
// IngestBuffer is not safe for concurrent use; the owning session serialises
// access.
type IngestBuffer struct {
	data   []float64
	head   int // index of the oldest sample
	size   int // number of buffered samples
	target int
}

// NewIngestBuffer creates a buffer releasing chunks of targetChunkSize samples.
func NewIngestBuffer(targetChunkSize int) (*IngestBuffer, error) {
	if targetChunkSize < 1 {
		return nil, fmt.Errorf("target chunk size must be positive, got %d", targetChunkSize)
	}
	return &IngestBuffer{
		data:   make([]float64, 2*targetChunkSize),
		target: targetChunkSize,
	}, nil
}

// Append queues chunk behind any buffered samples. Empty chunks are accepted.
func (b *IngestBuffer) Append(chunk []float64) {
	if len(chunk) == 0 {
		return
	}
	if b.size+len(chunk) > len(b.data) {
		b.grow(b.size + len(chunk))
	}

	tail := (b.head + b.size) % len(b.data)
	n := copy(b.data[tail:], chunk)
	if n < len(chunk) {
		copy(b.data, chunk[n:])
	}
	b.size += len(chunk)
}

// TryExtract copies the oldest Target() samples into dst and drops them from
// the buffer. It returns false, leaving the buffer untouched, when fewer than
// Target() samples are buffered. dst must hold at least Target() samples.
func (b *IngestBuffer) TryExtract(dst []float64) bool {
	if b.size < b.target || len(dst) < b.target {
		return false
	}

	n := copy(dst[:b.target], b.data[b.head:])
	if n < b.target {
		copy(dst[n:b.target], b.data)
	}

	b.head = (b.head + b.target) % len(b.data)
	b.size -= b.target
	if b.size == 0 {
		b.head = 0
	}
	return true
}

// Len returns the number of buffered samples.
func (b *IngestBuffer) Len() int { return b.size }

// Target returns the chunk size released by TryExtract.
func (b *IngestBuffer) Target() int { return b.target }

// Reset discards all buffered samples, keeping the allocated storage.
func (b *IngestBuffer) Reset() {
	b.head = 0
	b.size = 0
}

// grow re-linearises the ring into a larger backing array.
func (b *IngestBuffer) grow(need int) {
	capacity := max(2*len(b.data), need)
	data := make([]float64, capacity)

	n := copy(data, b.data[b.head:min(b.head+b.size, len(b.data))])
	if n < b.size {
		copy(data[n:], b.data[:b.size-n])
	}

	b.data = data
	b.head = 0
}

// ShapeFrame fits chunk into dst, whose length is the FFT frame size. A longer
// chunk keeps only its most recent len(dst) samples; a shorter one is copied
// to the front and zero-padded at the tail.
func ShapeFrame(dst, chunk []float64) {
	if len(chunk) >= len(dst) {
		copy(dst, chunk[len(chunk)-len(dst):])
		return
	}
	n := copy(dst, chunk)
	clear(dst[n:])
}
