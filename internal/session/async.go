// SPDX-License-Identifier: MIT
package session

import (
	"affect/internal/log"
	"context"
	"sync"
)

// AsyncRunner moves ProcessChunk off the caller's goroutine, typically a
// real-time audio callback. One worker drains a queue that holds exactly one
// pending chunk; a chunk submitted while another is pending is dropped, so
// chunks are never reordered and at most one pass is ever in flight.
type AsyncRunner struct {
	session *Session
	pending chan []float64
	free    chan []float64 // recycled chunk buffers
	results chan Result

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	stopped bool // worker exited after a configuration error
	dropped uint64
}

// NewAsyncRunner starts the worker. resultBuffer sizes the Results channel.
func NewAsyncRunner(parent context.Context, s *Session, resultBuffer int) *AsyncRunner {
	ctx, cancel := context.WithCancel(parent)
	r := &AsyncRunner{
		session: s,
		pending: make(chan []float64, 1),
		free:    make(chan []float64, 2), // one pending, one in flight
		results: make(chan Result, max(resultBuffer, 0)),
		ctx:     ctx,
		cancel:  cancel,
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Submit queues a copy of samples. It never blocks and reports whether the
// chunk was accepted. Once buffers have cycled through the worker, Submit
// does not allocate.
func (r *AsyncRunner) Submit(samples []float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.stopped {
		return false
	}

	var chunk []float64
	select {
	case chunk = <-r.free:
	default:
	}
	if cap(chunk) < len(samples) {
		chunk = make([]float64, len(samples))
	}
	chunk = chunk[:len(samples)]
	copy(chunk, samples)

	select {
	case r.pending <- chunk:
		return true
	default:
		r.recycle(chunk)
		r.dropped++
		r.session.metrics.RecordDropped()
		if log.GetLevel() == log.LevelDebug {
			log.Debugf("Dropped %d-sample chunk: previous chunk still pending (%d dropped)", len(samples), r.dropped)
		}
		return false
	}
}

// recycle offers buf for reuse; it is discarded when enough are spare.
func (r *AsyncRunner) recycle(buf []float64) {
	select {
	case r.free <- buf:
	default:
	}
}

// Results delivers one Result per accepted chunk, in submission order. It is
// closed after Close, or right after a Failed result: configuration errors
// are not recoverable, so the worker stops and later chunks are rejected.
func (r *AsyncRunner) Results() <-chan Result {
	return r.results
}

// Dropped returns the number of rejected submissions.
func (r *AsyncRunner) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting chunks, discards any pending chunk and waits for the
// worker to exit.
func (r *AsyncRunner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.pending)
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *AsyncRunner) run() {
	defer r.wg.Done()
	defer close(r.results)

	for chunk := range r.pending {
		if r.ctx.Err() != nil {
			return
		}
		res, err := r.session.ProcessChunk(r.ctx, chunk)
		r.recycle(chunk) // the session copied it into its ingest buffer
		select {
		case r.results <- res:
		case <-r.ctx.Done():
			return
		}
		if err != nil {
			log.Errorf("Processing stopped: %v", err)
			r.mu.Lock()
			r.stopped = true
			r.mu.Unlock()
			return
		}
	}
}
