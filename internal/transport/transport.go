// SPDX-License-Identifier: MIT
package transport

import (
	"affect/internal/session"
	"errors"
	"time"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for sending results or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message is the wire form of a Ready result.
type Message struct {
	Timestamp     int64     `json:"timestamp"` // Unix nanoseconds
	Labels        []string  `json:"labels"`
	Probabilities []float64 `json:"probabilities"`
	Top           string    `json:"top"`
	Confidence    float64   `json:"confidence"`
	Updated       bool      `json:"updated"`
}

// NewMessage converts res into a Message. ok is false for results that carry
// no distribution.
func NewMessage(res session.Result, now time.Time) (msg Message, ok bool) {
	label, p, ok := res.Top()
	if !ok {
		return Message{}, false
	}
	return Message{
		Timestamp:     now.UnixNano(),
		Labels:        res.Labels,
		Probabilities: res.Probabilities,
		Top:           label,
		Confidence:    p,
		Updated:       res.Updated,
	}, true
}

// Fanout sends every payload to each transport in turn.
type Fanout []Transport

// Send delivers data to all transports and joins their errors.
func (f Fanout) Send(data any) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all transports and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Fanout(nil)
