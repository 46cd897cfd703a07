// SPDX-License-Identifier: MIT
package transport

import (
	"affect/internal/log"
	"strconv"
	"strings"
	"sync"
)

// LoggingTransport implements the Transport interface by logging each
// message's distribution. Repeated distributions log at Debug only.
type LoggingTransport struct {
	mu     sync.Mutex
	closed bool
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs a Message. Other payloads are logged with %v at Debug.
func (lt *LoggingTransport) Send(data any) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.closed {
		return ErrClosed
	}

	msg, ok := data.(Message)
	if !ok {
		log.Debugf("LOG_TRANSPORT: Received (%T): %v", data, data)
		return nil
	}

	line := FormatDistribution(msg.Labels, msg.Probabilities)
	if msg.Updated {
		log.Infof("%-10s %5.1f%%  %s", msg.Top, msg.Confidence*100, line)
	} else {
		log.Debugf("%-10s %5.1f%%  %s (retained)", msg.Top, msg.Confidence*100, line)
	}
	return nil
}

// Close is a no-op apart from rejecting later sends.
func (lt *LoggingTransport) Close() error {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.closed = true
	return nil
}

// FormatDistribution renders "label=0.12 label=0.34 ..." in label order.
func FormatDistribution(labels []string, probs []float64) string {
	var b strings.Builder
	for i, p := range probs {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i < len(labels) {
			b.WriteString(labels[i])
		}
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(p, 'f', 3, 64))
	}
	return b.String()
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
