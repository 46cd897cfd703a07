// SPDX-License-Identifier: MIT
package udp

import (
	applog "affect/internal/log"
	"affect/internal/metrics"
	"affect/internal/transport"
	"bytes"
	"fmt"
	"sync"
	"time"
)

// UDPPublisher keeps the latest probability distribution handed to Send and,
// on each tick, packs it into the binary packet format and sends it with a
// UDPSender. A distribution is sent at most once, so the tick interval caps
// the packet rate without repeating stale data.
type UDPPublisher struct {
	sender   *UDPSender
	interval time.Duration
	metrics  *metrics.Metrics

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	latestMu sync.Mutex
	latest   []float32
	dirty    bool

	sequenceNum  uint32
	f32Buffer    []float32     // Copy of latest taken under latestMu.
	packetBuffer *bytes.Buffer // Reusable buffer for constructing the binary packet.
}

// NewUDPPublisher creates a publisher. If the provided interval is invalid
// (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, m *metrics.Metrics) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Target: %s)", interval, sender.Target())

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		metrics:      m,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Send records msg's probabilities as the next distribution to publish.
// Payloads other than transport.Message are ignored, as are messages that
// repeat an unchanged distribution.
func (p *UDPPublisher) Send(data any) error {
	msg, ok := data.(transport.Message)
	if !ok || !msg.Updated {
		return nil
	}

	p.latestMu.Lock()
	defer p.latestMu.Unlock()
	if cap(p.latest) < len(msg.Probabilities) {
		p.latest = make([]float32, len(msg.Probabilities))
	}
	p.latest = p.latest[:len(msg.Probabilities)]
	for i, v := range msg.Probabilities {
		p.latest[i] = float32(v)
	}
	p.dirty = true
	return nil
}

// Start begins the periodic publishing process. Subsequent calls are no-ops
// while running.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

// buildAndSendPacket sends the latest distribution if it has not been sent yet.
func (p *UDPPublisher) buildAndSendPacket() {
	p.latestMu.Lock()
	if !p.dirty {
		p.latestMu.Unlock()
		return
	}
	p.f32Buffer = append(p.f32Buffer[:0], p.latest...)
	p.dirty = false
	p.latestMu.Unlock()

	p.sequenceNum++
	if err := EncodePacket(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), p.f32Buffer); err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	// The sender logs its own failures.
	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		p.metrics.RecordPacketSent()
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// Close stops the publisher and closes its sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

var _ transport.Transport = (*UDPPublisher)(nil)
