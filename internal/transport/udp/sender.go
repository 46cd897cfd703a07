// SPDX-License-Identifier: MIT
package udp

import (
	applog "affect/internal/log"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("UDP sender is closed")

// writeTimeout bounds a single datagram write.
const writeTimeout = 100 * time.Millisecond

// UDPSender writes datagrams to one connected peer.
type UDPSender struct {
	mu       sync.Mutex
	conn     *net.UDPConn
	target   *net.UDPAddr
	failures int // consecutive failed writes
}

// NewUDPSender dials targetAddress ("host:port"). No local bind is made.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	applog.Infof("UDP Sender: Sending distributions to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn, target: addr}, nil
}

// Send writes data as one datagram. A listener that is down makes every
// write fail with "connection refused"; only the first failure of a streak
// and the recovery are logged.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrSenderClosed
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := s.conn.Write(data); err != nil {
		if s.failures == 0 {
			applog.Warnf("UDP Sender: Error sending packet to %s: %v", s.target, err)
		}
		s.failures++
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}

	if s.failures > 0 {
		applog.Infof("UDP Sender: Delivery to %s resumed after %d failed packet(s)", s.target, s.failures)
		s.failures = 0
	}
	return nil
}

// Target returns the resolved destination address.
func (s *UDPSender) Target() *net.UDPAddr {
	return s.target
}

// Close closes the connection. Later calls are no-ops.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}
