// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	applog "spectrolysis/internal/log"
)

var (
	ErrSenderClosed = errors.New("udp: sender closed")
	// ErrOversized is returned for a datagram larger than MaxPacketSize.
	ErrOversized = errors.New("udp: datagram exceeds maximum UDP payload")
)

// SenderStats counts what a UDPSender has written.
type SenderStats struct {
	Packets  uint64
	Bytes    uint64
	Failures uint64
}

// UDPSender writes spectrogram row datagrams to one renderer over a
// connected UDP socket. Only datagrams that look like encoded rows are
// accepted: at least a header, at most one IPv4 payload.
//
// A renderer that is not listening makes every write fail with "connection
// refused". Only the first failure of such a streak is logged, and the
// recovery is logged once.
type UDPSender struct {
	target *net.UDPAddr

	mu     sync.Mutex // guards conn and closed
	conn   *net.UDPConn
	closed bool

	packets  atomic.Uint64
	bytes    atomic.Uint64
	failures atomic.Uint64
	failing  atomic.Bool
}

// NewUDPSender resolves targetAddress ("host:port") and connects to it.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve renderer address %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("udp: connect to renderer %q: %w", targetAddress, err)
	}

	applog.Infof("UDP: streaming spectrogram rows to %s", conn.RemoteAddr())
	return &UDPSender{target: addr, conn: conn}, nil
}

// Send writes one encoded row datagram.
func (s *UDPSender) Send(datagram []byte) error {
	switch {
	case len(datagram) < HeaderSize:
		return fmt.Errorf("%w: %d bytes", ErrShortPacket, len(datagram))
	case len(datagram) > MaxPacketSize:
		return fmt.Errorf("%w: %d bytes", ErrOversized, len(datagram))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	n, err := s.conn.Write(datagram)
	s.mu.Unlock()

	if err != nil {
		s.failures.Add(1)
		if !s.failing.Swap(true) {
			applog.Warnf("UDP: renderer %s unreachable: %v", s.target, err)
		}
		return fmt.Errorf("udp: send row: %w", err)
	}
	if s.failing.Swap(false) {
		applog.Infof("UDP: renderer %s reachable again", s.target)
	}
	s.packets.Add(1)
	s.bytes.Add(uint64(n))
	return nil
}

// Stats returns the write counters.
func (s *UDPSender) Stats() SenderStats {
	return SenderStats{
		Packets:  s.packets.Load(),
		Bytes:    s.bytes.Load(),
		Failures: s.failures.Load(),
	}
}

// Target returns the renderer address.
func (s *UDPSender) Target() string { return s.target.String() }

// Close releases the socket. Further sends fail with ErrSenderClosed.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	st := s.Stats()
	applog.Debugf("UDP: closing %s after %d rows (%d bytes, %d failed)", s.target, st.Packets, st.Bytes, st.Failures)
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("udp: close: %w", err)
	}
	return nil
}

var (
	_ PacketSender               = (*UDPSender)(nil)
	_ interface{ Close() error } = (*UDPSender)(nil)
)
