// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"
	"time"

	applog "spectrolysis/internal/log"
)

// RowSource provides the newest smoothed spectrogram row.
type RowSource interface {
	Cols() int
	LatestRowInto(dst []float32) error
}

// PacketSender sends one datagram.
type PacketSender interface {
	Send(data []byte) error
}

// UDPPublisher periodically fetches the newest spectrogram row, packs it
// into the binary format described in packet.go and sends it through a
// PacketSender. It runs in a separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   PacketSender
	source   RowSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	// Reused on every tick.
	row    []float32
	packet []byte
}

// NewUDPPublisher creates a publisher. An interval <= 0 defaults to 16ms.
func NewUDPPublisher(interval time.Duration, sender PacketSender, source RowSource) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: row source cannot be nil")
	}
	cols := source.Cols()
	if cols > MaxValues {
		return nil, fmt.Errorf("UDPPublisher: %d columns do not fit in one datagram (max %d)", cols, MaxValues)
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s, Columns: %d)", interval, cols)

	return &UDPPublisher{
		sender:   sender,
		source:   source,
		interval: interval,
		row:      make([]float32, cols),
		packet:   make([]byte, 0, HeaderSize+4*cols),
	}, nil
}

// Start begins the periodic publishing process. Calling Start on a running
// publisher is a no-op.
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

// Stop signals the publisher goroutine to terminate and waits for it. It is
// safe to call more than once.
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

// Sent returns the number of packets built so far.
func (p *UDPPublisher) Sent() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequenceNum
}

func (p *UDPPublisher) buildAndSendPacket() {
	if err := p.source.LatestRowInto(p.row); err != nil {
		applog.Errorf("UDPPublisher: Error getting row: %v", err)
		return
	}

	p.mu.Lock()
	p.sequenceNum++
	seq := p.sequenceNum
	p.mu.Unlock()

	packet, err := AppendPacket(p.packet[:0], seq, time.Now().UnixNano(), p.row)
	if err != nil {
		applog.Errorf("UDPPublisher: Error packing data: %v", err)
		return
	}
	p.packet = packet

	// The sender logs its own failures.
	if err := p.sender.Send(packet); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", seq, len(packet))
	}
}

// Close stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
