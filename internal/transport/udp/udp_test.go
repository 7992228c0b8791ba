// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

type fakeRows struct {
	mu  sync.Mutex
	row []float32
	err error
}

func (f *fakeRows) Cols() int { return len(f.row) }

func (f *fakeRows) LatestRowInto(dst []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	copy(dst, f.row)
	return nil
}

type captureSender struct {
	mu      sync.Mutex
	packets [][]byte
}

func (c *captureSender) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, append([]byte(nil), data...))
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

func TestPacketRoundTrip(t *testing.T) {
	values := []float32{0, 0.5, -1, 1e-7}
	b, err := AppendPacket(nil, 7, 1234567890, values)
	if err != nil {
		t.Fatalf("AppendPacket() error = %v", err)
	}
	if len(b) != HeaderSize+4*len(values) {
		t.Fatalf("len = %d, want %d", len(b), HeaderSize+4*len(values))
	}

	p, err := DecodePacket(b)
	if err != nil {
		t.Fatalf("DecodePacket() error = %v", err)
	}
	if p.Seq != 7 || p.Timestamp != 1234567890 {
		t.Errorf("header = %d/%d", p.Seq, p.Timestamp)
	}
	for i := range values {
		if p.Values[i] != values[i] {
			t.Errorf("value %d = %v, want %v", i, p.Values[i], values[i])
		}
	}
}

func TestPacketErrors(t *testing.T) {
	if _, err := AppendPacket(nil, 1, 0, make([]float32, MaxValues+1)); err == nil {
		t.Error("expected error for oversized row")
	}
	if _, err := DecodePacket([]byte{1, 2, 3}); !errors.Is(err, ErrShortPacket) {
		t.Errorf("DecodePacket(short) error = %v", err)
	}

	b, _ := AppendPacket(nil, 1, 0, []float32{1, 2})
	if _, err := DecodePacket(b[:len(b)-1]); !errors.Is(err, ErrShortPacket) {
		t.Errorf("DecodePacket(truncated) error = %v", err)
	}
}

func TestNewUDPPublisherValidation(t *testing.T) {
	rows := &fakeRows{row: make([]float32, 4)}
	if _, err := NewUDPPublisher(time.Millisecond, nil, rows); err == nil {
		t.Error("expected error for nil sender")
	}
	if _, err := NewUDPPublisher(time.Millisecond, &captureSender{}, nil); err == nil {
		t.Error("expected error for nil source")
	}
	wide := &fakeRows{row: make([]float32, MaxValues+1)}
	if _, err := NewUDPPublisher(time.Millisecond, &captureSender{}, wide); err == nil {
		t.Error("expected error for oversized rows")
	}
}

func TestPublisherBuildAndSend(t *testing.T) {
	rows := &fakeRows{row: []float32{0.1, 0.2, 0.3}}
	sender := &captureSender{}
	p, err := NewUDPPublisher(time.Hour, sender, rows)
	if err != nil {
		t.Fatal(err)
	}

	p.buildAndSendPacket()
	p.buildAndSendPacket()
	if sender.count() != 2 || p.Sent() != 2 {
		t.Fatalf("sent %d packets, Sent() = %d", sender.count(), p.Sent())
	}
	pkt, err := DecodePacket(sender.packets[1])
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Seq != 2 || len(pkt.Values) != 3 || pkt.Values[2] != 0.3 {
		t.Errorf("packet = %+v", pkt)
	}

	rows.err = errors.New("boom")
	p.buildAndSendPacket()
	if sender.count() != 2 {
		t.Error("a failed fetch must not send")
	}
}

func TestPublisherStartStop(t *testing.T) {
	sender := &captureSender{}
	p, err := NewUDPPublisher(time.Millisecond, sender, &fakeRows{row: []float32{1}})
	if err != nil {
		t.Fatal(err)
	}

	p.Start()
	p.Start()
	deadline := time.Now().Add(2 * time.Second)
	for sender.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if sender.count() < 3 {
		t.Fatalf("only %d packets sent", sender.count())
	}

	n := sender.count()
	time.Sleep(10 * time.Millisecond)
	if sender.count() != n {
		t.Error("publisher kept sending after Stop")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second stop error = %v", err)
	}
}

func TestUDPSenderLoopback(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("loopback UDP unavailable: %v", err)
	}
	defer conn.Close()

	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPSender() error = %v", err)
	}
	if sender.Target() != conn.LocalAddr().String() {
		t.Errorf("Target() = %s", sender.Target())
	}

	b, _ := AppendPacket(nil, 42, 1, []float32{0.25})
	if err := sender.Send(b); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	buf := make([]byte, MaxPacketSize)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error = %v", err)
	}
	pkt, err := DecodePacket(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Seq != 42 || pkt.Values[0] != 0.25 {
		t.Errorf("packet = %+v", pkt)
	}

	if st := sender.Stats(); st.Packets != 1 || st.Bytes != uint64(len(b)) || st.Failures != 0 {
		t.Errorf("Stats() = %+v", st)
	}

	if err := sender.Send(b[:HeaderSize-1]); !errors.Is(err, ErrShortPacket) {
		t.Errorf("short datagram error = %v, want ErrShortPacket", err)
	}
	if err := sender.Send(make([]byte, MaxPacketSize+1)); !errors.Is(err, ErrOversized) {
		t.Errorf("oversized datagram error = %v, want ErrOversized", err)
	}
	if st := sender.Stats(); st.Packets != 1 {
		t.Errorf("rejected datagrams were counted: %+v", st)
	}

	if err := sender.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sender.Send(b); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send after Close = %v, want ErrSenderClosed", err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
