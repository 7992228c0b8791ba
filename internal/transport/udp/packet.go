// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Value Count       | uint16         | 2            | Number of floats (N)    |
| Row               | []float32      | N * 4        | Newest spectrogram row  |
+-----------------------------------------------------------------------------+
*/

const (
	// HeaderSize is the fixed prefix before the row values.
	HeaderSize = 4 + 8 + 2
	// MaxPacketSize is the largest IPv4 UDP payload.
	MaxPacketSize = 65507
	// MaxValues is the largest row that fits in one packet.
	MaxValues = (MaxPacketSize - HeaderSize) / 4
)

var ErrShortPacket = errors.New("udp: short packet")

// Packet is a decoded datagram.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Values    []float32
}

// AppendPacket appends the encoded packet to dst.
func AppendPacket(dst []byte, seq uint32, timestamp int64, values []float32) ([]byte, error) {
	if len(values) > MaxValues {
		return dst, fmt.Errorf("udp: %d values exceed the %d per packet limit", len(values), MaxValues)
	}
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(values)))
	for _, v := range values {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst, nil
}

// DecodePacket parses a datagram produced by AppendPacket.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	body := b[HeaderSize:]
	if len(body) < n*4 {
		return Packet{}, fmt.Errorf("%w: want %d values, have %d bytes", ErrShortPacket, n, len(body))
	}
	p.Values = make([]float32, n)
	for i := range p.Values {
		p.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*4:]))
	}
	return p, nil
}
