// SPDX-License-Identifier: MIT
package transport

import (
	"spectrolysis/internal/log"
)

// LoggingTransport implements Transport by logging a one-line summary of
// every Nth frame at debug level.
type LoggingTransport struct {
	every uint64
}

// NewLoggingTransport creates a LoggingTransport that logs one frame in
// every. Values below 1 log every frame.
func NewLoggingTransport(every int) *LoggingTransport {
	log.Info("Transport: Using LoggingTransport")
	return &LoggingTransport{every: uint64(max(every, 1))}
}

// Send logs frames and ignores other payloads. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	f, ok := data.(*Frame)
	if !ok || f.Seq%lt.every != 0 {
		return nil
	}
	peak, level := 0, float32(0)
	for i, v := range f.Magnitudes {
		if v > level {
			peak, level = i, v
		}
	}
	var hz float32
	if peak < len(f.Frequencies) {
		hz = f.Frequencies[peak]
	}
	log.Debugf("Transport: frame %d mode=%s rms=%.4f peak=%.1fHz (%.3f)", f.Seq, f.Mode, f.RMS, hz, level)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debug("Transport: LoggingTransport closed")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
