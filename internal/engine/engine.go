// SPDX-License-Identifier: MIT
/*
Package engine ties the spectrogram pipeline together:
- A capture ring fed by the input device (microphone mode)
- A decoded file played through the output device (player mode)
- A render loop that analyses the active source on a fixed tick
- Transports that hand every frame to external renderers

Thread Safety:
- Audio callbacks run on backend threads and only touch the sources
- The render loop is the only writer of the analyzer and the frame buffers
- Mode changes and transport control are serialized by a mutex
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"spectrolysis/internal/analysis"
	"spectrolysis/internal/audio"
	"spectrolysis/internal/config"
	"spectrolysis/internal/decode"
	"spectrolysis/internal/log"
	"spectrolysis/internal/source"
	"spectrolysis/internal/transport"
	"spectrolysis/internal/transport/udp"
)

// Mode selects the active source.
type Mode int

const (
	ModeMic Mode = iota
	ModePlayer
)

func (m Mode) String() string {
	if m == ModePlayer {
		return "player"
	}
	return "mic"
}

// Option customizes an Engine.
type Option func(*Engine)

// WithBackends overrides the capture and playback backends chosen by config.
func WithBackends(capture, playback audio.Backend) Option {
	return func(e *Engine) {
		e.captureBackend = capture
		e.playbackBackend = playback
	}
}

// WithTransports replaces the transports built from config.
func WithTransports(ts ...transport.Transport) Option {
	return func(e *Engine) {
		e.transports = ts
		e.customTransports = true
	}
}

// WithDecoder replaces the default decoder registry.
func WithDecoder(d source.Decoder) Option {
	return func(e *Engine) { e.decoder = d }
}

type Engine struct {
	config *config.Config

	captureBackend  audio.Backend
	playbackBackend audio.Backend
	decoder         source.Decoder

	ring   *source.RingSource
	player *source.PlaybackSource

	analyzer *analysis.Analyzer
	bands    *analysis.BandMeter

	transports       []transport.Transport
	customTransports bool
	publisher        *udp.UDPPublisher
	udpSender        *udp.UDPSender

	mu   sync.Mutex // guards mode and source control
	mode Mode

	// Render loop, Start/Stop managed.
	loopMu   sync.Mutex
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Reused on every tick. Only the render goroutine touches them.
	frame transport.Frame

	closeOnce sync.Once
}

// NewEngine builds every component from cfg. No device is opened until Start.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{config: cfg}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.captureBackend == nil {
		if e.captureBackend, err = NewBackend(cfg.Audio.Backend); err != nil {
			return nil, err
		}
	}
	if e.playbackBackend == nil {
		if e.playbackBackend, err = NewBackend(cfg.PlaybackBackend()); err != nil {
			return nil, err
		}
	}
	if e.decoder == nil {
		e.decoder = decode.NewDefaultRegistry()
	}

	aopts, err := analysis.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if e.analyzer, err = analysis.New(aopts); err != nil {
		return nil, err
	}
	e.bands = analysis.NewBandMeter(e.analyzer, analysis.DefaultBands())

	if e.ring, err = source.NewRingSource(e.captureBackend, cfg.Audio.MaxRecordingSec); err != nil {
		return nil, err
	}
	e.player = source.NewPlaybackSource(e.playbackBackend, cfg.Audio.OutputDevice, cfg.Audio.CallbackFrames)

	if !e.customTransports {
		if err := e.buildTransports(); err != nil {
			e.closeSources()
			return nil, err
		}
	}

	rows, cols := e.analyzer.Rows(), e.analyzer.Cols()
	e.frame = transport.Frame{
		Rows:        rows,
		Cols:        cols,
		History:     make([]float32, rows*cols),
		Frequencies: make([]float32, cols),
		Magnitudes:  make([]float32, cols),
		Bands:       make([]transport.Band, len(analysis.DefaultBands())),
	}

	log.Infof("Engine: capture=%s playback=%s fft=%d rows=%d cols=%d",
		e.captureBackend.Name(), e.playbackBackend.Name(), cfg.Spectrum.FFTLen, rows, cols)
	return e, nil
}

func (e *Engine) buildTransports() error {
	tc := e.config.Transport
	if tc.WSEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WSAddr)
		if err != nil {
			return err
		}
		e.transports = append(e.transports, ws)
	}
	if tc.UDPEnabled {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			e.closeTransports()
			return err
		}
		pub, err := udp.NewUDPPublisher(tc.UDPSendInterval, sender, e.analyzer)
		if err != nil {
			sender.Close()
			e.closeTransports()
			return err
		}
		e.udpSender, e.publisher = sender, pub
	}
	if log.GetLevel() == log.LevelDebug {
		// About once a second at the default tick.
		e.transports = append(e.transports, transport.NewLoggingTransport(60))
	}
	return nil
}

// Start opens the capture device, loads the configured file if any and
// starts the render loop. With a file the engine starts in player mode and
// begins playback; otherwise it records from the microphone.
func (e *Engine) Start() error {
	ac := e.config.Audio
	if err := e.ring.Setup(ac.InputDevice, ac.SampleRate, ac.CallbackFrames); err != nil {
		if e.config.PlaybackFile == "" {
			return err
		}
		log.Warnf("Engine: capture unavailable, continuing in player mode: %v", err)
	}

	if e.config.PlaybackFile != "" {
		if err := e.LoadFile(e.config.PlaybackFile); err != nil {
			return err
		}
		if err := e.Play(); err != nil {
			return err
		}
	} else if err := e.Record(); err != nil {
		return err
	}

	e.startLoop()
	if e.publisher != nil {
		e.publisher.Start()
	}
	return nil
}

// Run starts the engine and blocks until ctx is done, then closes it.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		e.Close()
		return err
	}
	<-ctx.Done()
	return e.Close()
}

func (e *Engine) startLoop() {
	e.loopMu.Lock()
	if e.ticker != nil {
		e.loopMu.Unlock()
		return
	}
	e.ticker = time.NewTicker(e.config.Render.TickInterval)
	e.doneChan = make(chan struct{})
	e.stopOnce = sync.Once{}
	ticker, done := e.ticker, e.doneChan
	e.loopMu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		log.Debugf("Engine: render loop started (tick %s)", e.config.Render.TickInterval)
		for {
			select {
			case <-ticker.C:
				if _, err := e.Tick(); err != nil {
					log.Errorf("Engine: tick failed: %v", err)
				}
			case <-done:
				return
			}
		}
	}()
}

// Stop halts the render loop and waits for it to exit.
func (e *Engine) Stop() {
	e.loopMu.Lock()
	if e.ticker == nil {
		e.loopMu.Unlock()
		return
	}
	e.stopOnce.Do(func() {
		close(e.doneChan)
		e.ticker.Stop()
		e.ticker = nil
	})
	e.loopMu.Unlock()
	e.wg.Wait()
}

// Tick runs one frame against the active source and hands the result to
// every transport. It reports whether the history advanced.
func (e *Engine) Tick() (bool, error) {
	mode, src := e.active()
	advanced, err := e.analyzer.Tick(src)
	if err != nil || !advanced {
		return false, err
	}

	f := &e.frame
	f.Seq++
	f.Time = time.Now().UnixNano()
	f.Mode = mode.String()
	e.analyzer.View(func(history, freqs, mags []float32) {
		copy(f.History, history)
		copy(f.Frequencies, freqs)
		copy(f.Magnitudes, mags)
	})
	f.RMS = e.analyzer.RMS()

	if bands, err := e.bands.Measure(); err == nil {
		for i, b := range bands {
			f.Bands[i] = transport.Band{Name: b.Name, Level: b.Level}
		}
	}

	f.PositionSec, f.DurationSec = 0, 0
	if mode == ModePlayer {
		f.PositionSec = e.player.CurrentTimeSec()
		f.DurationSec = e.player.TotalTimeSec()
	}

	for _, t := range e.transports {
		if err := t.Send(f); err != nil {
			log.Warnf("Engine: transport send failed: %v", err)
		}
	}
	return true, nil
}

func (e *Engine) active() (Mode, source.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModePlayer {
		return e.mode, e.player
	}
	return e.mode, e.ring
}

// Mode returns the active mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode switches the active source. The source being left is paused; the
// new one keeps whatever state it had.
func (e *Engine) SetMode(m Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setModeLocked(m)
}

func (e *Engine) setModeLocked(m Mode) error {
	if m == e.mode {
		return nil
	}
	var err error
	if e.mode == ModePlayer {
		err = e.player.Pause()
	} else {
		err = e.ring.Pause()
	}
	e.mode = m
	log.Infof("Engine: switched to %s mode", m)
	return err
}

// Record switches to microphone mode and starts capturing.
func (e *Engine) Record() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.setModeLocked(ModeMic); err != nil {
		log.Warnf("Engine: %v", err)
	}
	return e.ring.Record()
}

// Play switches to player mode and starts playback.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.setModeLocked(ModePlayer); err != nil {
		log.Warnf("Engine: %v", err)
	}
	return e.player.Play()
}

// Pause pauses the active source.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModePlayer {
		return e.player.Pause()
	}
	return e.ring.Pause()
}

// LoadFile decodes path into the player and switches to player mode,
// paused at the start. On failure the current state is kept.
func (e *Engine) LoadFile(path string) error {
	if err := e.player.LoadFile(path, e.decoder); err != nil {
		return err
	}
	return e.SetMode(ModePlayer)
}

// Seek moves the player to seconds, clamped to the track.
func (e *Engine) Seek(seconds float64) { e.player.Seek(seconds) }

// SkipToStart rewinds the player.
func (e *Engine) SkipToStart() { e.player.SkipToStart() }

// Ring exposes the capture source.
func (e *Engine) Ring() *source.RingSource { return e.ring }

// Player exposes the playback source.
func (e *Engine) Player() *source.PlaybackSource { return e.player }

// Analyzer exposes the analysis pipeline.
func (e *Engine) Analyzer() *analysis.Analyzer { return e.analyzer }

// ExportRecent writes up to d of the most recent capture to a WAV file.
func (e *Engine) ExportRecent(path string, d time.Duration) error {
	spec := e.ring.Spec()
	if spec.SampleRate == 0 {
		return fmt.Errorf("export: %w", source.ErrNoDevice)
	}
	samples := e.ring.Recent(d)
	if err := audio.ExportWAV(path, samples, spec); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	secs := float64(len(samples)) / float64(spec.SampleRate*max(spec.Channels, 1))
	log.Infof("Engine: exported %.1fs of capture to %s", secs, path)
	return nil
}

// Close stops the loop, then releases devices before their buffers and
// finally the transports.
func (e *Engine) Close() error {
	var errs []error
	e.closeOnce.Do(func() {
		e.Stop()
		if e.publisher != nil {
			errs = append(errs, e.publisher.Close())
		}
		errs = append(errs, e.closeSources())
		if e.udpSender != nil {
			errs = append(errs, e.udpSender.Close())
		}
		errs = append(errs, e.closeTransports())
		log.Info("Engine: closed")
	})
	return errors.Join(errs...)
}

func (e *Engine) closeSources() error {
	return errors.Join(e.player.Close(), e.ring.Close())
}

func (e *Engine) closeTransports() error {
	var errs []error
	for _, t := range e.transports {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}
