// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"spectrolysis/internal/config"
	"spectrolysis/internal/log"
	"spectrolysis/pkg/build"
)

// Commands selected by ParseArgs.
const (
	CommandRun    = "run"
	CommandList   = "list"
	CommandExport = "export"
	CommandPick   = "pick"
)

// flagValues holds raw flag values until the config file has been loaded.
type flagValues struct {
	configPath string
	backend    string
	device     int
	file       string
	sampleRate int
	fftLen     int
	rows       int
	wsAddr     string
	udpTarget  string
	verbose    bool
	seconds    int
	output     string
}

// ParseArgs parses os.Args into a validated configuration. A nil config with
// a nil error means nothing should run (for example after --help).
func ParseArgs() (*config.Config, error) {
	return Parse(os.Args[1:])
}

// Parse is ParseArgs for an explicit argument list.
func Parse(args []string) (*config.Config, error) {
	var options *config.Config
	flags := &flagValues{}

	load := func(cmd *cobra.Command, command string) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		flags.apply(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg.Command = command
		options = cfg
		return nil
	}

	rootCmd := newRootCommand(flags, load)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

func newRootCommand(flags *flagValues, load func(*cobra.Command, string) error) *cobra.Command {
	buildInfo := build.GetBuildInfo()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandRun)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available capture and playback devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandList)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Record from the capture device and save the most recent audio as WAV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.seconds <= 0 {
				return fmt.Errorf("--seconds must be positive, got %d", flags.seconds)
			}
			return load(cmd, CommandExport)
		},
	}
	exportCmd.Flags().IntVarP(&flags.seconds, "seconds", "t", 10,
		"Seconds to record before exporting")
	exportCmd.Flags().StringVarP(&flags.output, "output", "o", "",
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	pickCmd := &cobra.Command{
		Use:   "pick",
		Short: "Choose a capture device and sample rate interactively, then run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandPick)
		},
	}

	rootCmd.AddCommand(listCmd, exportCmd, pickCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "",
		"Path to a YAML config file (default ./config.yaml when present)")
	pf.StringVarP(&flags.backend, "backend", "b", config.DefaultBackend,
		"Audio backend: portaudio or null")

	// Audio Device Configuration
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Requested capture sample rate, measured in Hertz (Hz)")
	pf.StringVarP(&flags.file, "file", "i", "",
		"Play and analyse this audio file instead of the microphone")

	// Pipeline Configuration
	pf.IntVarP(&flags.fftLen, "fft-len", "n", config.DefaultFFTLen,
		"Transform length, a power of two greater than 32")
	pf.IntVarP(&flags.rows, "rows", "r", config.DefaultRows,
		"Number of spectrogram history rows")

	// Transport Configuration
	pf.StringVarP(&flags.wsAddr, "ws-addr", "w", config.DefaultWSAddr,
		"WebSocket listen address, empty disables it")
	pf.StringVarP(&flags.udpTarget, "udp", "u", "",
		"Send binary row packets to this host:port")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	return rootCmd
}

// apply overrides cfg with every flag the user set explicitly.
func (f *flagValues) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("backend") {
		cfg.Audio.Backend = f.backend
	}
	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("fft-len") {
		cfg.Spectrum.FFTLen = f.fftLen
		cfg.Spectrum.AudioLen = min(cfg.Spectrum.AudioLen, f.fftLen)
	}
	if changed("rows") {
		cfg.Spectrogram.Rows = f.rows
	}
	if changed("ws-addr") {
		cfg.Transport.WSAddr = f.wsAddr
		cfg.Transport.WSEnabled = f.wsAddr != ""
	}
	if changed("udp") {
		cfg.Transport.UDPTargetAddress = f.udpTarget
		cfg.Transport.UDPEnabled = f.udpTarget != ""
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	cfg.PlaybackFile = f.file
	cfg.ExportSec = f.seconds
	cfg.ExportFile = f.output
	if cfg.ExportFile == "" {
		cfg.ExportFile = "recording-" + time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}
}
