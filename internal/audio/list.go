// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// ListDevices writes the capture and playback devices of b to w.
// For each device, it shows:
//   - Device ID and name, the system default highlighted
//   - Channel count for the direction
//   - Default sample rate
func ListDevices(w io.Writer, b Backend) error {
	var sb strings.Builder
	for _, dir := range []Direction{Capture, Playback} {
		devices, err := b.Devices(dir)
		if err != nil {
			sb.WriteString(titleStyle.Render(heading(dir, b.Name())))
			sb.WriteString("\n")
			sb.WriteString(infoStyle.Render("  unavailable: " + err.Error()))
			sb.WriteString("\n\n")
			continue
		}
		sb.WriteString(renderDevices(b.Name(), dir, devices))
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func renderDevices(backend string, dir Direction, devices []DeviceInfo) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(heading(dir, backend)))
	sb.WriteString("\n")

	if len(devices) == 0 {
		sb.WriteString(infoStyle.Render("  none found"))
		sb.WriteString("\n")
		return sb.String()
	}

	for _, d := range devices {
		channels := d.MaxInputChannels
		if dir == Playback {
			channels = d.MaxOutputChannels
		}
		line := fmt.Sprintf("[%d] %s", d.ID, d.Name)
		if d.IsDefault {
			sb.WriteString(highlightStyle.Render(line + " (default)"))
		} else {
			sb.WriteString(line)
		}
		sb.WriteString("\n")
		sb.WriteString(infoStyle.Render(fmt.Sprintf("    channels: %d, default sample rate: %.0f Hz", channels, d.DefaultSampleRate)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func heading(dir Direction, backend string) string {
	name := "Capture"
	if dir == Playback {
		name = "Playback"
	}
	return fmt.Sprintf("%s devices (%s)", name, backend)
}
