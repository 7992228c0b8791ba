// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spectrolysis/internal/audio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

var (
	quitKeys  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	upKeys    = key.NewBinding(key.WithKeys("up", "k"))
	downKeys  = key.NewBinding(key.WithKeys("down", "j"))
	enterKeys = key.NewBinding(key.WithKeys("enter"))
	backKeys  = key.NewBinding(key.WithKeys("esc"))
)

// SampleRates offered on the configuration screen.
var SampleRates = []int{44100, 48000, 88200, 96000}

// ScreenType defines which screen is currently active.
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Selection is the capture device and rate chosen by the user.
type Selection struct {
	DeviceID   int
	SampleRate int
}

// PickerModel is the Bubble Tea model for choosing a capture device.
type PickerModel struct {
	backend       audio.Backend
	devices       []audio.DeviceInfo
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	rateIndex int
	selection *Selection
}

type devicesMsg struct {
	devices []audio.DeviceInfo
}

type errMsg struct {
	err error
}

// NewPickerModel creates a picker listing the capture devices of b.
func NewPickerModel(b audio.Backend) PickerModel {
	return PickerModel{backend: b, activeScreen: ListScreen}
}

// Init fetches the device list.
func (m PickerModel) Init() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		devices, err := b.Devices(audio.Capture)
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Update handles input and updates the model.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		for i, d := range m.devices {
			if d.IsDefault {
				m.selectedIndex = i
				break
			}
		}
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			return m, tea.Quit
		}
		if m.activeScreen == ListScreen {
			return m.updateList(msg)
		}
		return m.updateConfig(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m PickerModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, upKeys):
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
	case key.Matches(msg, downKeys):
		if m.selectedIndex < len(m.devices)-1 {
			m.selectedIndex++
		}
	case key.Matches(msg, enterKeys):
		if len(m.devices) == 0 {
			return m, nil
		}
		m.activeScreen = ConfigScreen
		m.rateIndex = 0
		def := int(m.devices[m.selectedIndex].DefaultSampleRate)
		for i, rate := range SampleRates {
			if rate == def {
				m.rateIndex = i
				break
			}
		}
	}
	m.refresh()
	return m, nil
}

func (m PickerModel) updateConfig(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, backKeys):
		m.activeScreen = ListScreen
	case key.Matches(msg, upKeys):
		if m.rateIndex > 0 {
			m.rateIndex--
		}
	case key.Matches(msg, downKeys):
		if m.rateIndex < len(SampleRates)-1 {
			m.rateIndex++
		}
	case key.Matches(msg, enterKeys):
		m.selection = &Selection{
			DeviceID:   m.devices[m.selectedIndex].ID,
			SampleRate: SampleRates[m.rateIndex],
		}
		return m, tea.Quit
	}
	m.refresh()
	return m, nil
}

func (m *PickerModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderConfig())
	} else {
		m.viewport.SetContent(m.renderDevices())
	}
}

// Selection returns the confirmed choice, if any.
func (m PickerModel) Selection() (Selection, bool) {
	if m.selection == nil {
		return Selection{}, false
	}
	return *m.selection, true
}

// View renders the UI.
func (m PickerModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render(fmt.Sprintf("Capture devices (%s)", m.backend.Name()))
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Device Configuration")
		help = infoStyle.Render("↑/↓: Change Rate • Enter: Start • Esc: Back • q: Quit")
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m PickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No capture devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s", d.ID, d.Name)
		if d.IsDefault {
			entry += " (default)"
		}
		entry += fmt.Sprintf("\n    Input channels: %d, default sample rate: %.0f Hz\n",
			d.MaxInputChannels, d.DefaultSampleRate)
		if i == m.selectedIndex {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m PickerModel) renderConfig() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configure Device: %s\n\nSample Rate:\n", m.devices[m.selectedIndex].Name)
	for i, rate := range SampleRates {
		marker := " "
		if i == m.rateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %d Hz\n", marker, rate)
		if i == m.rateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// Pick runs the picker full screen and returns the confirmed selection. ok
// is false when the user quit without choosing.
func Pick(b audio.Backend) (sel Selection, ok bool, err error) {
	final, err := tea.NewProgram(NewPickerModel(b), tea.WithAltScreen()).Run()
	if err != nil {
		return Selection{}, false, err
	}
	m, isPicker := final.(PickerModel)
	if !isPicker {
		return Selection{}, false, nil
	}
	if m.err != nil {
		return Selection{}, false, m.err
	}
	sel, ok = m.Selection()
	return sel, ok, nil
}
