// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"spectrolysis/internal/audio"
)

type fakeBackend struct {
	audio.NullBackend
	devices []audio.DeviceInfo
	err     error
}

func (f *fakeBackend) Devices(audio.Direction) ([]audio.DeviceInfo, error) {
	return f.devices, f.err
}

func testDevices() []audio.DeviceInfo {
	return []audio.DeviceInfo{
		{ID: 0, Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
		{ID: 3, Name: "USB Interface", MaxInputChannels: 2, DefaultSampleRate: 48000, IsDefault: true},
	}
}

func step(t *testing.T, m tea.Model, msg tea.Msg) (PickerModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(PickerModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return pm, cmd
}

func keyMsg(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runeMsg(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func loadedModel(t *testing.T) PickerModel {
	t.Helper()
	m := NewPickerModel(&fakeBackend{devices: testDevices()})
	msg := m.Init()()
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = step(t, m, msg)
	return m
}

func TestPickerSelectsDefaultDevice(t *testing.T) {
	m := loadedModel(t)
	if m.selectedIndex != 1 {
		t.Errorf("selectedIndex = %d, want the default device", m.selectedIndex)
	}
	view := m.View()
	if !strings.Contains(view, "USB Interface") || !strings.Contains(view, "Capture devices") {
		t.Errorf("View() = %q", view)
	}
}

func TestPickerChoosesDeviceAndRate(t *testing.T) {
	m := loadedModel(t)

	m, _ = step(t, m, keyMsg(tea.KeyUp))
	if m.selectedIndex != 0 {
		t.Fatalf("selectedIndex = %d after up", m.selectedIndex)
	}
	m, _ = step(t, m, keyMsg(tea.KeyUp))
	if m.selectedIndex != 0 {
		t.Fatal("up past the first device moved the cursor")
	}

	m, _ = step(t, m, keyMsg(tea.KeyEnter))
	if m.activeScreen != ConfigScreen || m.rateIndex != 0 {
		t.Fatalf("screen=%v rateIndex=%d", m.activeScreen, m.rateIndex)
	}
	if !strings.Contains(m.View(), "Built-in Mic") {
		t.Error("config screen should name the device")
	}

	m, _ = step(t, m, runeMsg('j'))
	m, cmd := step(t, m, keyMsg(tea.KeyEnter))
	if !isQuit(cmd) {
		t.Error("confirming should quit the program")
	}

	sel, ok := m.Selection()
	if !ok || sel.DeviceID != 0 || sel.SampleRate != 48000 {
		t.Errorf("Selection() = %+v, %v", sel, ok)
	}
}

func TestPickerBackAndQuit(t *testing.T) {
	m := loadedModel(t)
	m, _ = step(t, m, keyMsg(tea.KeyEnter))
	if m.rateIndex != 1 {
		t.Errorf("rateIndex = %d, want the device default 48000", m.rateIndex)
	}
	m, _ = step(t, m, keyMsg(tea.KeyEsc))
	if m.activeScreen != ListScreen {
		t.Fatal("esc should return to the list")
	}

	m, cmd := step(t, m, runeMsg('q'))
	if !isQuit(cmd) {
		t.Error("q should quit")
	}
	if _, ok := m.Selection(); ok {
		t.Error("quitting must not produce a selection")
	}
}

func TestPickerNoDevices(t *testing.T) {
	m := NewPickerModel(&fakeBackend{})
	if m.View() != "Initializing..." {
		t.Errorf("View() before size = %q", m.View())
	}
	msg := m.Init()()
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = step(t, m, msg)
	m, _ = step(t, m, keyMsg(tea.KeyEnter))
	if m.activeScreen != ListScreen {
		t.Error("enter with no devices must stay on the list")
	}
	if !strings.Contains(m.View(), "No capture devices found.") {
		t.Errorf("View() = %q", m.View())
	}
}

func TestPickerError(t *testing.T) {
	m := NewPickerModel(&fakeBackend{err: errors.New("portaudio not initialized")})
	m, _ = step(t, m, m.Init()())
	if !strings.Contains(m.View(), "portaudio not initialized") {
		t.Errorf("View() = %q", m.View())
	}
}
