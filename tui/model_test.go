package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"go-looper/config"
	"go-looper/midi"
	"go-looper/sequencer"
	"go-looper/theme"
)

func newTestModel(t *testing.T) (Model, *sequencer.Manager) {
	t.Helper()
	fc := testingclock.NewFakeClock(time.Unix(0, 0))
	p, err := sequencer.NewClockPlayer(fc, nil,
		sequencer.NewPulseTrack("kick", 36, 10, 24, 4),
		sequencer.NewPulseTrack("snare", 38, 10, 24, 4),
	)
	require.NoError(t, err)
	mgr, err := sequencer.NewManager(p)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return NewModel(mgr, nil, theme.New(nil)), mgr
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelTogglesTracks(t *testing.T) {
	t.Parallel()

	m, mgr := newTestModel(t)
	_, cmd := m.Update(key("2"))
	assert.Nil(t, cmd)
	require.Eventually(t, func() bool {
		return mgr.Snapshot().Tracks[1].Started
	}, time.Second, time.Millisecond)

	// unknown track numbers are ignored
	m.Update(key("8"))
	m.Update(key("+"))
	require.Eventually(t, func() bool {
		return mgr.Snapshot().QuantizeBeats == sequencer.DefaultQuantizeBeats+1
	}, time.Second, time.Millisecond)
}

func TestModelView(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	m.Status = "serial /dev/ttyUSB0"
	view := m.View()
	assert.Contains(t, view, "go-looper")
	assert.Contains(t, view, "kick")
	assert.Contains(t, view, "snare")
	assert.Contains(t, view, "leader:-")
	assert.Contains(t, view, "serial /dev/ttyUSB0")
	assert.Contains(t, view, "no keyboards")
}

func TestModelTracksDevices(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	kb, err := midi.NewKeyboardController("Keystation", nil)
	require.NoError(t, err)
	defer kb.Close()

	next, _ := m.Update(DeviceEventMsg{Type: midi.DeviceConnected, Controller: kb, ID: "Keystation"})
	m = next.(Model)
	assert.Contains(t, m.View(), "Keystation")

	next, _ = m.Update(DeviceEventMsg{Type: midi.DeviceDisconnected, ID: "Keystation"})
	m = next.(Model)
	assert.Contains(t, m.View(), "no keyboards")
}

func TestModelTempoKeysDoNotDrift(t *testing.T) {
	t.Parallel()

	m, mgr := newTestModel(t)
	m.Update(key("]"))
	m.Update(key("]"))
	require.Eventually(t, func() bool {
		return mgr.Snapshot().Tempo == 130
	}, time.Second, time.Millisecond)

	m.Update(key("["))
	m.Update(key("["))
	m.Update(key("["))
	require.Eventually(t, func() bool {
		return mgr.Snapshot().Tempo == 115
	}, time.Second, time.Millisecond)
}

func TestModelHelpToggles(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	assert.NotContains(t, m.View(), "Timing")
	assert.Contains(t, m.View(), "?:help")

	next, _ := m.Update(key("?"))
	m = next.(Model)
	view := m.View()
	assert.Contains(t, view, "Tracks")
	assert.Contains(t, view, "Timing")
	assert.Contains(t, view, "save tempo and quantize")
	assert.NotContains(t, view, "?:help")

	next, _ = m.Update(key("?"))
	m = next.(Model)
	assert.NotContains(t, m.View(), "Timing")
}

func TestModelSavesConfig(t *testing.T) {
	t.Parallel()

	m, mgr := newTestModel(t)
	m.Config = config.DefaultConfig()
	m.ConfigPath = filepath.Join(t.TempDir(), "config.json")

	mgr.SetTempo(100)
	mgr.SetQuantizeBeats(6)
	require.Eventually(t, func() bool {
		s := mgr.Snapshot()
		return s.Tempo == 100 && s.QuantizeBeats == 6
	}, time.Second, time.Millisecond)

	next, _ := m.Update(key("s"))
	m = next.(Model)
	assert.Contains(t, m.View(), "config saved")

	got, err := config.LoadFile(m.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Tempo)
	assert.Equal(t, 6, got.Quantizer.Beats)
	assert.Len(t, got.Tracks, 4)
	assert.Equal(t, 100.0, m.Config.Tempo)
}

func TestModelSaveWithoutConfig(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	next, _ := m.Update(key("s"))
	m = next.(Model)
	assert.Contains(t, m.View(), "no config to save")
}

func TestModelQuit(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	next, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.View())
}
