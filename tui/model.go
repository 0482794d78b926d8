package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-looper/config"
	"go-looper/debug"
	"go-looper/midi"
	"go-looper/sequencer"
	"go-looper/theme"
	"go-looper/widgets"
)

const barWidth = 32

const tempoStep = 5

var keys = []widgets.KeyBinding{
	{Key: "1-8", Desc: "toggle track"},
	{Key: "+/-", Desc: "quantize beats"},
	{Key: "[/]", Desc: "tempo"},
	{Key: "space", Desc: "stop all"},
	{Key: "s", Desc: "save"},
	{Key: "?", Desc: "help"},
	{Key: "q", Desc: "quit"},
}

var helpSections = []widgets.KeySection{
	{Title: "Tracks", Keys: []widgets.KeyBinding{
		{Key: "1-8", Desc: "start or stop a track"},
		{Key: "space", Desc: "stop all tracks"},
	}},
	{Title: "Timing", Keys: []widgets.KeyBinding{
		{Key: "+ / -", Desc: "quantize window one beat longer or shorter"},
		{Key: "] / [", Desc: fmt.Sprintf("tempo up or down %d bpm", tempoStep)},
	}},
	{Title: "App", Keys: []widgets.KeyBinding{
		{Key: "s", Desc: "save tempo and quantize to the config file"},
		{Key: "?", Desc: "close this help"},
		{Key: "q", Desc: "quit"},
	}},
}

type Model struct {
	Manager   *sequencer.Manager
	DeviceMgr *midi.DeviceManager
	Theme     *theme.Theme
	Status    string // e.g. the serial port in use

	// Config is written back by the save key. An empty ConfigPath means
	// the default location.
	Config     *config.Config
	ConfigPath string

	devices  []string
	notice   string
	help     bool
	quitting bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(manager *sequencer.Manager, deviceMgr *midi.DeviceManager, th *theme.Theme) Model {
	return Model{
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Theme:     th,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Manager),
		ListenForDevices(m.DeviceMgr),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.Manager.StopAll()
			return m, tea.Quit

		case "+", "=":
			m.Manager.NudgeQuantizeBeats(1)

		case "-", "_":
			m.Manager.NudgeQuantizeBeats(-1)

		case "]":
			m.Manager.NudgeTempo(tempoStep)

		case "[":
			m.Manager.NudgeTempo(-tempoStep)

		case "?":
			m.help = !m.help

		case "s":
			m.notice = m.save()

		case " ":
			m.Manager.StopAll()

		case "1", "2", "3", "4", "5", "6", "7", "8":
			m.Manager.Toggle(int(msg.String()[0] - '1'))
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.devices = append(append([]string(nil), m.devices...), event.ID)
			sort.Strings(m.devices)
			m.Manager.SetMIDIInput(event.Controller)
		case midi.DeviceDisconnected:
			var kept []string
			for _, id := range m.devices {
				if id != event.ID {
					kept = append(kept, id)
				}
			}
			m.devices = kept
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

// save stores the current tempo and quantize window in the config file and
// returns a line for the status area.
func (m Model) save() string {
	if m.Config == nil {
		return "no config to save"
	}
	s := m.Manager.Snapshot()
	cfg := *m.Config
	cfg.Tempo = s.Tempo
	cfg.Quantizer.Beats = int(s.QuantizeBeats)

	var err error
	if m.ConfigPath != "" {
		err = cfg.SaveFile(m.ConfigPath)
	} else {
		err = cfg.Save()
	}
	if err != nil {
		debug.Logger().WithError(err).Error("tui: save config")
		return "save failed: " + err.Error()
	}
	*m.Config = cfg
	return "config saved"
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.Manager.Snapshot()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	activeStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	timingStyle := lipgloss.NewStyle().Foreground(m.Theme.Timing(s.LastTiming))

	leader := "-"
	if s.Leader != sequencer.NoLeader && s.Leader < len(s.Tracks) {
		leader = s.Tracks[s.Leader].Name
	}
	quantize := fmt.Sprintf("%d beats", s.QuantizeBeats)
	if s.QuantizeBeats == 0 {
		quantize = "off"
	}
	header := headerStyle.Render(fmt.Sprintf("go-looper  %3.0fbpm  quantize:%s  leader:%s", s.Tempo, quantize, leader))

	sym := m.Theme.Symbols
	bar := widgets.LoopBar{Width: barWidth, Filled: sym.BarFilled, Empty: sym.BarEmpty, Beat: sym.BarBeat}

	var rows []string
	for i, t := range s.Tracks {
		mark, style := sym.Stopped, dimStyle
		if t.Started {
			mark, style = sym.Playing, activeStyle
		}
		if t.Leader {
			mark = sym.Leader
		}
		progress := strings.Repeat(" ", barWidth)
		if t.Started && t.Timebase > 0 {
			progress = bar.Render(t.Elapsed, t.Length, int(t.Length/uint64(t.Timebase)))
		}
		markStyle := style
		if t.Started && t.Timebase > 0 {
			beat := float64(t.Elapsed%uint64(t.Timebase)) / float64(t.Timebase)
			markStyle = lipgloss.NewStyle().Foreground(m.Theme.Pulse(beat))
		}
		rows = append(rows, markStyle.Render(string(mark))+style.Render(fmt.Sprintf(" %d %-8s n%-3d ch%-2d %s %6d  adv %+d",
			i+1, t.Name, t.Note, t.Channel, progress, t.Elapsed, t.Advance)))
	}

	last := timingStyle.Render(fmt.Sprintf("last start: %s", s.LastTiming)) +
		fgStyle.Render(fmt.Sprintf("  key at %d", s.LastKeyElapsed))

	inputs := "no keyboards"
	if len(m.devices) > 0 {
		inputs = strings.Join(m.devices, ", ")
	}
	if m.Status != "" {
		inputs = m.Status + "  " + inputs
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(strings.Join(rows, "\n"))
	out.WriteString("\n\n")
	out.WriteString(last)
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(inputs))
	if m.notice != "" {
		out.WriteString("\n")
		out.WriteString(fgStyle.Render(m.notice))
	}
	out.WriteString("\n\n")
	if m.help {
		out.WriteString(fgStyle.Render(widgets.RenderKeyHelp(helpSections)))
	} else {
		out.WriteString(dimStyle.Render(widgets.RenderKeyLine(keys)))
	}

	return out.String()
}
