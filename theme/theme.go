package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fogleman/ease"

	"go-looper/sequencer"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Playing rune // ● track running
	Stopped rune // · track idle
	Leader  rune // ★ track the grid follows

	BarFilled rune // ━ loop progress
	BarEmpty  rune // ─ loop remainder
	BarBeat   rune // ┼ beat marker
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Playing: '●',
			Stopped: '·',
			Leader:  '★',

			BarFilled: '━',
			BarEmpty:  '─',
			BarBeat:   '┼',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleMuted   = 0.2
	RoleFG      = 0.5
	RoleAccent  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Timing colors how a start landed: exact is brightest, early and late sit
// either side of it.
func (t *Theme) Timing(tm sequencer.Timing) lipgloss.Color {
	switch tm {
	case sequencer.TimingExact:
		return t.Success()
	case sequencer.TimingEarly:
		return t.Active()
	case sequencer.TimingLate:
		return t.Warning()
	default:
		return t.Muted()
	}
}

// Pulse flashes on the beat and fades over it. phase is the position
// within the beat, 0-1.
func (t *Theme) Pulse(phase float64) lipgloss.Color {
	if phase < 0 {
		phase = 0
	}
	if phase > 1 {
		phase = 1
	}
	return t.Color(RoleMuted + (RoleSuccess-RoleMuted)*ease.InQuart(1-phase))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return lipgloss.Color(t.Palette.Lookup(norm).Hex())
}
