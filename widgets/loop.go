package widgets

import (
	"fmt"
	"strings"
)

// LoopBar draws a loop's progress as width cells with a marker at every
// beat boundary. Symbols are passed in so the theme decides the look.
type LoopBar struct {
	Width  int
	Filled rune
	Empty  rune
	Beat   rune
}

// Render shows position (ticks, taken modulo length) within a loop of
// length ticks split into beats.
func (b LoopBar) Render(position, length uint64, beats int) string {
	if b.Width <= 0 {
		return ""
	}
	if length == 0 {
		return strings.Repeat(string(b.Empty), b.Width)
	}
	at := int(position % length * uint64(b.Width) / length)

	var out strings.Builder
	for cell := 0; cell < b.Width; cell++ {
		switch {
		case cell <= at:
			out.WriteRune(b.Filled)
		case beats > 1 && cell > 0 && onBeat(cell, b.Width, beats):
			out.WriteRune(b.Beat)
		default:
			out.WriteRune(b.Empty)
		}
	}
	return out.String()
}

// onBeat reports whether cell is the first cell of a beat
func onBeat(cell, width, beats int) bool {
	return cell*beats/width != (cell-1)*beats/width
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderKeyLine formats key bindings on one line: "key:desc  key:desc"
func RenderKeyLine(keys []KeyBinding) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Key + ":" + k.Desc
	}
	return strings.Join(parts, "  ")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
