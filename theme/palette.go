package theme

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

type Palette struct {
	Name   string
	Colors []colorful.Color
}

// DefaultPalette is a dark-to-warm ramp used when no palette file is given
func DefaultPalette() *Palette {
	p := &Palette{Name: "looper"}
	for _, hex := range []string{"#0d0887", "#46039f", "#7201a8", "#9c179e", "#bd3786", "#d8576b", "#ed7953", "#fb9f3a", "#fdca26", "#f0f921"} {
		c, _ := colorful.Hex(hex)
		p.Colors = append(p.Colors, c)
	}
	return p
}

// LoadGPL reads a GIMP palette file
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open palette")
	}
	defer f.Close()

	p := &Palette{}
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "Name:") {
			p.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			continue
		}

		// Skip headers and comments
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "GIMP") || strings.HasPrefix(line, "Columns") {
			continue
		}

		// first 3 fields are R G B
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		var rgb [3]uint8
		ok := true
		for i := range rgb {
			v, err := strconv.ParseUint(fields[i], 10, 8)
			if err != nil {
				ok = false
				break
			}
			rgb[i] = uint8(v)
		}
		if ok {
			p.Colors = append(p.Colors, colorful.Color{
				R: float64(rgb[0]) / 255,
				G: float64(rgb[1]) / 255,
				B: float64(rgb[2]) / 255,
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(p.Colors) == 0 {
		return nil, errors.Errorf("no colors found in palette %s", path)
	}

	return p, nil
}

// Lookup returns the color for normalized value 0-1, blended in Lab space
func (p *Palette) Lookup(norm float64) colorful.Color {
	if norm <= 0 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}

	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	return p.Colors[i].BlendLab(p.Colors[i+1], pos-float64(i)).Clamped()
}
