package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// SerialConfig selects the serial MIDI line (DIN via a USB serial adapter)
type SerialConfig struct {
	Port          string `json:"port,omitempty"`
	Baud          int    `json:"baud,omitempty"`
	RunningStatus bool   `json:"runningStatus"`
}

// InputConfig filters which MIDI inputs are connected as keyboards.
// Patterns match port names case-insensitively.
type InputConfig struct {
	Preferred []string `json:"preferred,omitempty"`
	Excluded  []string `json:"excluded,omitempty"`
}

// OutputConfig names the MIDI output port the loops play on. When empty the
// serial line is used if one is open.
type OutputConfig struct {
	Port string `json:"port,omitempty"`
}

type QuantizerConfig struct {
	Beats int `json:"beats"`
}

// TrackConfig defines one loop
type TrackConfig struct {
	Name        string `json:"name"`
	Note        uint8  `json:"note"`    // trigger note
	Channel     uint8  `json:"channel"` // MIDI output channel (1-16)
	Timebase    uint32 `json:"timebase,omitempty"`
	LengthBeats int    `json:"lengthBeats,omitempty"`
}

type LogConfig struct {
	Level string `json:"level,omitempty"`
	File  string `json:"file,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Serial    SerialConfig    `json:"serial"`
	Input     InputConfig     `json:"input,omitempty"`
	Output    OutputConfig    `json:"output,omitempty"`
	Quantizer QuantizerConfig `json:"quantizer"`
	Tempo     float64         `json:"tempo"`
	Tracks    []TrackConfig   `json:"tracks"`
	Log       LogConfig       `json:"log,omitempty"`
}

// UnmarshalJSON decodes over the receiver's values, except that a "tracks"
// key replaces the track list outright instead of merging into it.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	var keys struct {
		Tracks json.RawMessage `json:"tracks"`
	}
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	if keys.Tracks != nil {
		c.Tracks = nil
	}
	return json.Unmarshal(data, (*plain)(c))
}

// Limits for Validate
const (
	MaxTracks        = 8
	MaxQuantizeBeats = 128
	MinTempo         = 20
	MaxTempo         = 300
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud:          31250,
			RunningStatus: true,
		},
		Input: InputConfig{
			Excluded: []string{"through", "rtmidi"},
		},
		Quantizer: QuantizerConfig{Beats: 4},
		Tempo:     120,
		Tracks: []TrackConfig{
			{Name: "kick", Note: 36, Channel: 10, Timebase: 24, LengthBeats: 4},
			{Name: "snare", Note: 38, Channel: 10, Timebase: 24, LengthBeats: 4},
			{Name: "hat", Note: 42, Channel: 10, Timebase: 24, LengthBeats: 2},
			{Name: "bass", Note: 48, Channel: 2, Timebase: 24, LengthBeats: 8},
		},
		Log: LogConfig{Level: "debug"},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-looper"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path over the defaults. A missing file
// yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrap(err, "read config")
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks ranges and fills track defaults (timebase 24, 4 beats)
func (c *Config) Validate() error {
	if c.Quantizer.Beats < 0 || c.Quantizer.Beats > MaxQuantizeBeats {
		return errors.Errorf("quantizer beats %d out of range 0..%d", c.Quantizer.Beats, MaxQuantizeBeats)
	}
	if c.Tempo < MinTempo || c.Tempo > MaxTempo {
		return errors.Errorf("tempo %g out of range %d..%d", c.Tempo, MinTempo, MaxTempo)
	}
	if c.Serial.Baud < 0 {
		return errors.Errorf("serial baud %d is negative", c.Serial.Baud)
	}
	if len(c.Tracks) == 0 || len(c.Tracks) > MaxTracks {
		return errors.Errorf("need 1..%d tracks, have %d", MaxTracks, len(c.Tracks))
	}
	notes := make(map[uint8]string)
	for i := range c.Tracks {
		t := &c.Tracks[i]
		if t.Name == "" {
			return errors.Errorf("track %d has no name", i+1)
		}
		if t.Note > 127 {
			return errors.Errorf("track %q: note %d out of range", t.Name, t.Note)
		}
		if t.Channel < 1 || t.Channel > 16 {
			return errors.Errorf("track %q: channel %d out of range 1..16", t.Name, t.Channel)
		}
		if other, dup := notes[t.Note]; dup {
			return errors.Errorf("tracks %q and %q share trigger note %d", other, t.Name, t.Note)
		}
		notes[t.Note] = t.Name
		if t.Timebase == 0 {
			t.Timebase = 24
		}
		if t.LengthBeats <= 0 {
			t.LengthBeats = 4
		}
	}
	return nil
}
