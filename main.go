package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"k8s.io/utils/clock"

	"go-looper/config"
	"go-looper/debug"
	"go-looper/midi"
	"go-looper/sequencer"
	"go-looper/theme"
	"go-looper/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-looper/config.json)")
	serialPort := flag.String("serial", "", "serial MIDI device, overrides the config")
	debugLog := flag.Bool("debug", false, "write a debug log")
	palettePath := flag.String("palette", "", "GIMP palette (.gpl) for the UI")
	flag.Parse()

	if err := run(*configPath, *serialPort, *palettePath, *debugLog); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func run(configPath, serialName, palettePath string, debugLog bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if debugLog {
		if err := debug.Enable(cfg.Log.File); err != nil {
			return err
		}
		defer debug.Disable()
		if cfg.Log.Level != "" {
			if err := debug.SetLevel(cfg.Log.Level); err != nil {
				return errors.Wrap(err, "log level")
			}
		}
	}

	th := theme.New(nil)
	if palettePath != "" {
		palette, err := theme.LoadGPL(palettePath)
		if err != nil {
			return err
		}
		th = theme.New(palette)
	}

	if serialName == "" {
		serialName = cfg.Serial.Port
	}
	var serial *midi.SerialPort
	if serialName != "" {
		serial, err = midi.OpenSerial(serialName, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		defer serial.Close()
	}

	send, err := openOutput(cfg.Output.Port, serial)
	if err != nil {
		return err
	}

	tracks := make([]sequencer.Track, 0, len(cfg.Tracks))
	for _, t := range cfg.Tracks {
		tracks = append(tracks, sequencer.NewPulseTrack(t.Name, t.Note, t.Channel, t.Timebase, t.LengthBeats))
	}
	player, err := sequencer.NewClockPlayer(clock.RealClock{}, send, tracks...)
	if err != nil {
		return err
	}
	player.SetTempo(cfg.Tempo)

	manager, err := sequencer.NewManager(player)
	if err != nil {
		return err
	}
	manager.SetQuantizeBeats(cfg.Quantizer.Beats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)

	// Create MIDI device manager (handles hot-plug)
	deviceMgr := midi.NewDeviceManager(cfg.Input.Preferred, cfg.Input.Excluded)
	go deviceMgr.Run(ctx)

	m := tui.NewModel(manager, deviceMgr, th)
	m.Config = cfg
	m.ConfigPath = configPath
	if serial != nil {
		src := midi.NewSource(serial, clock.RealClock{})
		src.SetRunningStatus(cfg.Serial.RunningStatus)
		src.SetTempo(cfg.Tempo)
		go func() {
			if err := manager.ReadSource(ctx, src); err != nil {
				debug.Logger().WithError(err).Error("serial input stopped")
			}
		}()
		m.Status = "serial " + serial.Name()
	}

	debug.Logger().WithField("tracks", len(tracks)).Info("go-looper started")

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// openOutput picks where the loops play: a named MIDI port, else the
// serial line, else nowhere.
func openOutput(portName string, serial *midi.SerialPort) (func(gomidi.Message) error, error) {
	if portName != "" {
		out, err := gomidi.FindOutPort(portName)
		if err != nil {
			return nil, errors.Wrapf(err, "find output %q", portName)
		}
		send, err := gomidi.SendTo(out)
		if err != nil {
			return nil, errors.Wrapf(err, "open output %q", portName)
		}
		return send, nil
	}
	if serial != nil {
		return midi.NewOutput(serial).Send, nil
	}
	return nil, nil
}
