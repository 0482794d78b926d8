package sequencer

import (
	"sort"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// TrackEvent is a message at a tick inside a track's loop
type TrackEvent struct {
	Tick uint64
	Msg  gomidi.Message
}

// Track is one loop the player can start and stop.
type Track struct {
	Name     string
	Note     uint8  // trigger note on the input keyboard
	Channel  uint8  // MIDI output channel (1-16)
	Timebase uint32 // ticks per beat
	Length   uint64 // loop length in ticks
	Events   []TrackEvent
}

// NewPulseTrack builds a loop of beats beats that plays note once per beat,
// each note held for half a beat.
func NewPulseTrack(name string, note, channel uint8, timebase uint32, beats int) Track {
	t := Track{
		Name:     name,
		Note:     note,
		Channel:  channel,
		Timebase: timebase,
		Length:   uint64(timebase) * uint64(beats),
	}
	if channel < 1 || channel > 16 || timebase == 0 {
		return t
	}
	ch := channel - 1
	for b := 0; b < beats; b++ {
		at := uint64(b) * uint64(timebase)
		t.Events = append(t.Events,
			TrackEvent{Tick: at, Msg: gomidi.NoteOn(ch, note, 100)},
			TrackEvent{Tick: at + uint64(timebase)/2, Msg: gomidi.NoteOff(ch, note)},
		)
	}
	return t
}

// Validate checks the track can be looped
func (t *Track) Validate() error {
	if t.Timebase == 0 {
		return errors.Wrapf(ErrInvalidArgument, "track %q: timebase is zero", t.Name)
	}
	if t.Length == 0 {
		return errors.Wrapf(ErrInvalidArgument, "track %q: length is zero", t.Name)
	}
	if t.Channel < 1 || t.Channel > 16 {
		return errors.Wrapf(ErrInvalidArgument, "track %q: channel %d out of range", t.Name, t.Channel)
	}
	for _, e := range t.Events {
		if e.Tick >= t.Length {
			return errors.Wrapf(ErrInvalidArgument, "track %q: event at %d past loop end", t.Name, e.Tick)
		}
	}
	return nil
}

func (t *Track) sortEvents() {
	sort.SliceStable(t.Events, func(a, b int) bool {
		return t.Events[a].Tick < t.Events[b].Tick
	})
}
