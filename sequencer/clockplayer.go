package sequencer

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"k8s.io/utils/clock"

	"go-looper/debug"
	"go-looper/midi"
)

// ClockPlayer plays looped tracks against a wall clock. Each track counts
// ticks at its own timebase; tempo is shared.
type ClockPlayer struct {
	mu         sync.Mutex
	clock      clock.PassiveClock
	send       func(gomidi.Message) error
	microtempo uint32
	bpm        float64 // as set; microtempo is its rounding
	tracks     []*playback
}

type playback struct {
	track   Track
	started bool
	origin  time.Time
	offset  int64
	frozen  int64 // position at the last Stop
	cursor  int64 // first position not yet dispatched
	hanging map[uint16]struct{}
}

// NewClockPlayer creates a player for tracks. Messages go to send; a nil
// send discards them.
func NewClockPlayer(c clock.PassiveClock, send func(gomidi.Message) error, tracks ...Track) (*ClockPlayer, error) {
	if len(tracks) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "no tracks")
	}
	if c == nil {
		c = clock.RealClock{}
	}
	if send == nil {
		send = func(gomidi.Message) error { return nil }
	}
	p := &ClockPlayer{
		clock:      c,
		send:       send,
		microtempo: midi.DefaultMicrotempo,
		bpm:        midi.MicrotempoToTempo(midi.DefaultMicrotempo),
	}
	for _, t := range tracks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		t.Events = append([]TrackEvent(nil), t.Events...)
		t.sortEvents()
		p.tracks = append(p.tracks, &playback{
			track:   t,
			hanging: make(map[uint16]struct{}),
		})
	}
	return p, nil
}

func (p *ClockPlayer) get(i int) (*playback, error) {
	if i < 0 || i >= len(p.tracks) {
		return nil, errors.Wrapf(ErrInvalidArgument, "track %d", i)
	}
	return p.tracks[i], nil
}

func (p *ClockPlayer) position(pb *playback, now time.Time) int64 {
	ticks := midi.DurationToTicks(now.Sub(pb.origin), p.microtempo, pb.track.Timebase)
	return int64(ticks) + pb.offset
}

func (p *ClockPlayer) TracksCount() int {
	return len(p.tracks)
}

// Track returns a copy of track i
func (p *ClockPlayer) Track(i int) (Track, bool) {
	pb, err := p.get(i)
	if err != nil {
		return Track{}, false
	}
	return pb.track, true
}

// Elapsed is the track's loop position in ticks, clamped at zero while a
// negative start offset is still being waited out. A stopped track reports
// where it stopped.
func (p *ClockPlayer) Elapsed(i int) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	pb, err := p.get(i)
	if err != nil {
		return 0
	}
	pos := pb.frozen
	if pb.started {
		pos = p.position(pb, p.clock.Now())
	}
	if pos < 0 {
		return 0
	}
	return uint64(pos)
}

func (p *ClockPlayer) Timebase(i int) uint32 {
	pb, err := p.get(i)
	if err != nil {
		return 0
	}
	return pb.track.Timebase
}

func (p *ClockPlayer) Started(i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pb, err := p.get(i)
	if err != nil {
		return false
	}
	return pb.started
}

// Start (re)starts track i at offset ticks. A negative offset holds the
// track silent until the clock catches up with it.
func (p *ClockPlayer) Start(i int, offset int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pb, err := p.get(i)
	if err != nil {
		return err
	}
	p.release(pb)
	pb.started = true
	pb.origin = p.clock.Now()
	pb.offset = offset
	pb.cursor = 0
	if offset > 0 {
		pb.cursor = offset
	}
	debug.Log("player", "start track=%d offset=%d", i, offset)
	return nil
}

// Stop halts track i and releases any note it left sounding
func (p *ClockPlayer) Stop(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pb, err := p.get(i)
	if err != nil {
		return err
	}
	if pb.started {
		pb.frozen = p.position(pb, p.clock.Now())
	}
	pb.started = false
	p.release(pb)
	debug.Log("player", "stop track=%d", i)
	return nil
}

func (p *ClockPlayer) Tempo() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bpm
}

// SetTempo changes the shared tempo without moving any running track
func (p *ClockPlayer) SetTempo(bpm float64) {
	us := midi.TempoToMicrotempo(bpm)
	if us == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock.Now()
	for _, pb := range p.tracks {
		if pb.started {
			pb.offset = p.position(pb, now)
			pb.origin = now
		}
	}
	p.microtempo = us
	p.bpm = bpm
}

// Update sends every event that came due since the previous call
func (p *ClockPlayer) Update() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock.Now()
	for _, pb := range p.tracks {
		if !pb.started {
			continue
		}
		pos := p.position(pb, now)
		if pos < pb.cursor {
			continue
		}
		p.dispatch(pb, pb.cursor, pos)
		pb.cursor = pos + 1
	}
}

// dispatch emits the events between positions from and to, inclusive.
// A gap longer than a loop only plays the last loop's worth.
func (p *ClockPlayer) dispatch(pb *playback, from, to int64) {
	length := int64(pb.track.Length)
	if to-from >= length {
		from = to - length + 1
	}
	for from <= to {
		cycle := from - from%length
		end := cycle + length - 1
		if end > to {
			end = to
		}
		for _, e := range pb.track.Events {
			at := cycle + int64(e.Tick)
			if at >= from && at <= end {
				p.emit(pb, e.Msg)
			}
		}
		from = end + 1
	}
}

func (p *ClockPlayer) emit(pb *playback, msg gomidi.Message) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		pb.hanging[uint16(ch)<<8|uint16(key)] = struct{}{}
	case msg.GetNoteEnd(&ch, &key):
		delete(pb.hanging, uint16(ch)<<8|uint16(key))
	}
	if err := p.send(msg); err != nil {
		debug.LogEvery(32, "player", "send %s: %v", pb.track.Name, err)
	}
}

// release sends a note off for every note the track left sounding
func (p *ClockPlayer) release(pb *playback) {
	keys := make([]int, 0, len(pb.hanging))
	for k := range pb.hanging {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)
	for _, k := range keys {
		p.emit(pb, gomidi.NoteOff(uint8(k>>8), uint8(k)))
	}
}
