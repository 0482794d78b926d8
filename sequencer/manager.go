package sequencer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-looper/debug"
	"go-looper/midi"
)

// Player update rate
const updateInterval = 2 * time.Millisecond

// UI refresh rate
const uiFPS = 30

// TrackStatus is one track as seen by the UI
type TrackStatus struct {
	Name     string
	Note     uint8
	Channel  uint8
	Timebase uint32
	Length   uint64
	Started  bool
	Leader   bool
	Elapsed  uint64
	Advance  int64
}

// Snapshot is a copy of the looper state, safe to read from any goroutine
type Snapshot struct {
	Tracks         []TrackStatus
	Leader         int // NoLeader if none
	QuantizeBeats  uint32
	LastTiming     Timing
	LastKeyElapsed uint64
	Tempo          float64
}

// EventReceiver is a stamped event stream such as *midi.Source
type EventReceiver interface {
	Receive(ctx context.Context) (midi.Event, error)
}

// Manager owns the player and the quantizer. Every Start and Stop runs on
// the goroutine inside Run; the other methods only queue work for it.
type Manager struct {
	player    *ClockPlayer
	quantizer *Quantizer
	notes     map[uint8]int // trigger note -> track

	cmds chan func()

	mu   sync.RWMutex
	snap Snapshot

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager creates a manager for the player's tracks. Trigger notes must
// be distinct.
func NewManager(player *ClockPlayer) (*Manager, error) {
	q, err := NewQuantizer(player)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		player:     player,
		quantizer:  q,
		notes:      make(map[uint8]int),
		cmds:       make(chan func(), 64),
		UpdateChan: make(chan struct{}, 1),
	}
	for i, t := range player.tracks {
		if prev, dup := m.notes[t.track.Note]; dup {
			return nil, errors.Wrapf(ErrInvalidArgument, "tracks %d and %d share trigger note %d", prev, i, t.track.Note)
		}
		m.notes[t.track.Note] = i
	}
	m.refresh()
	return m, nil
}

// Snapshot returns the state as of the last refresh
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snap
	s.Tracks = append([]TrackStatus(nil), m.snap.Tracks...)
	return s
}

func (m *Manager) enqueue(what string, f func()) {
	select {
	case m.cmds <- f:
	default:
		debug.Log("manager", "command queue full, dropped %s", what)
	}
}

// Trigger starts or stops a track
func (m *Manager) Trigger(track int, on bool) {
	m.enqueue("trigger", func() {
		if on {
			m.start(track)
		} else {
			m.stop(track)
		}
	})
}

// Toggle starts a stopped track or stops a playing one
func (m *Manager) Toggle(track int) {
	m.enqueue("toggle", func() { m.toggle(track) })
}

// HandleNote toggles the track whose trigger note was pressed. Releases and
// unmapped notes are ignored.
func (m *Manager) HandleNote(ev midi.NoteEvent) {
	if !ev.On {
		return
	}
	track, ok := m.notes[ev.Note]
	if !ok {
		return
	}
	m.Toggle(track)
}

func (m *Manager) SetQuantizeBeats(beats int) {
	m.enqueue("beats", func() { m.quantizer.SetQuantizeBeats(beats) })
}

// NudgeQuantizeBeats changes the window by delta beats
func (m *Manager) NudgeQuantizeBeats(delta int) {
	m.enqueue("beats", func() {
		m.quantizer.SetQuantizeBeats(int(m.quantizer.QuantizeBeats()) + delta)
	})
}

func (m *Manager) SetTempo(bpm float64) {
	m.enqueue("tempo", func() { m.player.SetTempo(bpm) })
}

// Tempo range for NudgeTempo
const (
	MinTempo = 20
	MaxTempo = 300
)

// NudgeTempo changes the tempo by delta bpm, clamped to MinTempo..MaxTempo
func (m *Manager) NudgeTempo(delta float64) {
	m.enqueue("tempo", func() {
		bpm := m.player.Tempo() + delta
		switch {
		case bpm < MinTempo:
			bpm = MinTempo
		case bpm > MaxTempo:
			bpm = MaxTempo
		}
		m.player.SetTempo(bpm)
	})
}

// StopAll stops every playing track
func (m *Manager) StopAll() {
	m.enqueue("stop all", m.stopAll)
}

// SetMIDIInput forwards a controller's notes until its channel closes
func (m *Manager) SetMIDIInput(ctrl midi.Controller) {
	if ctrl == nil {
		return
	}
	go func() {
		for evt := range ctrl.NoteEvents() {
			m.HandleNote(evt)
		}
		debug.Log("manager", "input %s closed", ctrl.ID())
	}()
}

// ReadSource forwards notes from src until ctx ends or src fails
func (m *Manager) ReadSource(ctx context.Context, src EventReceiver) error {
	for {
		e, err := src.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read midi source")
		}
		if ev, ok := midi.NoteFromMessage(e.Message); ok {
			debug.Log("input", "note=%d on=%v tick=%d", ev.Note, ev.On, e.Absolute)
			m.HandleNote(ev)
		}
	}
}

// Run serves queued commands and plays the tracks until ctx is done, then
// stops everything.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(updateInterval)
	uiTicker := time.NewTicker(time.Second / uiFPS)
	defer ticker.Stop()
	defer uiTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.stopAll()
			m.refresh()
			m.notifyUpdate()
			return
		case f := <-m.cmds:
			f()
			m.player.Update()
			m.refresh()
			m.notifyUpdate()
		case <-ticker.C:
			m.player.Update()
		case <-uiTicker.C:
			m.refresh()
			m.notifyUpdate()
		}
	}
}

func (m *Manager) start(track int) {
	if err := m.quantizer.Start(track); err != nil {
		debug.Logger().WithError(err).WithField("track", track).Warn("manager: start failed")
		return
	}
	leader, _ := m.quantizer.Leader()
	debug.Logger().WithFields(logrus.Fields{
		"track":   track,
		"leader":  leader,
		"timing":  m.quantizer.LastTiming().String(),
		"advance": m.quantizer.Advance(track),
		"key":     m.quantizer.LastKeyElapsed(),
	}).Debug("manager: track started")
}

func (m *Manager) stop(track int) {
	if err := m.quantizer.Stop(track); err != nil {
		debug.Logger().WithError(err).WithField("track", track).Warn("manager: stop failed")
		return
	}
	debug.Log("manager", "track %d stopped", track)
}

func (m *Manager) toggle(track int) {
	if m.player.Started(track) {
		m.stop(track)
	} else {
		m.start(track)
	}
}

func (m *Manager) stopAll() {
	for i := 0; i < m.player.TracksCount(); i++ {
		if m.player.Started(i) {
			m.stop(i)
		}
	}
}

// refresh rebuilds the snapshot; it must run where the quantizer runs
func (m *Manager) refresh() {
	leader, _ := m.quantizer.Leader()
	s := Snapshot{
		Tracks:         make([]TrackStatus, m.player.TracksCount()),
		Leader:         leader,
		QuantizeBeats:  m.quantizer.QuantizeBeats(),
		LastTiming:     m.quantizer.LastTiming(),
		LastKeyElapsed: m.quantizer.LastKeyElapsed(),
		Tempo:          m.player.Tempo(),
	}
	for i := range s.Tracks {
		t, _ := m.player.Track(i)
		s.Tracks[i] = TrackStatus{
			Name:     t.Name,
			Note:     t.Note,
			Channel:  t.Channel,
			Timebase: t.Timebase,
			Length:   t.Length,
			Started:  m.player.Started(i),
			Leader:   i == leader,
			Elapsed:  m.player.Elapsed(i),
			Advance:  m.quantizer.Advance(i),
		}
	}
	m.mu.Lock()
	m.snap = s
	m.mu.Unlock()
}

func (m *Manager) notifyUpdate() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}
