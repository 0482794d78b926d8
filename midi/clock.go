package midi

import (
	"time"

	"k8s.io/utils/clock"
)

const (
	DefaultMicrotempo = 500000 // 120 BPM
	DefaultTimebase   = 24     // PPQN
)

// TickClock is a free-running MIDI clock measuring time in ticks.
// Changing tempo or timebase folds the ticks counted so far so Elapsed never
// jumps backwards.
type TickClock struct {
	clock      clock.PassiveClock
	started    bool
	origin     time.Time
	folded     uint64
	microtempo uint32
	timebase   uint32
}

func NewTickClock(c clock.PassiveClock) *TickClock {
	if c == nil {
		c = clock.RealClock{}
	}
	return &TickClock{
		clock:      c,
		microtempo: DefaultMicrotempo,
		timebase:   DefaultTimebase,
	}
}

// Start restarts the clock from zero
func (c *TickClock) Start() {
	c.started = true
	c.folded = 0
	c.origin = c.clock.Now()
}

// Stop freezes the clock at its current count
func (c *TickClock) Stop() {
	c.folded = c.Elapsed()
	c.started = false
}

func (c *TickClock) Started() bool {
	return c.started
}

func (c *TickClock) Elapsed() uint64 {
	if !c.started {
		return c.folded
	}
	return c.folded + DurationToTicks(c.clock.Since(c.origin), c.microtempo, c.timebase)
}

func (c *TickClock) fold() {
	if c.started {
		c.folded = c.Elapsed()
		c.origin = c.clock.Now()
	}
}

func (c *TickClock) Microtempo() uint32 {
	return c.microtempo
}

// SetMicrotempo sets the length of a quarter note in microseconds
func (c *TickClock) SetMicrotempo(us uint32) {
	if us == 0 {
		return
	}
	c.fold()
	c.microtempo = us
}

func (c *TickClock) Tempo() float64 {
	return MicrotempoToTempo(c.microtempo)
}

func (c *TickClock) SetTempo(bpm float64) {
	c.SetMicrotempo(TempoToMicrotempo(bpm))
}

func (c *TickClock) Timebase() uint32 {
	return c.timebase
}

func (c *TickClock) SetTimebase(ppqn uint32) {
	if ppqn == 0 {
		return
	}
	c.fold()
	c.timebase = ppqn
}

// DurationToTicks converts wall time into ticks at the given tempo
func DurationToTicks(d time.Duration, microtempo, timebase uint32) uint64 {
	if d <= 0 || microtempo == 0 {
		return 0
	}
	return uint64(d.Microseconds()) * uint64(timebase) / uint64(microtempo)
}

func MicrotempoToTempo(us uint32) float64 {
	if us == 0 {
		return 0
	}
	return 60000000.0 / float64(us)
}

func TempoToMicrotempo(bpm float64) uint32 {
	if bpm <= 0 {
		return 0
	}
	return uint32(60000000.0/bpm + 0.5)
}
