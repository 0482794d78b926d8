package sequencer

// NoLeader is the leader index reported while no track is playing
const NoLeader = -1

const (
	DefaultQuantizeBeats = 4
	MaxQuantizeBeats     = 128
)

// Quantizer decides where a newly triggered track starts so it stays locked
// to the leader's beat grid.
//
// The first track started while there is no leader (or while quantizing is
// off) becomes the leader and plays unperturbed. Every later start is snapped
// to the nearest window boundary of the leader, where the window is the
// leader's timebase times the configured beat count.
//
// A Quantizer is not safe for concurrent use; Manager serializes access.
type Quantizer struct {
	player        Player
	advance       []int64 // correction applied at each track's last start
	leader        int
	quantizeBeats uint32

	lastTiming     Timing
	lastKeyElapsed uint64
}

// NewQuantizer creates a quantizer for every track the player exposes
func NewQuantizer(p Player) (*Quantizer, error) {
	if p == nil || p.TracksCount() <= 0 {
		return nil, ErrInvalidArgument
	}
	return &Quantizer{
		player:        p,
		advance:       make([]int64, p.TracksCount()),
		leader:        NoLeader,
		quantizeBeats: DefaultQuantizeBeats,
		lastTiming:    TimingNone,
	}, nil
}

func (q *Quantizer) Player() Player {
	return q.player
}

func (q *Quantizer) QuantizeBeats() uint32 {
	return q.quantizeBeats
}

// SetQuantizeBeats sets the window length in beats. Values outside
// 0..MaxQuantizeBeats are ignored. Zero disables quantizing.
func (q *Quantizer) SetQuantizeBeats(value int) {
	if value < 0 || value > MaxQuantizeBeats {
		return
	}
	q.quantizeBeats = uint32(value)
}

// Leader returns the index of the track the grid follows
func (q *Quantizer) Leader() (int, bool) {
	return q.leader, q.leader != NoLeader
}

// Advance returns the correction applied to track i at its last start
func (q *Quantizer) Advance(i int) int64 {
	if i < 0 || i >= len(q.advance) {
		return 0
	}
	return q.advance[i]
}

func (q *Quantizer) LastTiming() Timing {
	return q.lastTiming
}

// LastKeyElapsed is the triggered track's own elapsed ticks at the moment of
// the most recent Start. Informational only.
func (q *Quantizer) LastKeyElapsed() uint64 {
	return q.lastKeyElapsed
}

func (q *Quantizer) validIndex(i int) bool {
	return i >= 0 && i < len(q.advance)
}

// Start triggers track i, aligned to the leader's grid.
// Player errors are returned unchanged and leave the quantizer untouched.
func (q *Quantizer) Start(i int) error {
	if !q.validIndex(i) {
		return ErrInvalidArgument
	}
	q.lastKeyElapsed = q.player.Elapsed(i)

	if q.quantizeBeats == 0 || q.leader == NoLeader {
		if err := q.player.Start(i, 0); err != nil {
			return err
		}
		q.advance[i] = 0
		q.leader = i
		q.lastTiming = TimingExact
		return nil
	}

	offset, timing := q.align()
	if err := q.player.Start(i, offset); err != nil {
		return err
	}
	q.advance[i] = offset
	q.lastTiming = timing
	return nil
}

// align computes the start offset for a new track against the current leader
func (q *Quantizer) align() (int64, Timing) {
	window := int64(q.player.Timebase(q.leader)) * int64(q.quantizeBeats)
	if window <= 0 {
		return 0, TimingExact
	}
	since := int64(q.player.Elapsed(q.leader)) - q.advance[q.leader]
	phase := since % window
	if phase < 0 {
		phase += window
	}
	return Snap(phase, window)
}

// Snap rounds phase (0 <= phase < window) to the nearest window boundary.
// Ties go to the past boundary.
func Snap(phase, window int64) (int64, Timing) {
	switch {
	case phase > window-phase:
		return phase - window, TimingEarly
	case phase != 0:
		return phase, TimingLate
	default:
		return 0, TimingExact
	}
}

// Stop halts track i. Stopping the leader hands leadership to the
// lowest-indexed track still playing, or clears it.
func (q *Quantizer) Stop(i int) error {
	if !q.validIndex(i) {
		return ErrInvalidArgument
	}
	if err := q.player.Stop(i); err != nil {
		return err
	}
	if i == q.leader {
		q.leader = NoLeader
		for j := range q.advance {
			if q.player.Started(j) {
				q.leader = j
				break
			}
		}
	}
	return nil
}
