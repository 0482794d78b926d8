package sequencer

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlayer records commands and serves elapsed ticks set by the test
type fakePlayer struct {
	elapsed  []uint64
	timebase []uint32
	started  []bool
	offsets  []int64
	startErr error
	stopErr  error
}

func newFakePlayer(n int, timebase uint32) *fakePlayer {
	p := &fakePlayer{
		elapsed:  make([]uint64, n),
		timebase: make([]uint32, n),
		started:  make([]bool, n),
		offsets:  make([]int64, n),
	}
	for i := range p.timebase {
		p.timebase[i] = timebase
	}
	return p
}

func (p *fakePlayer) TracksCount() int      { return len(p.elapsed) }
func (p *fakePlayer) Elapsed(i int) uint64  { return p.elapsed[i] }
func (p *fakePlayer) Timebase(i int) uint32 { return p.timebase[i] }
func (p *fakePlayer) Started(i int) bool    { return p.started[i] }

func (p *fakePlayer) Start(i int, offset int64) error {
	if p.startErr != nil {
		return p.startErr
	}
	p.started[i] = true
	p.offsets[i] = offset
	return nil
}

func (p *fakePlayer) Stop(i int) error {
	if p.stopErr != nil {
		return p.stopErr
	}
	p.started[i] = false
	return nil
}

func TestNewQuantizer(t *testing.T) {
	t.Parallel()

	_, err := NewQuantizer(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewQuantizer(newFakePlayer(0, 960))
	require.ErrorIs(t, err, ErrInvalidArgument)

	q, err := NewQuantizer(newFakePlayer(4, 960))
	require.NoError(t, err)
	assert.Equal(t, uint32(DefaultQuantizeBeats), q.QuantizeBeats())
	assert.Equal(t, TimingNone, q.LastTiming())
	_, ok := q.Leader()
	assert.False(t, ok)
}

func TestSetQuantizeBeatsIgnoresOutOfRange(t *testing.T) {
	t.Parallel()

	q, err := NewQuantizer(newFakePlayer(1, 960))
	require.NoError(t, err)

	q.SetQuantizeBeats(200)
	require.Equal(t, uint32(4), q.QuantizeBeats())
	q.SetQuantizeBeats(-1)
	require.Equal(t, uint32(4), q.QuantizeBeats())

	q.SetQuantizeBeats(128)
	require.Equal(t, uint32(128), q.QuantizeBeats())
	q.SetQuantizeBeats(0)
	require.Equal(t, uint32(0), q.QuantizeBeats())

	q.SetQuantizeBeats(200)
	q.SetQuantizeBeats(4)
	require.Equal(t, uint32(4), q.QuantizeBeats())
}

func TestFirstStartBecomesLeader(t *testing.T) {
	t.Parallel()

	p := newFakePlayer(4, 960)
	p.elapsed[2] = 777
	q, err := NewQuantizer(p)
	require.NoError(t, err)

	require.NoError(t, q.Start(2))
	leader, ok := q.Leader()
	require.True(t, ok)
	assert.Equal(t, 2, leader)
	assert.Equal(t, TimingExact, q.LastTiming())
	assert.Equal(t, int64(0), q.Advance(2))
	assert.Equal(t, int64(0), p.offsets[2])
	assert.Equal(t, uint64(777), q.LastKeyElapsed())
}

func TestStartWithQuantizeDisabled(t *testing.T) {
	t.Parallel()

	p := newFakePlayer(2, 960)
	q, err := NewQuantizer(p)
	require.NoError(t, err)
	q.SetQuantizeBeats(0)

	require.NoError(t, q.Start(0))
	p.elapsed[0] = 1000
	require.NoError(t, q.Start(1))

	assert.Equal(t, TimingExact, q.LastTiming())
	assert.Equal(t, int64(0), q.Advance(1))
	leader, _ := q.Leader()
	assert.Equal(t, 1, leader)
}

func TestStartLate(t *testing.T) {
	t.Parallel()

	p := newFakePlayer(2, 960)
	q, err := NewQuantizer(p)
	require.NoError(t, err)
	q.SetQuantizeBeats(1)

	require.NoError(t, q.Start(0))
	p.elapsed[0] = 1000
	require.NoError(t, q.Start(1))

	assert.Equal(t, TimingLate, q.LastTiming())
	assert.Equal(t, int64(40), p.offsets[1])
	assert.Equal(t, int64(40), q.Advance(1))
	leader, _ := q.Leader()
	assert.Equal(t, 0, leader)
}

func TestStartEarly(t *testing.T) {
	t.Parallel()

	p := newFakePlayer(2, 960)
	q, err := NewQuantizer(p)
	require.NoError(t, err)
	q.SetQuantizeBeats(1)

	require.NoError(t, q.Start(0))
	p.elapsed[0] = 1900
	require.NoError(t, q.Start(1))

	assert.Equal(t, TimingEarly, q.LastTiming())
	assert.Equal(t, int64(-20), p.offsets[1])
	assert.Equal(t, int64(-20), q.Advance(1))
}

func TestStartExact(t *testing.T) {
	t.Parallel()

	p := newFakePlayer(2, 96)
	q, err := NewQuantizer(p)
	require.NoError(t, err)

	require.NoError(t, q.Start(0))
	p.elapsed[0] = 96 * 4 * 3
	require.NoError(t, q.Start(1))

	assert.Equal(t, TimingExact, q.LastTiming())
	assert.Equal(t, int64(0), p.offsets[1])
}

func TestLeaderAdvanceIsSubtracted(t *testing.T) {
	t.Parallel()

	p := newFakePlayer(3, 960)
	q, err := NewQuantizer(p)
	require.NoError(t, err)
	q.SetQuantizeBeats(1)

	require.NoError(t, q.Start(0))
	p.elapsed[0] = 1000
	require.NoError(t, q.Start(1)) // late, advance 40
	require.NoError(t, q.Stop(0))

	leader, _ := q.Leader()
	require.Equal(t, 1, leader)

	// (1000 - 40) mod 960 == 0
	p.elapsed[1] = 1000
	require.NoError(t, q.Start(2))
	assert.Equal(t, TimingExact, q.LastTiming())
	assert.Equal(t, int64(0), q.Advance(2))

	// negative advance adds back: (100 + 20) mod 960 == 120
	require.NoError(t, q.Stop(1))
	require.NoError(t, q.Stop(2))
	require.NoError(t, q.Start(0))
	p.elapsed[0] = 1900
	require.NoError(t, q.Start(1)) // early, advance -20
	require.NoError(t, q.Stop(0))
	p.elapsed[1] = 100
	require.NoError(t, q.Start(2))
	assert.Equal(t, TimingLate, q.LastTiming())
	assert.Equal(t, int64(120), q.Advance(2))
}

func TestSnapBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		phase, window int64
		offset        int64
		timing        Timing
	}{
		{0, 960, 0, TimingExact},
		{1, 960, 1, TimingLate},
		{480, 960, 480, TimingLate},
		{481, 960, -479, TimingEarly},
		{959, 960, -1, TimingEarly},
		{1, 3, 1, TimingLate},
		{2, 3, -1, TimingEarly},
	}
	for _, tt := range tests {
		offset, timing := Snap(tt.phase, tt.window)
		assert.Equal(t, tt.offset, offset, "phase %d window %d", tt.phase, tt.window)
		assert.Equal(t, tt.timing, timing, "phase %d window %d", tt.phase, tt.window)
	}
}

func TestStartInvalidIndex(t *testing.T) {
	t.Parallel()

	q, err := NewQuantizer(newFakePlayer(2, 960))
	require.NoError(t, err)
	require.ErrorIs(t, q.Start(2), ErrInvalidArgument)
	require.ErrorIs(t, q.Start(-1), ErrInvalidArgument)
	require.ErrorIs(t, q.Stop(5), ErrInvalidArgument)
}

func TestPlayerErrorsLeaveStateUntouched(t *testing.T) {
	t.Parallel()

	deviceErr := errors.New("device error")
	p := newFakePlayer(2, 960)
	q, err := NewQuantizer(p)
	require.NoError(t, err)
	q.SetQuantizeBeats(1)

	p.startErr = deviceErr
	require.Equal(t, deviceErr, q.Start(0))
	_, ok := q.Leader()
	require.False(t, ok)
	require.Equal(t, TimingNone, q.LastTiming())

	p.startErr = nil
	require.NoError(t, q.Start(0))
	p.elapsed[0] = 1000
	p.startErr = deviceErr
	require.Equal(t, deviceErr, q.Start(1))
	assert.Equal(t, int64(0), q.Advance(1))
	assert.Equal(t, TimingExact, q.LastTiming())

	p.startErr = nil
	p.stopErr = deviceErr
	require.Equal(t, deviceErr, q.Stop(0))
	leader, ok := q.Leader()
	require.True(t, ok)
	assert.Equal(t, 0, leader)
}

func TestStopReelectsLowestStarted(t *testing.T) {
	t.Parallel()

	p := newFakePlayer(4, 960)
	q, err := NewQuantizer(p)
	require.NoError(t, err)

	require.NoError(t, q.Start(2))
	require.NoError(t, q.Start(3))
	require.NoError(t, q.Start(1))

	// non-leader stop keeps the leader
	require.NoError(t, q.Stop(3))
	leader, _ := q.Leader()
	require.Equal(t, 2, leader)

	require.NoError(t, q.Stop(2))
	leader, _ = q.Leader()
	require.Equal(t, 1, leader)

	require.NoError(t, q.Stop(1))
	_, ok := q.Leader()
	require.False(t, ok)

	// next start after the grid collapsed becomes the leader again
	p.elapsed[0] = 12345
	require.NoError(t, q.Start(0))
	leader, _ = q.Leader()
	require.Equal(t, 0, leader)
	require.Equal(t, TimingExact, q.LastTiming())
}

func TestLeaderInvariantUnderRandomOps(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{1, 2, 5, 8} {
		p := newFakePlayer(n, 96)
		q, err := NewQuantizer(p)
		require.NoError(t, err)
		q.SetQuantizeBeats(rng.Intn(5))

		for step := 0; step < 500; step++ {
			for i := range p.elapsed {
				p.elapsed[i] += uint64(rng.Intn(200))
			}
			i := rng.Intn(n)
			if rng.Intn(2) == 0 {
				require.NoError(t, q.Start(i))
			} else {
				require.NoError(t, q.Stop(i))
			}

			leader, ok := q.Leader()
			if ok {
				require.True(t, p.Started(leader), "leader %d not started", leader)
			} else {
				for j := 0; j < n; j++ {
					require.False(t, p.Started(j))
				}
			}
		}
	}
}
