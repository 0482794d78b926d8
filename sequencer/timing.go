package sequencer

// Timing classifies a trigger against the leader's beat grid
type Timing int

const (
	TimingNone  Timing = -2
	TimingEarly Timing = -1
	TimingExact Timing = 0
	TimingLate  Timing = 1
)

func (t Timing) String() string {
	switch t {
	case TimingEarly:
		return "early"
	case TimingExact:
		return "exact"
	case TimingLate:
		return "late"
	default:
		return "none"
	}
}
