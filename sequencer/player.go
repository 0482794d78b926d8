package sequencer

// Player is the track playback engine the quantizer drives.
//
// Elapsed is only meaningful while Started holds since the most recent Start.
// Start positions the track at offset ticks; a negative offset delays the
// track so it lands on the next grid boundary.
type Player interface {
	TracksCount() int
	Elapsed(i int) uint64
	Timebase(i int) uint32 // ticks per beat
	Started(i int) bool
	Start(i int, offset int64) error
	Stop(i int) error
}
