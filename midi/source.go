package midi

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"k8s.io/utils/clock"

	"go-looper/debug"
)

// stream is the decode-and-buffer plumbing shared by Input and Source.
// Update and Receive are meant for a single polling goroutine.
type stream struct {
	src           ByteSource
	decoder       *Decoder
	queue         *Queue
	runningStatus bool
}

func newStream(src ByteSource) stream {
	return stream{
		src:           src,
		decoder:       NewDecoder(),
		queue:         NewQueue(QueueSize),
		runningStatus: true,
	}
}

// SetRunningStatus controls whether data bytes may reuse the last status
func (s *stream) SetRunningStatus(allowed bool) {
	s.runningStatus = allowed
}

// Available reports buffered events or unread bytes
func (s *stream) Available() bool {
	return !s.queue.Empty() || s.src.HasBytes()
}

// Buffered returns the number of decoded events waiting to be received
func (s *stream) Buffered() int {
	return s.queue.Len()
}

// poll decodes one message if the source has bytes. Malformed input is
// dropped; byte source errors are returned as is.
func (s *stream) poll() (gomidi.Message, error) {
	if !s.src.HasBytes() {
		return nil, nil
	}
	msg, err := s.decoder.DecodeMessage(s.runningStatus, s.src)
	if errors.Is(err, ErrUnknown) {
		debug.LogEvery(16, "midi", "dropped malformed input")
		return nil, nil
	}
	return msg, err
}

// wait spins on update until an event is queued. There is no backoff; the
// loop yields to other goroutines between polls. Cancel ctx to stop waiting.
func (s *stream) wait(ctx context.Context, update func() error) (Event, error) {
	for s.queue.Empty() {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		if err := update(); err != nil {
			return Event{}, err
		}
		if s.queue.Empty() {
			runtime.Gosched()
		}
	}
	e, ok := s.queue.Get()
	if !ok {
		return Event{}, ErrEndOfStream
	}
	return e, nil
}

// Input decodes a byte source into plain messages with no timing
type Input struct {
	stream
}

func NewInput(src ByteSource) *Input {
	return &Input{stream: newStream(src)}
}

// Update decodes at most one message into the queue, dropping the oldest
// queued message if it is full.
func (in *Input) Update() error {
	msg, err := in.poll()
	if err != nil || msg == nil {
		return err
	}
	in.queue.Put(Event{Message: msg})
	return nil
}

// Receive blocks until a message is available
func (in *Input) Receive(ctx context.Context) (gomidi.Message, error) {
	e, err := in.wait(ctx, in.Update)
	if err != nil {
		return nil, err
	}
	return e.Message, nil
}

// Source decodes a byte source into events stamped by a free-running tick
// clock. The clock starts when the source is created.
type Source struct {
	stream
	clock    *TickClock
	lastTick uint64
}

func NewSource(src ByteSource, c clock.PassiveClock) *Source {
	s := &Source{
		stream: newStream(src),
		clock:  NewTickClock(c),
	}
	s.clock.Start()
	return s
}

// Update decodes at most one message, stamps it, and queues it, dropping the
// oldest queued event if it is full.
func (s *Source) Update() error {
	msg, err := s.poll()
	if err != nil || msg == nil {
		return err
	}
	now := s.clock.Elapsed()
	s.queue.Put(Event{
		Message:  msg,
		Delta:    now - s.lastTick,
		Absolute: now,
	})
	s.lastTick = now
	return nil
}

// Receive blocks until an event is available
func (s *Source) Receive(ctx context.Context) (Event, error) {
	return s.wait(ctx, s.Update)
}

// Reset restarts the clock from zero and discards every buffered event
func (s *Source) Reset() {
	s.clock.Stop()
	s.clock.Start()
	s.queue.Clear()
	s.lastTick = 0
}

func (s *Source) Elapsed() uint64 {
	return s.clock.Elapsed()
}

func (s *Source) Tempo() float64          { return s.clock.Tempo() }
func (s *Source) SetTempo(bpm float64)    { s.clock.SetTempo(bpm) }
func (s *Source) Microtempo() uint32      { return s.clock.Microtempo() }
func (s *Source) SetMicrotempo(us uint32) { s.clock.SetMicrotempo(us) }
func (s *Source) Timebase() uint32        { return s.clock.Timebase() }
func (s *Source) SetTimebase(ppqn uint32) { s.clock.SetTimebase(ppqn) }
