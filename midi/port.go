package midi

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// maxPortBacklog bounds the bytes a PortReader holds for a slow consumer
const maxPortBacklog = 4096

// PortReader is a ByteSource fed by a MIDI input port. Every message the
// driver delivers is appended as raw bytes, so USB and virtual ports run
// through the same Decoder and Source as a serial line.
type PortReader struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
	stop   func()
	name   string
}

// ListenPort starts listening on in
func ListenPort(in drivers.In) (*PortReader, error) {
	r := newPortReader(in.String())

	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		r.push(msg)
	}, gomidi.UseSysEx())
	if err != nil {
		return nil, errors.Wrapf(err, "listen %q", r.name)
	}
	r.stop = stop
	return r, nil
}

// OpenPort finds an input port by name and listens on it
func OpenPort(name string) (*PortReader, error) {
	in, err := gomidi.FindInPort(name)
	if err != nil {
		return nil, errors.Wrapf(err, "find input %q", name)
	}
	return ListenPort(in)
}

func newPortReader(name string) *PortReader {
	r := &PortReader{name: name}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *PortReader) push(msg gomidi.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.buf)+len(msg) > maxPortBacklog {
		return
	}
	r.buf = append(r.buf, msg...)
	r.cond.Broadcast()
}

func (r *PortReader) Name() string {
	return r.name
}

func (r *PortReader) HasBytes() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf) > 0
}

// ReadByte blocks until a byte arrives or the reader is closed
func (r *PortReader) ReadByte() (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.buf) == 0 && !r.closed {
		r.cond.Wait()
	}
	if len(r.buf) == 0 {
		return 0, io.EOF
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}

func (r *PortReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.stop != nil {
		r.stop()
	}
	r.cond.Broadcast()
	return nil
}
