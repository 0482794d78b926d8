package midi

import (
	"io"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MaxSysExSize bounds the bytes buffered for one system exclusive frame
const MaxSysExSize = 1024

// ByteSource is a serial-style stream that can report pending bytes
type ByteSource interface {
	io.ByteReader
	HasBytes() bool
}

// Decoder turns a raw MIDI byte stream into messages. It keeps running
// status and any half-read message between calls, so a read error in the
// middle of a message loses nothing: the next call picks up where this one
// stopped.
type Decoder struct {
	running  byte   // last channel status, 0 if none
	pending  byte   // status byte that closed a sysex frame
	buf      []byte // message under construction
	need     int    // data bytes still missing
	deferred []byte // realtime bytes that arrived inside another message
	skipping bool   // discarding the rest of an oversized sysex frame
}

func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, 0, 3)}
}

// Reset drops running status and any partial message
func (d *Decoder) Reset() {
	d.running = 0
	d.pending = 0
	d.buf = d.buf[:0]
	d.need = 0
	d.deferred = d.deferred[:0]
	d.skipping = false
}

// DecodeMessage reads bytes from r until one complete message is available.
// A data byte with no status in effect yields ErrUnknown; it reuses the last
// channel status only when runningStatus is set. Errors from r are returned
// unchanged.
func (d *Decoder) DecodeMessage(runningStatus bool, r io.ByteReader) (gomidi.Message, error) {
	if len(d.deferred) > 0 {
		b := d.deferred[0]
		d.deferred = d.deferred[1:]
		return gomidi.Message{b}, nil
	}
	for {
		var b byte
		if d.pending != 0 {
			b, d.pending = d.pending, 0
		} else {
			var err error
			if b, err = r.ReadByte(); err != nil {
				return nil, err
			}
		}
		msg, err := d.feed(runningStatus, b)
		if err != nil || msg != nil {
			return msg, err
		}
	}
}

func (d *Decoder) inSysEx() bool {
	return len(d.buf) > 0 && d.buf[0] == 0xF0
}

func (d *Decoder) feed(runningStatus bool, b byte) (gomidi.Message, error) {
	switch {
	case b >= 0xF8:
		if len(d.buf) == 0 {
			return gomidi.Message{b}, nil
		}
		d.deferred = append(d.deferred, b)
		return nil, nil

	case d.skipping:
		if b < 0x80 || b == 0xF7 {
			if b == 0xF7 {
				d.skipping = false
			}
			return nil, nil
		}
		d.skipping = false
		return d.begin(b), nil

	case d.inSysEx() && b >= 0x80:
		d.buf = append(d.buf, 0xF7)
		msg := d.take()
		if b != 0xF7 {
			d.pending = b
		}
		return msg, nil

	case b >= 0x80:
		// a new status abandons whatever was half-read
		d.buf = d.buf[:0]
		return d.begin(b), nil
	}

	if len(d.buf) == 0 {
		if !runningStatus || d.running == 0 {
			return nil, ErrUnknown
		}
		d.buf = append(d.buf, d.running)
		d.need = channelDataLen(d.running)
	}
	if d.inSysEx() {
		if len(d.buf) >= MaxSysExSize {
			// the rest of the frame is dropped up to its end
			d.buf = d.buf[:0]
			d.skipping = true
			return nil, ErrUnknown
		}
		d.buf = append(d.buf, b)
		return nil, nil
	}
	d.buf = append(d.buf, b)
	d.need--
	if d.need > 0 {
		return nil, nil
	}
	return d.take(), nil
}

func (d *Decoder) begin(status byte) gomidi.Message {
	switch {
	case status == 0xF0:
		d.running = 0
		d.buf = append(d.buf, status)
		return nil
	case status > 0xF0:
		d.running = 0
		d.need = systemDataLen(status)
	default:
		d.running = status
		d.need = channelDataLen(status)
	}
	d.buf = append(d.buf, status)
	if d.need == 0 {
		return d.take()
	}
	return nil
}

func (d *Decoder) take() gomidi.Message {
	msg := make(gomidi.Message, len(d.buf))
	copy(msg, d.buf)
	d.buf = d.buf[:0]
	d.need = 0
	return msg
}

func channelDataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

func systemDataLen(status byte) int {
	switch status {
	case 0xF1, 0xF3:
		return 1
	case 0xF2:
		return 2
	default:
		return 0
	}
}
