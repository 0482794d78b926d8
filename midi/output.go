package midi

import (
	"io"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Output writes messages to a serial MIDI line
type Output struct {
	w io.Writer
}

func NewOutput(w io.Writer) *Output {
	return &Output{w: w}
}

// Send writes msg as raw bytes. File-only meta events are skipped and an
// unterminated sysex frame gets its closing F7.
func (o *Output) Send(msg gomidi.Message) error {
	if len(msg) == 0 || (msg[0] == 0xFF && len(msg) > 1) {
		return nil
	}
	if msg[0] == 0xF0 && msg[len(msg)-1] != 0xF7 {
		msg = append(msg[:len(msg):len(msg)], 0xF7)
	}
	_, err := o.w.Write(msg)
	return err
}
