package midi

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"go-looper/debug"
)

// BaudRate is the MIDI 1.0 DIN serial rate
const BaudRate = 31250

// serialPollTimeout bounds how long HasBytes waits on the port
const serialPollTimeout = time.Millisecond

// SerialPort is a ByteSource over a serial device. HasBytes polls the port
// with a short timeout and keeps what it read; ReadByte blocks.
type SerialPort struct {
	port    serial.Port
	name    string
	buf     []byte
	pos     int
	n       int
	timeout time.Duration
}

// OpenSerial opens the named serial device at the given baud rate
// (BaudRate if zero).
func OpenSerial(name string, baud int) (*SerialPort, error) {
	if baud == 0 {
		baud = BaudRate
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s", name)
	}
	debug.Logger().WithField("device", name).WithField("baud", baud).Info("serial: port opened")
	return &SerialPort{
		port:    p,
		name:    name,
		buf:     make([]byte, 64),
		timeout: serial.NoTimeout,
	}, nil
}

// SerialPorts lists the serial devices present on the system
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

func (s *SerialPort) Name() string {
	return s.name
}

func (s *SerialPort) fill(timeout time.Duration) error {
	if timeout != s.timeout {
		if err := s.port.SetReadTimeout(timeout); err != nil {
			return errors.Wrap(err, "set read timeout")
		}
		s.timeout = timeout
	}
	n, err := s.port.Read(s.buf)
	s.pos, s.n = 0, n
	return err
}

func (s *SerialPort) HasBytes() bool {
	if s.pos < s.n {
		return true
	}
	if err := s.fill(serialPollTimeout); err != nil {
		debug.LogEvery(64, "serial", "poll %s: %v", s.name, err)
		return false
	}
	return s.pos < s.n
}

func (s *SerialPort) ReadByte() (byte, error) {
	if s.pos >= s.n {
		if err := s.fill(serial.NoTimeout); err != nil {
			return 0, err
		}
		if s.n == 0 {
			return 0, io.EOF
		}
	}
	b := s.buf[s.pos]
	s.pos++
	return b, nil
}

func (s *SerialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialPort) Close() error {
	debug.Logger().WithField("device", s.name).Info("serial: closing port")
	return s.port.Close()
}
