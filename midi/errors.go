package midi

import "github.com/pkg/errors"

var (
	// ErrUnknown reports a byte stream that could not be decoded into a message
	ErrUnknown = errors.New("malformed midi stream")

	// ErrEndOfStream is returned when a wait for an event ends with nothing to read
	ErrEndOfStream = errors.New("end of stream")
)
