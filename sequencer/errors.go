package sequencer

import "github.com/pkg/errors"

// ErrInvalidArgument is returned for out-of-range track indices and for a
// quantizer built without a usable player.
var ErrInvalidArgument = errors.New("invalid argument")
