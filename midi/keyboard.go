package midi

import (
	"sync"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-looper/debug"
)

// KeyboardController handles a standard MIDI keyboard
type KeyboardController struct {
	id       string
	stopFunc func()

	mu       sync.Mutex
	closed   bool
	noteChan chan NoteEvent
}

// NewKeyboardController listens on inPort (input only)
func NewKeyboardController(id string, inPort drivers.In) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:       id,
		noteChan: make(chan NoteEvent, QueueSize),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, kb.handle)
		if err != nil {
			return nil, errors.Wrap(err, "open input")
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

func (kb *KeyboardController) handle(msg gomidi.Message, timestampms int32) {
	ev, ok := NoteFromMessage(msg)
	if !ok {
		return
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.closed {
		return
	}
	select {
	case kb.noteChan <- ev:
	default:
		debug.LogEvery(16, "keyboard", "%s: note channel full, dropped %v", kb.id, ev)
	}
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

func (kb *KeyboardController) NoteEvents() <-chan NoteEvent {
	return kb.noteChan
}

func (kb *KeyboardController) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if !kb.closed {
		kb.closed = true
		close(kb.noteChan)
	}
	return nil
}
