package midi

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerKeyboard
	ControllerPort
)

func (t ControllerType) String() string {
	switch t {
	case ControllerKeyboard:
		return "keyboard"
	case ControllerPort:
		return "port"
	default:
		return "unknown"
	}
}

// Controller is a MIDI input device that plays notes
type Controller interface {
	ID() string
	Type() ControllerType

	// NoteEvents delivers presses and releases until Close
	NoteEvents() <-chan NoteEvent

	Close() error
}
