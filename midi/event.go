package midi

import gomidi "gitlab.com/gomidi/midi/v2"

// Event is a decoded message stamped with stream ticks
type Event struct {
	Message  gomidi.Message
	Delta    uint64 // ticks since the previous event on the stream
	Absolute uint64 // ticks since the source was started or reset
}

// NoteEvent is sent when a note is pressed or released on a keyboard
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
	On       bool
}

// NoteFromMessage extracts a note press or release from msg
func NoteFromMessage(msg gomidi.Message) (NoteEvent, bool) {
	var channel, note, velocity uint8
	if msg.GetNoteStart(&channel, &note, &velocity) {
		return NoteEvent{Note: note, Velocity: velocity, Channel: channel, On: true}, true
	}
	if msg.GetNoteEnd(&channel, &note) {
		return NoteEvent{Note: note, Channel: channel}, true
	}
	return NoteEvent{}, false
}
