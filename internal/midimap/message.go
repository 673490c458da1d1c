package midimap

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// MessageKind is the decoded type of a channel message.
type MessageKind string

const (
	ControlChange MessageKind = "control_change"
	NoteOn        MessageKind = "note_on"
)

// Message is a decoded control-surface message. Channel is 1-based.
// Note off arrives as NoteOn with Value 0.
type Message struct {
	Kind    MessageKind
	Channel int
	Control int
	Value   int
}

func (m Message) String() string {
	return fmt.Sprintf("%s ch %d #%d = %d", m.Kind, m.Channel, m.Control, m.Value)
}

// Decode parses a raw 3-byte channel message. Anything other than control
// change, note on or note off reports false.
func Decode(raw []byte) (Message, bool) {
	msg := midi.Message(raw)
	var ch, ctl, val uint8
	switch {
	case msg.GetNoteStart(&ch, &ctl, &val):
		return Message{Kind: NoteOn, Channel: int(ch) + 1, Control: int(ctl), Value: int(val)}, true
	case msg.GetNoteEnd(&ch, &ctl):
		return Message{Kind: NoteOn, Channel: int(ch) + 1, Control: int(ctl)}, true
	case msg.GetControlChange(&ch, &ctl, &val):
		return Message{Kind: ControlChange, Channel: int(ch) + 1, Control: int(ctl), Value: int(val)}, true
	}
	return Message{}, false
}

// Feedback builds the control change that shows level on the control of m.
// Only absolute CC mappings have feedback.
func Feedback(m Mapping, level int) (midi.Message, bool) {
	if m.Kind != AbsoluteCC || m.Absolute == nil {
		return nil, false
	}
	return midi.ControlChange(uint8(m.Channel-1), uint8(m.Control), uint8(m.Absolute.Inverse(level))), true
}
