package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
)

// drumChannel is GM channel 10, ignored when loading
const drumChannel uint8 = 9

// Event represents a note on/off at an absolute tick of the note track
type Event struct {
	Tick     uint32
	Type     uint8 // NoteOn, NoteOff
	Channel  uint8
	Note     uint8
	Velocity uint8
}

// Message encodes the event for an SMF track
func (e Event) Message() gomidi.Message {
	if e.Type == NoteOff {
		return gomidi.NoteOff(e.Channel, e.Note)
	}
	return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
}

// before orders events by tick, note-offs first so repeated pitches retrigger
func (e Event) before(o Event) bool {
	if e.Tick != o.Tick {
		return e.Tick < o.Tick
	}
	if e.Type != o.Type {
		return e.Type == NoteOff
	}
	return e.Note < o.Note
}
