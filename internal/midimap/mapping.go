// Package midimap holds the control-surface mapping table and the resolver
// that turns an incoming MIDI message into at most one fader or programmer
// action.
package midimap

import (
	"fmt"
	"strings"

	"lightdesk/internal/apperr"
	"lightdesk/internal/dmx"
)

// TargetKind is what a mapping controls.
type TargetKind string

const (
	TargetExecutor   TargetKind = "executor"
	TargetProgrammer TargetKind = "programmer"
)

// MidiKind is how the control sends its value.
type MidiKind string

const (
	AbsoluteCC      MidiKind = "cc"
	AbsoluteNote    MidiKind = "note"
	RelativeEncoder MidiKind = "encoder_relative"
)

// Key identifies a mapping. At most one mapping exists per key.
type Key struct {
	Target  TargetKind
	Kind    MidiKind
	Channel int
	Control int
}

// AbsoluteRange maps [MidiMin, MidiMax] linearly onto [TargetMin, TargetMax].
type AbsoluteRange struct {
	MidiMin   int `yaml:"midi_min" json:"midi_min"`
	MidiMax   int `yaml:"midi_max" json:"midi_max"`
	TargetMin int `yaml:"target_min" json:"target_min"`
	TargetMax int `yaml:"target_max" json:"target_max"`
}

// Remap converts a data byte to a target level. Data outside the MIDI range
// is clamped to it first.
func (r AbsoluteRange) Remap(data int) int {
	if data < r.MidiMin {
		data = r.MidiMin
	}
	if data > r.MidiMax {
		data = r.MidiMax
	}
	frac := float64(data-r.MidiMin) / float64(r.MidiMax-r.MidiMin)
	return int(dmx.Scale(float64(r.TargetMin) + frac*float64(r.TargetMax-r.TargetMin)))
}

// Inverse converts a target level back to the data byte a motorised fader
// or LED ring should show.
func (r AbsoluteRange) Inverse(level int) int {
	if level < r.TargetMin {
		level = r.TargetMin
	}
	if level > r.TargetMax {
		level = r.TargetMax
	}
	frac := float64(level-r.TargetMin) / float64(r.TargetMax-r.TargetMin)
	v := int(dmx.Scale(float64(r.MidiMin) + frac*float64(r.MidiMax-r.MidiMin)))
	if v > 127 {
		v = 127
	}
	return v
}

// RelativeStep describes an endless encoder: Increment and Decrement are the
// data bytes it sends for one detent each way.
type RelativeStep struct {
	Increment int `yaml:"increment_value" json:"increment_value"`
	Decrement int `yaml:"decrement_value" json:"decrement_value"`
	Step      int `yaml:"step_size" json:"step_size"`
}

// Mapping binds one control of the surface to an executor fader or a
// programmer attribute. Absolute is set for cc and note mappings, Relative
// for encoder mappings.
type Mapping struct {
	ID      string     `yaml:"id" json:"id"`
	Target  TargetKind `yaml:"target_type" json:"target_type"`
	Kind    MidiKind   `yaml:"midi_type" json:"midi_type"`
	Channel int        `yaml:"midi_channel" json:"midi_channel"`
	Control int        `yaml:"midi_control" json:"midi_control"`

	ExecutorID string `yaml:"executor_id,omitempty" json:"executor_id,omitempty"`
	FixtureID  string `yaml:"fixture_id,omitempty" json:"fixture_id,omitempty"`
	Attribute  string `yaml:"attribute,omitempty" json:"attribute,omitempty"`

	Absolute *AbsoluteRange `yaml:"absolute,omitempty" json:"absolute,omitempty"`
	Relative *RelativeStep  `yaml:"relative,omitempty" json:"relative,omitempty"`
}

// Key returns the uniqueness key of m.
func (m Mapping) Key() Key {
	return Key{Target: m.Target, Kind: m.Kind, Channel: m.Channel, Control: m.Control}
}

// Normalize validates m and drops the fields that do not belong to its
// target and MIDI kind.
func (m Mapping) Normalize() (Mapping, error) {
	if m.Channel < 1 || m.Channel > 16 {
		return Mapping{}, apperr.OutOfRange("midi_channel", m.Channel, 1, 16)
	}
	if m.Control < 0 || m.Control > 127 {
		return Mapping{}, apperr.OutOfRange("midi_control", m.Control, 0, 127)
	}

	switch m.Target {
	case TargetExecutor:
		if strings.TrimSpace(m.ExecutorID) == "" {
			return Mapping{}, fmt.Errorf("executor mapping needs executor_id: %w", apperr.ErrValidation)
		}
		m.FixtureID, m.Attribute = "", ""
	case TargetProgrammer:
		if strings.TrimSpace(m.FixtureID) == "" || strings.TrimSpace(m.Attribute) == "" {
			return Mapping{}, fmt.Errorf("programmer mapping needs fixture_id and attribute: %w", apperr.ErrValidation)
		}
		m.ExecutorID = ""
	default:
		return Mapping{}, fmt.Errorf("target_type %q: %w", m.Target, apperr.ErrUnknownKind)
	}

	switch m.Kind {
	case AbsoluteCC, AbsoluteNote:
		r := m.Absolute
		if r == nil {
			return Mapping{}, fmt.Errorf("%s mapping needs an absolute range: %w", m.Kind, apperr.ErrValidation)
		}
		if r.MidiMin < 0 || r.MidiMax > 127 {
			return Mapping{}, fmt.Errorf("midi range %d..%d not in 0..127: %w", r.MidiMin, r.MidiMax, apperr.ErrOutOfRange)
		}
		if r.TargetMin < 0 || r.TargetMax > dmx.MaxValue {
			return Mapping{}, fmt.Errorf("target range %d..%d not in 0..255: %w", r.TargetMin, r.TargetMax, apperr.ErrOutOfRange)
		}
		if r.MidiMin >= r.MidiMax {
			return Mapping{}, fmt.Errorf("midi_min must be below midi_max: %w", apperr.ErrValidation)
		}
		if r.TargetMin >= r.TargetMax {
			return Mapping{}, fmt.Errorf("target_min must be below target_max: %w", apperr.ErrValidation)
		}
		abs := *r
		m.Absolute, m.Relative = &abs, nil
	case RelativeEncoder:
		r := m.Relative
		if r == nil {
			return Mapping{}, fmt.Errorf("encoder mapping needs increment, decrement and step: %w", apperr.ErrValidation)
		}
		if r.Increment < 0 || r.Increment > 127 || r.Decrement < 0 || r.Decrement > 127 {
			return Mapping{}, fmt.Errorf("encoder values must be in 0..127: %w", apperr.ErrOutOfRange)
		}
		if r.Step < 1 || r.Step > dmx.MaxValue {
			return Mapping{}, apperr.OutOfRange("step_size", r.Step, 1, dmx.MaxValue)
		}
		if r.Increment == r.Decrement {
			return Mapping{}, fmt.Errorf("increment and decrement values must differ: %w", apperr.ErrValidation)
		}
		rel := *r
		m.Absolute, m.Relative = nil, &rel
	default:
		return Mapping{}, fmt.Errorf("midi_type %q: %w", m.Kind, apperr.ErrUnknownKind)
	}
	return m, nil
}
