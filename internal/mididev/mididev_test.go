package mididev

import (
	"errors"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"lightdesk/internal/apperr"
	"lightdesk/internal/config"
	"lightdesk/internal/logger"
)

func TestDisabledDeviceIsDegraded(t *testing.T) {
	d := Open(logger.NewNop(), config.MIDIConf{Enabled: false}, func([]byte) {})
	if !d.Degraded() {
		t.Error("disabled device should be degraded")
	}
	err := d.Send(midi.ControlChange(0, 7, 100))
	if !errors.Is(err, apperr.ErrDegraded) {
		t.Errorf("got %v, want DegradedMode", err)
	}
}
