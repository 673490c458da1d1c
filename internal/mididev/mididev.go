// Package mididev connects the control surface through the gomidi driver
// registered by the binary. A missing port leaves the device degraded
// instead of failing startup.
package mididev

import (
	"fmt"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"lightdesk/internal/apperr"
	"lightdesk/internal/config"
	"lightdesk/internal/logger"
)

// Handler receives every inbound message as raw bytes.
type Handler func(raw []byte)

// Device is the pair of input and output ports of the control surface.
type Device struct {
	log logger.Logger

	mu   sync.Mutex
	send func(midi.Message) error
	stop func()
}

// FindInPort returns the first input port whose name contains substr.
func FindInPort(substr string) (drivers.In, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("no MIDI input port matching %q", substr)
}

// FindOutPort returns the first output port whose name contains substr.
func FindOutPort(substr string) (drivers.Out, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetOutPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("no MIDI output port matching %q", substr)
}

// Open connects the ports named in cfg and forwards inbound messages to h.
// Ports that cannot be opened are logged and skipped.
func Open(log logger.Logger, cfg config.MIDIConf, h Handler) *Device {
	d := &Device{log: log}
	l := d.logger()
	if !cfg.Enabled {
		l.Info("MIDI disabled, running without a control surface")
		return d
	}

	for _, p := range midi.GetInPorts() {
		l.Debugf("available input port: %s", p.String())
	}

	if in, err := FindInPort(cfg.InputPort); err != nil {
		l.Warnf("degraded mode: %v", err)
	} else {
		stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
			raw := append([]byte(nil), msg...)
			h(raw)
		})
		if err != nil {
			l.Warnf("degraded mode: listen on %s: %v", in.String(), err)
		} else {
			d.stop = stop
			l.Infof("listening on %s", in.String())
		}
	}

	if out, err := FindOutPort(cfg.OutputPort); err != nil {
		l.Warnf("no feedback port: %v", err)
	} else {
		send, err := midi.SendTo(out)
		if err != nil {
			l.Warnf("no feedback port: open %s: %v", out.String(), err)
		} else {
			d.send = send
			l.Infof("sending feedback to %s", out.String())
		}
	}
	return d
}

func (d *Device) logger() *logger.Log {
	return d.log.With(logger.Fields{"module": "midi"})
}

// Degraded reports whether the input port is missing.
func (d *Device) Degraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop == nil
}

// Send writes one message to the output port.
func (d *Device) Send(msg midi.Message) error {
	d.mu.Lock()
	send := d.send
	d.mu.Unlock()
	if send == nil {
		return fmt.Errorf("midi output: %w", apperr.ErrDegraded)
	}
	return send(msg)
}

// Close stops listening and releases the driver.
func (d *Device) Close() {
	d.mu.Lock()
	stop := d.stop
	d.stop, d.send = nil, nil
	d.mu.Unlock()
	if stop != nil {
		stop()
	}
	midi.CloseDriver()
	d.logger().Info("MIDI closed")
}
