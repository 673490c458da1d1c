package console

import (
	"fmt"

	"lightdesk/internal/apperr"
	"lightdesk/internal/midimap"
)

// HandleMIDI resolves one raw control-surface message and applies the
// resulting action. Unmapped messages are logged, not reported.
func (c *Console) HandleMIDI(raw []byte) error {
	msg, ok := midimap.Decode(raw)
	if !ok {
		c.logger().Debugf("midi: ignoring message % X", raw)
		return nil
	}
	c.pub.Publish(TopicMIDIReceived, []int{int(raw[0]), int(raw[1]), int(raw[2])})

	a, ok := midimap.Resolve(msg, c.Mappings)
	if !ok {
		c.logger().Debugf("midi: no mapping for %s", msg)
		return nil
	}
	m := a.Mapping

	switch a.Kind {
	case midimap.Ignore:
		c.logger().Debugf("midi: %s ignored by encoder mapping %s", msg, m.ID)
		return nil
	case midimap.Set:
		switch m.Target {
		case midimap.TargetExecutor:
			_, err := c.Executors.SetFader(m.ExecutorID, a.Value)
			return err
		case midimap.TargetProgrammer:
			_, err := c.Programmer.Set(m.FixtureID, m.Attribute, a.Value)
			return err
		}
	case midimap.Nudge:
		switch m.Target {
		case midimap.TargetExecutor:
			_, err := c.Executors.Nudge(m.ExecutorID, a.Delta)
			return err
		case midimap.TargetProgrammer:
			_, err := c.Programmer.Nudge(m.FixtureID, m.Attribute, a.Delta)
			return err
		}
	}
	return fmt.Errorf("midi: mapping %s targets %q: %w", m.ID, m.Target, apperr.ErrUnknownKind)
}

// OnMIDI is the device handler. Errors are logged because there is no
// caller to report them to.
func (c *Console) OnMIDI(raw []byte) {
	if err := c.HandleMIDI(raw); err != nil {
		c.logger().Warnf("midi: %v", err)
	}
}
