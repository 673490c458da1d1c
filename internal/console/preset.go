package console

import (
	"fmt"

	"lightdesk/internal/apperr"
	"lightdesk/internal/dmx"
)

// ApplyPreset writes the preset values to every listed fixture that has the
// attribute. Unknown fixtures fail the whole operation before any write.
func (c *Console) ApplyPreset(presetID string, fixtureIDs []string, fade float64) error {
	p, ok := c.Show.Preset(presetID)
	if !ok {
		return apperr.NotFound("preset", presetID)
	}
	if fade < 0 || fade > dmx.MaxFade {
		return apperr.OutOfRange("fade", fade, 0, dmx.MaxFade)
	}
	if len(fixtureIDs) == 0 {
		return apperr.ErrNoValidFixtures
	}

	var cmds []dmx.Command
	for _, fid := range fixtureIDs {
		if _, ok := c.Show.Fixture(fid); !ok {
			return apperr.NotFound("fixture", fid)
		}
		for _, v := range p.Values {
			tg, err := c.Show.Resolve(fid, v.Attribute)
			if err != nil {
				continue
			}
			level := tg.Attribute.Clamp(dmx.Clamp(v.Value))
			cmds = append(cmds, dmx.Command{Channel: tg.Channel, Value: int(level), Fade: fade})
		}
	}
	if len(cmds) == 0 {
		return fmt.Errorf("preset %q has no attribute of the selected fixtures: %w", p.Name, apperr.ErrNoValidFixtures)
	}
	if err := c.Channels.WriteBatch(cmds, dmx.SourcePreset); err != nil {
		return err
	}
	c.logger().Infof("preset %q applied to %d fixtures", p.Name, len(fixtureIDs))
	return nil
}
