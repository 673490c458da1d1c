package show

import (
	"fmt"
	"strings"

	"lightdesk/internal/apperr"
)

const maxTime = 999.9

func validatePersonality(p Personality) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("personality name is required: %w", apperr.ErrValidation)
	}
	if p.NumChannels < 1 || p.NumChannels > 512 {
		return apperr.OutOfRange("num_channels", p.NumChannels, 1, 512)
	}
	offsets := make(map[int]bool)
	names := make(map[string]bool)
	for _, a := range p.Attributes {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("attribute name is required: %w", apperr.ErrValidation)
		}
		if a.Offset < 0 || a.Offset >= p.NumChannels {
			return apperr.OutOfRange("attribute offset", a.Offset, 0, p.NumChannels-1)
		}
		if a.Max != 0 && a.Min > a.Max {
			return fmt.Errorf("attribute %q min %d above max %d: %w", a.Name, a.Min, a.Max, apperr.ErrValidation)
		}
		if offsets[a.Offset] {
			return fmt.Errorf("duplicate attribute offset %d: %w", a.Offset, apperr.ErrConflict)
		}
		if names[a.Name] {
			return fmt.Errorf("duplicate attribute name %q: %w", a.Name, apperr.ErrConflict)
		}
		offsets[a.Offset] = true
		names[a.Name] = true
	}
	return nil
}

func validateFixture(f Fixture) error {
	if f.StartChannel < 1 || f.StartChannel > 512 {
		return apperr.OutOfRange("start_channel", f.StartChannel, 1, 512)
	}
	if f.PersonalityID == "" {
		return fmt.Errorf("fixture personality is required: %w", apperr.ErrValidation)
	}
	return nil
}

func validatePreset(p Preset) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("preset name is required: %w", apperr.ErrValidation)
	}
	for _, v := range p.Values {
		if strings.TrimSpace(v.Attribute) == "" {
			return fmt.Errorf("preset value without attribute: %w", apperr.ErrValidation)
		}
		if v.Value < 0 || v.Value > 255 {
			return apperr.OutOfRange("preset value", v.Value, 0, 255)
		}
	}
	return nil
}

// ValidateCue checks the timing and levels of a cue.
func ValidateCue(c Cue) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("cue name is required: %w", apperr.ErrValidation)
	}
	if !(c.FadeIn >= 0 && c.FadeIn <= maxTime) {
		return apperr.OutOfRange("fade_in", c.FadeIn, 0, maxTime)
	}
	if !(c.DelayIn >= 0 && c.DelayIn <= maxTime) {
		return apperr.OutOfRange("delay_in", c.DelayIn, 0, maxTime)
	}
	for _, v := range c.Values {
		if v.FixtureID == "" || v.Attribute == "" {
			return fmt.Errorf("cue value needs fixture and attribute: %w", apperr.ErrValidation)
		}
		if v.Value < 0 || v.Value > 255 {
			return apperr.OutOfRange("cue value", v.Value, 0, 255)
		}
	}
	return nil
}

func validateCuelist(c Cuelist) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("cuelist name is required: %w", apperr.ErrValidation)
	}
	if c.FadeOut != nil && !(*c.FadeOut >= 0 && *c.FadeOut <= maxTime) {
		return apperr.OutOfRange("fade_out", *c.FadeOut, 0, maxTime)
	}
	for _, cue := range c.Cues {
		if err := ValidateCue(cue); err != nil {
			return fmt.Errorf("cue %q: %w", cue.Name, err)
		}
	}
	return nil
}

// validateFile applies the rules of the Put methods to a whole show, plus
// the cross references between its parts.
func validateFile(f File) error {
	personalities := make(map[string]bool)
	for _, p := range f.Personalities {
		if err := validatePersonality(p); err != nil {
			return fmt.Errorf("personality %q: %w", p.ID, err)
		}
		if personalities[p.ID] {
			return fmt.Errorf("duplicate personality id %q: %w", p.ID, apperr.ErrConflict)
		}
		personalities[p.ID] = true
	}

	fixtures := make(map[string]bool)
	patched := make(map[int]string)
	for _, fx := range f.Fixtures {
		if err := validateFixture(fx); err != nil {
			return fmt.Errorf("fixture %q: %w", fx.ID, err)
		}
		if !personalities[fx.PersonalityID] {
			return fmt.Errorf("fixture %q: %w", fx.ID, apperr.NotFound("personality", fx.PersonalityID))
		}
		if fixtures[fx.ID] {
			return fmt.Errorf("duplicate fixture id %q: %w", fx.ID, apperr.ErrConflict)
		}
		if other, ok := patched[fx.StartChannel]; ok {
			return fmt.Errorf("channel %d patched to both %q and %q: %w", fx.StartChannel, other, fx.ID, apperr.ErrConflict)
		}
		fixtures[fx.ID] = true
		patched[fx.StartChannel] = fx.ID
	}

	presets := make(map[string]bool)
	for _, p := range f.Presets {
		if err := validatePreset(p); err != nil {
			return fmt.Errorf("preset %q: %w", p.ID, err)
		}
		if presets[p.ID] {
			return fmt.Errorf("duplicate preset id %q: %w", p.ID, apperr.ErrConflict)
		}
		presets[p.ID] = true
	}

	cuelists := make(map[string]bool)
	names := make(map[string]bool)
	for _, c := range f.Cuelists {
		if err := validateCuelist(c); err != nil {
			return fmt.Errorf("cuelist %q: %w", c.ID, err)
		}
		name := strings.TrimSpace(c.Name)
		if names[name] {
			return fmt.Errorf("cuelist %q already exists: %w", name, apperr.ErrConflict)
		}
		if cuelists[c.ID] {
			return fmt.Errorf("duplicate cuelist id %q: %w", c.ID, apperr.ErrConflict)
		}
		names[name] = true
		cuelists[c.ID] = true
	}

	executors := make(map[string]bool)
	for _, e := range f.Executors {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("executor %q: name is required: %w", e.ID, apperr.ErrValidation)
		}
		if !cuelists[e.CuelistID] {
			return fmt.Errorf("executor %q: %w", e.ID, apperr.NotFound("cuelist", e.CuelistID))
		}
		if executors[e.ID] {
			return fmt.Errorf("duplicate executor id %q: %w", e.ID, apperr.ErrConflict)
		}
		executors[e.ID] = true
	}
	return nil
}
