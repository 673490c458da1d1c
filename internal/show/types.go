// Package show holds the patch and programming data of a show: personalities,
// fixtures, presets, cuelists and executors. The engine only reads it.
package show

// Attribute is one named control of a personality.
type Attribute struct {
	Name   string `yaml:"name" json:"name"`
	Offset int    `yaml:"offset" json:"offset"`
	Min    uint8  `yaml:"min" json:"min"`
	Max    uint8  `yaml:"max" json:"max"` // 0 together with Min 0 means the full 0..255 range.
}

// Clamp limits v to the attribute range.
func (a Attribute) Clamp(v uint8) uint8 {
	lo, hi := a.Min, a.Max
	if lo == 0 && hi == 0 {
		hi = 255
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Personality maps attribute names to channel offsets.
type Personality struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Model       string      `yaml:"model,omitempty" json:"model,omitempty"`
	NumChannels int         `yaml:"num_channels" json:"num_channels"`
	Attributes  []Attribute `yaml:"attributes" json:"attributes"`
}

// Attribute looks up an attribute by name.
func (p Personality) Attribute(name string) (Attribute, bool) {
	for _, a := range p.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Fixture places a personality at a start channel.
type Fixture struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	StartChannel  int    `yaml:"start_channel" json:"start_channel"`
	PersonalityID string `yaml:"personality_id" json:"personality_id"`
}

// PresetValue is one attribute level of a preset.
type PresetValue struct {
	Attribute string `yaml:"attribute" json:"attribute"`
	Value     int    `yaml:"value" json:"value"`
}

// Preset is a fixture-independent set of attribute levels.
type Preset struct {
	ID     string        `yaml:"id" json:"id"`
	Name   string        `yaml:"name" json:"name"`
	Type   string        `yaml:"type,omitempty" json:"type,omitempty"`
	Values []PresetValue `yaml:"values" json:"values"`
}

// CueValue is one (fixture, attribute, level) entry of a cue.
type CueValue struct {
	FixtureID string `yaml:"fixture_id" json:"fixture_id"`
	Attribute string `yaml:"attribute" json:"attribute"`
	Value     int    `yaml:"value" json:"value"`
}

// Cue is a timed partial snapshot of attribute levels.
type Cue struct {
	ID      string     `yaml:"id" json:"id"`
	Name    string     `yaml:"name" json:"name"`
	FadeIn  float64    `yaml:"fade_in" json:"fade_in"`
	DelayIn float64    `yaml:"delay_in" json:"delay_in"`
	Values  []CueValue `yaml:"values" json:"values"`
}

// Cuelist is an ordered sequence of cues.
type Cuelist struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Cues    []Cue    `yaml:"cues" json:"cues"`
	FadeOut *float64 `yaml:"fade_out,omitempty" json:"fade_out,omitempty"`
}

// DefaultFadeOut is used by stop when a cuelist has no fade_out.
const DefaultFadeOut = 1.0

// FadeOutTime returns the cuelist fade out in seconds.
func (c Cuelist) FadeOutTime() float64 {
	if c.FadeOut == nil {
		return DefaultFadeOut
	}
	return *c.FadeOut
}

// Executor is a playback fader bound to one cuelist.
type Executor struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	CuelistID string `yaml:"cuelist_id" json:"cuelist_id"`
}

// File is the on-disk layout of a show.
type File struct {
	Personalities []Personality `yaml:"personalities"`
	Fixtures      []Fixture     `yaml:"fixtures"`
	Presets       []Preset      `yaml:"presets"`
	Cuelists      []Cuelist     `yaml:"cuelists"`
	Executors     []Executor    `yaml:"executors"`
}
