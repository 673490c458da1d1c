package effects

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"lightdesk/internal/apperr"
	"lightdesk/internal/dmx"
)

// Kind names a generator.
type Kind string

const (
	KindChase      Kind = "chase"
	KindDimmerWave Kind = "dimmer_wave"
)

// WaveInterval is the refresh period of a dimmer wave.
const WaveInterval = 50 * time.Millisecond

// MinStepInterval is the shortest chase step, in seconds.
const MinStepInterval = 0.001

// Params is the kind-specific parameter set of an effect.
type Params interface {
	Kind() Kind
	// Period is the tick interval of the effect clock.
	Period() time.Duration
	// Target returns the attribute written and the fade used for each write.
	Target() (attribute string, fade float64)
	Validate() error
}

// ChaseParams lights one fixture per step with the next level of the sequence
// and sends every other fixture to 0.
type ChaseParams struct {
	StepInterval float64 `json:"step_interval"`
	Attribute    string  `json:"attribute"`
	Levels       []int   `json:"level_sequence"`
	FadeTime     float64 `json:"fade_time"`
}

func (ChaseParams) Kind() Kind { return KindChase }

func (p ChaseParams) Period() time.Duration { return dmx.Seconds(p.StepInterval) }

func (p ChaseParams) Target() (string, float64) { return p.Attribute, p.FadeTime }

func (p ChaseParams) Validate() error {
	if !(p.StepInterval >= MinStepInterval && p.StepInterval <= dmx.MaxFade) {
		return apperr.OutOfRange("step_interval", p.StepInterval, MinStepInterval, dmx.MaxFade)
	}
	if len(p.Levels) == 0 {
		return fmt.Errorf("chase needs a level_sequence: %w", apperr.ErrValidation)
	}
	for _, l := range p.Levels {
		if l < 0 || l > dmx.MaxValue {
			return apperr.OutOfRange("chase level", l, 0, dmx.MaxValue)
		}
	}
	return validateTarget(p.Attribute, p.FadeTime)
}

// WaveParams runs a sine over the fixtures, each one phase shifted by 2π/N.
type WaveParams struct {
	AngularSpeed float64 `json:"angular_speed"`
	Amplitude    int     `json:"amplitude"`
	PhaseOffset  float64 `json:"phase_offset"`
	Attribute    string  `json:"attribute"`
	FadeTime     float64 `json:"fade_time"`
}

func (WaveParams) Kind() Kind { return KindDimmerWave }

func (WaveParams) Period() time.Duration { return WaveInterval }

func (p WaveParams) Target() (string, float64) { return p.Attribute, p.FadeTime }

func (p WaveParams) Validate() error {
	if math.IsNaN(p.AngularSpeed) || math.IsInf(p.AngularSpeed, 0) {
		return fmt.Errorf("angular_speed must be finite: %w", apperr.ErrValidation)
	}
	if math.IsNaN(p.PhaseOffset) || math.IsInf(p.PhaseOffset, 0) {
		return fmt.Errorf("phase_offset must be finite: %w", apperr.ErrValidation)
	}
	if p.Amplitude < 0 || p.Amplitude > dmx.MaxValue {
		return apperr.OutOfRange("amplitude", p.Amplitude, 0, dmx.MaxValue)
	}
	return validateTarget(p.Attribute, p.FadeTime)
}

func validateTarget(attribute string, fade float64) error {
	if strings.TrimSpace(attribute) == "" {
		return fmt.Errorf("effect attribute is required: %w", apperr.ErrValidation)
	}
	if !(fade >= 0 && fade <= dmx.MaxFade) {
		return apperr.OutOfRange("fade_time", fade, 0, dmx.MaxFade)
	}
	return nil
}

// DefaultParams returns the parameters a kind starts from before the
// caller's fields are applied.
func DefaultParams(kind Kind) (Params, error) {
	switch kind {
	case KindChase:
		return ChaseParams{StepInterval: 0.5, Attribute: "dimmer", FadeTime: 0.1}, nil
	case KindDimmerWave:
		return WaveParams{AngularSpeed: 1.0, Amplitude: dmx.MaxValue, Attribute: "dimmer", FadeTime: 0.1}, nil
	}
	return nil, fmt.Errorf("effect kind %q: %w", kind, apperr.ErrUnknownKind)
}

// DecodeParams builds validated parameters of kind from a JSON object.
// Absent fields keep their defaults.
func DecodeParams(kind Kind, raw json.RawMessage) (Params, error) {
	p, err := DefaultParams(kind)
	if err != nil {
		return nil, err
	}
	return Merge(p, raw)
}

// Merge applies the fields present in raw on top of p and validates the result.
func Merge(p Params, raw json.RawMessage) (Params, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return p, p.Validate()
	}
	var out Params
	switch v := p.(type) {
	case ChaseParams:
		v.Levels = append([]int(nil), v.Levels...)
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("chase params: %v: %w", err, apperr.ErrValidation)
		}
		out = v
	case WaveParams:
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("dimmer_wave params: %v: %w", err, apperr.ErrValidation)
		}
		out = v
	default:
		return nil, fmt.Errorf("effect kind %q: %w", p.Kind(), apperr.ErrUnknownKind)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// chaseFrame returns the level of every fixture at step.
func chaseFrame(p ChaseParams, step, count int) []int {
	out := make([]int, count)
	out[step%count] = p.Levels[step%len(p.Levels)]
	return out
}

// waveFrame returns the level of every fixture elapsed seconds after start.
func waveFrame(p WaveParams, elapsed float64, count int) []int {
	out := make([]int, count)
	half := float64(p.Amplitude) / 2
	for i := range out {
		phase := 2 * math.Pi * float64(i) / float64(count)
		out[i] = int(dmx.Scale(half + half*math.Sin(elapsed*p.AngularSpeed+phase+p.PhaseOffset)))
	}
	return out
}
