package dmx

import "time"

const (
	// Channels is the size of one universe.
	Channels = 512
	// MaxValue is the highest level a channel can carry.
	MaxValue = 255
	// MaxFade is the longest accepted fade, in seconds.
	MaxFade = 999.9
)

// Source tags the producer of a committed value.
type Source string

const (
	SourceManual     Source = "manual"
	SourcePlayback   Source = "playback"
	SourceEffect     Source = "effect"
	SourceProgrammer Source = "programmer"
	SourcePreset     Source = "preset"
	SourceSystem     Source = "system"
)

// Fade is a linear interpolation of one channel in flight.
type Fade struct {
	Start    uint8
	Target   uint8
	Began    time.Time
	Duration time.Duration
}

// valueAt returns the interpolated level at now and whether the fade is over.
func (f Fade) valueAt(now time.Time) (uint8, bool) {
	if f.Duration <= 0 {
		return f.Target, true
	}
	progress := float64(now.Sub(f.Began)) / float64(f.Duration)
	if progress >= 1 {
		return f.Target, true
	}
	if progress < 0 {
		progress = 0
	}
	return Scale(float64(f.Start) + (float64(f.Target)-float64(f.Start))*progress), false
}

// Snapshot is the full universe state handed to subscribers.
// Values[0] is channel 1.
type Snapshot struct {
	Values   [Channels]uint8
	Degraded bool
}

// Map returns the snapshot as channel -> value, channels 1..512.
func (s Snapshot) Map() map[int]uint8 {
	m := make(map[int]uint8, Channels)
	for i, v := range s.Values {
		m[i+1] = v
	}
	return m
}

// Command is one raw channel write.
type Command struct {
	Channel int     `json:"channel"`
	Value   int     `json:"value"`
	Fade    float64 `json:"fade"`
}
