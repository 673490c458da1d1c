package dmx

import (
	"math"
	"time"
)

// Scale rounds half away from zero and clamps the result to [0, 255].
func Scale(v float64) uint8 {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > MaxValue {
		return MaxValue
	}
	return uint8(r)
}

// Clamp limits an integer level to [0, 255].
func Clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > MaxValue {
		return MaxValue
	}
	return uint8(v)
}

// Seconds converts a duration given in (fractional) seconds.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
