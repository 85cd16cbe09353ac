// Package animation drives skeletal clips for the avatar: a mixer that blends
// running actions and a controller that keeps exactly one of them current.
package animation

import (
	"math"
	"time"
)

// Clip is an immutable named motion sample.
type Clip struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// LoopMode selects what an action does when it reaches the end of its clip.
type LoopMode int

const (
	// LoopRepeat wraps back to the start indefinitely.
	LoopRepeat LoopMode = iota
	// LoopOnce plays through once and holds the final frame.
	LoopOnce
)

func (m LoopMode) String() string {
	if m == LoopOnce {
		return "once"
	}
	return "repeat"
}

// Curve shapes the weight ramp of a fade.
type Curve int

const (
	CurveLinear Curve = iota
	CurveEaseInOut
)

// ParseCurve maps a config value to a Curve, defaulting to linear.
func ParseCurve(s string) Curve {
	switch s {
	case "ease-in-out", "ease_in_out", "easeinout":
		return CurveEaseInOut
	default:
		return CurveLinear
	}
}

func (c Curve) apply(t float32) float32 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	if c == CurveEaseInOut {
		return easeInOutCubic(t)
	}
	return t
}

func easeInOutCubic(t float32) float32 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - float32(math.Pow(float64(-2*t+2), 3))/2
}
