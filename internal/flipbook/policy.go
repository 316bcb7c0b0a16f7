// Package flipbook replays a baked frame sequence by mapping a time value to
// a frame index.
package flipbook

import (
	"fmt"
	"math"
	"strings"
)

// SeekPolicy decides how out-of-range times map onto the sequence.
type SeekPolicy int

const (
	// Wraparound treats the sequence as a loop: t and t+duration show the
	// same frame.
	Wraparound SeekPolicy = iota
	// Clamped pins times to [0, duration]; playback freezes on the first or
	// last frame.
	Clamped
)

// String returns the policy name used in manifests and config.
func (p SeekPolicy) String() string {
	switch p {
	case Wraparound:
		return "loop"
	case Clamped:
		return "clamp"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// ParseSeekPolicy parses a policy name as written by String.
func ParseSeekPolicy(s string) (SeekPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "loop", "wrap", "wraparound":
		return Wraparound, nil
	case "clamp", "clamped", "scrub", "once":
		return Clamped, nil
	default:
		return 0, fmt.Errorf("unknown seek policy %q", s)
	}
}

// ResolveTime maps t into [0, duration] according to the policy.
func ResolveTime(policy SeekPolicy, t, duration float64) float64 {
	if duration <= 0 || math.IsNaN(t) {
		return 0
	}
	if policy == Wraparound {
		r := math.Mod(t, duration)
		if r < 0 {
			r += duration
		}
		return r
	}
	return math.Min(math.Max(t, 0), duration)
}

// IndexAt returns the frame index shown at time t for a sequence of n frames
// spanning duration. It returns -1 when n is zero.
//
// The index is round(resolved / duration * (n - 1)) with halves rounded to
// even, clamped to [0, n-1].
func IndexAt(policy SeekPolicy, t, duration float64, n int) int {
	if n <= 0 {
		return -1
	}
	if duration <= 0 || n == 1 {
		return 0
	}
	rt := ResolveTime(policy, t, duration)
	idx := int(math.RoundToEven(rt / duration * float64(n-1)))
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
