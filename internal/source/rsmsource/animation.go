package rsmsource

import (
	"github.com/Faultbox/flipbake/pkg/formats"
	"github.com/Faultbox/flipbake/pkg/math"
)

// keySpan finds the keys surrounding timeMs in a list sorted by frame and
// the blend factor between them. prev == next means hold that key.
func keySpan(n int, frame func(int) int32, timeMs float32) (prev, next int, t float32) {
	for i := 0; i < n; i++ {
		if float32(frame(i)) > timeMs {
			next = i
			break
		}
		prev = i
		next = i
	}
	if prev == next {
		return prev, next, 0
	}
	f0, f1 := frame(prev), frame(next)
	if f1 != f0 {
		t = (timeMs - float32(f0)) / float32(f1-f0)
	}
	return prev, next, t
}

// interpolateRot slerps rotation keyframes at timeMs. Before the first key
// the first key holds; after the last key the last key holds.
func interpolateRot(keys []formats.RSMRotKeyframe, timeMs float32) math.Quat {
	switch len(keys) {
	case 0:
		return math.QuatIdentity()
	case 1:
		return math.QuatFromArray(keys[0].Quaternion)
	}
	prev, next, t := keySpan(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	q0 := math.QuatFromArray(keys[prev].Quaternion)
	if prev == next {
		return q0
	}
	return q0.Slerp(math.QuatFromArray(keys[next].Quaternion), t)
}

// interpolateScale lerps scale keyframes at timeMs.
func interpolateScale(keys []formats.RSMScaleKeyframe, timeMs float32) [3]float32 {
	switch len(keys) {
	case 0:
		return [3]float32{1, 1, 1}
	case 1:
		return keys[0].Scale
	}
	prev, next, t := keySpan(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	return math.LerpVec3(keys[prev].Scale, keys[next].Scale, t)
}

// interpolatePos lerps the position keyframes older models carry.
func interpolatePos(keys []formats.RSMPosKeyframe, timeMs float32) [3]float32 {
	if len(keys) == 1 {
		return keys[0].Position
	}
	prev, next, t := keySpan(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	return math.LerpVec3(keys[prev].Position, keys[next].Position, t)
}

// isAnimated reports whether rsm moves over time. A single keyframe is a
// static pose, not an animation.
func isAnimated(rsm *formats.RSM) bool {
	if rsm.AnimLength <= 0 {
		return false
	}
	for i := range rsm.Nodes {
		node := &rsm.Nodes[i]
		if len(node.RotKeys) > 1 || len(node.PosKeys) > 1 || len(node.ScaleKeys) > 1 {
			return true
		}
	}
	return false
}
