// Package bake samples a deforming mesh source into a sequence of static
// frames and persists them.
package bake

import (
	"github.com/Faultbox/flipbake/internal/mesh"
	"github.com/Faultbox/flipbake/pkg/math"
)

// Part identifies one deformable sub-mesh of a source.
type Part struct {
	Name  string
	Index int
}

// Source is anything with deformable parts whose current geometry can be
// snapshotted.
type Source interface {
	// Name identifies the source in logs, errors and output names.
	Name() string
	// Parts returns the deformable parts in a stable order.
	Parts() []Part
	// BakeGeometry snapshots the part's current geometry in part-local space.
	BakeGeometry(p Part) (*mesh.Mesh, error)
	// WorldTransform returns the part's current local-to-world transform.
	WorldTransform(p Part) math.Mat4
}

// Clip is a named animation of a given length in seconds.
type Clip struct {
	Name   string
	Length float64
}

// Animated sources pose their parts by evaluating animation clips.
type Animated interface {
	Source
	// Clips returns the clips in declared order.
	Clips() []Clip
	// EvaluatePose poses every part as clip looks at time t. It mutates the
	// source's visible geometry.
	EvaluatePose(clip Clip, t float64) error
}

// Stream is a time-seekable deformation.
type Stream interface {
	Seek(t float64) error
	CurrentTime() float64
	Duration() float64
}

// Streamed sources are driven by a deformation stream.
type Streamed interface {
	Source
	Stream() Stream
	// ReferenceTransform is the source's own local-to-world transform; baked
	// parts are expressed relative to it.
	ReferenceTransform() math.Mat4
}

// HasSkeletalEvaluation reports whether src can evaluate animation clips.
func HasSkeletalEvaluation(src Source) bool {
	_, ok := src.(Animated)
	return ok
}

// HasDeformationStream reports whether src exposes a usable stream.
func HasDeformationStream(src Source) bool {
	s, ok := src.(Streamed)
	return ok && s.Stream() != nil
}
