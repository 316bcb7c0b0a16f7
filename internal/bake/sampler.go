package bake

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Faultbox/flipbake/internal/mesh"
	gmath "github.com/Faultbox/flipbake/pkg/math"
)

// Mode selects how a source is sampled.
type Mode int

const (
	// ModeClip samples animation clips at a fixed frame rate.
	ModeClip Mode = iota
	// ModeStream samples a deformation stream at a fixed time step.
	ModeStream
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeClip:
		return "clip"
	case ModeStream:
		return "stream"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// ParseMode parses "clip" or "stream".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "clip", "skinned", "skeletal":
		return ModeClip, nil
	case "stream", "cache", "alembic":
		return ModeStream, nil
	default:
		return 0, fmt.Errorf("unknown bake mode %q", s)
	}
}

// Frame is one sampled instant, already combined into a single mesh.
type Frame struct {
	Index int
	Clip  string
	Time  float64
	Mesh  *mesh.Mesh
}

// Sampler walks a source at a fixed cadence.
type Sampler interface {
	// Mode reports which kind of source the sampler drives.
	Mode() Mode
	// Estimate returns the frame count shown to the user before baking.
	Estimate(src Source) (int, error)
	// Sample emits every frame in order and returns the total duration the
	// frames span. An emit error stops sampling and is returned as is.
	Sample(src Source, emit func(Frame) error) (float64, error)
}

// NewSampler returns the sampler for mode using cadence as frame rate
// (ModeClip) or step size in seconds (ModeStream).
func NewSampler(mode Mode, cadence float64) (Sampler, error) {
	switch mode {
	case ModeClip:
		return ClipSampler{FrameRate: cadence}, nil
	case ModeStream:
		return StreamSampler{Step: cadence}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %v", ErrInvalidSampleSpec, mode)
	}
}

func validateCadence(kind string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s must be > 0, got %g", ErrInvalidSampleSpec, kind, v)
	}
	return nil
}

func requireParts(src Source) ([]Part, error) {
	parts := src.Parts()
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %q has no deformable parts", ErrMissingCapability, src.Name())
	}
	return parts, nil
}

// snapshot bakes every part and combines them. When toRef is non-nil each
// part transform is premultiplied by it.
func snapshot(src Source, parts []Part, toRef *gmath.Mat4) (*mesh.Mesh, error) {
	combine := make([]mesh.Part, len(parts))
	for i, p := range parts {
		m, err := src.BakeGeometry(p)
		if err != nil {
			return nil, fmt.Errorf("baking part %q: %w", p.Name, err)
		}
		xf := src.WorldTransform(p)
		if toRef != nil {
			xf = toRef.Mul(xf)
		}
		combine[i] = mesh.Part{Mesh: m, Transform: xf}
	}
	return mesh.Combine(combine)
}

// ClipSampler samples every clip of an Animated source at FrameRate.
//
// Sample times are recomputed as frame / FrameRate rather than accumulated,
// and the clip end is inclusive: a 2s clip at 10 fps yields 21 frames.
type ClipSampler struct {
	FrameRate float64
}

// Mode returns ModeClip.
func (s ClipSampler) Mode() Mode { return ModeClip }

func (s ClipSampler) check(src Source) (Animated, []Part, []Clip, error) {
	if err := validateCadence("frame rate", s.FrameRate); err != nil {
		return nil, nil, nil, err
	}
	anim, ok := src.(Animated)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %q has no skeletal evaluator", ErrMissingCapability, src.Name())
	}
	parts, err := requireParts(src)
	if err != nil {
		return nil, nil, nil, err
	}
	clips := anim.Clips()
	if len(clips) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: %q has no animation clips", ErrMissingCapability, src.Name())
	}
	return anim, parts, clips, nil
}

// Estimate returns sum(ceil(clip.Length * FrameRate)).
func (s ClipSampler) Estimate(src Source) (int, error) {
	_, _, clips, err := s.check(src)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range clips {
		n += int(math.Ceil(c.Length * s.FrameRate))
	}
	return n, nil
}

// Sample poses the source at every frame time of every clip, in clip order.
// The returned duration is the sum of the clip lengths.
func (s ClipSampler) Sample(src Source, emit func(Frame) error) (float64, error) {
	anim, parts, clips, err := s.check(src)
	if err != nil {
		return 0, err
	}

	var total float64
	index := 0
	for _, clip := range clips {
		for frame := 0; ; frame++ {
			t := float64(frame) / s.FrameRate
			if t > clip.Length {
				break
			}
			if err := anim.EvaluatePose(clip, t); err != nil {
				return total, fmt.Errorf("evaluating clip %q at %gs: %w", clip.Name, t, err)
			}
			m, err := snapshot(src, parts, nil)
			if err != nil {
				return total, fmt.Errorf("clip %q at %gs: %w", clip.Name, t, err)
			}
			if err := emit(Frame{Index: index, Clip: clip.Name, Time: t, Mesh: m}); err != nil {
				return total, err
			}
			index++
		}
		total += clip.Length
	}
	return total, nil
}

// StreamSampler samples a Streamed source every Step seconds.
//
// Sample times accumulate (t += Step) from 0 while t <= duration, so the
// last sample may fall on or just short of the end depending on alignment.
// The stream position in effect before sampling is restored on return,
// whether sampling succeeded or not.
type StreamSampler struct {
	Step float64
}

// Mode returns ModeStream.
func (s StreamSampler) Mode() Mode { return ModeStream }

func (s StreamSampler) check(src Source) (Streamed, []Part, Stream, error) {
	if err := validateCadence("step size", s.Step); err != nil {
		return nil, nil, nil, err
	}
	str, ok := src.(Streamed)
	if !ok || str.Stream() == nil {
		return nil, nil, nil, fmt.Errorf("%w: %q has no deformation stream", ErrMissingCapability, src.Name())
	}
	stream := str.Stream()
	if d := stream.Duration(); math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return nil, nil, nil, fmt.Errorf("%w: %q has an unusable stream duration %g", ErrMissingCapability, src.Name(), d)
	}
	parts, err := requireParts(src)
	if err != nil {
		return nil, nil, nil, err
	}
	return str, parts, stream, nil
}

// Estimate returns round(duration / Step) + 1.
func (s StreamSampler) Estimate(src Source) (int, error) {
	_, _, stream, err := s.check(src)
	if err != nil {
		return 0, err
	}
	return int(math.RoundToEven(stream.Duration()/s.Step + 1)), nil
}

// Sample seeks the stream to every sample time and snapshots all parts
// relative to the source's reference transform, captured once up front.
func (s StreamSampler) Sample(src Source, emit func(Frame) error) (duration float64, err error) {
	str, parts, stream, err := s.check(src)
	if err != nil {
		return 0, err
	}

	toRef, ok := str.ReferenceTransform().InverseAffine()
	if !ok {
		return 0, fmt.Errorf("reference transform of %q is singular", src.Name())
	}

	start := stream.CurrentTime()
	defer func() {
		if rerr := stream.Seek(start); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restoring stream of %q to %gs: %w", src.Name(), start, rerr))
		}
	}()

	duration = stream.Duration()
	index := 0
	for t := 0.0; t <= duration; t += s.Step {
		if err := stream.Seek(t); err != nil {
			return duration, fmt.Errorf("seeking %q to %gs: %w", src.Name(), t, err)
		}
		m, err := snapshot(src, parts, &toRef)
		if err != nil {
			return duration, fmt.Errorf("stream at %gs: %w", t, err)
		}
		if err := emit(Frame{Index: index, Time: t, Mesh: m}); err != nil {
			return duration, err
		}
		index++
	}
	return duration, nil
}
