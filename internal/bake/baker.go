package bake

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/flipbake/internal/flipbook"
	"github.com/Faultbox/flipbake/internal/mesh"
)

// State is a step of the bake state machine.
type State int

const (
	StateIdle State = iota
	StateValidatingSource
	StateValidatingOutputPath
	StateEstimatingCount
	StateAwaitingConfirmation
	StateSampling
	StatePersistingFrames
	StateAssemblingResult
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateIdle:                 "Idle",
	StateValidatingSource:     "ValidatingSource",
	StateValidatingOutputPath: "ValidatingOutputPath",
	StateEstimatingCount:      "EstimatingCount",
	StateAwaitingConfirmation: "AwaitingConfirmation",
	StateSampling:             "Sampling",
	StatePersistingFrames:     "PersistingFrames",
	StateAssemblingResult:     "AssemblingResult",
	StateDone:                 "Done",
	StateAborted:              "Aborted",
}

// String returns the state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("Unknown(%d)", int(s))
}

// Store persists baked frames.
type Store interface {
	// Writable reports why output cannot be written. It runs before
	// confirmation and must not leave anything on disk.
	Writable(output string) error
	// Exists reports whether an asset with this id is already committed.
	Exists(id string) bool
	// Create stages a mesh under id and returns a handle to it.
	Create(id string, m *mesh.Mesh) (string, error)
	// Flush commits every staged asset in one step.
	Flush() error
}

// Discarder is implemented by stores that can drop staged assets. Baker
// calls Discard on every abort.
type Discarder interface {
	Discard() error
}

// Confirmer gates a bake on the estimated frame count.
type Confirmer interface {
	Confirm(message string, estimated int) bool
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(message string, estimated int) bool

// Confirm calls f(message, estimated).
func (f ConfirmFunc) Confirm(message string, estimated int) bool {
	return f(message, estimated)
}

// AlwaysConfirm accepts every bake.
var AlwaysConfirm Confirmer = ConfirmFunc(func(string, int) bool { return true })

// SampleSpec is the cadence and destination of a bake.
type SampleSpec struct {
	// Cadence is frames per second for clip bakes and seconds per sample
	// for stream bakes.
	Cadence float64
	// Output is "<dir>/<baseName>"; frames are stored as <Output>_<index>.
	Output string
}

// BaseName returns the last element of Output.
func (s SampleSpec) BaseName() string {
	return path.Base(strings.ReplaceAll(s.Output, "\\", "/"))
}

// FrameID returns the asset identifier for frame index of output.
func FrameID(output string, index int) string {
	return output + "_" + strconv.Itoa(index)
}

// Request describes one bake.
type Request struct {
	Source Source
	Mode   Mode
	Spec   SampleSpec
}

// Option configures a Baker.
type Option func(*Baker)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(b *Baker) { b.log = l }
}

// WithConfirmer sets the confirmation gate. The default confirms every bake.
func WithConfirmer(c Confirmer) Option {
	return func(b *Baker) { b.confirm = c }
}

// WithStateHook registers a callback for every state transition.
func WithStateHook(fn func(State)) Option {
	return func(b *Baker) { b.hook = fn }
}

// Baker runs the bake state machine:
//
//	Idle -> ValidatingSource -> ValidatingOutputPath -> EstimatingCount ->
//	AwaitingConfirmation -> Sampling -> PersistingFrames -> AssemblingResult -> Done
//
// Any failure moves it to Aborted. A Baker runs one bake at a time.
type Baker struct {
	store   Store
	confirm Confirmer
	log     *zap.Logger
	hook    func(State)
	state   State
	now     func() time.Time
}

// NewBaker creates a Baker persisting into store.
func NewBaker(store Store, opts ...Option) *Baker {
	b := &Baker{
		store:   store,
		confirm: AlwaysConfirm,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the state reached by the last Bake call.
func (b *Baker) State() State {
	return b.state
}

func (b *Baker) enter(s State) {
	b.state = s
	b.log.Debug("bake state", zap.Stringer("state", s))
	if b.hook != nil {
		b.hook(s)
	}
}

func (b *Baker) abort(err error) (*Result, error) {
	b.enter(StateAborted)
	b.log.Error("bake aborted", zap.Error(err))
	if d, ok := b.store.(Discarder); ok {
		if derr := d.Discard(); derr != nil {
			b.log.Warn("discarding staged frames", zap.Error(derr))
		}
	}
	return nil, err
}

// Bake validates the request, asks for confirmation, samples the source,
// persists every frame and returns the assembled result. Either the whole
// sequence is committed or an error is returned and no Result exists.
func (b *Baker) Bake(req Request) (*Result, error) {
	b.enter(StateIdle)

	sampler, err := NewSampler(req.Mode, req.Spec.Cadence)
	if err != nil {
		return b.abort(err)
	}
	if err := validateCadence(cadenceName(req.Mode), req.Spec.Cadence); err != nil {
		return b.abort(err)
	}
	if strings.TrimSpace(req.Spec.Output) == "" {
		return b.abort(fmt.Errorf("%w: empty output location", ErrInvalidSampleSpec))
	}

	b.enter(StateValidatingSource)
	if req.Source == nil {
		return b.abort(ErrNoSourceSelected)
	}
	src := req.Source
	log := b.log.With(zap.String("source", src.Name()), zap.Stringer("mode", req.Mode))
	if err := checkCapability(src, req.Mode); err != nil {
		return b.abort(err)
	}

	b.enter(StateValidatingOutputPath)
	first := FrameID(req.Spec.Output, 0)
	if b.store.Exists(first) {
		return b.abort(fmt.Errorf("%w: %s", ErrOutputAlreadyExists, first))
	}
	if err := b.store.Writable(req.Spec.Output); err != nil {
		return b.abort(fmt.Errorf("%w: output %s is not writable: %v", ErrPersistence, req.Spec.Output, err))
	}

	b.enter(StateEstimatingCount)
	estimate, err := sampler.Estimate(src)
	if err != nil {
		return b.abort(err)
	}
	log.Info("bake estimate", zap.Int("frames", estimate), zap.Float64("cadence", req.Spec.Cadence))

	b.enter(StateAwaitingConfirmation)
	msg := fmt.Sprintf("Baking %s will generate %d meshes", src.Name(), estimate)
	if !b.confirm.Confirm(msg, estimate) {
		return b.abort(fmt.Errorf("%w: %s", ErrCancelled, src.Name()))
	}

	// Captured before sampling so a scrub player opens where the source was.
	var startTime float64
	if str, ok := src.(Streamed); ok && req.Mode == ModeStream {
		startTime = str.Stream().CurrentTime()
	}

	b.enter(StateSampling)
	var frames []*mesh.Mesh
	duration, err := sampler.Sample(src, func(f Frame) error {
		log.Debug("sampled frame",
			zap.Int("index", f.Index),
			zap.String("clip", f.Clip),
			zap.Float64("time", f.Time),
			zap.Int("triangles", f.Mesh.TriangleCount()))
		frames = append(frames, f.Mesh)
		return nil
	})
	if err != nil {
		return b.abort(err)
	}
	if len(frames) == 0 {
		return b.abort(fmt.Errorf("%w: %s", ErrEmptyBakeResult, src.Name()))
	}

	b.enter(StatePersistingFrames)
	assets := make([]string, 0, len(frames))
	for i, m := range frames {
		id := FrameID(req.Spec.Output, i)
		m.Name = path.Base(strings.ReplaceAll(id, "\\", "/"))
		handle, err := b.store.Create(id, m)
		if err != nil {
			return b.abort(fmt.Errorf("%w: %s: %v", ErrPersistence, id, err))
		}
		assets = append(assets, handle)
	}

	b.enter(StateAssemblingResult)
	if err := b.store.Flush(); err != nil {
		return b.abort(fmt.Errorf("%w: flushing %s: %v", ErrPersistence, req.Spec.Output, err))
	}

	res := &Result{
		BakeID:    uuid.NewString(),
		Name:      src.Name(),
		Output:    req.Spec.Output,
		Mode:      req.Mode,
		Cadence:   req.Spec.Cadence,
		Frames:    frames,
		Assets:    assets,
		Duration:  duration,
		StartTime: startTime,
		CreatedAt: b.now(),
	}

	b.enter(StateDone)
	log.Info("bake complete",
		zap.Int("frames", len(frames)),
		zap.Float64("duration", duration),
		zap.String("output", req.Spec.Output+"_*"))
	return res, nil
}

func cadenceName(m Mode) string {
	if m == ModeStream {
		return "step size"
	}
	return "frame rate"
}

func checkCapability(src Source, mode Mode) error {
	switch mode {
	case ModeClip:
		if !HasSkeletalEvaluation(src) {
			return fmt.Errorf("%w: %q has no skeletal evaluator", ErrMissingCapability, src.Name())
		}
	case ModeStream:
		if !HasDeformationStream(src) {
			return fmt.Errorf("%w: %q has no deformation stream", ErrMissingCapability, src.Name())
		}
	}
	if len(src.Parts()) == 0 {
		return fmt.Errorf("%w: %q has no deformable parts", ErrMissingCapability, src.Name())
	}
	return nil
}

// IsAbort reports whether err came out of a bake rather than, say, a
// programming error in a collaborator.
func IsAbort(err error) bool {
	for _, target := range []error{
		ErrNoSourceSelected, ErrMissingCapability, ErrOutputAlreadyExists,
		ErrEmptyBakeResult, ErrPersistence, ErrInvalidSampleSpec, ErrCancelled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Result is the committed output of a bake, ready to drive a player.
type Result struct {
	BakeID    string
	Name      string
	Output    string
	Mode      Mode
	Cadence   float64
	Frames    []*mesh.Mesh
	Assets    []string
	Duration  float64
	StartTime float64
	CreatedAt time.Time
}

// Policy is Wraparound for clip bakes and Clamped for stream bakes.
func (r *Result) Policy() flipbook.SeekPolicy {
	if r.Mode == ModeStream {
		return flipbook.Clamped
	}
	return flipbook.Wraparound
}

// Sequence returns the baked meshes as a playable sequence.
func (r *Result) Sequence() flipbook.Sequence[*mesh.Mesh] {
	return flipbook.Sequence[*mesh.Mesh]{Frames: r.Frames, Duration: r.Duration}
}

// NewPlayer returns a player over the baked meshes. Clip bakes loop; stream
// bakes scrub and open at the stream time in effect before the bake. The
// slot is primed with the opening frame.
func (r *Result) NewPlayer(slot flipbook.Slot[*mesh.Mesh]) *flipbook.Player[*mesh.Mesh] {
	p := flipbook.New(r.Sequence(), r.Policy(), slot)
	p.SetCurrentTime(r.StartTime)
	p.Update()
	return p
}

// Manifest describes the result for persistence next to the frames.
func (r *Result) Manifest() *flipbook.Manifest {
	m := &flipbook.Manifest{
		BakeID:      r.BakeID,
		Name:        r.Name,
		Mode:        r.Mode.String(),
		Policy:      r.Policy().String(),
		Duration:    r.Duration,
		CurrentTime: r.StartTime,
		Frames:      append([]string(nil), r.Assets...),
		CreatedAt:   r.CreatedAt,
	}
	if r.Mode == ModeStream {
		m.StepSize = r.Cadence
	} else {
		m.FrameRate = r.Cadence
	}
	return m
}
