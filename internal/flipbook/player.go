package flipbook

import "math"

// Slot receives the frame a player wants displayed.
type Slot[F any] interface {
	SetActiveFrame(frame F)
}

// SlotFunc adapts a function to the Slot interface.
type SlotFunc[F any] func(frame F)

// SetActiveFrame calls f(frame).
func (f SlotFunc[F]) SetActiveFrame(frame F) {
	f(frame)
}

// Sequence is an ordered, immutable list of frames spanning Duration seconds.
type Sequence[F any] struct {
	Frames   []F
	Duration float64
}

// Len returns the number of frames.
func (s Sequence[F]) Len() int {
	return len(s.Frames)
}

// State is the per-player playback memo.
type State struct {
	// CurrentTime is the last time passed through SetCurrentTime, resolved
	// by the seek policy.
	CurrentTime float64
	// Index is the frame selected by CurrentTime, -1 for an empty sequence.
	Index int
	// LastAppliedIndex is the frame last written to the slot, -1 if none.
	LastAppliedIndex int
	// LastAppliedTime is the raw time of the last Advance that did work.
	LastAppliedTime float64
	hasAppliedTime  bool
}

// Player drives a Slot from a frame sequence. It is not safe for concurrent
// use; hosts call it from a single update tick.
type Player[F any] struct {
	seq    Sequence[F]
	policy SeekPolicy
	slot   Slot[F]
	state  State
	writes int
}

// New creates a player positioned at time 0. Nothing is written to slot until
// the first Advance or Update. A nil slot is allowed.
func New[F any](seq Sequence[F], policy SeekPolicy, slot Slot[F]) *Player[F] {
	p := &Player[F]{
		seq:    seq,
		policy: policy,
		slot:   slot,
		state: State{
			Index:            -1,
			LastAppliedIndex: -1,
		},
	}
	p.SetCurrentTime(0)
	return p
}

// SetCurrentTime moves the playhead without touching the slot. Afterwards
// CurrentTime() is t resolved by the seek policy (clamped to [0, duration] or
// wrapped) and Index() is the frame for that time.
func (p *Player[F]) SetCurrentTime(t float64) {
	if math.IsNaN(t) {
		return
	}
	p.state.CurrentTime = ResolveTime(p.policy, t, p.seq.Duration)
	p.state.Index = IndexAt(p.policy, p.state.CurrentTime, p.seq.Duration, p.seq.Len())
}

// Advance is the per-tick entry point. It recomputes the frame for t and
// writes it to the slot only when the index changed. Calls with the same t as
// the previous call are ignored. It reports whether the index changed, which
// is when a non-nil slot is written.
func (p *Player[F]) Advance(t float64) bool {
	if p.seq.Len() == 0 || math.IsNaN(t) {
		return false
	}
	if p.state.hasAppliedTime && p.state.LastAppliedTime == t {
		return false
	}

	p.SetCurrentTime(t)
	p.state.LastAppliedTime = t
	p.state.hasAppliedTime = true

	if p.state.Index == p.state.LastAppliedIndex {
		return false
	}
	p.state.LastAppliedIndex = p.state.Index
	if p.slot != nil {
		p.slot.SetActiveFrame(p.seq.Frames[p.state.Index])
		p.writes++
	}
	return true
}

// Update advances using the externally held current time, as set by
// SetCurrentTime. Scrub hosts call it once per tick.
func (p *Player[F]) Update() bool {
	return p.Advance(p.state.CurrentTime)
}

// Frame returns the frame at the current index.
func (p *Player[F]) Frame() (F, bool) {
	var zero F
	if p.state.Index < 0 || p.state.Index >= p.seq.Len() {
		return zero, false
	}
	return p.seq.Frames[p.state.Index], true
}

// Index returns the current frame index, -1 for an empty sequence.
func (p *Player[F]) Index() int { return p.state.Index }

// CurrentTime returns the resolved playhead time.
func (p *Player[F]) CurrentTime() float64 { return p.state.CurrentTime }

// Len returns the number of frames.
func (p *Player[F]) Len() int { return p.seq.Len() }

// Duration returns the sequence duration.
func (p *Player[F]) Duration() float64 { return p.seq.Duration }

// Policy returns the seek policy.
func (p *Player[F]) Policy() SeekPolicy { return p.policy }

// State returns a copy of the playback memo.
func (p *Player[F]) State() State { return p.state }

// Writes returns how many times the slot has been written.
func (p *Player[F]) Writes() int { return p.writes }
