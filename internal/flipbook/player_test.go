package flipbook

import (
	"path/filepath"
	"testing"
	"time"
)

type recordingSlot struct {
	frames []string
}

func (r *recordingSlot) SetActiveFrame(frame string) {
	r.frames = append(r.frames, frame)
}

func frames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

func TestPlayerEmptySequenceIsIdle(t *testing.T) {
	slot := &recordingSlot{}
	p := New(Sequence[string]{Duration: 1}, Wraparound, slot)

	for _, tm := range []float64{0, 0.5, 1, 2} {
		if p.Advance(tm) {
			t.Errorf("Advance(%g) wrote on empty sequence", tm)
		}
	}
	if p.Update() {
		t.Error("Update wrote on empty sequence")
	}
	if len(slot.frames) != 0 {
		t.Errorf("expected no writes, got %v", slot.frames)
	}
	if p.Index() != -1 {
		t.Errorf("expected index -1, got %d", p.Index())
	}
	if _, ok := p.Frame(); ok {
		t.Error("Frame should report false on empty sequence")
	}
}

func TestPlayerSuppressesRedundantWrites(t *testing.T) {
	slot := &recordingSlot{}
	p := New(Sequence[string]{Frames: frames(5), Duration: 4}, Wraparound, slot)

	// 0.1 and 0.2 both map to index 0.
	p.Advance(0.1)
	p.Advance(0.2)
	if len(slot.frames) != 1 {
		t.Fatalf("expected exactly one write, got %v", slot.frames)
	}

	p.Advance(1.0)
	p.Advance(1.1)
	if len(slot.frames) != 2 || slot.frames[1] != "b" {
		t.Fatalf("expected writes [a b], got %v", slot.frames)
	}
	if p.Writes() != 2 {
		t.Errorf("Writes() = %d, want 2", p.Writes())
	}
}

func TestPlayerLoopingPlayback(t *testing.T) {
	slot := &recordingSlot{}
	p := New(Sequence[string]{Frames: frames(3), Duration: 2}, Wraparound, slot)

	// round(t mod 2 / 2 * 2): 0 -> 0, 1 -> 1, 1.9 -> 2, 2 -> 0, 3 -> 1.
	for _, tm := range []float64{0, 1, 1.9, 2, 3} {
		p.Advance(tm)
	}
	want := []string{"a", "b", "c", "a", "b"}
	if len(slot.frames) != len(want) {
		t.Fatalf("got writes %v, want %v", slot.frames, want)
	}
	for i := range want {
		if slot.frames[i] != want[i] {
			t.Errorf("write %d: got %s, want %s", i, slot.frames[i], want[i])
		}
	}
}

func TestPlayerNonLoopFreezesOnLastFrame(t *testing.T) {
	slot := &recordingSlot{}
	p := New(Sequence[string]{Frames: frames(3), Duration: 2}, Clamped, slot)

	for _, tm := range []float64{0, 2, 5, 100} {
		p.Advance(tm)
	}
	if p.Index() != 2 {
		t.Errorf("expected to stay on last frame, index %d", p.Index())
	}
	if len(slot.frames) != 2 {
		t.Errorf("expected writes [a c], got %v", slot.frames)
	}
}

func TestPlayerScrub(t *testing.T) {
	slot := &recordingSlot{}
	p := New(Sequence[string]{Frames: frames(11), Duration: 1}, Clamped, slot)

	p.SetCurrentTime(5)
	if p.CurrentTime() != 1 {
		t.Errorf("SetCurrentTime(5) should clamp to 1, got %g", p.CurrentTime())
	}
	if p.Index() != 10 {
		t.Errorf("index after clamp: got %d, want 10", p.Index())
	}
	if len(slot.frames) != 0 {
		t.Error("SetCurrentTime must not write to the slot")
	}

	if !p.Update() {
		t.Fatal("first Update should write")
	}
	// Host rewrites the same value every tick.
	for i := 0; i < 5; i++ {
		p.SetCurrentTime(1)
		if p.Update() {
			t.Fatalf("Update %d wrote although time did not change", i)
		}
	}

	p.SetCurrentTime(-3)
	if p.CurrentTime() != 0 || p.Index() != 0 {
		t.Errorf("negative time should clamp to 0, got t=%g idx=%d", p.CurrentTime(), p.Index())
	}
	p.Update()

	// Times differ but land on the same frame: recomputed, not rewritten.
	p.SetCurrentTime(0.01)
	if p.Update() {
		t.Error("Update wrote although index did not change")
	}
	if got := p.State().LastAppliedTime; got != 0.01 {
		t.Errorf("LastAppliedTime = %g, want 0.01", got)
	}

	want := []string{"k", "a"}
	if len(slot.frames) != len(want) || slot.frames[0] != want[0] || slot.frames[1] != want[1] {
		t.Errorf("got writes %v, want %v", slot.frames, want)
	}
}

func TestPlayerSlotFuncAndNilSlot(t *testing.T) {
	var got []string
	p := New(Sequence[string]{Frames: frames(2), Duration: 1}, Clamped, SlotFunc[string](func(f string) {
		got = append(got, f)
	}))
	p.Advance(1)
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("SlotFunc writes: %v", got)
	}

	quiet := New[string](Sequence[string]{Frames: frames(2), Duration: 1}, Clamped, nil)
	if !quiet.Advance(1) {
		t.Error("Advance should report an index change even without a slot")
	}
	if quiet.Writes() != 0 {
		t.Errorf("writes = %d without a slot", quiet.Writes())
	}
}

func TestManifestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bake", "Flag"+ManifestSuffix)
	m := &Manifest{
		BakeID:      "id-1",
		Name:        "Flag",
		Mode:        "stream",
		Policy:      Clamped.String(),
		Duration:    1,
		CurrentTime: 0.25,
		StepSize:    0.3,
		Frames:      []string{"bake/Flag_0", "bake/Flag_1", "bake/Flag_2", "bake/Flag_3"},
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	policy, err := loaded.SeekPolicy()
	if err != nil || policy != Clamped {
		t.Errorf("policy: got %v (%v), want clamp", policy, err)
	}
	seq := loaded.Sequence()
	if seq.Len() != 4 || seq.Duration != 1 {
		t.Errorf("sequence: got %d frames over %g", seq.Len(), seq.Duration)
	}
	if !loaded.CreatedAt.Equal(m.CreatedAt) {
		t.Errorf("created_at: got %v, want %v", loaded.CreatedAt, m.CreatedAt)
	}
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       Manifest
		wantErr bool
	}{
		{"ok", Manifest{Policy: "loop", Duration: 1, Frames: []string{"a", "b"}}, false},
		{"empty ok", Manifest{Policy: "clamp"}, false},
		{"bad policy", Manifest{Policy: "pingpong", Duration: 1}, true},
		{"negative duration", Manifest{Policy: "loop", Duration: -1}, true},
		{"frames without duration", Manifest{Policy: "loop", Frames: []string{"a", "b"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
