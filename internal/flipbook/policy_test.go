package flipbook

import (
	"testing"
)

func TestIndexAtEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		policy   SeekPolicy
		t        float64
		duration float64
		n        int
		want     int
	}{
		{"empty sequence", Clamped, 0.5, 1, 0, -1},
		{"single frame", Clamped, 0.5, 1, 1, 0},
		{"zero duration", Wraparound, 3, 0, 5, 0},
		{"clamp start", Clamped, 0, 2, 21, 0},
		{"clamp end", Clamped, 2, 2, 21, 20},
		{"clamp past end", Clamped, 99, 2, 21, 20},
		{"clamp before start", Clamped, -5, 2, 21, 0},
		{"clamp midpoint", Clamped, 1, 2, 21, 10},
		{"loop start", Wraparound, 0, 2, 21, 0},
		{"loop at duration wraps", Wraparound, 2, 2, 21, 0},
		{"loop second cycle", Wraparound, 3, 2, 21, 10},
		{"loop negative wraps forward", Wraparound, -0.5, 2, 21, 15},
		{"half rounds to even down", Clamped, 0.25, 1, 3, 0},
		{"half rounds to even up", Clamped, 0.75, 1, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IndexAt(tt.policy, tt.t, tt.duration, tt.n)
			if got != tt.want {
				t.Errorf("IndexAt(%v, %g, %g, %d) = %d, want %d", tt.policy, tt.t, tt.duration, tt.n, got, tt.want)
			}
		})
	}
}

func TestIndexAtLoopWraparound(t *testing.T) {
	const (
		duration = 2.0
		n        = 11
	)
	// Sample times sit between rounding boundaries so float error in the
	// modulo cannot flip an index.
	for k := 0; k < 30; k++ {
		tm := 0.013 + 0.2*float64(k)
		a := IndexAt(Wraparound, tm, duration, n)
		b := IndexAt(Wraparound, tm+duration, duration, n)
		if a != b {
			t.Errorf("index(%g) = %d but index(%g) = %d", tm, a, tm+duration, b)
		}
	}
}

func TestIndexAtClampMonotonic(t *testing.T) {
	for _, n := range []int{1, 2, 5, 21, 64} {
		duration := 1.7
		prev := IndexAt(Clamped, 0, duration, n)
		if prev != 0 {
			t.Fatalf("n=%d: index(0) = %d, want 0", n, prev)
		}
		for i := 1; i <= 1000; i++ {
			tm := duration * float64(i) / 1000
			idx := IndexAt(Clamped, tm, duration, n)
			if idx < prev {
				t.Fatalf("n=%d: index decreased at t=%g: %d < %d", n, tm, idx, prev)
			}
			prev = idx
		}
		if last := IndexAt(Clamped, duration, duration, n); last != n-1 {
			t.Errorf("n=%d: index(D) = %d, want %d", n, last, n-1)
		}
	}
}

func TestParseSeekPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    SeekPolicy
		wantErr bool
	}{
		{"loop", Wraparound, false},
		{"Clamp", Clamped, false},
		{" scrub ", Clamped, false},
		{"bounce", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSeekPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeekPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseSeekPolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, p := range []SeekPolicy{Wraparound, Clamped} {
		back, err := ParseSeekPolicy(p.String())
		if err != nil || back != p {
			t.Errorf("policy %v does not parse back from %q", p, p.String())
		}
	}
}
