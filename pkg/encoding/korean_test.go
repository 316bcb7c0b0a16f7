package encoding

import "testing"

func TestFixedStringRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		size int
		want string
	}{
		{"ascii", "data/model/tree.rsm", 40, "data/model/tree.rsm"},
		{"hangul", "나무.bmp", 40, "나무.bmp"},
		{"truncated", "abcdef", 4, "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field := UTF8ToFixedString(tt.in, tt.size)
			if len(field) != tt.size {
				t.Fatalf("field is %d bytes, want %d", len(field), tt.size)
			}
			if got := FixedStringToUTF8(field); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEUCKRToUTF8InvalidPassesThrough(t *testing.T) {
	// 0xFF is never a valid EUC-KR lead byte.
	in := []byte{'a', 0xFF, 'b'}
	if got := EUCKRToUTF8(in); got == "" {
		t.Error("expected a non-empty result")
	}
}
