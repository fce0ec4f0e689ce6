package routing

import (
	"strings"
	"testing"
)

func TestSegments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		want    int
	}{
		{name: "empty body bills one segment", message: "", want: 1},
		{name: "short ascii", message: "hello", want: 1},
		{name: "exactly 160 ascii", message: strings.Repeat("a", 160), want: 1},
		{name: "161 ascii spills into a second segment", message: strings.Repeat("a", 161), want: 2},
		{name: "320 ascii", message: strings.Repeat("a", 320), want: 2},
		{name: "321 ascii", message: strings.Repeat("a", 321), want: 3},
		{name: "70 chars with one non-ascii", message: strings.Repeat("a", 69) + "é", want: 1},
		{name: "71 chars with one non-ascii", message: strings.Repeat("a", 70) + "é", want: 2},
		{name: "single emoji", message: "🎉", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Segments(tt.message); got != tt.want {
				t.Fatalf("Segments(%d chars) = %d, want %d", len([]rune(tt.message)), got, tt.want)
			}
		})
	}
}
