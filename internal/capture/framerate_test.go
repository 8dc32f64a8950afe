package capture

import (
	"errors"
	"testing"
	"time"
)

func TestParseFramerate(t *testing.T) {
	tests := []struct {
		in   string
		want Rational
	}{
		{"25", Rational{25, 1}},
		{"60", Rational{60, 1}},
		{"30000/1001", Rational{30000, 1001}},
		{"29.97", Rational{2997, 100}},
		{"0.5", Rational{1, 2}},
		{"pal", Rational{25, 1}},
		{"NTSC", Rational{30000, 1001}},
		{"film", Rational{24, 1}},
		{"ntsc-film", Rational{24000, 1001}},
		{"2000000", Rational{2000000, 1}},
	}
	for _, tt := range tests {
		got, err := ParseFramerate(tt.in)
		if err != nil {
			t.Fatalf("ParseFramerate(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseFramerate(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseFramerateInvalid(t *testing.T) {
	for _, in := range []string{"", "0", "-5", "1/0", "abc", "25/x", "3000000", "2000001/1"} {
		if _, err := ParseFramerate(in); !errors.Is(err, ErrConfig) {
			t.Fatalf("ParseFramerate(%q): expected ErrConfig, got %v", in, err)
		}
	}
}

func TestFrameDuration(t *testing.T) {
	tests := []struct {
		rate Rational
		want time.Duration
	}{
		{Rational{25, 1}, 40 * time.Millisecond},
		{Rational{30000, 1001}, 33367 * time.Microsecond},
		{Rational{60, 1}, 16667 * time.Microsecond},
		{Rational{0, 1}, 0},
	}
	for _, tt := range tests {
		if got := tt.rate.FrameDuration(); got != tt.want {
			t.Fatalf("%s: duration = %v, want %v", tt.rate, got, tt.want)
		}
	}
}
