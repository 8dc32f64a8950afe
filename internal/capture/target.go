package capture

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/breeze-rmm/fbcgrab/internal/fbc"
)

type targetMode int

const (
	targetScreen targetMode = iota
	targetBox
	targetPosition
	targetOutput
)

func (m targetMode) String() string {
	switch m {
	case targetScreen:
		return "screen"
	case targetBox:
		return "box"
	case targetPosition:
		return "position"
	case targetOutput:
		return "output"
	default:
		return "unknown"
	}
}

// target is a parsed capture target.
type target struct {
	mode   targetMode
	box    fbc.Box
	output string
}

var (
	boxPattern      = regexp.MustCompile(`^(\d+)x(\d+)\+(-?\d+)\+(-?\d+)$`)
	positionPattern = regexp.MustCompile(`^\+(-?\d+)\+(-?\d+)$`)
)

// parseTarget parses a capture target. Forms are tried in order:
// "WxH+X+Y", "+X+Y", then anything else non-empty is an output name. An
// empty target captures the whole screen.
func parseTarget(s string) target {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if compact == "" {
		return target{mode: targetScreen}
	}
	if m := boxPattern.FindStringSubmatch(compact); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		x, _ := strconv.Atoi(m[3])
		y, _ := strconv.Atoi(m[4])
		return target{mode: targetBox, box: fbc.Box{X: x, Y: y, W: w, H: h}}
	}
	if m := positionPattern.FindStringSubmatch(compact); m != nil {
		x, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[2])
		return target{mode: targetPosition, box: fbc.Box{X: x, Y: y}}
	}
	return target{mode: targetOutput, output: strings.TrimSpace(s)}
}

// resolveRegion turns a non-output target into a box on a screen of the
// given size. A position-only target extends to the screen edge.
func resolveRegion(t target, screenW, screenH int) fbc.Box {
	switch t.mode {
	case targetBox:
		return t.box
	case targetPosition:
		return fbc.Box{
			X: t.box.X,
			Y: t.box.Y,
			W: max(screenW-t.box.X, 0),
			H: max(screenH-t.box.Y, 0),
		}
	default:
		return fbc.Box{W: screenW, H: screenH}
	}
}

// validateRegion checks that b is non-empty and lies within the screen.
func validateRegion(b fbc.Box, screenW, screenH int) error {
	if b.X < 0 || b.Y < 0 {
		return fmt.Errorf("%w: capture area %s has a negative origin", ErrConfig, b)
	}
	if b.W <= 0 || b.H <= 0 {
		return fmt.Errorf("%w: capture area %s is empty", ErrConfig, b)
	}
	if b.X+b.W > screenW || b.Y+b.H > screenH {
		return fmt.Errorf("%w: capture area %s extends outside the screen %dx%d",
			ErrConfig, b, screenW, screenH)
	}
	return nil
}
