package capture

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Rational is a frame rate or time base expressed as Num/Den.
type Rational struct {
	Num int
	Den int
}

// DefaultFramerate is the PAL rate.
var DefaultFramerate = Rational{Num: 25, Den: 1}

// TimeBaseMicroseconds is the time base of frame timestamps.
var TimeBaseMicroseconds = Rational{Num: 1, Den: 1_000_000}

var framerateAbbreviations = map[string]Rational{
	"ntsc":      {30000, 1001},
	"pal":       {25, 1},
	"qntsc":     {30000, 1001},
	"qpal":      {25, 1},
	"sntsc":     {30000, 1001},
	"spal":      {25, 1},
	"film":      {24, 1},
	"ntsc-film": {24000, 1001},
}

func (r Rational) String() string {
	if r.Den == 1 {
		return strconv.Itoa(r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Valid reports whether r is a strictly positive rate.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// FrameDuration is the length of one frame at rate r, rounded to the
// nearest microsecond.
func (r Rational) FrameDuration() time.Duration {
	if !r.Valid() {
		return 0
	}
	us := (int64(r.Den)*1_000_000 + int64(r.Num)/2) / int64(r.Num)
	return time.Duration(us) * time.Microsecond
}

// checkFramerate rejects rates that are not positive or whose frame
// period rounds below the microsecond time base.
func checkFramerate(r Rational) error {
	if !r.Valid() {
		return fmt.Errorf("%w: frame rate %s must be positive", ErrConfig, r)
	}
	if r.FrameDuration() < time.Microsecond {
		return fmt.Errorf("%w: frame rate %s exceeds one frame per microsecond", ErrConfig, r)
	}
	return nil
}

// ParseFramerate accepts "N", "N/D", a decimal such as "29.97", or one of
// the standard abbreviations (ntsc, pal, film, ...).
func ParseFramerate(s string) (Rational, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Rational{}, fmt.Errorf("%w: empty frame rate", ErrConfig)
	}
	if r, ok := framerateAbbreviations[s]; ok {
		return r, nil
	}

	var r Rational
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return Rational{}, fmt.Errorf("%w: invalid frame rate %q", ErrConfig, s)
		}
		r = Rational{Num: n, Den: d}
	} else {
		q, ok := new(big.Rat).SetString(s)
		if !ok {
			return Rational{}, fmt.Errorf("%w: invalid frame rate %q", ErrConfig, s)
		}
		if !q.Num().IsInt64() || !q.Denom().IsInt64() ||
			q.Num().Int64() > math.MaxInt32 || q.Denom().Int64() > math.MaxInt32 {
			return Rational{}, fmt.Errorf("%w: frame rate %q out of range", ErrConfig, s)
		}
		r = Rational{Num: int(q.Num().Int64()), Den: int(q.Denom().Int64())}
	}

	if err := checkFramerate(r); err != nil {
		return Rational{}, err
	}
	return r, nil
}
