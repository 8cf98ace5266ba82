package ttlstash

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// TTL describes when a value expires.
//
// ExpiresAt resolves it to an absolute instant relative to now. ok is false
// when the TTL means "never expires".
type TTL interface {
	ExpiresAt(now time.Time) (at time.Time, ok bool)
}

// Seconds is a TTL relative to now. Zero and NaN mean no expiration;
// fractions are truncated to the millisecond. Expiries beyond the range of
// epoch milliseconds saturate instead of wrapping.
type Seconds float64

// ExpiresAt implements TTL.
func (s Seconds) ExpiresAt(now time.Time) (time.Time, bool) {
	if s == 0 || math.IsNaN(float64(s)) {
		return time.Time{}, false
	}
	ms := addMillis(now.UnixMilli(), float64(s)*1000)
	return time.UnixMilli(ms).In(now.Location()), true
}

// addMillis returns base+delta clamped to the int64 range.
func addMillis(base int64, delta float64) int64 {
	if delta >= math.MaxInt64 {
		return math.MaxInt64
	}
	if delta <= math.MinInt64 {
		return math.MinInt64
	}
	d := int64(delta)
	switch {
	case d > 0 && base > math.MaxInt64-d:
		return math.MaxInt64
	case d < 0 && base < math.MinInt64-d:
		return math.MinInt64
	}
	return base + d
}

// In returns a TTL of d relative to now.
func In(d time.Duration) TTL {
	return Seconds(d.Seconds())
}

// At is an absolute expiration instant. The zero time means no expiration.
type At time.Time

// ExpiresAt implements TTL.
func (a At) ExpiresAt(time.Time) (time.Time, bool) {
	t := time.Time(a)
	if t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// Symbolic is a calendar-relative expiration.
type Symbolic int

const (
	// Today expires at the next local midnight.
	Today Symbolic = iota + 1

	// ThisMonth expires at local midnight of the same day next month.
	ThisMonth

	// ThisYear expires at local midnight of the same day next year.
	ThisYear
)

// ExpiresAt implements TTL.
func (s Symbolic) ExpiresAt(now time.Time) (time.Time, bool) {
	y, m, d := now.Date()
	switch s {
	case Today:
		d++
	case ThisMonth:
		m++
	case ThisYear:
		y++
	default:
		return time.Time{}, false
	}
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
}

// String implements fmt.Stringer.
func (s Symbolic) String() string {
	switch s {
	case Today:
		return "today"
	case ThisMonth:
		return "thisMonth"
	case ThisYear:
		return "thisYear"
	default:
		return "Symbolic(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseSymbolic parses "today", "thisMonth" or "thisYear".
func ParseSymbolic(name string) (Symbolic, error) {
	switch name {
	case "today":
		return Today, nil
	case "thisMonth":
		return ThisMonth, nil
	case "thisYear":
		return ThisYear, nil
	default:
		return 0, fmt.Errorf("unknown symbolic ttl %q", name)
	}
}

// Offset is a structured calendar delta. Components are added one at a time
// in the order year, month, day, hour, minute, second, each on local wall
// clock time with normalization (Jan 31 plus one month is Mar 2 or 3).
type Offset struct {
	Year   int `json:"year,omitempty"`
	Month  int `json:"month,omitempty"`
	Day    int `json:"day,omitempty"`
	Hour   int `json:"hour,omitempty"`
	Minute int `json:"minute,omitempty"`
	Second int `json:"second,omitempty"`
}

// ExpiresAt implements TTL. An all-zero offset expires now.
func (o Offset) ExpiresAt(now time.Time) (time.Time, bool) {
	t := now
	step := func(years, months, days, hours, minutes, seconds int) {
		y, mo, d := t.Date()
		h, mi, s := t.Clock()
		t = time.Date(y+years, mo+time.Month(months), d+days,
			h+hours, mi+minutes, s+seconds, t.Nanosecond(), t.Location())
	}
	if o.Year != 0 {
		step(o.Year, 0, 0, 0, 0, 0)
	}
	if o.Month != 0 {
		step(0, o.Month, 0, 0, 0, 0)
	}
	if o.Day != 0 {
		step(0, 0, o.Day, 0, 0, 0)
	}
	if o.Hour != 0 {
		step(0, 0, 0, o.Hour, 0, 0)
	}
	if o.Minute != 0 {
		step(0, 0, 0, 0, o.Minute, 0)
	}
	if o.Second != 0 {
		step(0, 0, 0, 0, 0, o.Second)
	}
	return t, true
}

// ParseOffset parses a compact offset such as "1d12h" or "1y-2mo". Units
// are y, mo, d, h, m and s; each may appear once, with an optional sign.
func ParseOffset(s string) (Offset, error) {
	var o Offset
	if s == "" {
		return o, fmt.Errorf("empty offset")
	}
	seen := map[string]bool{}
	rest := s
	for rest != "" {
		i := 0
		if rest[0] == '+' || rest[0] == '-' {
			i++
		}
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return Offset{}, fmt.Errorf("offset %q: missing number", s)
		}
		rest = rest[i:]

		j := 0
		for j < len(rest) && rest[j] >= 'a' && rest[j] <= 'z' {
			j++
		}
		unit := rest[:j]
		rest = rest[j:]
		if seen[unit] {
			return Offset{}, fmt.Errorf("offset %q: unit %q repeated", s, unit)
		}
		seen[unit] = true

		switch unit {
		case "y":
			o.Year = n
		case "mo":
			o.Month = n
		case "d":
			o.Day = n
		case "h":
			o.Hour = n
		case "m":
			o.Minute = n
		case "s":
			o.Second = n
		default:
			return Offset{}, fmt.Errorf("offset %q: unknown unit %q", s, unit)
		}
	}
	return o, nil
}

// encodeExpiry renders an instant in the wire format: decimal epoch millis.
func encodeExpiry(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// decodeExpiry parses a wire-format expiry. Unparseable values never expire.
func decodeExpiry(s string) (int64, bool) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
