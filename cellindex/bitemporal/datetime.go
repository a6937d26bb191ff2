// Package bitemporal models two-axis (valid time x transaction time) facts
// and decomposes bitemporal range predicates into per-region interval queries.
package bitemporal

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateTime is a bitemporal bound in epoch milliseconds, or one of the
// sentinels Min, Max and Now.
type DateTime int64

const (
	Min DateTime = math.MinInt64
	Max DateTime = math.MaxInt64 - 1
	// Now is the open end of an ongoing fact. It orders above every other
	// value, Max included, and is detected with IsNow.
	Now DateTime = math.MaxInt64
)

// FromTime converts t to a DateTime with millisecond precision.
func FromTime(t time.Time) DateTime { return DateTime(t.UnixMilli()) }

func (d DateTime) IsNow() bool { return d == Now }
func (d DateTime) IsMin() bool { return d == Min }
func (d DateTime) IsMax() bool { return d == Max }

// Compare orders d and o, with Now as positive infinity.
func (d DateTime) Compare(o DateTime) int { return cmp.Compare(d, o) }

// Storage returns the value written to and compared against the range
// sub-indices. Now is stored as Max.
func (d DateTime) Storage() int64 {
	if d.IsNow() {
		return int64(Max)
	}
	return int64(d)
}

// Time returns the concrete instant of d. It is meaningless for sentinels.
func (d DateTime) Time() time.Time { return time.UnixMilli(int64(d)).UTC() }

func (d DateTime) String() string {
	switch d {
	case Min:
		return "min"
	case Max:
		return "max"
	case Now:
		return "now"
	}
	return d.Time().Format(time.RFC3339Nano)
}

// Later returns the later of a and b.
func Later(a, b DateTime) DateTime { return max(a, b) }

// Parser turns stored values and predicate bounds into DateTimes.
type Parser struct {
	layout   string
	nowValue DateTime
	hasNow   bool
}

// NewParser returns a parser accepting layout (a Go time layout, optional)
// besides RFC3339, YYYY-MM-DD and epoch milliseconds. Values equal to
// nowValue, when given, are read as Now.
func NewParser(layout, nowValue string) (Parser, error) {
	p := Parser{layout: layout}
	if nowValue != "" {
		v, err := p.Parse(nowValue)
		if err != nil {
			return Parser{}, fmt.Errorf("now_value: %w", err)
		}
		p.nowValue, p.hasNow = v, true
	}
	return p, nil
}

// Parse reads v, which may be a time.Time, an integer or float of epoch
// milliseconds, or a string. The strings "min", "max" and "now" name the
// sentinels.
func (p Parser) Parse(v any) (DateTime, error) {
	d, err := p.parse(v)
	if err != nil {
		return 0, err
	}
	if p.hasNow && d == p.nowValue {
		return Now, nil
	}
	return d, nil
}

func (p Parser) parse(v any) (DateTime, error) {
	switch x := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing date value")
	case DateTime:
		return x, nil
	case time.Time:
		return FromTime(x), nil
	case *time.Time:
		if x == nil {
			return 0, fmt.Errorf("missing date value")
		}
		return FromTime(*x), nil
	case int:
		return epoch(int64(x))
	case int32:
		return epoch(int64(x))
	case int64:
		return epoch(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("date %v is not a whole number of milliseconds", x)
		}
		// float64(math.MaxInt64) rounds up to 2^63, out of int64 range
		if x <= math.MinInt64 || x >= math.MaxInt64 {
			return 0, fmt.Errorf("date %v is out of range", x)
		}
		return epoch(int64(x))
	case string:
		return p.parseString(x)
	}
	return 0, fmt.Errorf("unsupported date value of type %T", v)
}

// epoch checks ms is a concrete instant. The values reserved for the
// sentinels are only reachable by name.
func epoch(ms int64) (DateTime, error) {
	if d := DateTime(ms); d > Min && d < Max {
		return d, nil
	}
	return 0, fmt.Errorf("date %d is out of range", ms)
}

func (p Parser) parseString(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return 0, fmt.Errorf("empty date value")
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	case "now":
		return Now, nil
	}
	if p.layout != "" {
		if t, err := time.Parse(p.layout, s); err == nil {
			return FromTime(t), nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return FromTime(t), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return FromTime(t), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epoch(ms)
	}
	if p.layout != "" {
		return 0, fmt.Errorf("unparsable date %q (layout %q)", s, p.layout)
	}
	return 0, fmt.Errorf("unparsable date %q", s)
}
