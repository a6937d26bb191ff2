package engine

import (
	"fmt"
	"strings"
)

// SpatialOp relates the query interval to an indexed interval: the query
// contains, intersects or is within what is stored.
type SpatialOp string

const (
	// Contains matches indexed intervals lying inside the query interval.
	Contains SpatialOp = "contains"
	// Intersects matches indexed intervals overlapping the query interval.
	Intersects SpatialOp = "intersects"
	// IsWithin matches indexed intervals enclosing the query interval.
	IsWithin SpatialOp = "is_within"
)

// DefaultSpatialOp is used when a predicate names no operation.
const DefaultSpatialOp = Contains

// ParseSpatialOp parses an operation name, case-insensitively. An empty
// name yields the default.
func ParseSpatialOp(s string) (SpatialOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultSpatialOp, nil
	case "contains":
		return Contains, nil
	case "intersects":
		return Intersects, nil
	case "is_within", "iswithin", "within":
		return IsWithin, nil
	}
	return "", fmt.Errorf("unknown spatial operation %q", s)
}

// Matches evaluates the operation for an indexed interval [lo, hi] against
// the query interval [qLo, qHi]. The planner emits the same comparisons in SQL.
func (op SpatialOp) Matches(lo, hi, qLo, qHi int64) bool {
	switch op {
	case Intersects:
		return lo <= qHi && hi >= qLo
	case IsWithin:
		return lo <= qLo && hi >= qHi
	default:
		return lo >= qLo && hi <= qHi
	}
}
