package column

import "strings"

const (
	// NestedSeparator separates the components of a nested type path.
	NestedSeparator = "."
	// MapKeySeparator separates a component from the map key that produced it.
	MapKeySeparator = "$"
)

// JoinNested appends a nested type path segment to base. An empty base
// yields the segment itself.
func JoinNested(base, segment string) string {
	if base == "" {
		return segment
	}
	return base + NestedSeparator + segment
}

// JoinMapKey appends a map key to base. An empty base yields the key itself.
func JoinMapKey(base, key string) string {
	if base == "" {
		return key
	}
	return base + MapKeySeparator + key
}

// MapperNameOf strips every map key suffix from a full column name, keeping
// the nested path. It is total and idempotent.
//
//	MapperNameOf("address.street$home") == "address.street"
//	MapperNameOf("tags$a.b$c")          == "tags.b"
func MapperNameOf(full string) string {
	if !strings.Contains(full, MapKeySeparator) {
		return full
	}
	parts := strings.Split(full, NestedSeparator)
	for i, p := range parts {
		if j := strings.Index(p, MapKeySeparator); j >= 0 {
			parts[i] = p[:j]
		}
	}
	return strings.Join(parts, NestedSeparator)
}

// CellNameOf returns the stored cell a full column name originates from.
func CellNameOf(full string) string {
	if i := strings.IndexAny(full, NestedSeparator+MapKeySeparator); i >= 0 {
		return full[:i]
	}
	return full
}

// ComposeName builds a full column name from a cell name, a nested path and
// the map keys attached to its last component.
func ComposeName(cell string, nested []string, mapKeys []string) string {
	name := cell
	for _, seg := range nested {
		name = JoinNested(name, seg)
	}
	for _, key := range mapKeys {
		name = JoinMapKey(name, key)
	}
	return name
}
