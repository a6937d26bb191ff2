package planner

import (
	"fmt"

	"github.com/nonibytes/cellindex/cellindex/engine"
)

// ValueTable returns the posting table holding values of kind. Keyword
// values live in kw_dict and kw_postings and have no single table.
func ValueTable(kind engine.ValueKind) (string, error) {
	switch kind {
	case engine.NumberValues:
		return "field_number", nil
	case engine.DateValues:
		return "field_date", nil
	case engine.BoolValues:
		return "field_bool", nil
	case engine.RangeValues:
		return "field_range", nil
	}
	return "", fmt.Errorf("no value table for %s fields", kind)
}

func lowerOp(inclusive bool) string {
	if inclusive {
		return ">="
	}
	return ">"
}

func upperOp(inclusive bool) string {
	if inclusive {
		return "<="
	}
	return "<"
}
