package query

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	cierrors "github.com/nonibytes/cellindex/cellindex/errors"
)

// wire is the JSON form shared by all conditions, discriminated by Type.
type wire struct {
	Type         string  `json:"type"`
	Field        string  `json:"field,omitempty"`
	Value        any     `json:"value,omitempty"`
	Values       []any   `json:"values,omitempty"`
	Lower        any     `json:"lower,omitempty"`
	Upper        any     `json:"upper,omitempty"`
	IncludeLower bool    `json:"include_lower,omitempty"`
	IncludeUpper bool    `json:"include_upper,omitempty"`
	Must         []wire  `json:"must,omitempty"`
	Should       []wire  `json:"should,omitempty"`
	Not          []wire  `json:"not,omitempty"`
	VtFrom       any     `json:"vt_from,omitempty"`
	VtTo         any     `json:"vt_to,omitempty"`
	TtFrom       any     `json:"tt_from,omitempty"`
	TtTo         any     `json:"tt_to,omitempty"`
	Operation    string  `json:"operation,omitempty"`
	Boost        float64 `json:"boost,omitempty"`
}

// Decode parses the JSON form of a condition, for example
//
//	{"type": "boolean", "must": [{"type": "match", "field": "name", "value": "ada"}]}
//
// Malformed documents are predicate errors.
func Decode(data []byte) (Condition, error) {
	var w wire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, cierrors.Wrap(cierrors.ErrPredicate, "invalid condition JSON", err)
	}
	return w.condition()
}

// Encode returns the JSON form of c.
func Encode(c Condition) ([]byte, error) {
	w, err := toWire(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (w wire) condition() (Condition, error) {
	switch w.Type {
	case TypeAll:
		return All{Boost: w.Boost}, nil
	case TypeMatch:
		return Match{Field: w.Field, Value: w.Value, Boost: w.Boost}, nil
	case TypeContains:
		return Contains{Field: w.Field, Values: w.Values, Boost: w.Boost}, nil
	case TypeRange:
		return Range{Field: w.Field, Lower: w.Lower, Upper: w.Upper,
			IncludeLower: w.IncludeLower, IncludeUpper: w.IncludeUpper, Boost: w.Boost}, nil
	case TypePrefix:
		s, ok := w.Value.(string)
		if !ok {
			return nil, cierrors.Predicatef(w.Field, "prefix value must be a string, got %T", w.Value)
		}
		return Prefix{Field: w.Field, Value: s, Boost: w.Boost}, nil
	case TypeExists:
		return Exists{Field: w.Field, Boost: w.Boost}, nil
	case TypeBoolean:
		b := Boolean{Boost: w.Boost}
		var err error
		if b.Must, err = conditions(w.Must); err != nil {
			return nil, err
		}
		if b.Should, err = conditions(w.Should); err != nil {
			return nil, err
		}
		if b.Not, err = conditions(w.Not); err != nil {
			return nil, err
		}
		return b, nil
	case TypeBitemporal:
		return Bitemporal{Field: w.Field, VtFrom: w.VtFrom, VtTo: w.VtTo, TtFrom: w.TtFrom, TtTo: w.TtTo,
			Operation: w.Operation, Boost: w.Boost}, nil
	case "":
		return nil, cierrors.PredicateError("", "condition type is required")
	}
	return nil, cierrors.Predicatef("", "unknown condition type %q", w.Type)
}

func conditions(ws []wire) ([]Condition, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	out := make([]Condition, len(ws))
	for i, w := range ws {
		c, err := w.condition()
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func toWire(c Condition) (wire, error) {
	switch c := c.(type) {
	case All:
		return wire{Type: TypeAll, Boost: c.Boost}, nil
	case Match:
		return wire{Type: TypeMatch, Field: c.Field, Value: c.Value, Boost: c.Boost}, nil
	case Contains:
		return wire{Type: TypeContains, Field: c.Field, Values: c.Values, Boost: c.Boost}, nil
	case Range:
		return wire{Type: TypeRange, Field: c.Field, Lower: c.Lower, Upper: c.Upper,
			IncludeLower: c.IncludeLower, IncludeUpper: c.IncludeUpper, Boost: c.Boost}, nil
	case Prefix:
		return wire{Type: TypePrefix, Field: c.Field, Value: c.Value, Boost: c.Boost}, nil
	case Exists:
		return wire{Type: TypeExists, Field: c.Field, Boost: c.Boost}, nil
	case Boolean:
		w := wire{Type: TypeBoolean, Boost: c.Boost}
		for _, group := range []struct {
			in  []Condition
			out *[]wire
		}{{c.Must, &w.Must}, {c.Should, &w.Should}, {c.Not, &w.Not}} {
			for _, sub := range group.in {
				sw, err := toWire(sub)
				if err != nil {
					return wire{}, err
				}
				*group.out = append(*group.out, sw)
			}
		}
		return w, nil
	case Bitemporal:
		return wire{Type: TypeBitemporal, Field: c.Field, VtFrom: c.VtFrom, VtTo: c.VtTo,
			TtFrom: c.TtFrom, TtTo: c.TtTo, Operation: c.Operation, Boost: c.Boost}, nil
	}
	return wire{}, fmt.Errorf("unsupported condition %T", c)
}
