package query

import (
	"fmt"

	"github.com/nonibytes/cellindex/cellindex/bitemporal"
	"github.com/nonibytes/cellindex/cellindex/engine"
	cierrors "github.com/nonibytes/cellindex/cellindex/errors"
	"github.com/nonibytes/cellindex/cellindex/schema"
)

// Observer is told about every condition built and every bitemporal branch
// taken
type Observer interface {
	ObserveCondition(conditionType string)
	ObserveBranch(branch string)
}

// Options configures query construction guardrails
type Options struct {
	MinPrefixLen int
	MaxTerms     int
	MaxDepth     int
	Observer     Observer
}

// DefaultOptions returns default build options
func DefaultOptions() Options {
	return Options{
		MinPrefixLen: 1,
		MaxTerms:     1024,
		MaxDepth:     32,
	}
}

// Build translates c into an engine query against s. Fields resolve to their
// mapper by longest prefix; the engine query addresses the field as given.
func Build(s *schema.Schema, c Condition, opts Options) (engine.Query, error) {
	b := builder{schema: s, opts: opts}
	return b.build(c, 0)
}

type builder struct {
	schema *schema.Schema
	opts   Options
}

func (b builder) observe(c Condition) {
	if b.opts.Observer != nil {
		b.opts.Observer.ObserveCondition(c.Type())
	}
}

func (b builder) build(c Condition, depth int) (engine.Query, error) {
	if b.opts.MaxDepth > 0 && depth > b.opts.MaxDepth {
		return nil, cierrors.Predicatef("", "conditions nested deeper than %d", b.opts.MaxDepth)
	}
	if c == nil {
		return nil, cierrors.PredicateError("", "missing condition")
	}
	b.observe(c)

	switch c := c.(type) {
	case All:
		return engine.Boosted(engine.MatchAll{}, c.Boost), nil
	case Match:
		return b.match(c)
	case Contains:
		return b.contains(c)
	case Range:
		return b.rangeQuery(c)
	case Prefix:
		return b.prefix(c)
	case Exists:
		return b.exists(c)
	case Boolean:
		return b.boolean(c, depth)
	case Bitemporal:
		return b.bitemporal(c)
	}
	return nil, cierrors.Internalf("unhandled condition %T", c)
}

func (b builder) mapper(field string) (schema.Mapper, error) {
	if field == "" {
		return nil, cierrors.PredicateError("", "field is required")
	}
	m, ok := b.schema.Resolve(field)
	if !ok {
		return nil, cierrors.UnknownFieldError(field)
	}
	return m, nil
}

func unsupported(field string, m schema.Mapper, conditionType string) error {
	return cierrors.TypeMismatch(field, fmt.Sprintf("%s mapper %s does not support %s conditions",
		m.Kind(), m.Name(), conditionType))
}

func invalid(field string, err error) error {
	e := cierrors.Wrap(cierrors.ErrPredicate, "invalid value", err)
	e.Field = field
	return e
}

func (b builder) matcher(field, conditionType string) (schema.Matcher, error) {
	m, err := b.mapper(field)
	if err != nil {
		return nil, err
	}
	mm, ok := m.(schema.Matcher)
	if !ok {
		return nil, unsupported(field, m, conditionType)
	}
	return mm, nil
}

func (b builder) match(c Match) (engine.Query, error) {
	m, err := b.matcher(c.Field, TypeMatch)
	if err != nil {
		return nil, err
	}
	if c.Value == nil {
		return nil, cierrors.PredicateError(c.Field, "match value is required")
	}
	q, err := m.Match(c.Field, c.Value)
	if err != nil {
		return nil, invalid(c.Field, err)
	}
	return engine.Boosted(q, c.Boost), nil
}

// contains collapses single term matches into one Terms query.
func (b builder) contains(c Contains) (engine.Query, error) {
	m, err := b.matcher(c.Field, TypeContains)
	if err != nil {
		return nil, err
	}
	if len(c.Values) == 0 {
		return nil, cierrors.PredicateError(c.Field, "contains requires at least one value")
	}
	if b.opts.MaxTerms > 0 && len(c.Values) > b.opts.MaxTerms {
		return nil, cierrors.Predicatef(c.Field, "contains has %d values, more than %d", len(c.Values), b.opts.MaxTerms)
	}
	clauses := make([]engine.Query, 0, len(c.Values))
	terms := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		if v == nil {
			return nil, cierrors.PredicateError(c.Field, "contains values must not be null")
		}
		q, err := m.Match(c.Field, v)
		if err != nil {
			return nil, invalid(c.Field, err)
		}
		if t, ok := q.(engine.Term); ok && t.Field == c.Field {
			terms = append(terms, t.Value)
		}
		clauses = append(clauses, q)
	}
	if len(terms) == len(clauses) {
		if len(terms) == 1 {
			return engine.Boosted(clauses[0], c.Boost), nil
		}
		return engine.Boosted(engine.Terms{Field: c.Field, Values: terms}, c.Boost), nil
	}
	if len(clauses) == 1 {
		return engine.Boosted(clauses[0], c.Boost), nil
	}
	return engine.Boosted(engine.Or(clauses...), c.Boost), nil
}

func (b builder) rangeQuery(c Range) (engine.Query, error) {
	m, err := b.mapper(c.Field)
	if err != nil {
		return nil, err
	}
	r, ok := m.(schema.Ranger)
	if !ok {
		return nil, unsupported(c.Field, m, TypeRange)
	}
	if c.Lower == nil && c.Upper == nil {
		return nil, cierrors.PredicateError(c.Field, "range requires a lower or an upper bound")
	}
	q, err := r.Range(c.Field, c.Lower, c.Upper, c.IncludeLower, c.IncludeUpper)
	if err != nil {
		return nil, invalid(c.Field, err)
	}
	return engine.Boosted(q, c.Boost), nil
}

func (b builder) prefix(c Prefix) (engine.Query, error) {
	m, err := b.mapper(c.Field)
	if err != nil {
		return nil, err
	}
	p, ok := m.(schema.Prefixer)
	if !ok {
		return nil, unsupported(c.Field, m, TypePrefix)
	}
	if len([]rune(c.Value)) < b.opts.MinPrefixLen {
		return nil, cierrors.Predicatef(c.Field, "prefix %q is shorter than %d characters", c.Value, b.opts.MinPrefixLen)
	}
	q, err := p.Prefix(c.Field, c.Value)
	if err != nil {
		return nil, invalid(c.Field, err)
	}
	return engine.Boosted(q, c.Boost), nil
}

// exists on a bitemporal field matches rows stored in any region.
func (b builder) exists(c Exists) (engine.Query, error) {
	m, err := b.mapper(c.Field)
	if err != nil {
		return nil, err
	}
	if bm, ok := m.(*schema.BitemporalMapper); ok {
		idx := bm.Indices()
		regions := make([]engine.Query, len(idx))
		for i, ri := range idx {
			regions[i] = engine.Exists{Field: ri.Valid}
		}
		return engine.Boosted(engine.Or(regions...), c.Boost), nil
	}
	return engine.Boosted(engine.Exists{Field: c.Field}, c.Boost), nil
}

func (b builder) boolean(c Boolean, depth int) (engine.Query, error) {
	var out engine.Bool
	for _, group := range []struct {
		in  []Condition
		out *[]engine.Query
	}{{c.Must, &out.Must}, {c.Should, &out.Should}, {c.Not, &out.MustNot}} {
		for _, sub := range group.in {
			q, err := b.build(sub, depth+1)
			if err != nil {
				return nil, err
			}
			*group.out = append(*group.out, q)
		}
	}
	if len(out.Must) == 0 && len(out.Should) == 0 && len(out.MustNot) == 0 {
		return engine.Boosted(engine.MatchAll{}, c.Boost), nil
	}
	return engine.Boosted(out, c.Boost), nil
}

// bitemporal validates the operation before resolving the field or parsing
// any bound.
func (b builder) bitemporal(c Bitemporal) (engine.Query, error) {
	op, err := engine.ParseSpatialOp(c.Operation)
	if err != nil {
		return nil, cierrors.Wrap(cierrors.ErrPredicate, "invalid bitemporal operation", err)
	}
	m, err := b.mapper(c.Field)
	if err != nil {
		return nil, err
	}
	bm, ok := m.(*schema.BitemporalMapper)
	if !ok {
		return nil, unsupported(c.Field, m, TypeBitemporal)
	}
	bounds, bound, err := bm.Bounds(c.VtFrom, c.VtTo, c.TtFrom, c.TtTo)
	if err != nil {
		e := cierrors.Wrap(cierrors.ErrPredicate, "invalid "+bound, err)
		e.Field = c.Field
		return nil, e
	}
	q, plan, err := bitemporal.Build(bm.Indices(), bounds, op, c.Boost)
	if err != nil {
		return nil, err
	}
	if b.opts.Observer != nil {
		b.opts.Observer.ObserveBranch(string(plan.Branch))
	}
	return q, nil
}
