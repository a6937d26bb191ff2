// Package sqlbuilder collects query arguments and renders the matching
// placeholders for a backend.
package sqlbuilder

import (
	"strconv"
	"strings"
)

type PlaceholderStyle int

const (
	// PlaceholderQuestion renders positional "?" placeholders, so arguments
	// must be allocated in the order they appear in the SQL text.
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar renders numbered "$n" placeholders.
	PlaceholderDollar
)

type Builder struct {
	Style PlaceholderStyle
	args  []any
}

func New(style PlaceholderStyle) *Builder {
	return &Builder{Style: style, args: make([]any, 0, 8)}
}

// Arg records v and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	if b.Style == PlaceholderDollar {
		return "$" + strconv.Itoa(len(b.args))
	}
	return "?"
}

// List records every value and returns a comma separated placeholder list.
func (b *Builder) List(values ...any) string {
	phs := make([]string, len(values))
	for i, v := range values {
		phs[i] = b.Arg(v)
	}
	return strings.Join(phs, ", ")
}

// Args returns the arguments recorded so far.
func (b *Builder) Args() []any { return b.args }

func (b *Builder) Len() int { return len(b.args) }

// Prefix returns the first n arguments, for statements that reuse only the
// leading part of the SQL text.
func (b *Builder) Prefix(n int) []any {
	if n > len(b.args) {
		n = len(b.args)
	}
	return append([]any(nil), b.args[:n]...)
}

// Fork returns a builder holding a copy of the first n arguments, so a
// statement sharing that leading SQL text can continue from there.
func (b *Builder) Fork(n int) *Builder {
	return &Builder{Style: b.Style, args: b.Prefix(n)}
}
