package schema

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Built-in analyzer names.
const (
	StandardAnalyzer   = "standard"
	SimpleAnalyzer     = "simple"
	WhitespaceAnalyzer = "whitespace"
	KeywordAnalyzer    = "keyword"
)

// Analyzer turns text into index tokens. Analyzers are immutable and safe for
// concurrent use.
type Analyzer interface {
	Name() string
	Analyze(text string) []string
}

type analyzer struct {
	name      string
	normalize bool
	split     func(rune) bool // nil keeps the whole text as one token
	lowercase bool
	stopwords map[string]bool
}

func (a *analyzer) Name() string { return a.name }

func (a *analyzer) Analyze(text string) []string {
	if a.normalize {
		text = norm.NFKC.String(text)
	}
	var tokens []string
	if a.split == nil {
		if text = strings.TrimSpace(text); text != "" {
			tokens = []string{text}
		}
	} else {
		tokens = strings.FieldsFunc(text, a.split)
	}
	out := tokens[:0]
	for _, tok := range tokens {
		if a.lowercase {
			// Casers carry state and are not shared between goroutines.
			tok = cases.Lower(language.Und).String(tok)
		}
		if a.stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func notLetterOrDigit(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }

func notLetter(r rune) bool { return !unicode.IsLetter(r) }

func builtinAnalyzer(name string) (*analyzer, bool) {
	switch name {
	case StandardAnalyzer:
		return &analyzer{name: name, normalize: true, split: notLetterOrDigit, lowercase: true}, true
	case SimpleAnalyzer:
		return &analyzer{name: name, split: notLetter, lowercase: true}, true
	case WhitespaceAnalyzer:
		return &analyzer{name: name, split: unicode.IsSpace}, true
	case KeywordAnalyzer:
		return &analyzer{name: name}, true
	}
	return nil, false
}

// buildAnalyzers returns the analyzer table of a schema: the built-ins plus
// the custom analyzers of the schema document. The table is never modified afterwards.
func buildAnalyzers(specs map[string]AnalyzerSpec) (map[string]Analyzer, error) {
	table := make(map[string]Analyzer, len(specs)+4)
	for _, name := range []string{StandardAnalyzer, SimpleAnalyzer, WhitespaceAnalyzer, KeywordAnalyzer} {
		a, _ := builtinAnalyzer(name)
		table[name] = a
	}
	for name, spec := range specs {
		if _, builtin := builtinAnalyzer(name); builtin {
			return nil, fmt.Errorf("analyzer %q redefines a built-in analyzer", name)
		}
		base, ok := builtinAnalyzer(spec.Type)
		if !ok {
			return nil, fmt.Errorf("analyzer %q: unknown base type %q", name, spec.Type)
		}
		base.name = name
		if spec.Lowercase != nil {
			base.lowercase = *spec.Lowercase
		}
		if len(spec.Stopwords) > 0 {
			base.stopwords = make(map[string]bool, len(spec.Stopwords))
			for _, w := range spec.Stopwords {
				if base.lowercase {
					w = cases.Lower(language.Und).String(w)
				}
				base.stopwords[w] = true
			}
		}
		table[name] = base
	}
	return table, nil
}
