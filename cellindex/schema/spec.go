package schema

import (
	"bytes"

	json "github.com/goccy/go-json"

	cierrors "github.com/nonibytes/cellindex/cellindex/errors"
)

// Spec is the declarative schema document: one mapper per field path plus
// the analyzers text mappers may reference.
type Spec struct {
	DefaultAnalyzer string                  `json:"default_analyzer,omitempty"`
	Analyzers       map[string]AnalyzerSpec `json:"analyzers,omitempty"`
	Fields          map[string]MapperSpec   `json:"fields"`
}

// AnalyzerSpec declares a custom analyzer derived from a built-in one.
type AnalyzerSpec struct {
	Type      string   `json:"type"`
	Stopwords []string `json:"stopwords,omitempty"`
	Lowercase *bool    `json:"lowercase,omitempty"`
}

// MapperSpec declares one mapper. Options not used by the mapper kind are
// rejected at build time.
type MapperSpec struct {
	Type      Kind `json:"type"`
	Validated bool `json:"validated,omitempty"`

	// string
	CaseSensitive *bool `json:"case_sensitive,omitempty"`
	// text
	Analyzer string `json:"analyzer,omitempty"`
	// date, bitemporal
	Pattern string `json:"pattern,omitempty"`
	// bitemporal
	VtFrom   string `json:"vt_from,omitempty"`
	VtTo     string `json:"vt_to,omitempty"`
	TtFrom   string `json:"tt_from,omitempty"`
	TtTo     string `json:"tt_to,omitempty"`
	NowValue string `json:"now_value,omitempty"`
}

// ParseSpec decodes a schema document. Unknown keys are rejected.
func ParseSpec(data []byte) (Spec, error) {
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return Spec{}, cierrors.Wrap(cierrors.ErrConfig, "invalid schema JSON", err)
	}
	return spec, nil
}

// JSON encodes the spec.
func (s Spec) JSON() ([]byte, error) {
	return json.Marshal(s)
}
