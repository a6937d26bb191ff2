package cellindex

import (
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/nonibytes/cellindex/cellindex/metrics"
	"github.com/nonibytes/cellindex/cellindex/ops"
)

// RankModeKind specifies the type of ranking
type RankModeKind string

const (
	RankDefault RankModeKind = "default" // score DESC
	RankRecency RankModeKind = "recency" // updated_at DESC
	RankField   RankModeKind = "field"   // by the values of one field
	RankNone    RankModeKind = "none"    // insertion order
)

// RankMode configures result ranking
type RankMode struct {
	Kind  RankModeKind
	Field string // only used when Kind==RankField
	Desc  bool
}

// OutputFieldSelectorKind specifies which row columns to include in output
type OutputFieldSelectorKind string

const (
	ShowNone   OutputFieldSelectorKind = "none"   // only the key
	ShowAll    OutputFieldSelectorKind = "all"    // the whole row
	ShowFields OutputFieldSelectorKind = "fields" // listed columns
)

// OutputFieldSelector configures which columns are included in search results
type OutputFieldSelector struct {
	Kind   OutputFieldSelectorKind
	Fields []string // only used when Kind==ShowFields
}

// IndexOptions configures index behavior
type IndexOptions struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
	// Workers bounds how many documents IndexRows builds concurrently.
	Workers      int
	MinPrefixLen int
	MaxTerms     int
	MaxDepth     int
}

// DefaultIndexOptions returns sensible defaults
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		Logger:       zap.NewNop(),
		Now:          time.Now,
		Workers:      runtime.GOMAXPROCS(0),
		MinPrefixLen: DefaultMinPrefixLen,
		MaxTerms:     DefaultMaxTerms,
		MaxDepth:     DefaultMaxDepth,
	}
}

func (o IndexOptions) withDefaults() IndexOptions {
	def := DefaultIndexOptions()
	if o.Logger == nil {
		o.Logger = def.Logger
	}
	if o.Now == nil {
		o.Now = def.Now
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	return o
}

// SearchOptions configures a search operation
type SearchOptions struct {
	Rank    RankMode
	Limit   int
	After   string // cursor token or ""
	Offset  int    // used when After is empty
	Show    OutputFieldSelector
	Explain bool
}

// ItemMeta holds item metadata
type ItemMeta struct {
	CreatedAtMS int64
	UpdatedAtMS int64
}

// ItemView is a stored row with metadata
type ItemView struct {
	Key  string
	Data json.RawMessage
	Meta ItemMeta
}

// Hit is one matching row of a search
type Hit struct {
	Key   string
	Score float64
	Data  json.RawMessage // shaped by the output selector, nil for ShowNone
	Meta  ItemMeta
}

// SearchResultPage is a page of search results
type SearchResultPage struct {
	Hits         []Hit
	Total        int
	NextCursor   string
	HasMore      bool
	ExplainSQL   string
	ExplainSteps []string
}

// Explanation shows how a condition is executed without running it
type Explanation struct {
	Query string
	SQL   string
	Steps []string
	Args  []any
}

type (
	ValueCount    = ops.ValueCount
	FieldOverview = ops.FieldOverview
	StatsResult   = ops.StatsResult
)
