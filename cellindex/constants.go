package cellindex

const (
	DefaultMinPrefixLen = 1
	DefaultMaxTerms     = 1024
	DefaultMaxDepth     = 32
	DefaultDiscoverTop  = 20
)
