package deadcode

import "github.com/panbanda/reaper/pkg/graph"

// Reasons attached to an item, in the order the scoring rules fire.
const (
	ReasonNoInbound    = "no inbound calls"
	ReasonNonFunction  = "non-function symbol"
	ReasonKeepPattern  = "matches keep pattern"
	baseConfidence     = 4
	nonFunctionBonus   = 1
	keepPatternPenalty = 3
)

// DefaultThreshold is the score at or above which an item is high confidence.
const DefaultThreshold = 5

// Item is one unreachable symbol with its deletion-safety score.
type Item struct {
	Symbol     string     `json:"symbol" toon:"symbol"`
	Kind       graph.Kind `json:"kind" toon:"kind"`
	File       string     `json:"file" toon:"file"`
	Confidence int        `json:"confidence" toon:"confidence"`
	Reasons    []string   `json:"reasons" toon:"reasons"`
	Lines      string     `json:"lines" toon:"lines"`
}

// Summary aggregates a classification run.
type Summary struct {
	ScannedFiles   int `json:"scanned_files" toon:"scanned_files"`
	SymbolsTotal   int `json:"symbols_total" toon:"symbols_total"`
	DeadSymbols    int `json:"dead_symbols" toon:"dead_symbols"`
	HighConfidence int `json:"high_confidence" toon:"high_confidence"`
}

// InvalidPattern is a keep pattern that failed to compile and therefore
// never matches.
type InvalidPattern struct {
	Pattern string `json:"pattern" toon:"pattern"`
	Error   string `json:"error" toon:"error"`
}

// Report is the classifier output. Only Summary and Items are part of the
// serialized dead_code.json document.
type Report struct {
	Summary Summary `json:"summary" toon:"summary"`
	Items   []Item  `json:"items" toon:"items"`

	// DeleteList holds every file containing at least one dead symbol.
	DeleteList []string `json:"-" toon:"-"`
	// DeleteListHigh holds the files whose dead symbols all reach Threshold.
	DeleteListHigh []string `json:"-" toon:"-"`

	Threshold       int              `json:"-" toon:"-"`
	InvalidPatterns []InvalidPattern `json:"-" toon:"-"`
}

// IsHigh reports whether item reaches the report's threshold.
func (r *Report) IsHigh(item Item) bool {
	return item.Confidence >= r.Threshold
}
