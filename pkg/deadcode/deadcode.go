// Package deadcode scores unreachable symbols and derives the files that
// are candidates for deletion.
//
// Every symbol outside the reachable set starts at 4 ("no inbound calls"),
// gains 1 when it is not a plain function, and loses 3 for each keep
// pattern its id matches. Items at or above the threshold are high
// confidence. A file is on the high-confidence delete list only when every
// dead symbol it defines is high confidence.
package deadcode

import (
	"regexp"
	"sort"

	"github.com/panbanda/reaper/pkg/graph"
)

// Reachable is the membership test the classifier needs from a reachable set.
type Reachable interface {
	Contains(id string) bool
}

// Classifier scores dead symbols with a fixed pattern list and threshold.
type Classifier struct {
	patterns  []*regexp.Regexp
	invalid   []InvalidPattern
	threshold int
}

// Option is a functional option for configuring Classifier.
type Option func(*Classifier)

// WithThreshold sets the high-confidence threshold.
func WithThreshold(threshold int) Option {
	return func(c *Classifier) {
		c.threshold = threshold
	}
}

// WithKeepPatterns sets the keep patterns. Each pattern is compiled once;
// patterns that fail to compile are kept in position but never match.
func WithKeepPatterns(patterns []string) Option {
	return func(c *Classifier) {
		c.patterns = make([]*regexp.Regexp, len(patterns))
		c.invalid = nil
		for i, p := range patterns {
			re, err := CompilePattern(p)
			if err != nil {
				c.invalid = append(c.invalid, InvalidPattern{Pattern: p, Error: err.Error()})
				continue
			}
			c.patterns[i] = re
		}
	}
}

// New creates a classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InvalidPatterns returns the keep patterns that failed to compile.
func (c *Classifier) InvalidPatterns() []InvalidPattern {
	return c.invalid
}

// Score computes the confidence and reasons for one unreachable symbol.
func (c *Classifier) Score(sym graph.Symbol) (int, []string) {
	confidence := baseConfidence
	reasons := []string{ReasonNoInbound}

	if sym.Kind != graph.KindFunction {
		confidence += nonFunctionBonus
		reasons = append(reasons, ReasonNonFunction)
	}

	for _, re := range c.patterns {
		if re != nil && re.MatchString(sym.ID) {
			confidence -= keepPatternPenalty
			reasons = append(reasons, ReasonKeepPattern)
		}
	}

	return confidence, reasons
}

// Classify builds the report for every node of g that reachable does not
// contain. It does not modify g and returns equal reports for equal input.
func (c *Classifier) Classify(g *graph.Graph, reachable Reachable) *Report {
	r := &Report{
		Items:           make([]Item, 0),
		DeleteList:      make([]string, 0),
		DeleteListHigh:  make([]string, 0),
		Threshold:       c.threshold,
		InvalidPatterns: c.invalid,
	}

	// Lowest confidence seen per file among its dead symbols.
	minByFile := make(map[string]int)

	for _, sym := range g.Nodes() {
		if reachable != nil && reachable.Contains(sym.ID) {
			continue
		}

		confidence, reasons := c.Score(sym)
		if confidence >= c.threshold {
			r.Summary.HighConfidence++
		}

		r.Items = append(r.Items, Item{
			Symbol:     sym.ID,
			Kind:       sym.Kind,
			File:       sym.File,
			Confidence: confidence,
			Reasons:    reasons,
			Lines:      sym.Lines.String(),
		})

		if m, ok := minByFile[sym.File]; !ok || confidence < m {
			minByFile[sym.File] = confidence
		}
	}

	sort.SliceStable(r.Items, func(i, j int) bool {
		if r.Items[i].Confidence != r.Items[j].Confidence {
			return r.Items[i].Confidence > r.Items[j].Confidence
		}
		return r.Items[i].Symbol < r.Items[j].Symbol
	})

	for file, lowest := range minByFile {
		r.DeleteList = append(r.DeleteList, file)
		if lowest >= c.threshold {
			r.DeleteListHigh = append(r.DeleteListHigh, file)
		}
	}
	sort.Strings(r.DeleteList)
	sort.Strings(r.DeleteListHigh)

	r.Summary.ScannedFiles = len(g.Files())
	r.Summary.SymbolsTotal = g.Len()
	r.Summary.DeadSymbols = len(r.Items)

	return r
}

// Classify is a convenience wrapper around New(...).Classify.
func Classify(g *graph.Graph, reachable Reachable, keepPatterns []string, threshold int) *Report {
	return New(WithKeepPatterns(keepPatterns), WithThreshold(threshold)).Classify(g, reachable)
}
