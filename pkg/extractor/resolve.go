package extractor

import (
	"fmt"
	"sort"
	"strings"
)

// Resolution controls how method references with several candidates are linked.
type Resolution int

const (
	// Permissive links a method reference to every candidate.
	Permissive Resolution = iota
	// Strict keeps a method reference only when exactly one candidate exists.
	Strict
)

// String implements fmt.Stringer.
func (r Resolution) String() string {
	if r == Strict {
		return "strict"
	}
	return "permissive"
}

// ParseResolution parses "permissive" or "strict". The empty string is Permissive.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return Permissive, fmt.Errorf("unknown resolution mode %q (want permissive or strict)", s)
	}
}

// Reference is a resolved raw reference: either a ResolvedReference or an
// AmbiguousMethodReference.
type Reference interface {
	// Targets returns the node ids the reference links to under mode.
	Targets(mode Resolution) []string
}

// ResolvedReference names exactly one existing node.
type ResolvedReference struct {
	TargetID string
}

// Targets implements Reference.
func (r ResolvedReference) Targets(Resolution) []string {
	return []string{r.TargetID}
}

// AmbiguousMethodReference is a bare method call that may dispatch to any
// method of that name.
type AmbiguousMethodReference struct {
	MethodName   string
	CandidateIDs []string
}

// Targets implements Reference.
func (r AmbiguousMethodReference) Targets(mode Resolution) []string {
	if mode == Strict && len(r.CandidateIDs) != 1 {
		return nil
	}
	return r.CandidateIDs
}

// symbolIndex looks symbols up by exact id and by method name.
type symbolIndex struct {
	exact    map[string]struct{}
	byMethod map[string][]string
}

func newSymbolIndex(frags []*Fragment) *symbolIndex {
	ix := &symbolIndex{
		exact:    make(map[string]struct{}),
		byMethod: make(map[string][]string),
	}
	for _, f := range frags {
		if f == nil {
			continue
		}
		for _, s := range f.Symbols {
			if _, ok := ix.exact[s.ID]; ok {
				continue
			}
			ix.exact[s.ID] = struct{}{}
			if dot := strings.LastIndexByte(s.ID, '.'); dot >= 0 {
				name := s.ID[dot+1:]
				ix.byMethod[name] = append(ix.byMethod[name], s.ID)
			}
		}
	}
	for _, ids := range ix.byMethod {
		sort.Strings(ids)
	}
	return ix
}

// resolve maps a raw reference onto the index. It returns nil when
// nothing matches.
func (ix *symbolIndex) resolve(raw RawReference) Reference {
	if raw.Kind == RefMethod {
		candidates := ix.byMethod[raw.Name]
		if len(candidates) == 0 {
			return nil
		}
		return AmbiguousMethodReference{MethodName: raw.Name, CandidateIDs: candidates}
	}

	if _, ok := ix.exact[raw.Name]; !ok {
		return nil
	}
	return ResolvedReference{TargetID: raw.Name}
}
