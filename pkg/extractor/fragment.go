package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/reaper/pkg/graph"
	"github.com/panbanda/reaper/pkg/parser"
)

// RefKind distinguishes the syntactic forms a reference can take.
type RefKind string

const (
	// RefCall is a direct function call; Name is the qualified function name.
	RefCall RefKind = "call"
	// RefMethod is an instance method call; Name is the bare method name.
	RefMethod RefKind = "method"
	// RefStatic is a static call; Name is "Class.method" with Class qualified.
	RefStatic RefKind = "static"
	// RefNew is an instantiation; Name is the qualified class name.
	RefNew RefKind = "new"
)

// RawReference is an unresolved reference found in a source unit.
type RawReference struct {
	Kind RefKind `json:"kind"`
	Name string  `json:"name"`
	// Caller is the innermost declaration enclosing the reference, empty
	// when the reference sits outside any declaration.
	Caller string `json:"caller,omitempty"`
}

// Fragment is everything one source unit contributes to the graph.
type Fragment struct {
	Path       string         `json:"path"`
	Symbols    []graph.Symbol `json:"symbols"`
	References []RawReference `json:"references"`
}

// scope is the traversal context. It is passed by value so entering a
// declaration never leaks into siblings.
type scope struct {
	namespace string
	class     string
	owner     string
}

const nsSep = `\`

// qualify prefixes name with the current namespace unless it is already
// qualified. A leading separator marks a fully-qualified name.
func (s scope) qualify(name string) string {
	if strings.HasPrefix(name, nsSep) {
		return name[1:]
	}
	if rest, ok := cutPrefixFold(name, `namespace\`); ok {
		if s.namespace == "" {
			return rest
		}
		return s.namespace + nsSep + rest
	}
	if s.namespace == "" || strings.Contains(name, nsSep) {
		return name
	}
	return s.namespace + nsSep + name
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

type walker struct {
	source    []byte
	functions []graph.Symbol
	classes   []graph.Symbol
	methods   []graph.Symbol
	refs      []RawReference
}

func (w *walker) text(n *sitter.Node) string {
	return parser.GetNodeText(n, w.source)
}

func (w *walker) symbol(n *sitter.Node, id string, kind graph.Kind) graph.Symbol {
	start, end := parser.Lines(n)
	return graph.Symbol{ID: id, Kind: kind, Lines: graph.LineRange{Start: int(start), End: int(end)}}
}

func (w *walker) ref(kind RefKind, name string, sc scope) {
	w.refs = append(w.refs, RawReference{Kind: kind, Name: name, Caller: sc.owner})
}

// children visits the named children of n in order, threading the scope
// so a statement-form namespace applies to the siblings after it.
func (w *walker) children(n *sitter.Node, sc scope) scope {
	for i := range int(n.NamedChildCount()) {
		sc = w.visit(n.NamedChild(i), sc)
	}
	return sc
}

func (w *walker) visit(n *sitter.Node, sc scope) scope {
	if n == nil {
		return sc
	}

	switch n.Type() {
	case "namespace_definition":
		inner := scope{namespace: w.text(n.ChildByFieldName("name"))}
		if body := n.ChildByFieldName("body"); body != nil {
			w.children(body, inner)
			return sc
		}
		return inner

	case "class_declaration":
		inner := sc
		inner.class = ""
		if name := n.ChildByFieldName("name"); name != nil {
			id := sc.qualify(w.text(name))
			w.classes = append(w.classes, w.symbol(n, id, graph.KindClass))
			inner.class = id
			inner.owner = id
		}
		w.children(n, inner)
		return sc

	case "interface_declaration", "trait_declaration", "enum_declaration", "anonymous_class":
		inner := sc
		inner.class = ""
		w.children(n, inner)
		return sc

	case "method_declaration":
		inner := sc
		if name := n.ChildByFieldName("name"); name != nil && sc.class != "" {
			id := sc.class + "." + w.text(name)
			w.methods = append(w.methods, w.symbol(n, id, graph.KindMethod))
			inner.owner = id
		}
		w.children(n, inner)
		return sc

	case "function_definition":
		inner := sc
		if name := n.ChildByFieldName("name"); name != nil {
			id := sc.qualify(w.text(name))
			w.functions = append(w.functions, w.symbol(n, id, graph.KindFunction))
			inner.owner = id
		}
		w.children(n, inner)
		return sc

	case "function_call_expression":
		if fn := n.ChildByFieldName("function"); fn != nil && isName(fn) {
			w.ref(RefCall, sc.qualify(w.text(fn)), sc)
		}

	case "member_call_expression", "nullsafe_member_call_expression":
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == "name" {
			w.ref(RefMethod, w.text(name), sc)
		}

	case "scoped_call_expression":
		name := n.ChildByFieldName("name")
		if name != nil && name.Type() == "name" {
			if class, ok := w.classRef(n.ChildByFieldName("scope"), sc); ok {
				w.ref(RefStatic, class+"."+w.text(name), sc)
			}
		}

	case "object_creation_expression":
		var target *sitter.Node
		anonymous := false
		for i := range int(n.NamedChildCount()) {
			child := n.NamedChild(i)
			switch {
			case child.Type() == "declaration_list" || child.Type() == "anonymous_class":
				anonymous = true
			case target == nil && (isName(child) || child.Type() == "relative_scope"):
				target = child
			}
		}
		if anonymous {
			inner := sc
			inner.class = ""
			w.children(n, inner)
			return sc
		}
		if class, ok := w.classRef(target, sc); ok {
			w.ref(RefNew, class, sc)
		}
	}

	w.children(n, sc)
	return sc
}

// classRef resolves the class named by a static-call scope or a new
// expression. self and static mean the enclosing class; parent and dynamic
// expressions cannot be resolved.
func (w *walker) classRef(n *sitter.Node, sc scope) (string, bool) {
	if n == nil {
		return "", false
	}
	if !isName(n) && n.Type() != "relative_scope" {
		return "", false
	}

	text := w.text(n)
	switch strings.ToLower(text) {
	case "self", "static":
		return sc.class, sc.class != ""
	case "parent":
		return "", false
	}
	if n.Type() == "relative_scope" {
		return "", false
	}
	return sc.qualify(text), text != ""
}

func isName(n *sitter.Node) bool {
	t := n.Type()
	return t == "name" || t == "qualified_name"
}

// fragment assembles the extracted symbols in registration order:
// functions, then classes, then methods.
func (w *walker) fragment(path string) *Fragment {
	f := &Fragment{
		Path:       path,
		Symbols:    make([]graph.Symbol, 0, len(w.functions)+len(w.classes)+len(w.methods)),
		References: w.refs,
	}
	for _, group := range [][]graph.Symbol{w.functions, w.classes, w.methods} {
		for _, s := range group {
			s.File = path
			f.Symbols = append(f.Symbols, s)
		}
	}
	return f
}

// extractFragment parses source and collects its symbols and references.
func extractFragment(psr *parser.Parser, path string, source []byte) (*Fragment, error) {
	res, err := psr.Parse(source, parser.LangPHP, path)
	if err != nil {
		return nil, failAt(StageParse, err)
	}
	defer res.Close()

	if res.HasSyntaxError() {
		return nil, failAt(StageParse, ErrSyntax)
	}

	w := &walker{source: source}
	w.children(res.Tree.RootNode(), scope{})
	return w.fragment(path), nil
}
