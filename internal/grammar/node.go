// Package grammar implements the closed set of IDL grammar node kinds and
// their completion contract: Keyword, Sequence, Repeat, String, Number,
// Reference, and Empty.
package grammar

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mistwave/unicornsh/internal/shellerr"
	"github.com/mistwave/unicornsh/internal/token"
)

var fold = cases.Fold()

func foldPrefix(s string) string {
	return fold.String(s)
}

// Logger receives a single-line diagnostic through a Printf-style Logf
// method. *log.Logger does not satisfy it directly (its method is Printf).
type Logger interface {
	Logf(format string, args ...interface{})
}

// nopLogger discards everything; used when no Logger is supplied.
type nopLogger struct{}

func (nopLogger) Logf(string, ...interface{}) {}

// Node is the uniform interface every grammar variant implements. Complete
// consumes tokens off toks as needed and returns every completion candidate
// it can produce for the token currently under the cursor, in no particular
// order; candidates are deduplicated and sorted by the caller.
//
// Complete must terminate for every finite token stream: Sequence stops at
// toks.EOF, Repeat stops at toks.EOF or as soon as one pass of its body
// consumes no token, and Reference never re-enters a cycle because its
// back-pointer is resolved, not traversed structurally.
type Node interface {
	// ID returns the node's IDL-local identifier, or "" if it has none.
	ID() string

	// Complete advances toks as its contract requires and returns candidate
	// completions for the token under the cursor, if any.
	Complete(toks *token.Stream) []string

	// toDict produces the JSON-envelope-shaped value for this node, breaking
	// cycles introduced by Reference with a null placeholder.
	toDict(seen map[Node]bool) interface{}
}

// ToDict renders a node tree to the JSON envelope shape described in spec §6,
// ready for json.Marshal.
func ToDict(n Node) interface{} {
	if n == nil {
		return nil
	}
	return n.toDict(map[Node]bool{})
}

// base carries the optional id shared by every variant except Reference and
// Empty (which have none) and Reference (which has ref instead).
type base struct {
	id string
}

func (b base) ID() string { return b.id }

// Keyword matches one literal keyword token and delegates to that keyword's
// child node.
type Keyword struct {
	base
	Stmts map[string]Node
}

// NewKeyword builds a Keyword node. stmts is taken by reference, not copied;
// the Composer relies on this to graft new keywords into an existing node
// during composition (see Registry.composeOne in internal/registry).
func NewKeyword(id string, stmts map[string]Node) *Keyword {
	if stmts == nil {
		stmts = map[string]Node{}
	}
	return &Keyword{base: base{id: id}, Stmts: stmts}
}

func (k *Keyword) Complete(toks *token.Stream) []string {
	tok := toks.Next(true)
	if !tok.Partial() {
		if _, ok := k.Stmts[tok.Text]; !ok {
			return nil
		}
		toks.Next(false)
		return k.Stmts[tok.Text].Complete(toks)
	}

	prefix := foldPrefix(tok.Prefix())
	var out []string
	for kw := range k.Stmts {
		if strings.HasPrefix(foldPrefix(kw), prefix) {
			out = append(out, kw)
		}
	}
	return out
}

func (k *Keyword) toDict(seen map[Node]bool) interface{} {
	if seen[k] {
		return nil
	}
	seen[k] = true
	stmts := map[string]interface{}{}
	for kw, child := range k.Stmts {
		stmts[kw] = child.toDict(seen)
	}
	delete(seen, k)
	res := map[string]interface{}{"type": "keyword", "stmts": stmts}
	if k.id != "" {
		res["id"] = k.id
	}
	return res
}

// Sequence matches each of its children in order.
type Sequence struct {
	base
	Stmts []Node
}

func NewSequence(id string, stmts ...Node) *Sequence {
	return &Sequence{base: base{id: id}, Stmts: stmts}
}

func (s *Sequence) Complete(toks *token.Stream) []string {
	var out []string
	for _, child := range s.Stmts {
		out = append(out, child.Complete(toks)...)
		if toks.EOF() {
			break
		}
	}
	return out
}

func (s *Sequence) toDict(seen map[Node]bool) interface{} {
	if seen[s] {
		return nil
	}
	seen[s] = true
	stmts := make([]interface{}, len(s.Stmts))
	for i, child := range s.Stmts {
		stmts[i] = child.toDict(seen)
	}
	delete(seen, s)
	res := map[string]interface{}{"type": "sequence", "stmts": stmts}
	if s.id != "" {
		res["id"] = s.id
	}
	return res
}

// Repeat matches its body zero or more times until an end-literal is seen
// (if configured). The end-literal is consumed unless PeekEnd is set.
type Repeat struct {
	base
	Stmt    Node
	End     []string
	PeekEnd bool

	endSet map[string]bool
}

func NewRepeat(id string, stmt Node, end []string, peekEnd bool) *Repeat {
	r := &Repeat{base: base{id: id}, Stmt: stmt, End: end, PeekEnd: peekEnd}
	if end != nil {
		r.endSet = map[string]bool{}
		for _, e := range end {
			r.endSet[e] = true
		}
	}
	return r
}

func (r *Repeat) Complete(toks *token.Stream) []string {
	var out []string
	for {
		if r.endSet != nil {
			tok := toks.Next(true)
			if tok.Partial() {
				prefix := foldPrefix(tok.Prefix())
				lits := append([]string{}, r.End...)
				sort.Strings(lits)
				for _, lit := range lits {
					if strings.HasPrefix(foldPrefix(lit), prefix) {
						out = append(out, lit)
					}
				}
			}
			if !tok.Partial() && r.endSet[tok.Text] {
				if !r.PeekEnd {
					toks.Next(false)
				}
				break
			}
		}
		before := toks.Remaining()
		out = append(out, r.Stmt.Complete(toks)...)
		if toks.EOF() || toks.Remaining() == before {
			break
		}
	}
	return out
}

func (r *Repeat) toDict(seen map[Node]bool) interface{} {
	if seen[r] {
		return nil
	}
	seen[r] = true
	res := map[string]interface{}{
		"type":    "repeat",
		"stmt":    r.Stmt.toDict(seen),
		"peekEnd": r.PeekEnd,
	}
	delete(seen, r)
	if r.End != nil {
		res["end"] = r.End
	} else {
		res["end"] = nil
	}
	if r.id != "" {
		res["id"] = r.id
	}
	return res
}

// OptionsFunc produces a dynamic option set for a String node given the
// in-progress token stream (e.g. to offer captured-parameter-dependent
// completions).
type OptionsFunc func(*token.Stream) []string

// String consumes one token. If it is complete and the node has an id, the
// token's value is recorded on the stream. If it is partial, completions are
// offered from a static option set or a dynamic producer.
type String struct {
	base
	Options     []string
	OptionsFunc OptionsFunc
}

func NewString(id string, options []string) *String {
	return &String{base: base{id: id}, Options: options}
}

func NewStringFunc(id string, fn OptionsFunc) *String {
	return &String{base: base{id: id}, OptionsFunc: fn}
}

func (s *String) Complete(toks *token.Stream) []string {
	return completeLeaf(s.base, s.Options, s.OptionsFunc, toks)
}

func completeLeaf(b base, opts []string, fn OptionsFunc, toks *token.Stream) []string {
	tok := toks.Next(false)
	if !tok.Partial() {
		if b.id != "" {
			toks.Capture(b.id, tok.Text)
		}
		return nil
	}

	var candidates []string
	if fn != nil {
		candidates = fn(toks)
	} else {
		candidates = opts
	}

	prefix := foldPrefix(tok.Prefix())
	var out []string
	for _, opt := range candidates {
		if strings.HasPrefix(foldPrefix(opt), prefix) {
			out = append(out, opt)
		}
	}
	return out
}

func (s *String) toDict(seen map[Node]bool) interface{} {
	res := map[string]interface{}{"type": "string"}
	if s.Options != nil {
		opts := append([]string{}, s.Options...)
		sort.Strings(opts)
		res["options"] = opts
	} else {
		res["options"] = nil
	}
	if s.id != "" {
		res["id"] = s.id
	}
	return res
}

// Number consumes one token the same way String does, for grammar purposes
// only; it never validates numeric-ness and, per spec §9's resolution of the
// source's dead option-producer branch, never offers completions — it only
// records its captured value when the token is complete.
type Number struct {
	base
	Integer  bool
	Min, Max *float64
}

func NewNumber(id string, integer bool, min, max *float64) *Number {
	return &Number{base: base{id: id}, Integer: integer, Min: min, Max: max}
}

func (n *Number) Complete(toks *token.Stream) []string {
	tok := toks.Next(false)
	if !tok.Partial() {
		if n.id != "" {
			toks.Capture(n.id, tok.Text)
		}
	}
	return nil
}

func (n *Number) toDict(seen map[Node]bool) interface{} {
	res := map[string]interface{}{"type": "number", "integer": n.Integer}
	if n.Min != nil {
		res["min"] = *n.Min
	} else {
		res["min"] = nil
	}
	if n.Max != nil {
		res["max"] = *n.Max
	} else {
		res["max"] = nil
	}
	if n.id != "" {
		res["id"] = n.id
	}
	return res
}

// Reference forwards all behavior to the node its Ref resolves to. Its
// default traversal (ResolveReferences, ToDict) never follows the back
// pointer, which is what keeps recursive IDL grammars from looping forever;
// see ResolveReferences for the one place the back pointer is actually set.
type Reference struct {
	Ref  string
	node Node // resolved by ResolveReferences; nil until then or on failure
}

func NewReference(ref string) *Reference {
	return &Reference{Ref: ref}
}

func (r *Reference) ID() string { return "" }

func (r *Reference) Complete(toks *token.Stream) []string {
	if r.node == nil {
		return nil
	}
	return r.node.Complete(toks)
}

func (r *Reference) toDict(seen map[Node]bool) interface{} {
	return map[string]interface{}{"type": "reference", "ref": r.Ref}
}

// Empty matches the empty input: it consumes nothing and offers nothing.
type Empty struct{}

func NewEmpty() Empty { return Empty{} }

func (Empty) ID() string                       { return "" }
func (Empty) Complete(*token.Stream) []string  { return nil }
func (Empty) toDict(map[Node]bool) interface{} { return nil }

// ResolveReferences walks root (without following Reference edges, so
// recursive grammars can't send it into a cycle) to build an id->node
// index, then does a second pass setting every Reference's back-pointer.
// A Reference whose Ref has no matching id logs via shellerr.UnresolvedReference
// and is left with a nil node, behaving as Empty per its Complete.
func ResolveReferences(root Node, log Logger) {
	if log == nil {
		log = nopLogger{}
	}
	ids := map[string]Node{}
	Traverse(root, false, func(n Node) {
		if n.ID() != "" {
			ids[n.ID()] = n
		}
	})

	Traverse(root, false, func(n Node) {
		ref, ok := n.(*Reference)
		if !ok {
			return
		}
		target, found := ids[ref.Ref]
		if !found {
			log.Logf("%s", shellerr.UnresolvedReference(ref.Ref).Error())
			return
		}
		ref.node = target
	})
}

// Traverse visits n and every descendant reachable without crossing a
// Reference edge (followReferences=false, the only mode ResolveReferences
// and serialization may safely use) or including it (true). With true, a
// resolved Reference that points back at one of its ancestors makes the walk
// never end; nothing in this module passes true.
func Traverse(n Node, followReferences bool, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch t := n.(type) {
	case *Keyword:
		for _, child := range t.Stmts {
			Traverse(child, followReferences, visit)
		}
	case *Sequence:
		for _, child := range t.Stmts {
			Traverse(child, followReferences, visit)
		}
	case *Repeat:
		Traverse(t.Stmt, followReferences, visit)
	case *Reference:
		if followReferences && t.node != nil {
			Traverse(t.node, followReferences, visit)
		}
	case *String, *Number, Empty:
		// leaves
	default:
		panic(fmt.Sprintf("grammar: unhandled node type %T", n))
	}
}
