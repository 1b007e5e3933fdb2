// Package registry implements the Registry and Composer: the mapping from
// topic to IDL, and the composite-grammar / prefix-trie rebuild that runs
// over it on every change (spec §4.4).
package registry

import (
	"sort"
	"strings"

	"github.com/mistwave/unicornsh/internal/grammar"
	"github.com/mistwave/unicornsh/internal/idl"
)

// Route carries the routing metadata attached to a routable prefix-trie
// node: the topic to publish to, whether to include the matched head word in
// the payload, whether to mint an ad-hoc response-channel suffix, and the
// response topics to bind before dispatch.
type Route struct {
	Topic         string
	IncludeHead   bool
	AdHocChannels bool
	Stdout        *string
	Stderr        *string
	Result        *string
}

// Routable reports whether this node carries a topic and can therefore
// terminate a dispatch.
func (r *Route) Routable() bool {
	return r != nil && r.Topic != ""
}

// Trie mirrors the composite grammar's keyword spine, carrying an optional
// Route at every node.
type Trie struct {
	Route    *Route
	Children map[string]*Trie
}

func newTrie() *Trie {
	return &Trie{Children: map[string]*Trie{}}
}

func (t *Trie) child(kw string) *Trie {
	c, ok := t.Children[kw]
	if !ok {
		c = newTrie()
		t.Children[kw] = c
	}
	return c
}

// Registry maps topic to the most recently announced IDL for it, and holds
// the composite grammar / prefix trie rebuilt from it on every change. It is
// intended to be owned by a single goroutine (the event-loop thread, per
// spec §5); nothing here is internally synchronized.
type Registry struct {
	byTopic map[string]idl.IDL
	order   []string // insertion order, oldest first; governs the documented
	// last-registered-wins collision policy (spec §9 Open Question)

	Composite *grammar.Keyword
	Trie      *Trie

	log grammar.Logger
}

// New creates an empty Registry. log receives diagnostics produced while
// resolving references in freshly-composed IDLs; it may be nil.
func New(log grammar.Logger) *Registry {
	return &Registry{
		byTopic:   map[string]idl.IDL{},
		Composite: grammar.NewKeyword("", nil),
		Trie:      newTrie(),
		log:       log,
	}
}

// Upsert inserts or updates the IDL for its topic and rebuilds the composite
// grammar and prefix trie from scratch over the full registry (spec §4.4
// step 1-2). It returns nothing; callers that persist the IDL set to a cache
// file read it back through All.
func (r *Registry) Upsert(l idl.IDL) {
	if _, existed := r.byTopic[l.Topic]; !existed {
		r.order = append(r.order, l.Topic)
	}
	r.byTopic[l.Topic] = l
	r.rebuild()
}

// All returns every known IDL, keyed by topic. The returned map must not be
// mutated.
func (r *Registry) All() map[string]idl.IDL {
	return r.byTopic
}

// rebuild reconstructs Composite and Trie from scratch over the full
// registry, applying composition rules per IDL (spec §4.4). IDLs are
// processed in registration order; a later IDL's keyword always overwrites
// an earlier one's at the same composite level, which is this
// implementation's deterministic resolution of the collision Open Question.
func (r *Registry) rebuild() {
	r.Composite = grammar.NewKeyword("", nil)
	r.Trie = newTrie()

	for _, topic := range r.order {
		l, ok := r.byTopic[topic]
		if !ok {
			continue
		}
		r.composeOne(l)
	}
}

func (r *Registry) composeOne(l idl.IDL) {
	if l.Flat {
		root, ok := l.Completion.(*grammar.Keyword)
		if !ok {
			return
		}
		for kw, child := range root.Stmts {
			r.Composite.Stmts[kw] = child
			trieChild := r.Trie.child(kw)
			trieChild.Route = routeFor(l, true)
		}
		return
	}

	segs := strings.Split(l.Topic, "/")
	if len(segs) == 0 || (len(segs) == 1 && segs[0] == "") {
		return
	}

	compositeParent := r.Composite
	trieParent := r.Trie
	for _, seg := range segs[:len(segs)-1] {
		next, ok := compositeParent.Stmts[seg]
		if !ok {
			next = grammar.NewKeyword("", nil)
			compositeParent.Stmts[seg] = next
		}
		kwNode, ok := next.(*grammar.Keyword)
		if !ok {
			// an intermediate node exists but isn't a Keyword: abort this
			// IDL's composition silently (spec §4.4).
			return
		}
		compositeParent = kwNode
		trieParent = trieParent.child(seg)
	}

	last := segs[len(segs)-1]
	compositeParent.Stmts[last] = l.Completion
	trieParent.child(last).Route = routeFor(l, false)
}

func routeFor(l idl.IDL, includeHead bool) *Route {
	return &Route{
		Topic:         l.Topic,
		IncludeHead:   includeHead,
		AdHocChannels: l.AdHocChannels,
		Stdout:        l.Stdout,
		Stderr:        l.Stderr,
		Result:        l.Result,
	}
}

// Topics returns every registered topic, sorted, for deterministic
// introspection output.
func (r *Registry) Topics() []string {
	out := make([]string, 0, len(r.byTopic))
	for t := range r.byTopic {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
