package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistwave/unicornsh/internal/grammar"
	"github.com/mistwave/unicornsh/internal/idl"
)

func mustIDL(t *testing.T, topic string, payload string) idl.IDL {
	t.Helper()
	l, err := idl.FromJSON(topic, []byte(payload), true, nil)
	require.NoError(t, err)
	return l
}

func Test_Upsert_nestedTopicBuildsPathThroughComposite(t *testing.T) {
	r := New(nil)
	l := mustIDL(t, "nav/move", `{"completion": {"type": "empty"}}`)

	r.Upsert(l)

	navNode, ok := r.Composite.Stmts["nav"].(*grammar.Keyword)
	require.True(t, ok)
	assert.Contains(t, navNode.Stmts, "move")

	trieNav, ok := r.Trie.Children["nav"]
	require.True(t, ok)
	trieMove, ok := trieNav.Children["move"]
	require.True(t, ok)
	require.NotNil(t, trieMove.Route)
	assert.Equal(t, "nav/move", trieMove.Route.Topic)
	assert.False(t, trieMove.Route.IncludeHead)
}

func Test_Upsert_flatIDLMergesAtTopLevel(t *testing.T) {
	r := New(nil)
	l := mustIDL(t, "nav/move", `{
		"completion": {"type": "keyword", "stmts": {"go": {"type": "empty"}}},
		"flat": true
	}`)

	r.Upsert(l)

	assert.Contains(t, r.Composite.Stmts, "go")
	trieGo, ok := r.Trie.Children["go"]
	require.True(t, ok)
	require.NotNil(t, trieGo.Route)
	assert.True(t, trieGo.Route.IncludeHead)
}

func Test_Upsert_lastRegisteredWinsOnCollision(t *testing.T) {
	r := New(nil)
	first := mustIDL(t, "a", `{
		"completion": {"type": "keyword", "stmts": {"go": {"type": "string", "options": ["one"]}}},
		"flat": true
	}`)
	second := mustIDL(t, "b", `{
		"completion": {"type": "keyword", "stmts": {"go": {"type": "string", "options": ["two"]}}},
		"flat": true
	}`)

	r.Upsert(first)
	r.Upsert(second)

	str, ok := r.Composite.Stmts["go"].(*grammar.String)
	require.True(t, ok)
	assert.Equal(t, []string{"two"}, str.Options)
}

func Test_Upsert_reRegisteringSameTopicReplacesWithoutDuplicatingOrder(t *testing.T) {
	r := New(nil)
	v1 := mustIDL(t, "nav/move", `{"completion": {"type": "string", "options": ["a"]}}`)
	v2 := mustIDL(t, "nav/move", `{"completion": {"type": "string", "options": ["b"]}}`)

	r.Upsert(v1)
	r.Upsert(v2)

	assert.Len(t, r.All(), 1)
	nav := r.Composite.Stmts["nav"].(*grammar.Keyword)
	str := nav.Stmts["move"].(*grammar.String)
	assert.Equal(t, []string{"b"}, str.Options)
}

func Test_Topics_returnsSortedTopicList(t *testing.T) {
	r := New(nil)
	r.Upsert(mustIDL(t, "z/last", `{"completion": {"type": "empty"}}`))
	r.Upsert(mustIDL(t, "a/first", `{"completion": {"type": "empty"}}`))

	assert.Equal(t, []string{"a/first", "z/last"}, r.Topics())
}

func Test_Route_Routable(t *testing.T) {
	var nilRoute *Route
	assert.False(t, nilRoute.Routable())

	empty := &Route{}
	assert.False(t, empty.Routable())

	withTopic := &Route{Topic: "x"}
	assert.True(t, withTopic.Routable())
}
