package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistwave/unicornsh/internal/registry"
)

func trieWithRoute(path []string, route *registry.Route) *registry.Trie {
	root := &registry.Trie{Children: map[string]*registry.Trie{}}
	cur := root
	for i, seg := range path {
		child, ok := cur.Children[seg]
		if !ok {
			child = &registry.Trie{Children: map[string]*registry.Trie{}}
			cur.Children[seg] = child
		}
		if i == len(path)-1 {
			child.Route = route
		}
		cur = child
	}
	return root
}

func Test_Decode_findsLongestRoutablePrefix(t *testing.T) {
	trie := trieWithRoute([]string{"nav", "move"}, &registry.Route{Topic: "nav/move"})

	d, ok := Decode(trie, "nav move north fast")
	require.True(t, ok)
	assert.Equal(t, "nav/move", d.Topic)
	assert.Equal(t, "north fast", d.Payload)
	assert.Empty(t, d.Suffix)
}

func Test_Decode_noRoutablePrefixReturnsFalse(t *testing.T) {
	trie := trieWithRoute([]string{"nav"}, nil)

	_, ok := Decode(trie, "nav move")
	assert.False(t, ok)
}

func Test_Decode_unknownHeadWordReturnsFalse(t *testing.T) {
	trie := trieWithRoute([]string{"nav"}, &registry.Route{Topic: "nav"})

	_, ok := Decode(trie, "bogus anything")
	assert.False(t, ok)
}

func Test_Decode_includeHeadKeepsMatchedWordInPayload(t *testing.T) {
	trie := trieWithRoute([]string{"go"}, &registry.Route{Topic: "go", IncludeHead: true})

	d, ok := Decode(trie, "go north")
	require.True(t, ok)
	assert.Equal(t, "go north", d.Payload)
}

func Test_Decode_adHocChannelsAppendsSuffixToTopic(t *testing.T) {
	trie := trieWithRoute([]string{"run"}, &registry.Route{Topic: "run", AdHocChannels: true})

	d, ok := Decode(trie, "run now")
	require.True(t, ok)
	assert.NotEmpty(t, d.Suffix)
	assert.Equal(t, "run"+d.Suffix, d.Topic)
}

func Test_Decode_quotedPayloadIsPassedVerbatim(t *testing.T) {
	trie := trieWithRoute([]string{"say"}, &registry.Route{Topic: "say"})

	d, ok := Decode(trie, `say "hello world"`)
	require.True(t, ok)
	assert.Equal(t, `"hello world"`, d.Payload)
}

func Test_Decode_deeperRouteWinsOverShallowerOne(t *testing.T) {
	trie := trieWithRoute([]string{"nav"}, &registry.Route{Topic: "nav"})
	trie.Children["nav"].Children["move"] = &registry.Trie{
		Children: map[string]*registry.Trie{},
		Route:    &registry.Route{Topic: "nav/move"},
	}

	d, ok := Decode(trie, "nav move north")
	require.True(t, ok)
	assert.Equal(t, "nav/move", d.Topic)
	assert.Equal(t, "north", d.Payload)
}

func Test_nextShellToken_handlesEscapesAndQuotes(t *testing.T) {
	tok, rest, ok := nextShellToken(`foo\ bar baz`)
	require.True(t, ok)
	assert.Equal(t, "foo bar", tok)
	assert.Equal(t, " baz", rest)

	tok2, _, ok := nextShellToken(`'single quoted'`)
	require.True(t, ok)
	assert.Equal(t, "single quoted", tok2)
}

func Test_nextShellToken_emptyRemainderIsNotOk(t *testing.T) {
	_, _, ok := nextShellToken("   ")
	assert.False(t, ok)
}
