package grammar

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NodeFromJSON_decodesNestedTree(t *testing.T) {
	src := `{
		"type": "keyword",
		"stmts": {
			"status": {
				"type": "sequence",
				"stmts": [
					{"type": "string", "id": "who", "options": ["alice", "bob"]},
					{"type": "number", "id": "n", "integer": true}
				]
			},
			"loop": {
				"type": "repeat",
				"stmt": {"type": "string", "options": null},
				"end": ["done"],
				"peekEnd": false
			}
		}
	}`

	node, err := NodeFromJSON(json.RawMessage(src))
	require.NoError(t, err)

	kw, ok := node.(*Keyword)
	require.True(t, ok)
	assert.Len(t, kw.Stmts, 2)

	seq, ok := kw.Stmts["status"].(*Sequence)
	require.True(t, ok)
	require.Len(t, seq.Stmts, 2)

	str, ok := seq.Stmts[0].(*String)
	require.True(t, ok)
	assert.Equal(t, []string{"alice", "bob"}, str.Options)

	num, ok := seq.Stmts[1].(*Number)
	require.True(t, ok)
	assert.True(t, num.Integer)

	rep, ok := kw.Stmts["loop"].(*Repeat)
	require.True(t, ok)
	assert.Equal(t, []string{"done"}, rep.End)
	assert.False(t, rep.PeekEnd)
}

func Test_NodeFromJSON_null(t *testing.T) {
	node, err := NodeFromJSON(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Equal(t, Empty{}, node)
}

func Test_NodeFromJSON_unknownType(t *testing.T) {
	_, err := NodeFromJSON(json.RawMessage(`{"type": "bogus"}`))
	assert.Error(t, err)
}

func Test_NodeFromJSON_referenceRequiresRef(t *testing.T) {
	_, err := NodeFromJSON(json.RawMessage(`{"type": "reference"}`))
	assert.Error(t, err)
}

func Test_decodeEnd_acceptsStringOrArray(t *testing.T) {
	single, err := decodeEnd(json.RawMessage(`"done"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"done"}, single)

	multi, err := decodeEnd(json.RawMessage(`["a", "b"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, multi)

	none, err := decodeEnd(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func Test_ValidateEnvelope_catchesMissingRepeatStmt(t *testing.T) {
	err := ValidateEnvelope(json.RawMessage(`{"type": "repeat", "end": "done"}`))
	assert.Error(t, err)
}

func Test_ValidateEnvelope_recursesIntoChildren(t *testing.T) {
	err := ValidateEnvelope(json.RawMessage(`{
		"type": "sequence",
		"stmts": [{"type": "reference"}]
	}`))
	assert.Error(t, err)
}

func Test_ValidateEnvelope_acceptsWellFormedTree(t *testing.T) {
	err := ValidateEnvelope(json.RawMessage(`{
		"type": "keyword",
		"stmts": {"go": {"type": "empty"}}
	}`))
	assert.NoError(t, err)
}

func Test_ToDict_roundTripsThroughNodeFromJSON(t *testing.T) {
	original := NewKeyword("", map[string]Node{
		"go": NewString("dest", []string{"north", "south"}),
	})

	b, err := json.Marshal(ToDict(original))
	require.NoError(t, err)

	node, err := NodeFromJSON(b)
	require.NoError(t, err)

	kw := node.(*Keyword)
	str := kw.Stmts["go"].(*String)
	assert.Equal(t, []string{"north", "south"}, str.Options)
	assert.Equal(t, "dest", str.ID())
}
