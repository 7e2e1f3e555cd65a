package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeValue(t *testing.T, raw string) Value {
	t.Helper()
	var v Value
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestValueDecodePrimitive(t *testing.T) {
	v := decodeValue(t, `{"kind":"primitive","type":"number","value":"42"}`)
	assert.Equal(t, KindPrimitive, v.Kind)
	assert.Equal(t, "number", v.Type)
	assert.Equal(t, "42", v.Literal)
	assert.False(t, v.Expandable())
}

func TestValueDecodeDefaultsToPrimitive(t *testing.T) {
	v := decodeValue(t, `{"type":"string","value":"\"hi\""}`)
	assert.Equal(t, KindPrimitive, v.Kind)
	assert.Equal(t, `"hi"`, v.Literal)
}

func TestValueDecodeFunction(t *testing.T) {
	v := decodeValue(t, `{"kind":"function","type":"function","name":"add","arity":2}`)
	assert.Equal(t, KindFunction, v.Kind)
	assert.Equal(t, "add", v.FuncName)
	assert.Equal(t, 2, v.Arity)
	assert.False(t, v.Expandable())
}

func TestValueDecodeObjectWithChildren(t *testing.T) {
	v := decodeValue(t, `{
		"kind": "object",
		"type": "Point",
		"objectId": "obj-1",
		"properties": [
			{"name": "x", "value": {"kind": "primitive", "type": "number", "value": "1"}},
			{"name": "y", "value": {"kind": "array", "type": "Array", "objectId": "arr-1", "size": 3}}
		]
	}`)
	assert.Equal(t, KindStructured, v.Kind)
	assert.Equal(t, "Point", v.Type)
	assert.Equal(t, "obj-1", v.ObjectID)
	assert.True(t, v.Expandable())
	require.Len(t, v.Children, 2)
	assert.Equal(t, "x", v.Children[0].Name)
	assert.Equal(t, KindIndexed, v.Children[1].Value.Kind)
	assert.Equal(t, 3, v.Children[1].Value.Size)
}

func TestValueDecodeSizeDefaultsToChildCount(t *testing.T) {
	v := decodeValue(t, `{
		"kind": "array",
		"type": "Array",
		"objectId": "arr-1",
		"properties": [
			{"name": "0", "value": {"value": "1"}},
			{"name": "1", "value": {"value": "2"}}
		]
	}`)
	assert.Equal(t, 2, v.Size)
}

func TestValueDecodeExplicitSizeWins(t *testing.T) {
	// a large collection ships a size but no shallow children
	v := decodeValue(t, `{"kind":"array","type":"Array","objectId":"arr-1","size":5000}`)
	assert.Equal(t, 5000, v.Size)
	assert.Empty(t, v.Children)
}

func TestValueDecodeRejectsUnknownKind(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"kind":"symbolic"}`), &v)
	assert.ErrorContains(t, err, "symbolic")
}
