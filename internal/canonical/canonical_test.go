package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_Basic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", int64(-100), "-100"},
		{"max uint64", uint64(18446744073709551615), "18446744073709551615"},
		{"bool", true, "true"},
		{"null", nil, "null"},
		{"number text kept", json.Number("1.50"), "1.50"},
		{"empty array", []any{}, "[]"},
		{"strings", []string{"b", "a"}, `["b","a"]`},
		{"empty object", map[string]any{}, "{}"},
		{"string map", map[string]string{"b": "2", "a": "1"}, `{"a":"1","b":"2"}`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshal_SortsNestedKeys(t *testing.T) {
	obj := map[string]any{
		"z": map[string]any{"b": 1, "a": 2},
		"a": []any{map[string]any{"y": true, "x": false}},
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[{"x":false,"y":true}],"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshal_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...), which sorts before
	// U+FF61 in UTF-16 but after it in UTF-8.
	obj := map[string]any{"｡": 1, "\U0001F600": 2}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"｡\":1}", string(result))
}

func TestMarshal_NFCNormalization(t *testing.T) {
	decomposed := "é"
	composed := "é"

	a, err := Marshal(decomposed)
	require.NoError(t, err)
	b, err := Marshal(composed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshal_LineSeparatorsAreLiteral(t *testing.T) {
	result, err := Marshal("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// A literal backslash followed by u2028 stays escaped.
	escaped, err := Marshal(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(escaped))
}

func TestMarshal_RejectsFloatsAndUnknownTypes(t *testing.T) {
	_, err := Marshal(1.5)
	assert.Error(t, err)

	_, err = Marshal(struct{}{})
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"k": []any{0.25}})
	assert.ErrorContains(t, err, `value for key "k"`)
}

func TestFromJSON(t *testing.T) {
	out, err := FromJSON([]byte(`{ "b": [1, 2.50, "x"], "a": {"d": null, "c": "<>"} }`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"c":"<>","d":null},"b":[1,2.50,"x"]}`, string(out))

	_, err = FromJSON([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestMarshal_RawMessage(t *testing.T) {
	out, err := Marshal(map[string]any{"payload": json.RawMessage(`{"z":1,"a":2}`), "meta": json.RawMessage(nil)})
	require.NoError(t, err)
	assert.Equal(t, `{"meta":null,"payload":{"a":2,"z":1}}`, string(out))
}

func TestHash_DomainSeparated(t *testing.T) {
	v := map[string]any{"a": 1}

	h1, err := Hash(DomainTrace, v)
	require.NoError(t, err)
	h2, err := Hash(DomainScenario, v)
	require.NoError(t, err)
	h3, err := Hash(DomainTrace, map[string]any{"a": 1})
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, h1, h3)
}
