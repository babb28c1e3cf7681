package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeScalarPassthrough(t *testing.T) {
	assert.Equal(t, "hello", Encode("hello"))
	assert.Equal(t, 42, Encode(42))
	assert.Equal(t, 3.14, Encode(3.14))
	assert.Equal(t, nil, Encode(nil))
}

func TestEncodeComposite(t *testing.T) {
	encoded, ok := Encode([]interface{}{"a", "b"}).(string)
	require.True(t, ok, "composite should encode to a string")
	assert.True(t, strings.HasSuffix(encoded, Marker))
	assert.True(t, IsEncoded(encoded))
}

func TestEncodeDeterministic(t *testing.T) {
	value := map[string]interface{}{"b": 2.0, "a": 1.0, "c": []interface{}{"x"}}
	first := Encode(value)
	second := Encode(value)
	assert.Equal(t, first, second)
}

func TestRoundTrip(t *testing.T) {
	cases := []interface{}{
		[]interface{}{1.0, 2.0, 3.0},
		[]interface{}{"one", "two"},
		map[string]interface{}{"name": "Widget", "price": 10.0},
		map[string]interface{}{
			"nested": map[string]interface{}{"list": []interface{}{"a", "b"}},
		},
	}
	for _, value := range cases {
		encoded := Encode(value)
		assert.Equal(t, value, Decode(encoded))
	}
}

func TestDecodeScalarPassthrough(t *testing.T) {
	assert.Equal(t, "plain text", Decode("plain text"))
	assert.Equal(t, "123", Decode("123"))
	assert.Equal(t, "12.5", Decode("12.5"))
	assert.Equal(t, 7, Decode(7))
	assert.Equal(t, nil, Decode(nil))
}

func TestDecodeCorruptedHashFailsOpen(t *testing.T) {
	encoded := Encode([]interface{}{1.0, 2.0, 3.0}).(string)

	// Flip one character inside the hash segment.
	i := strings.Index(encoded, Marker) + len(Marker)
	corrupted := []byte(encoded)
	if corrupted[i] == 'a' {
		corrupted[i] = 'b'
	} else {
		corrupted[i] = 'a'
	}

	assert.Equal(t, string(corrupted), Decode(string(corrupted)))
}

func TestDecodeWrongLengthFailsOpen(t *testing.T) {
	encoded := Encode([]interface{}{"x"}).(string)
	truncated := encoded[1:] // payload shorter than the embedded length
	assert.Equal(t, truncated, Decode(truncated))
}

func TestDecodeCoincidentalMarker(t *testing.T) {
	// Plain text that happens to end with the marker pattern must survive.
	text := "just some text %|notahash%|999%|"
	assert.Equal(t, text, Decode(text))
}
