// Package codec converts composite values (slices, maps) to and from the
// flat text form stored in "serialized" entity columns. The encoded form is
// self-verifying: a marker, a content hash and a content length are appended
// so that Decode can tell a serialized column from legacy plain text.
package codec

import (
	"encoding/hex"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// Marker delimits the hash and length segments at the end of an encoded
// value. Two characters, unlikely to terminate ordinary column text.
const Marker = "%|"

const hashLen = 32 // hex chars of the truncated BLAKE3 digest

// Encode serializes a composite value into the marker format. Scalars are
// returned unchanged. Serialization is canonical JSON, so re-encoding
// identical input yields byte-identical output.
func Encode(value interface{}) interface{} {
	if !isComposite(value) {
		return value
	}
	payload, err := json.Marshal(value)
	if err != nil {
		// A value that cannot be serialized is stored as-is; Decode will
		// hand it back unchanged.
		return value
	}
	var b strings.Builder
	b.Write(payload)
	b.WriteString(Marker)
	b.WriteString(contentHash(payload))
	b.WriteString(Marker)
	b.WriteString(strconv.Itoa(len(payload)))
	b.WriteString(Marker)
	return b.String()
}

// Decode restores a composite value from its encoded text form. Inputs that
// are not strings, are numeric, or do not carry a valid marker suffix are
// returned unchanged. Verification failures also return the input unchanged:
// the codec never errors on legacy plain columns.
func Decode(value interface{}) interface{} {
	text, ok := value.(string)
	if !ok {
		return value
	}
	if _, err := strconv.ParseFloat(text, 64); err == nil {
		return value
	}

	payload, ok := splitEncoded(text)
	if !ok {
		return value
	}
	var out interface{}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return value
	}
	return out
}

// IsEncoded reports whether text carries a valid, verifiable marker suffix.
func IsEncoded(text string) bool {
	_, ok := splitEncoded(text)
	return ok
}

// splitEncoded strips and verifies the marker suffix, returning the payload.
func splitEncoded(text string) (string, bool) {
	if !strings.HasSuffix(text, Marker) {
		return "", false
	}
	rest := text[:len(text)-len(Marker)]

	i := strings.LastIndex(rest, Marker)
	if i < 0 {
		return "", false
	}
	lengthSeg := rest[i+len(Marker):]
	rest = rest[:i]

	i = strings.LastIndex(rest, Marker)
	if i < 0 {
		return "", false
	}
	hashSeg := rest[i+len(Marker):]
	payload := rest[:i]

	n, err := strconv.Atoi(lengthSeg)
	if err != nil || n != len(payload) {
		return "", false
	}
	if hashSeg != contentHash([]byte(payload)) {
		return "", false
	}
	return payload, true
}

func contentHash(payload []byte) string {
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:hashLen/2])
}

func isComposite(value interface{}) bool {
	if _, ok := value.([]byte); ok {
		return false
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}
