// Package jsonsafe decodes untrusted JSON into plain Go maps, stripping
// keys that could pollute an embedder's own object model if the decoded
// map is later merged or round-tripped elsewhere in their stack.
package jsonsafe

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// dangerousKeys is the closed set of keys stripped from every decoded
// object, recursively.
var dangerousKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// DecodeObject decodes data as a JSON object (not an array, not null) into
// a map[string]any, stripping dangerous keys recursively. It returns an
// error if data does not decode to a JSON object.
func DecodeObject(data []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("jsonsafe: invalid JSON: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("jsonsafe: expected a JSON object, got %T", v)
	}
	sanitize(m)
	return m, nil
}

// Decode decodes data into v using the same JSON backend as DecodeObject,
// for callers that want a typed destination instead of map[string]any
// (e.g. decoding a JWKS document directly into a slice of structs).
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// sanitize removes dangerous keys from m and recurses into nested
// objects/arrays.
func sanitize(m map[string]any) {
	for k, v := range m {
		if dangerousKeys[k] {
			delete(m, k)
			continue
		}
		sanitizeValue(v)
	}
}

func sanitizeValue(v any) {
	switch t := v.(type) {
	case map[string]any:
		sanitize(t)
	case []any:
		for _, e := range t {
			sanitizeValue(e)
		}
	}
}
