package jsonsafe

import "testing"

func TestDecodeObject_StripsPrototypePollutionKeys(t *testing.T) {
	data := []byte(`{
		"iss": "https://issuer.example.com",
		"__proto__": {"admin": true},
		"nested": {"constructor": "x", "ok": 1},
		"list": [{"prototype": "y", "ok": 2}]
	}`)

	m, err := DecodeObject(data)
	if err != nil {
		t.Fatalf("DecodeObject() error: %v", err)
	}

	if _, ok := m["__proto__"]; ok {
		t.Error("__proto__ key was not stripped at top level")
	}
	if m["iss"] != "https://issuer.example.com" {
		t.Errorf("iss = %v, want preserved", m["iss"])
	}

	nested, ok := m["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested is %T, want map[string]any", m["nested"])
	}
	if _, ok := nested["constructor"]; ok {
		t.Error("constructor key was not stripped from nested object")
	}
	if nested["ok"] != float64(1) {
		t.Errorf("nested.ok = %v, want 1", nested["ok"])
	}

	list, ok := m["list"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("list = %v, want one-element slice", m["list"])
	}
	elem, ok := list[0].(map[string]any)
	if !ok {
		t.Fatalf("list[0] is %T, want map[string]any", list[0])
	}
	if _, ok := elem["prototype"]; ok {
		t.Error("prototype key was not stripped inside an array element")
	}
}

func TestDecodeObject_RejectsNonObject(t *testing.T) {
	for _, data := range [][]byte{
		[]byte(`[1,2,3]`),
		[]byte(`"a string"`),
		[]byte(`null`),
		[]byte(`42`),
	} {
		if _, err := DecodeObject(data); err == nil {
			t.Errorf("DecodeObject(%s) expected error, got nil", data)
		}
	}
}

func TestDecodeObject_InvalidJSON(t *testing.T) {
	if _, err := DecodeObject([]byte(`{not json`)); err == nil {
		t.Error("DecodeObject() expected error for malformed JSON")
	}
}

func TestDecode_TypedDestination(t *testing.T) {
	var dest struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := Decode([]byte(`{"keys":[{"kty":"RSA"}]}`), &dest); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(dest.Keys) != 1 || dest.Keys[0]["kty"] != "RSA" {
		t.Errorf("Decode() = %+v, unexpected", dest)
	}
}
