package cachestore

import (
	"testing"
)

func TestEnvelope_KindDispatch(t *testing.T) {
	data, err := encodeValue(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("encodeValue failed: %v", err)
	}

	var out map[string]int
	if err := decodeValue(data, &out); err != nil {
		t.Fatalf("decodeValue failed: %v", err)
	}
	if out["a"] != 1 {
		t.Errorf("decoded = %v, want map[a:1]", out)
	}
}

func TestEnvelope_UnknownKind(t *testing.T) {
	var out string
	err := decodeValue([]byte(`{"kind":"mystery","raw":"\"x\""}`), &out)
	if err == nil {
		t.Error("unknown kind should fail decode")
	}
}

func TestEnvelope_Corrupted(t *testing.T) {
	var out string
	if err := decodeValue([]byte("not json"), &out); err == nil {
		t.Error("corrupted payload should fail decode")
	}
}
