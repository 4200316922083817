package cachestore

import (
	"encoding/json"
	"fmt"
)

// Value kinds recorded in the envelope. The kind written at Set time is
// matched against the destination at Get time, so deserialization is an
// explicit dispatch instead of a guess.
const (
	kindJSON   = "json"
	kindBytes  = "bytes"
	kindString = "string"
)

// envelope is the typed wrapper every stored value is wrapped in.
type envelope struct {
	Kind string          `json:"kind"`
	Raw  json.RawMessage `json:"raw"`
}

// encodeValue wraps a value in an envelope and serializes it.
func encodeValue(value any) ([]byte, error) {
	env := envelope{}

	switch v := value.(type) {
	case []byte:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal bytes value: %w", err)
		}
		env.Kind = kindBytes
		env.Raw = raw
	case string:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal string value: %w", err)
		}
		env.Kind = kindString
		env.Raw = raw
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		env.Kind = kindJSON
		env.Raw = raw
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// decodeValue unmarshals an envelope payload into dest, dispatching on
// the recorded kind.
func decodeValue(data []byte, dest any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Kind {
	case kindBytes:
		p, ok := dest.(*[]byte)
		if !ok {
			return fmt.Errorf("envelope kind %q does not match destination %T", env.Kind, dest)
		}
		return json.Unmarshal(env.Raw, p)
	case kindString:
		p, ok := dest.(*string)
		if !ok {
			return fmt.Errorf("envelope kind %q does not match destination %T", env.Kind, dest)
		}
		return json.Unmarshal(env.Raw, p)
	case kindJSON:
		return json.Unmarshal(env.Raw, dest)
	default:
		return fmt.Errorf("unknown envelope kind %q", env.Kind)
	}
}
