// ABOUTME: Normalizes raw tool-call arguments into a map for dispatch.
// ABOUTME: Accepts JSON objects, JSON-encoded strings, or nothing at all.

package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArguments indicates arguments that could not be normalized or
// that failed schema validation.
var ErrInvalidArguments = errors.New("invalid arguments")

// ArgForm reports how the raw arguments arrived on the wire.
type ArgForm int

const (
	// ArgStructured means arguments arrived as a JSON object (or were absent).
	ArgStructured ArgForm = iota
	// ArgText means arguments arrived as a JSON-encoded string payload.
	ArgText
	// ArgUnrecognized means arguments arrived in a shape the gateway does
	// not understand and were replaced with an empty map.
	ArgUnrecognized
)

// NormalizeArguments converts the raw "arguments" value of a tool call into
// a map. Strings are treated as JSON text: blank strings become an empty
// map, anything else must parse to a JSON object. Already-structured
// objects pass through. Any other shape is dropped to an empty map; the
// caller should log a warning when ArgUnrecognized is returned.
func NormalizeArguments(raw any) (map[string]any, ArgForm, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, ArgStructured, nil
	case map[string]any:
		return v, ArgStructured, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return map[string]any{}, ArgText, nil
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return nil, ArgText, fmt.Errorf("%w: arguments string is not a JSON object: %v", ErrInvalidArguments, err)
		}
		return parsed, ArgText, nil
	default:
		return map[string]any{}, ArgUnrecognized, nil
	}
}
