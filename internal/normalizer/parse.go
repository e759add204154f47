package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodePayload converts one producer payload into a structured map. It is
// the single explicit parse step per producer output: the result is either a
// validated map or an error the caller records as a diagnostic. Accepted
// encodings, in order of how often they occur in practice:
//
//   - an already-parsed map
//   - a raw JSON string or byte slice
//   - text wrapping a fenced ```json code block
//
// A nil payload decodes to an empty map - missing is not malformed.
func decodePayload(raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return v, nil
	case json.RawMessage:
		return unmarshalObject([]byte(v))
	case []byte:
		return unmarshalObject(v)
	case string:
		return unmarshalObject([]byte(extractFencedJSON(v)))
	default:
		return nil, fmt.Errorf("unsupported payload type %T", raw)
	}
}

func unmarshalObject(data []byte) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return map[string]interface{}{}, nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	return out, nil
}

// extractFencedJSON returns the contents of the first fenced code block if
// the text contains one, otherwise the text unchanged.
func extractFencedJSON(text string) string {
	start := strings.Index(text, "```")
	if start == -1 {
		return text
	}
	rest := text[start+3:]
	// Skip an optional language tag on the fence line.
	if newline := strings.Index(rest, "\n"); newline != -1 {
		tag := strings.TrimSpace(rest[:newline])
		if tag == "json" || tag == "" {
			rest = rest[newline+1:]
		}
	}
	if end := strings.Index(rest, "```"); end != -1 {
		return rest[:end]
	}
	return rest
}

// getFloat reads the first present numeric field among keys, falling back to
// def. Numbers arriving as strings are tolerated.
func getFloat(m map[string]interface{}, def float64, keys ...string) float64 {
	for _, key := range keys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f
			}
		case string:
			var f float64
			if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
				return f
			}
		}
	}
	return def
}

// getString reads the first present non-empty string field among keys.
func getString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// getStringSlice reads a []string field, tolerating []interface{} payloads.
func getStringSlice(m map[string]interface{}, key string) []string {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// getMap reads a nested object field.
func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if nested, ok := m[key].(map[string]interface{}); ok {
		return nested
	}
	return nil
}
