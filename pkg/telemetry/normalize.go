// Package telemetry parses raw device payloads into canonical state values
// and event timestamps. Devices publish in a mix of formats - plain text
// tokens, JSON objects with varying field names, bare JSON scalars - and
// this package reduces all of them to a single lowercase token plus an
// optional event time. Parsing never fails: every ambiguity resolves to a
// defined fallback so that a malformed payload can only ever suppress a
// downstream decision, not error out of the pipeline.
package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
)

// payloadFields are the JSON object keys checked for the state value, in
// priority order. The first key present wins.
var payloadFields = []string{"payload", "value", "status", "state", "data"}

// Normalize converts a raw payload into its canonical lowercase value.
//
// Plain text is trimmed and lowercased. A JSON object yields the first
// recognized payload field; a bare JSON scalar is the value itself. A JSON
// object with no recognized field falls back to plain-text handling of the
// whole payload. An empty payload yields the empty string.
func Normalize(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ""
	}

	value, ok := extractJSONValue(trimmed)
	if !ok {
		return strings.ToLower(trimmed)
	}
	return normalizeValue(value)
}

// decodeJSON strictly decodes a payload as a single JSON value, preserving
// number representations. Trailing non-whitespace content means the payload
// is not JSON.
func decodeJSON(trimmed string) (interface{}, bool) {
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()

	var data interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return data, true
}

// extractJSONValue attempts to pull a value out of a JSON payload. The second
// return is false when the payload is not JSON, or is a JSON object without
// any recognized payload field.
func extractJSONValue(trimmed string) (interface{}, bool) {
	data, ok := decodeJSON(trimmed)
	if !ok {
		return nil, false
	}

	obj, isObject := data.(map[string]interface{})
	if !isObject {
		// JSON, but not an object: the scalar (or array) is the value.
		return data, true
	}

	for _, field := range payloadFields {
		if v, present := obj[field]; present {
			return v, true
		}
	}
	return nil, false
}

// normalizeValue renders an extracted JSON value as a canonical token.
// Booleans become "true"/"false". Integer-valued numbers render without a
// decimal point, other numbers in their natural form. Everything else is
// lowercased and trimmed.
func normalizeValue(value interface{}) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return normalizeNumber(v)
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case nil:
		return "null"
	default:
		// Nested objects or arrays: render as compact JSON and lowercase it.
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.ToLower(string(encoded))
	}
}

func normalizeNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		// Drop the decimal point from integer-valued floats: 1.0 -> "1".
		if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < math.MaxInt64 {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return strings.ToLower(n.String())
}
