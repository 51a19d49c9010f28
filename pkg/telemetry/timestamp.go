package telemetry

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// timestampFields are the JSON object keys checked for an event time, in
// priority order.
var timestampFields = []string{"timestamp", "time", "ts", "datetime", "date"}

// timestampLayouts are tried in order against textual timestamp values.
// Go's time.Parse accepts a fractional second after the seconds field even
// when the layout omits it, so these five layouts also cover the
// fractional-second variants devices send.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	"2006/01/02 15:04:05",
	"02-01-2006 15:04:05",
}

// DefaultMaxAge is the freshness window applied when none is configured.
const DefaultMaxAge = 60 * time.Second

// ExtractTimestamp locates and parses an event time embedded in the payload.
// Only JSON object payloads can carry one; the first recognized timestamp
// field wins. Numeric values are Unix epoch seconds, textual values are tried
// against each supported layout in order. All times are interpreted as UTC.
//
// The zero time is returned when no parseable timestamp is found; extraction
// never fails.
func ExtractTimestamp(raw []byte) time.Time {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return time.Time{}
	}

	data, ok := decodeJSON(trimmed)
	if !ok {
		return time.Time{}
	}
	obj, isObject := data.(map[string]interface{})
	if !isObject {
		return time.Time{}
	}

	for _, field := range timestampFields {
		if v, present := obj[field]; present {
			return parseTimestampValue(v)
		}
	}
	return time.Time{}
}

func parseTimestampValue(value interface{}) time.Time {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}
		}
		return fromUnixSeconds(f)
	case string:
		return parseTimestampString(v)
	default:
		return time.Time{}
	}
}

func parseTimestampString(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// fromUnixSeconds converts an epoch-seconds value to a time, rejecting
// values outside the representable calendar range.
func fromUnixSeconds(f float64) time.Time {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return time.Time{}
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	t := time.Unix(sec, nsec).UTC()
	if t.Year() < 1 || t.Year() > 9999 {
		return time.Time{}
	}
	return t
}

// IsFresh reports whether a message timestamp is recent enough to act on.
// A zero (absent) timestamp is always fresh: with no embedded time the age
// cannot be assessed, and messages are not suppressed on that basis. The
// boundary is inclusive, and a future timestamp counts as fresh.
func IsFresh(ts time.Time, maxAge time.Duration) bool {
	if ts.IsZero() {
		return true
	}
	return time.Now().UTC().Sub(ts) <= maxAge
}

// Age returns the elapsed time since the message timestamp, for diagnostics.
// The second return is false when the timestamp is absent.
func Age(ts time.Time) (time.Duration, bool) {
	if ts.IsZero() {
		return 0, false
	}
	return time.Now().UTC().Sub(ts), true
}
