package alerts

import (
	"strings"

	"github.com/illmade-knight/go-device-alerts/pkg/telemetry"
)

// EventCategory classifies a broker topic by its suffix.
type EventCategory int

const (
	// Unrecognized topics match no known pattern and are never routed.
	Unrecognized EventCategory = iota
	// PumpStatus covers {deviceID}/pump_status topics.
	PumpStatus
	// ConnectivityStatus covers {deviceID}/status topics.
	ConnectivityStatus
)

func (c EventCategory) String() string {
	switch c {
	case PumpStatus:
		return "pump_status"
	case ConnectivityStatus:
		return "connectivity_status"
	default:
		return "unrecognized"
	}
}

// Category derives the event category from a topic name. The pump suffix is
// checked first since "/pump_status" also ends in "/status".
func Category(topic string) EventCategory {
	switch {
	case strings.HasSuffix(topic, "/pump_status"):
		return PumpStatus
	case strings.HasSuffix(topic, "/status"):
		return ConnectivityStatus
	default:
		return Unrecognized
	}
}

// DeviceID extracts the device identifier from a topic: the segment before
// the first "/". No registry validation is applied; any string is accepted.
func DeviceID(topic string) string {
	if i := strings.Index(topic, "/"); i >= 0 {
		return topic[:i]
	}
	return topic
}

// RouteReason explains a routing decision, for diagnostics.
type RouteReason string

const (
	ReasonFired             RouteReason = "fired"
	ReasonStale             RouteReason = "stale"
	ReasonAmbiguousValue    RouteReason = "ambiguous_value"
	ReasonUnrecognizedTopic RouteReason = "unrecognized_topic"
)

// Route decides whether a message produces a notification intent, and which
// one. It is a pure function of its inputs: no state is carried between
// messages, so every call with the same arguments yields the same decision.
//
// Stale affirmative reports are suppressed on both topic categories, but a
// negative connectivity report always fires DeviceOffline regardless of
// freshness: a late "offline" still signals a real outage, while a late
// "online" says nothing about the device's current state.
func Route(category EventCategory, value string, fresh bool, deviceID string) (IntentType, RouteReason, bool) {
	class := telemetry.Classify(value)

	switch category {
	case PumpStatus:
		if class == telemetry.Ambiguous {
			return "", ReasonAmbiguousValue, false
		}
		if !fresh {
			return "", ReasonStale, false
		}
		if class == telemetry.Affirmative {
			return PumpStart, ReasonFired, true
		}
		return PumpStop, ReasonFired, true

	case ConnectivityStatus:
		switch class {
		case telemetry.Negative:
			// Offline reports fire even when stale.
			return DeviceOffline, ReasonFired, true
		case telemetry.Affirmative:
			if !fresh {
				return "", ReasonStale, false
			}
			return DeviceOnline, ReasonFired, true
		default:
			return "", ReasonAmbiguousValue, false
		}

	default:
		return "", ReasonUnrecognizedTopic, false
	}
}
