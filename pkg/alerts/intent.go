// Package alerts turns interpreted device events into push-notification
// intents. The router implements the per-message decision table; the intent
// builder assembles the gateway-agnostic notification record from a static
// template table.
package alerts

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// IntentType identifies which user-facing notification to send.
type IntentType string

const (
	PumpStart     IntentType = "pump_start"
	PumpStop      IntentType = "pump_stop"
	DeviceOnline  IntentType = "device_online"
	DeviceOffline IntentType = "device_offline"
)

// ErrUnknownIntentType is returned when an intent type has no registered
// template. The router only ever emits registered types, so hitting this
// indicates a programming error.
var ErrUnknownIntentType = errors.New("unknown notification intent type")

// Template holds the static, user-facing content for one intent type.
type Template struct {
	Title        string `yaml:"title"`
	Body         string `yaml:"body"`
	RoutingTopic string `yaml:"routing_topic"`
}

// Templates maps intent types to their notification content. The table is
// loaded once at startup and read-only afterwards.
type Templates map[IntentType]Template

// DefaultTemplates returns the built-in template table.
func DefaultTemplates() Templates {
	return Templates{
		PumpStart: {
			Title:        "Pump Started",
			Body:         "Your irrigation pump has started",
			RoutingTopic: "pump_events",
		},
		PumpStop: {
			Title:        "Pump Stopped",
			Body:         "Your irrigation pump has stopped",
			RoutingTopic: "pump_events",
		},
		DeviceOnline: {
			Title:        "Device Online",
			Body:         "Your device is now connected",
			RoutingTopic: "device_status",
		},
		DeviceOffline: {
			Title:        "Device Offline",
			Body:         "Your device has disconnected",
			RoutingTopic: "device_status",
		},
	}
}

// NotificationIntent is a fully assembled, gateway-agnostic description of a
// push notification. It is immutable once built and consumed exactly once by
// the delivery gateway.
type NotificationIntent struct {
	Type         IntentType
	DeviceID     string
	Title        string
	Body         string
	RoutingTopic string
	Data         map[string]string
}

// Builder assembles notification intents from a template table.
type Builder struct {
	templates Templates
	now       func() time.Time
}

// NewBuilder creates a Builder over the given template table, falling back
// to the defaults when nil.
func NewBuilder(templates Templates) *Builder {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Builder{templates: templates, now: time.Now}
}

// Build constructs the intent for the given type. The body is suffixed with
// the device id when one is known. The data payload is always stamped with
// "type" and "timestamp" (and "device_id" when present); caller-supplied
// extras are merged on top and may overwrite the stamps only by naming those
// keys explicitly.
func (b *Builder) Build(intentType IntentType, deviceID string, extra map[string]string) (*NotificationIntent, error) {
	tmpl, ok := b.templates[intentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntentType, intentType)
	}

	body := tmpl.Body
	if deviceID != "" {
		body = fmt.Sprintf("%s (Device: %s)", body, deviceID)
	}

	data := map[string]string{
		"type":      string(intentType),
		"timestamp": strconv.FormatInt(b.now().Unix(), 10),
	}
	if deviceID != "" {
		data["device_id"] = deviceID
	}
	for k, v := range extra {
		data[k] = v
	}

	return &NotificationIntent{
		Type:         intentType,
		DeviceID:     deviceID,
		Title:        tmpl.Title,
		Body:         body,
		RoutingTopic: tmpl.RoutingTopic,
		Data:         data,
	}, nil
}
