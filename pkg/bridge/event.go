// Package bridge wires the pieces of the alert service together: raw broker
// messages are transformed into interpreted device events, routed to a
// notification intent, and handed to the push gateway.
package bridge

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/illmade-knight/go-device-alerts/pkg/alerts"
	"github.com/illmade-knight/go-device-alerts/pkg/pipeline"
	"github.com/illmade-knight/go-device-alerts/pkg/telemetry"
	"github.com/rs/zerolog"
)

// DeviceEvent is the interpreted form of one telemetry message.
type DeviceEvent struct {
	// DeviceID is the first segment of the broker topic.
	DeviceID string
	// Topic is the full broker topic the message arrived on.
	Topic string
	// Category is the topic's event family.
	Category alerts.EventCategory
	// Value is the canonical payload value.
	Value string
	// Timestamp is the event time embedded in the payload; zero when absent.
	Timestamp time.Time
}

// NewTransformer returns the pipeline stage that parses raw messages into
// device events. Payloads that are not valid UTF-8 are a decode failure:
// reported and dropped, never retried. Everything else parses - ambiguity is
// resolved downstream by the router, not reported as an error here.
func NewTransformer(logger zerolog.Logger) pipeline.Transformer[DeviceEvent] {
	transformLogger := logger.With().Str("component", "Transformer").Logger()

	return func(_ context.Context, msg *pipeline.Message) (*DeviceEvent, bool, error) {
		topic := msg.Topic()
		if !utf8.Valid(msg.Payload) {
			transformLogger.Error().
				Str("msg_id", msg.ID).
				Str("topic", topic).
				Msg("Failed to decode message payload, dropping.")
			return nil, true, nil
		}

		event := &DeviceEvent{
			DeviceID:  alerts.DeviceID(topic),
			Topic:     topic,
			Category:  alerts.Category(topic),
			Value:     telemetry.Normalize(msg.Payload),
			Timestamp: telemetry.ExtractTimestamp(msg.Payload),
		}
		return event, false, nil
	}
}
