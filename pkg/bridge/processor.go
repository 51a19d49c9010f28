package bridge

import (
	"context"
	"time"

	"github.com/illmade-knight/go-device-alerts/pkg/alerts"
	"github.com/illmade-knight/go-device-alerts/pkg/fcmgateway"
	"github.com/illmade-knight/go-device-alerts/pkg/pipeline"
	"github.com/illmade-knight/go-device-alerts/pkg/telemetry"
	"github.com/rs/zerolog"
)

// NewProcessor returns the pipeline stage that routes a device event and,
// when the decision table fires, builds the notification intent and hands it
// to the gateway. A delivery failure is returned as the per-message error;
// it never stops the consumption loop, and no retry is attempted here.
func NewProcessor(
	sender fcmgateway.Sender,
	builder *alerts.Builder,
	maxAge time.Duration,
	logger zerolog.Logger,
) pipeline.Processor[DeviceEvent] {
	if maxAge <= 0 {
		maxAge = telemetry.DefaultMaxAge
	}
	procLogger := logger.With().Str("component", "Processor").Logger()

	return func(ctx context.Context, msg pipeline.Message, event *DeviceEvent) error {
		fresh := telemetry.IsFresh(event.Timestamp, maxAge)

		intentType, reason, fired := alerts.Route(event.Category, event.Value, fresh, event.DeviceID)
		if !fired {
			logEvent := procLogger.Debug().
				Str("msg_id", msg.ID).
				Str("topic", event.Topic).
				Str("device_id", event.DeviceID).
				Str("value", event.Value).
				Str("reason", string(reason))
			if age, ok := telemetry.Age(event.Timestamp); ok {
				logEvent = logEvent.Dur("age", age)
			}
			logEvent.Msg("Message suppressed.")
			return nil
		}

		intent, err := builder.Build(intentType, event.DeviceID, nil)
		if err != nil {
			// Unreachable for router-emitted types; fail loudly for this
			// message only.
			return err
		}

		deliveryID, err := sender.SendToTopic(ctx, intent)
		if err != nil {
			return err
		}

		procLogger.Info().
			Str("msg_id", msg.ID).
			Str("device_id", event.DeviceID).
			Str("intent_type", string(intentType)).
			Str("delivery_id", deliveryID).
			Msg("Notification delivered.")
		return nil
	}
}
