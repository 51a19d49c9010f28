package fcmgateway

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/illmade-knight/go-device-alerts/pkg/alerts"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// androidChannelID is the notification channel the mobile app registers.
const androidChannelID = "device_alerts"

// messagingAPI is the slice of the Firebase messaging client the gateway
// uses, extracted so tests can substitute a fake.
type messagingAPI interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client is the FCM implementation of Sender.
type Client struct {
	messenger messagingAPI
	logger    zerolog.Logger
}

// NewClient initializes the Firebase Admin SDK from a service-account
// credentials file and returns a ready Sender. The client is constructed
// once at startup and injected into the delivery path.
func NewClient(ctx context.Context, credentialsFile string, logger zerolog.Logger) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	messenger, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &Client{
		messenger: messenger,
		logger:    logger.With().Str("component", "FCMClient").Logger(),
	}, nil
}

// SendToTopic broadcasts the intent to its routing topic.
func (c *Client) SendToTopic(ctx context.Context, intent *alerts.NotificationIntent) (string, error) {
	msg := c.newMessage(intent)
	msg.Topic = intent.RoutingTopic

	id, err := c.messenger.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("fcm topic send failed (type=%s, device=%s): %w", intent.Type, intent.DeviceID, err)
	}
	c.logger.Info().
		Str("intent_type", string(intent.Type)).
		Str("routing_topic", intent.RoutingTopic).
		Str("delivery_id", id).
		Msg("Notification sent to topic.")
	return id, nil
}

// SendToDevice delivers the intent to one device token.
func (c *Client) SendToDevice(ctx context.Context, token string, intent *alerts.NotificationIntent) (string, error) {
	msg := c.newMessage(intent)
	msg.Token = token

	id, err := c.messenger.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("fcm device send failed (type=%s, device=%s): %w", intent.Type, intent.DeviceID, err)
	}
	c.logger.Info().
		Str("intent_type", string(intent.Type)).
		Str("delivery_id", id).
		Msg("Notification sent to device.")
	return id, nil
}

// SendMulticast delivers the intent to a batch of device tokens.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, intent *alerts.NotificationIntent) (BatchResult, error) {
	msg := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: intent.Title,
			Body:  intent.Body,
		},
		Data:   intent.Data,
		Tokens: tokens,
	}

	resp, err := c.messenger.SendEachForMulticast(ctx, msg)
	if err != nil {
		return BatchResult{}, fmt.Errorf("fcm multicast send failed (type=%s, device=%s): %w", intent.Type, intent.DeviceID, err)
	}
	result := BatchResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}
	c.logger.Info().
		Str("intent_type", string(intent.Type)).
		Int("success", result.SuccessCount).
		Int("failure", result.FailureCount).
		Msg("Multicast notification sent.")
	return result, nil
}

// newMessage assembles the platform-specific FCM message for an intent:
// high-priority on Android with the app's channel, default sound and badge
// on iOS.
func (c *Client) newMessage(intent *alerts.NotificationIntent) *messaging.Message {
	badge := 1
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: intent.Title,
			Body:  intent.Body,
		},
		Data: intent.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: androidChannelID,
				Priority:  messaging.PriorityHigh,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: intent.Title,
						Body:  intent.Body,
					},
					Sound: "default",
					Badge: &badge,
				},
			},
		},
	}
}
