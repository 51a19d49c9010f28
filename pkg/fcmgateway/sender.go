// Package fcmgateway delivers notification intents through Firebase Cloud
// Messaging. The Sender interface is the seam the rest of the service
// depends on; the concrete client wraps the Firebase Admin SDK.
package fcmgateway

import (
	"context"

	"github.com/illmade-knight/go-device-alerts/pkg/alerts"
)

// BatchResult summarizes a multicast delivery.
type BatchResult struct {
	SuccessCount int
	FailureCount int
}

// Sender delivers a notification intent. Implementations decide nothing
// about content; the intent is already fully assembled.
type Sender interface {
	// SendToTopic broadcasts the intent to subscribers of its routing topic
	// and returns the gateway's delivery id.
	SendToTopic(ctx context.Context, intent *alerts.NotificationIntent) (string, error)
	// SendToDevice delivers the intent to a single device token.
	SendToDevice(ctx context.Context, token string, intent *alerts.NotificationIntent) (string, error)
	// SendMulticast delivers the intent to a batch of device tokens.
	SendMulticast(ctx context.Context, tokens []string, intent *alerts.NotificationIntent) (BatchResult, error)
}
