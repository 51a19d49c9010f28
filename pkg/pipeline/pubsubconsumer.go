package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// PubsubConsumerConfig configures a Google Pub/Sub message source.
type PubsubConsumerConfig struct {
	SubscriptionID         string
	MaxOutstandingMessages int
	NumGoroutines          int
}

// NewPubsubConsumerConfig returns a config with sensible defaults for the
// given subscription.
func NewPubsubConsumerConfig(subID string) *PubsubConsumerConfig {
	return &PubsubConsumerConfig{
		SubscriptionID:         subID,
		MaxOutstandingMessages: 100,
		NumGoroutines:          5,
	}
}

// PubsubConsumer implements Consumer over a Google Pub/Sub subscription.
// Deployments that mirror device telemetry into Pub/Sub can feed the bridge
// from there instead of MQTT; the upstream publisher is expected to carry
// the original device topic in the TopicAttribute message attribute.
type PubsubConsumer struct {
	subscription *pubsub.Subscription
	logger       zerolog.Logger
	outputChan   chan Message
	stopOnce     sync.Once
	cancelRecv   context.CancelFunc
	doneChan     chan struct{}
}

// NewPubsubConsumer verifies the subscription exists and prepares a consumer
// for it.
func NewPubsubConsumer(ctx context.Context, cfg *PubsubConsumerConfig, client *pubsub.Client, logger zerolog.Logger) (*PubsubConsumer, error) {
	sub := client.Subscription(cfg.SubscriptionID)

	existsCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	exists, err := sub.Exists(existsCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription %s: %w", cfg.SubscriptionID, err)
	}
	if !exists {
		return nil, fmt.Errorf("subscription %s does not exist", cfg.SubscriptionID)
	}

	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines

	return &PubsubConsumer{
		subscription: sub,
		logger:       logger.With().Str("component", "PubsubConsumer").Str("subscription_id", cfg.SubscriptionID).Logger(),
		outputChan:   make(chan Message, cfg.MaxOutstandingMessages),
		doneChan:     make(chan struct{}),
	}, nil
}

// Messages returns the channel of consumed messages.
func (c *PubsubConsumer) Messages() <-chan Message { return c.outputChan }

// Start begins receiving from the subscription in a background goroutine.
func (c *PubsubConsumer) Start(ctx context.Context) error {
	c.logger.Info().Msg("Starting Pub/Sub message consumption...")
	receiveCtx, cancel := context.WithCancel(ctx)
	c.cancelRecv = cancel

	go func() {
		defer close(c.outputChan)
		defer close(c.doneChan)

		err := c.subscription.Receive(receiveCtx, func(_ context.Context, msg *pubsub.Message) {
			payloadCopy := make([]byte, len(msg.Data))
			copy(payloadCopy, msg.Data)

			consumed := Message{
				ID:          msg.ID,
				Payload:     payloadCopy,
				PublishTime: msg.PublishTime,
				Attributes:  msg.Attributes,
				Ack:         msg.Ack,
				Nack:        msg.Nack,
			}

			select {
			case c.outputChan <- consumed:
			case <-receiveCtx.Done():
				msg.Nack()
				c.logger.Warn().Str("msg_id", msg.ID).Msg("Consumer stopping, Nacking message.")
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error().Err(err).Msg("Pub/Sub Receive exited with error.")
		}
		c.logger.Info().Msg("Pub/Sub Receive goroutine stopped.")
	}()
	return nil
}

// Stop cancels the receive loop and waits for it to drain.
func (c *PubsubConsumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping Pub/Sub consumer...")
		if c.cancelRecv != nil {
			c.cancelRecv()
		}
		select {
		case <-c.doneChan:
			c.logger.Info().Msg("Pub/Sub receive goroutine confirmed stopped.")
		case <-ctx.Done():
			c.logger.Error().Msg("Timeout waiting for Pub/Sub receive goroutine to stop.")
			err = ctx.Err()
		}
	})
	return err
}

// Done is closed once the receive goroutine has exited.
func (c *PubsubConsumer) Done() <-chan struct{} { return c.doneChan }
