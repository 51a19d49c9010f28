package mqttsource

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-device-alerts/pkg/pipeline"
	"github.com/rs/zerolog"
)

// Consumer implements pipeline.Consumer over a Paho MQTT client.
type Consumer struct {
	pahoClient mqtt.Client
	logger     zerolog.Logger
	outputChan chan pipeline.Message
	doneChan   chan struct{}
	cfg        *Config
	stopOnce   sync.Once
}

// NewConsumer creates a Consumer around an existing Paho client. The client
// is typically built with NewPahoClient; tests inject a mock. It does not
// connect until Start is called.
func NewConsumer(client mqtt.Client, cfg *Config, logger zerolog.Logger) (*Consumer, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker URL is required")
	}
	if len(cfg.TopicFilters) == 0 {
		return nil, fmt.Errorf("at least one topic filter is required")
	}
	return &Consumer{
		pahoClient: client,
		logger:     logger.With().Str("component", "MqttConsumer").Logger(),
		outputChan: make(chan pipeline.Message, 1000),
		doneChan:   make(chan struct{}),
		cfg:        cfg,
	}, nil
}

// Messages returns the channel of consumed messages.
func (c *Consumer) Messages() <-chan pipeline.Message { return c.outputChan }

// Start connects to the broker and subscribes to the configured topic
// filters at QoS 1. A failed initial connection is logged, not fatal: the
// Paho client keeps retrying in the background.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().Str("broker", c.cfg.BrokerURL).Msg("Connecting to MQTT broker...")
	if token := c.pahoClient.Connect(); token.WaitTimeout(c.connectTimeout()) && token.Error() != nil {
		c.logger.Error().Err(token.Error()).Msg("Initial MQTT connection failed; client will keep retrying in the background.")
	}

	handler := c.handleIncomingMessage(ctx)
	for _, filter := range c.cfg.TopicFilters {
		if token := c.pahoClient.Subscribe(filter, 1, handler); token.WaitTimeout(5*time.Second) && token.Error() != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", filter, token.Error())
		}
		c.logger.Info().Str("filter", filter).Msg("Subscribed to MQTT topic filter.")
	}

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop unsubscribes and disconnects, then closes the output channel.
func (c *Consumer) Stop(_ context.Context) error {
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping MQTT consumer...")
		if c.pahoClient != nil && c.pahoClient.IsConnected() {
			if token := c.pahoClient.Unsubscribe(c.cfg.TopicFilters...); token.WaitTimeout(2*time.Second) && token.Error() != nil {
				c.logger.Warn().Err(token.Error()).Msg("Failed to unsubscribe from MQTT topic filters.")
			}
			c.pahoClient.Disconnect(500)
		}
		close(c.outputChan)
		close(c.doneChan)
		c.logger.Info().Msg("MQTT consumer stopped.")
	})
	return nil
}

// Done is closed when the consumer has fully stopped.
func (c *Consumer) Done() <-chan struct{} { return c.doneChan }

// IsConnected reports the underlying client's connection state.
func (c *Consumer) IsConnected() bool {
	return c.pahoClient != nil && c.pahoClient.IsConnected()
}

func (c *Consumer) connectTimeout() time.Duration {
	if c.cfg.ConnectTimeout > 0 {
		return c.cfg.ConnectTimeout
	}
	return 10 * time.Second
}

// handleIncomingMessage converts MQTT deliveries into pipeline messages.
// Acknowledgement at QoS 1 happens at the protocol level inside Paho, so the
// pipeline Ack/Nack hooks are no-ops here.
func (c *Consumer) handleIncomingMessage(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		c.logger.Debug().Str("topic", msg.Topic()).Msg("Received MQTT message.")
		payloadCopy := make([]byte, len(msg.Payload()))
		copy(payloadCopy, msg.Payload())

		id := fmt.Sprintf("%d", msg.MessageID())
		if msg.MessageID() == 0 {
			// QoS 0 deliveries carry no packet id.
			id = uuid.NewString()
		}

		consumed := pipeline.Message{
			ID:          id,
			Payload:     payloadCopy,
			PublishTime: time.Now().UTC(),
			Attributes:  map[string]string{pipeline.TopicAttribute: msg.Topic()},
			Ack:         func() {},
			Nack:        func() {},
		}
		select {
		case c.outputChan <- consumed:
		case <-ctx.Done():
			c.logger.Warn().Str("topic", msg.Topic()).Msg("Consumer shutting down, dropping MQTT message.")
		}
	}
}

// NewPahoClient builds a Paho client from the config: unique client id,
// auto-reconnect with resumed subscriptions, and TLS when the broker URL
// calls for it.
func NewPahoClient(cfg *Config, logger zerolog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(fmt.Sprintf("%s%s", cfg.ClientIDPrefix, uuid.NewString()[:8]))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(cfg.ReconnectWaitMax)
	opts.SetOrderMatters(false)
	// Keep broker-side session state so subscriptions survive reconnects.
	opts.SetCleanSession(false)
	opts.SetResumeSubs(true)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info().Str("broker", cfg.BrokerURL).Msg("MQTT client connected.")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error().Err(err).Msg("MQTT connection lost.")
	})

	if strings.HasPrefix(strings.ToLower(cfg.BrokerURL), "tls://") || strings.HasPrefix(strings.ToLower(cfg.BrokerURL), "ssl://") {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
		logger.Info().Msg("TLS configured for MQTT client.")
	}

	return mqtt.NewClient(opts), nil
}

func newTLSConfig(cfg *Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if cfg.CACertFile != "" {
		caCert, err := os.ReadFile(cfg.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert file %s: %w", cfg.CACertFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA cert from %s", cfg.CACertFile)
		}
		tlsConfig.RootCAs = pool
	}
	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate/key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}
