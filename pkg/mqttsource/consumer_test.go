package mqttsource_test

import (
	"context"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/illmade-knight/go-device-alerts/pkg/mqttsource"
	"github.com/illmade-knight/go-device-alerts/pkg/pipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks for the Paho MQTT client ---

type mockToken struct{ err error }

func (m *mockToken) Wait() bool                       { return true }
func (m *mockToken) WaitTimeout(_ time.Duration) bool { return true }
func (m *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *mockToken) Error() error { return m.err }

type mockMqttMessage struct {
	topic     string
	payload   []byte
	messageID uint16
}

func (m *mockMqttMessage) Topic() string     { return m.topic }
func (m *mockMqttMessage) Payload() []byte   { return m.payload }
func (m *mockMqttMessage) MessageID() uint16 { return m.messageID }
func (m *mockMqttMessage) Duplicate() bool   { return false }
func (m *mockMqttMessage) Qos() byte         { return 1 }
func (m *mockMqttMessage) Retained() bool    { return false }
func (m *mockMqttMessage) Ack()              {}

type mockMqttClient struct {
	isConnected      bool
	disconnectCalled bool
	subscriptions    map[string]mqtt.MessageHandler
}

func newMockMqttClient() *mockMqttClient {
	return &mockMqttClient{subscriptions: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMqttClient) IsConnected() bool      { return m.isConnected }
func (m *mockMqttClient) IsConnectionOpen() bool { return m.isConnected }
func (m *mockMqttClient) Connect() mqtt.Token {
	m.isConnected = true
	return &mockToken{}
}
func (m *mockMqttClient) Disconnect(_ uint) {
	m.isConnected = false
	m.disconnectCalled = true
}
func (m *mockMqttClient) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	m.subscriptions[topic] = callback
	return &mockToken{}
}
func (m *mockMqttClient) Unsubscribe(_ ...string) mqtt.Token { return &mockToken{} }
func (m *mockMqttClient) Publish(_ string, _ byte, _ bool, _ interface{}) mqtt.Token {
	return &mockToken{}
}
func (m *mockMqttClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return &mockToken{}
}
func (m *mockMqttClient) AddRoute(_ string, _ mqtt.MessageHandler) {}
func (m *mockMqttClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// --- Test Cases ---

func testConfig() *mqttsource.Config {
	return &mqttsource.Config{
		BrokerURL:      "tcp://localhost:1883",
		TopicFilters:   []string{"+/pump_status", "+/status"},
		ConnectTimeout: 2 * time.Second,
	}
}

func TestConsumer_StartSubscribesAndReceives(t *testing.T) {
	mockClient := newMockMqttClient()
	consumer, err := mqttsource.NewConsumer(mockClient, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, consumer.Start(ctx))

	require.Contains(t, mockClient.subscriptions, "+/pump_status")
	require.Contains(t, mockClient.subscriptions, "+/status")

	handler := mockClient.subscriptions["+/status"]
	handler(mockClient, &mockMqttMessage{
		topic:     "dev1/status",
		payload:   []byte("online"),
		messageID: 42,
	})

	select {
	case msg := <-consumer.Messages():
		assert.Equal(t, []byte("online"), msg.Payload)
		assert.Equal(t, "42", msg.ID)
		assert.Equal(t, "dev1/status", msg.Topic())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message from consumer")
	}
}

func TestConsumer_QoSZeroMessagesGetGeneratedIDs(t *testing.T) {
	mockClient := newMockMqttClient()
	consumer, err := mqttsource.NewConsumer(mockClient, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, consumer.Start(ctx))

	mockClient.subscriptions["+/status"](mockClient, &mockMqttMessage{
		topic:   "dev1/status",
		payload: []byte("offline"),
	})

	select {
	case msg := <-consumer.Messages():
		assert.NotEmpty(t, msg.ID)
		assert.NotEqual(t, "0", msg.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message from consumer")
	}
}

func TestConsumer_Stop(t *testing.T) {
	mockClient := newMockMqttClient()
	consumer, err := mqttsource.NewConsumer(mockClient, testConfig(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, consumer.Start(ctx))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(stopCancel)
	require.NoError(t, consumer.Stop(stopCtx))

	assert.True(t, mockClient.disconnectCalled, "Disconnect should have been called")
	select {
	case <-consumer.Done():
	default:
		t.Fatal("Done() should be closed after Stop()")
	}

	// A second Stop is a no-op.
	require.NoError(t, consumer.Stop(stopCtx))
}

func TestNewConsumer_Validation(t *testing.T) {
	_, err := mqttsource.NewConsumer(newMockMqttClient(), &mqttsource.Config{TopicFilters: []string{"+/status"}}, zerolog.Nop())
	assert.Error(t, err, "missing broker URL")

	_, err = mqttsource.NewConsumer(newMockMqttClient(), &mqttsource.Config{BrokerURL: "tcp://x:1883"}, zerolog.Nop())
	assert.Error(t, err, "missing topic filters")
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv(mqttsource.EnvBrokerURL, "tls://broker.example.com:8883")
	t.Setenv(mqttsource.EnvKeepAliveSeconds, "30")

	cfg := mqttsource.LoadConfigFromEnv()
	assert.Equal(t, "tls://broker.example.com:8883", cfg.BrokerURL)
	assert.Equal(t, 30*time.Second, cfg.KeepAlive)
	assert.Equal(t, mqttsource.DefaultTopicFilters, cfg.TopicFilters)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.False(t, cfg.InsecureSkipVerify)
}

var _ pipeline.Consumer = (*mqttsource.Consumer)(nil)
