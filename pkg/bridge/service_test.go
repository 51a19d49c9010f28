package bridge_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/go-device-alerts/pkg/alerts"
	"github.com/illmade-knight/go-device-alerts/pkg/bridge"
	"github.com/illmade-knight/go-device-alerts/pkg/pipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConsumer is a channel-backed pipeline.Consumer.
type mockConsumer struct {
	msgChan   chan pipeline.Message
	doneChan  chan struct{}
	closeOnce sync.Once
}

func newMockConsumer() *mockConsumer {
	return &mockConsumer{
		msgChan:  make(chan pipeline.Message, 10),
		doneChan: make(chan struct{}),
	}
}

func (m *mockConsumer) Messages() <-chan pipeline.Message { return m.msgChan }
func (m *mockConsumer) Start(_ context.Context) error     { return nil }
func (m *mockConsumer) Stop(_ context.Context) error {
	m.closeOnce.Do(func() {
		close(m.msgChan)
		close(m.doneChan)
	})
	return nil
}
func (m *mockConsumer) Done() <-chan struct{} { return m.doneChan }

func TestService_EndToEnd(t *testing.T) {
	consumer := newMockConsumer()
	sender := &fakeSender{}

	service, err := bridge.NewService(bridge.ServiceConfig{
		NumWorkers: 2,
		MaxAge:     time.Minute,
		HTTPPort:   "127.0.0.1:0",
	}, consumer, sender, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, service.Start(ctx))

	// Health endpoint is live while the bridge runs.
	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", service.OpsAddr()))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	// A fresh online report flows through to the gateway.
	consumer.msgChan <- pipeline.Message{
		ID:         "e2e-1",
		Payload:    []byte("online"),
		Attributes: map[string]string{pipeline.TopicAttribute: "dev1/status"},
		Ack:        func() {},
		Nack:       func() {},
	}
	require.Eventually(t, func() bool {
		return len(sender.delivered()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, alerts.DeviceOnline, sender.delivered()[0].Type)

	// An ambiguous value is suppressed without touching the gateway.
	consumer.msgChan <- pipeline.Message{
		ID:         "e2e-2",
		Payload:    []byte("weird"),
		Attributes: map[string]string{pipeline.TopicAttribute: "dev1/pump_status"},
		Ack:        func() {},
		Nack:       func() {},
	}
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, sender.delivered(), 1)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, service.Stop(stopCtx))
}

func TestService_CustomTemplates(t *testing.T) {
	consumer := newMockConsumer()
	sender := &fakeSender{}

	templates := alerts.DefaultTemplates()
	templates[alerts.DeviceOnline] = alerts.Template{
		Title:        "Back Online",
		Body:         "Device reconnected",
		RoutingTopic: "custom_status",
	}

	service, err := bridge.NewService(bridge.ServiceConfig{
		NumWorkers: 1,
		MaxAge:     time.Minute,
		Templates:  templates,
	}, consumer, sender, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, service.OpsAddr(), "ops server disabled without a port")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, service.Start(ctx))

	consumer.msgChan <- pipeline.Message{
		ID:         "tmpl-1",
		Payload:    []byte("online"),
		Attributes: map[string]string{pipeline.TopicAttribute: "dev1/status"},
		Ack:        func() {},
		Nack:       func() {},
	}
	require.Eventually(t, func() bool {
		return len(sender.delivered()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	intent := sender.delivered()[0]
	assert.Equal(t, "Back Online", intent.Title)
	assert.Equal(t, "custom_status", intent.RoutingTopic)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, service.Stop(stopCtx))
}
