// Package pipeline provides the message model and the consume-transform-
// process runner that the alert bridge is built on. Sources (MQTT, Pub/Sub)
// implement Consumer; the interpretation and delivery logic plug in as a
// Transformer and Processor pair.
package pipeline

import "time"

// Message is the canonical representation of one broker delivery flowing
// through the bridge.
type Message struct {
	// ID is the source broker's identifier for this delivery.
	ID string

	// Payload is the raw byte content of the message.
	Payload []byte

	// PublishTime is when the message was received from the broker.
	PublishTime time.Time

	// Attributes holds source metadata, most importantly the broker topic
	// under TopicAttribute.
	Attributes map[string]string

	// Ack signals that processing finished and the message can be dropped
	// by the source.
	Ack func()

	// Nack signals that processing failed and the source may redeliver.
	Nack func()
}

// TopicAttribute is the attribute key under which every consumer stores the
// broker topic the message arrived on.
const TopicAttribute = "topic"

// Topic returns the broker topic the message was delivered on, or "" when
// the source did not record one.
func (m *Message) Topic() string {
	return m.Attributes[TopicAttribute]
}
