// Package mqttsource consumes device telemetry from an MQTT broker and feeds
// it into the pipeline. Devices publish pump state on {deviceID}/pump_status
// and connectivity state on {deviceID}/status; the consumer subscribes with
// a single-level wildcard for the device segment.
package mqttsource

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTopicFilters covers the two telemetry topic families for all devices.
var DefaultTopicFilters = []string{"+/pump_status", "+/status"}

// Config holds connection parameters, security settings and the topic
// subscriptions for the MQTT consumer.
type Config struct {
	// BrokerURL is the full URL of the MQTT broker, e.g. "tls://broker:8883".
	BrokerURL string
	// TopicFilters are the subscription patterns; "+" matches one topic level.
	TopicFilters []string
	// ClientIDPrefix is prefixed to a generated unique suffix, since most
	// brokers require client ids to be unique.
	ClientIDPrefix string
	// Username and Password authenticate with the broker. Both may be empty
	// for brokers that allow anonymous connections.
	Username string
	Password string
	// KeepAlive is the interval between client keep-alive pings.
	KeepAlive time.Duration
	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration
	// ReconnectWaitMax caps the backoff between reconnect attempts.
	ReconnectWaitMax time.Duration
	// CACertFile is an optional CA certificate for verifying the broker.
	CACertFile string
	// ClientCertFile and ClientKeyFile enable mTLS when both are set.
	ClientCertFile string
	ClientKeyFile  string
	// InsecureSkipVerify disables TLS certificate verification. Not for
	// production.
	InsecureSkipVerify bool
}

// Env variable names for MQTT settings.
const (
	EnvBrokerURL             = "MQTT_BROKER_URL"
	EnvUsername              = "MQTT_USERNAME"
	EnvPassword              = "MQTT_PASSWORD"
	EnvSkipVerify            = "MQTT_INSECURE_SKIP_VERIFY"
	EnvKeepAliveSeconds      = "MQTT_KEEP_ALIVE_SECONDS"
	EnvConnectTimeoutSeconds = "MQTT_CONNECT_TIMEOUT_SECONDS"
)

// LoadConfigFromEnv builds a Config from environment variables, filling
// unset values with defaults. Topic filters default to the two device
// telemetry families.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		BrokerURL:        os.Getenv(EnvBrokerURL),
		TopicFilters:     DefaultTopicFilters,
		ClientIDPrefix:   "alert-bridge-",
		Username:         os.Getenv(EnvUsername),
		Password:         os.Getenv(EnvPassword),
		KeepAlive:        60 * time.Second,
		ConnectTimeout:   10 * time.Second,
		ReconnectWaitMax: 120 * time.Second,
	}
	if os.Getenv(EnvSkipVerify) == "true" {
		cfg.InsecureSkipVerify = true
	}
	if ka := os.Getenv(EnvKeepAliveSeconds); ka != "" {
		if d, err := time.ParseDuration(ka + "s"); err == nil {
			cfg.KeepAlive = d
		} else {
			log.Warn().Err(err).Msg("mqttsource: invalid keep-alive seconds, using default")
		}
	}
	if ct := os.Getenv(EnvConnectTimeoutSeconds); ct != "" {
		if d, err := time.ParseDuration(ct + "s"); err == nil {
			cfg.ConnectTimeout = d
		} else {
			log.Warn().Err(err).Msg("mqttsource: invalid connect timeout seconds, using default")
		}
	}
	return cfg
}
