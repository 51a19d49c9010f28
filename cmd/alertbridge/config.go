package main

import (
	"fmt"
	"os"
	"time"

	"github.com/illmade-knight/go-device-alerts/pkg/alerts"
	"github.com/illmade-knight/go-device-alerts/pkg/mqttsource"
	"github.com/illmade-knight/go-device-alerts/pkg/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration, loaded from a yaml file with
// environment variables filling in anything the file leaves unset.
type Config struct {
	LogLevel string `yaml:"log_level"`
	HTTPPort string `yaml:"http_port"`

	// Source selects the broker feeding the bridge: "mqtt" or "pubsub".
	Source string `yaml:"source"`

	// MaxAgeSeconds is the freshness window for timestamped messages.
	MaxAgeSeconds int `yaml:"max_age_seconds"`

	NumWorkers int `yaml:"num_workers"`

	FirebaseCredentialsFile string `yaml:"firebase_credentials_file"`

	MQTT struct {
		BrokerURL          string   `yaml:"broker_url"`
		TopicFilters       []string `yaml:"topic_filters"`
		Username           string   `yaml:"username"`
		Password           string   `yaml:"password"`
		CACertFile         string   `yaml:"ca_cert_file"`
		ClientCertFile     string   `yaml:"client_cert_file"`
		ClientKeyFile      string   `yaml:"client_key_file"`
		InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
	} `yaml:"mqtt"`

	Pubsub struct {
		ProjectID       string `yaml:"project_id"`
		SubscriptionID  string `yaml:"subscription_id"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"pubsub"`

	// Templates overrides notification content per intent type. Entries not
	// listed keep their defaults.
	Templates map[string]alerts.Template `yaml:"templates"`
}

const (
	envFirebaseCredentials = "FIREBASE_CREDENTIALS_FILE"
	envMaxAgeSeconds       = "MAX_AGE_SECONDS"
)

// LoadConfig reads the yaml file (when path is non-empty) and applies
// defaults and environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		HTTPPort: ":8080",
		Source:   "mqtt",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv(envFirebaseCredentials); v != "" {
		cfg.FirebaseCredentialsFile = v
	}
	if v := os.Getenv(envMaxAgeSeconds); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			cfg.MaxAgeSeconds = int(d.Seconds())
		}
	}

	if cfg.FirebaseCredentialsFile == "" {
		return nil, fmt.Errorf("firebase credentials file is required (set firebase_credentials_file or %s)", envFirebaseCredentials)
	}
	return cfg, nil
}

// MaxAge returns the configured freshness window, defaulting to one minute.
func (c *Config) MaxAge() time.Duration {
	if c.MaxAgeSeconds <= 0 {
		return telemetry.DefaultMaxAge
	}
	return time.Duration(c.MaxAgeSeconds) * time.Second
}

// MQTTConfig merges the file settings over the env-derived MQTT defaults.
func (c *Config) MQTTConfig() *mqttsource.Config {
	mqttCfg := mqttsource.LoadConfigFromEnv()
	if c.MQTT.BrokerURL != "" {
		mqttCfg.BrokerURL = c.MQTT.BrokerURL
	}
	if len(c.MQTT.TopicFilters) > 0 {
		mqttCfg.TopicFilters = c.MQTT.TopicFilters
	}
	if c.MQTT.Username != "" {
		mqttCfg.Username = c.MQTT.Username
	}
	if c.MQTT.Password != "" {
		mqttCfg.Password = c.MQTT.Password
	}
	mqttCfg.CACertFile = c.MQTT.CACertFile
	mqttCfg.ClientCertFile = c.MQTT.ClientCertFile
	mqttCfg.ClientKeyFile = c.MQTT.ClientKeyFile
	if c.MQTT.InsecureSkipVerify {
		mqttCfg.InsecureSkipVerify = true
	}
	return mqttCfg
}

// TemplateTable builds the notification template table from the defaults
// plus any overrides in the config file.
func (c *Config) TemplateTable() (alerts.Templates, error) {
	templates := alerts.DefaultTemplates()
	for name, tmpl := range c.Templates {
		intentType := alerts.IntentType(name)
		if _, known := templates[intentType]; !known {
			return nil, fmt.Errorf("unknown notification type in templates: %q", name)
		}
		templates[intentType] = tmpl
	}
	return templates, nil
}
