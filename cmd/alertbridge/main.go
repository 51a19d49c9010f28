// The alertbridge command subscribes to device telemetry on a message
// broker and forwards actionable state changes to Firebase Cloud Messaging
// as push notifications.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-device-alerts/pkg/bridge"
	"github.com/illmade-knight/go-device-alerts/pkg/fcmgateway"
	"github.com/illmade-knight/go-device-alerts/pkg/mqttsource"
	"github.com/illmade-knight/go-device-alerts/pkg/pipeline"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

func main() {
	configPath := flag.String("config", "", "path to the yaml config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Alert bridge exited with error.")
	}
}

func run(cfg *Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sender, err := fcmgateway.NewClient(ctx, cfg.FirebaseCredentialsFile, logger)
	if err != nil {
		return fmt.Errorf("failed to create FCM client: %w", err)
	}

	consumer, err := newConsumer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create %s consumer: %w", cfg.Source, err)
	}

	templates, err := cfg.TemplateTable()
	if err != nil {
		return err
	}

	service, err := bridge.NewService(bridge.ServiceConfig{
		NumWorkers: cfg.NumWorkers,
		MaxAge:     cfg.MaxAge(),
		HTTPPort:   cfg.HTTPPort,
		Templates:  templates,
	}, consumer, sender, logger)
	if err != nil {
		return err
	}

	if err := service.Start(ctx); err != nil {
		return err
	}
	logger.Info().Str("source", cfg.Source).Msg("Alert bridge running; waiting for shutdown signal.")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received.")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return service.Stop(stopCtx)
}

// newConsumer builds the configured broker source.
func newConsumer(ctx context.Context, cfg *Config, logger zerolog.Logger) (pipeline.Consumer, error) {
	switch cfg.Source {
	case "mqtt":
		mqttCfg := cfg.MQTTConfig()
		client, err := mqttsource.NewPahoClient(mqttCfg, logger)
		if err != nil {
			return nil, err
		}
		return mqttsource.NewConsumer(client, mqttCfg, logger)

	case "pubsub":
		var opts []option.ClientOption
		if cfg.Pubsub.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Pubsub.CredentialsFile))
		}
		client, err := pubsub.NewClient(ctx, cfg.Pubsub.ProjectID, opts...)
		if err != nil {
			return nil, err
		}
		return pipeline.NewPubsubConsumer(ctx, pipeline.NewPubsubConsumerConfig(cfg.Pubsub.SubscriptionID), client, logger)

	default:
		return nil, fmt.Errorf("unknown source %q (want mqtt or pubsub)", cfg.Source)
	}
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger(), nil
}
