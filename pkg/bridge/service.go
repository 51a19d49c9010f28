package bridge

import (
	"context"
	"time"

	"github.com/illmade-knight/go-device-alerts/pkg/alerts"
	"github.com/illmade-knight/go-device-alerts/pkg/fcmgateway"
	"github.com/illmade-knight/go-device-alerts/pkg/pipeline"
	"github.com/rs/zerolog"
)

// ServiceConfig holds the tuning and content options for the bridge.
type ServiceConfig struct {
	// NumWorkers sizes the pipeline worker pool.
	NumWorkers int
	// MaxAge is the freshness window for timestamped messages.
	MaxAge time.Duration
	// HTTPPort is the ops server listen address, e.g. ":8080". Empty
	// disables the ops server.
	HTTPPort string
	// Templates overrides the notification template table; nil uses the
	// defaults.
	Templates alerts.Templates
}

// Service is the assembled alert bridge: a message source, the
// interpretation pipeline and the push gateway, plus the ops HTTP server.
type Service struct {
	pipeline *pipeline.Service[DeviceEvent]
	ops      *opsServer
	logger   zerolog.Logger
}

// NewService wires a consumer and a gateway sender into a runnable bridge.
func NewService(
	cfg ServiceConfig,
	consumer pipeline.Consumer,
	sender fcmgateway.Sender,
	logger zerolog.Logger,
) (*Service, error) {
	builder := alerts.NewBuilder(cfg.Templates)

	pipe, err := pipeline.NewService[DeviceEvent](
		pipeline.ServiceConfig{NumWorkers: cfg.NumWorkers},
		consumer,
		NewTransformer(logger),
		NewProcessor(sender, builder, cfg.MaxAge, logger),
		logger,
	)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		pipeline: pipe,
		logger:   logger.With().Str("service", "AlertBridge").Logger(),
	}
	if cfg.HTTPPort != "" {
		svc.ops = newOpsServer(svc.logger, cfg.HTTPPort)
	}
	return svc, nil
}

// Start launches the ops server and the pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting alert bridge...")
	if s.ops != nil {
		if err := s.ops.start(); err != nil {
			return err
		}
	}
	if err := s.pipeline.Start(ctx); err != nil {
		return err
	}
	s.logger.Info().Msg("Alert bridge started.")
	return nil
}

// Stop shuts the bridge down: the pipeline first so in-flight messages
// drain, then the ops server.
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping alert bridge...")
	err := s.pipeline.Stop(ctx)
	if s.ops != nil {
		if shutdownErr := s.ops.shutdown(ctx); err == nil {
			err = shutdownErr
		}
	}
	s.logger.Info().Msg("Alert bridge stopped.")
	return err
}

// OpsAddr returns the ops server's listen address, or "" when disabled.
func (s *Service) OpsAddr() string {
	if s.ops == nil {
		return ""
	}
	return s.ops.addr()
}
