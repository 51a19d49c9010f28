package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Consumer is a message source. Implementations fetch messages from a broker
// and hand them to the service via the Messages channel.
type Consumer interface {
	// Messages returns the read-only channel workers receive from.
	Messages() <-chan Message
	// Start begins consumption.
	Start(ctx context.Context) error
	// Stop gracefully ceases consumption and closes the Messages channel.
	Stop(ctx context.Context) error
	// Done is closed when the consumer has completely shut down.
	Done() <-chan struct{}
}

// Transformer converts a raw message into a structured payload of type T.
// Returning skip=true acknowledges the message without further processing,
// filtering it from the pipeline. Returning an error Nacks the message.
type Transformer[T any] func(ctx context.Context, msg *Message) (payload *T, skip bool, err error)

// Processor handles one transformed message. An error causes the message to
// be Nacked.
type Processor[T any] func(ctx context.Context, msg Message, payload *T) error

// ServiceConfig holds tuning options for a Service.
type ServiceConfig struct {
	NumWorkers int
}

// Service runs the consume-transform-process loop with a pool of workers.
// Messages are processed independently and statelessly, so no coordination
// is needed between workers beyond the shared input channel.
type Service[T any] struct {
	numWorkers  int
	consumer    Consumer
	transformer Transformer[T]
	processor   Processor[T]
	logger      zerolog.Logger
	wg          sync.WaitGroup
}

// NewService assembles a Service from its stages.
func NewService[T any](
	cfg ServiceConfig,
	consumer Consumer,
	transformer Transformer[T],
	processor Processor[T],
	logger zerolog.Logger,
) (*Service[T], error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 5
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer cannot be nil")
	}
	if transformer == nil {
		return nil, fmt.Errorf("transformer cannot be nil")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}
	return &Service[T]{
		numWorkers:  cfg.NumWorkers,
		consumer:    consumer,
		transformer: transformer,
		processor:   processor,
		logger:      logger.With().Str("service", "Pipeline").Logger(),
	}, nil
}

// Start launches the consumer and the worker pool.
func (s *Service[T]) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting pipeline service...")

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	s.logger.Info().Int("worker_count", s.numWorkers).Msg("Starting workers...")
	s.wg.Add(s.numWorkers)
	for i := 0; i < s.numWorkers; i++ {
		go s.worker(ctx, i)
	}
	return nil
}

// Stop shuts the service down in order: the consumer first so no new
// messages arrive, then the workers drain what is in flight.
func (s *Service[T]) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping pipeline service...")

	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Error stopping consumer, continuing shutdown.")
	}

	workersDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
		s.logger.Info().Msg("All workers completed.")
		return nil
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for workers to finish.")
		return ctx.Err()
	}
}

func (s *Service[T]) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Int("worker_id", workerID).Msg("Worker shutting down.")
			return
		case msg, ok := <-s.consumer.Messages():
			if !ok {
				s.logger.Info().Int("worker_id", workerID).Msg("Consumer channel closed, worker exiting.")
				return
			}
			s.handle(ctx, msg)
		}
	}
}

// handle runs one message through the transform and process stages. A
// processing failure is isolated to that message; the loop continues.
func (s *Service[T]) handle(ctx context.Context, msg Message) {
	payload, skip, err := s.transformer(ctx, &msg)
	if err != nil {
		s.logger.Error().Err(err).Str("msg_id", msg.ID).Msg("Failed to transform message, Nacking.")
		msg.Nack()
		return
	}
	if skip {
		msg.Ack()
		return
	}

	if err := s.processor(ctx, msg, payload); err != nil {
		s.logger.Error().Err(err).Str("msg_id", msg.ID).Msg("Processor failed, Nacking.")
		msg.Nack()
		return
	}
	msg.Ack()
}
