package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/config"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
	"github.com/angelmondragon/medcart-backend/pkg/metrics"
	"github.com/angelmondragon/medcart-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type publisher interface {
	Ping(context.Context) error
	PublishDomain(ctx context.Context, data []byte, attributes map[string]string) (string, error)
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Publisher  publisher
	Repository outboxRepository
	Registry   registryResolver
	Metrics    *metrics.OutboxMetrics
}

// Service drains outbox_events to Pub/Sub. An event that cannot be published
// is retried on later batches until maxAttempts, then parked with its last
// error for inspection.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxRepository
	publisher   publisher
	registry    registryResolver
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Publisher == nil:
		return nil, errors.New("publisher is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	cfg := params.Config.Outbox
	s := &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		publisher:   params.Publisher,
		registry:    params.Registry,
		metrics:     params.Metrics,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.poll <= 0 {
		s.poll = defaultPoll
	}
	return s, nil
}

// batchResult tallies one pass over the claimed rows.
type batchResult struct {
	Claimed   int
	Published int
	Retried   int
	Parked    int
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another; errors back off exponentially.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.publisher.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", name, err)
		}
	}

	wait := backoff{base: s.poll, max: maxBackoff}
	for {
		res, err := s.processBatch(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			pause = wait.next()
		case res.Claimed == s.batchSize:
			wait.reset()
		default:
			wait.reset()
			pause = s.poll
		}
		if err := sleep(ctx, jitter(pause)); err != nil {
			return err
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (batchResult, error) {
	var res batchResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		res = batchResult{}
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		res.Claimed = len(events)
		s.metrics.BatchSize(len(events))

		for _, event := range events {
			outcome, pubErr := s.deliver(ctx, event)
			evCtx := s.logg.WithFields(ctx, logFields(event))

			switch outcome {
			case "published":
				err = s.repo.MarkPublishedTx(tx, event.ID)
				res.Published++
				s.logg.Debug(evCtx, "outbox event published")
			case "retried":
				err = s.repo.MarkFailedTx(tx, event.ID, pubErr)
				res.Retried++
				s.logg.Warn(s.logg.WithField(evCtx, "error", pubErr.Error()), "outbox publish failed, will retry")
			default:
				err = s.repo.MarkTerminalTx(tx, event.ID, pubErr, s.maxAttempts)
				res.Parked++
				s.logg.Warn(s.logg.WithField(evCtx, "error", pubErr.Error()), "outbox event parked")
			}
			if err != nil {
				return fmt.Errorf("record %s outcome for %s: %w", outcome, event.ID, err)
			}
			s.metrics.Outcome(string(event.EventType), outcome)
		}
		return nil
	})
	return res, err
}

// deliver publishes one event and classifies the result as published,
// retried or parked.
func (s *Service) deliver(ctx context.Context, event models.OutboxEvent) (string, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return "parked", err
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err = s.publisher.PublishDomain(pubCtx, event.Payload, map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err == nil {
		return "published", nil
	}
	var permanent registry.NonRetryableError
	if errors.As(err, &permanent) || event.AttemptCount+1 >= s.maxAttempts {
		return "parked", err
	}
	return "retried", err
}

func logFields(event models.OutboxEvent) map[string]any {
	return map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt":        event.AttemptCount + 1,
	}
}

// backoff doubles from base up to max.
type backoff struct {
	base, max, current time.Duration
}

func (b *backoff) next() time.Duration {
	if b.current <= 0 {
		b.current = b.base
	} else {
		b.current *= 2
	}
	if b.current > b.max {
		b.current = b.max
	}
	return b.current
}

func (b *backoff) reset() { b.current = 0 }

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
