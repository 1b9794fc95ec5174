package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
	"github.com/angelmondragon/medcart-backend/pkg/outbox"
	"github.com/angelmondragon/medcart-backend/pkg/outbox/payloads"
)

const defaultDeliveryBatch = 500

// Outcome labels for the subscription delivery counter.
const (
	deliveryCreated  = "created"
	deliveryRejected = "rejected"
	deliverySkipped  = "skipped"
	deliveryFailed   = "failed"
	deliveryPaused   = "paused"
)

type dueSubscriptions interface {
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error)
	LockDue(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, asOf time.Time) (*models.Subscription, error)
	ConsumeDelivery(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error
	Advance(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error
	RecordRejection(ctx context.Context, subscriptionID uuid.UUID, reason string) (bool, error)
}

type subscriptionOrders interface {
	CreateFromSubscription(ctx context.Context, tx *gorm.DB, sub *models.Subscription) (*models.Order, error)
}

type deliveryMetrics interface {
	SubscriptionDelivery(outcome string)
}

type SubscriptionDeliveryJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Subscriptions dueSubscriptions
	Orders        subscriptionOrders
	Outbox        outbox.Emitter
	Metrics       deliveryMetrics
	BatchSize     int
	Now           func() time.Time
}

// NewSubscriptionDeliveryJob turns every due subscription into a pending order.
// A subscription rejected on too many consecutive runs is paused.
func NewSubscriptionDeliveryJob(params SubscriptionDeliveryJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Subscriptions == nil:
		return nil, fmt.Errorf("subscription service required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultDeliveryBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionDeliveryJob{
		logg:    params.Logger,
		db:      params.DB,
		subs:    params.Subscriptions,
		orders:  params.Orders,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		batch:   batch,
		now:     now,
	}, nil
}

type subscriptionDeliveryJob struct {
	logg    *logger.Logger
	db      txRunner
	subs    dueSubscriptions
	orders  subscriptionOrders
	outbox  outbox.Emitter
	metrics deliveryMetrics
	batch   int
	now     func() time.Time
}

func (j *subscriptionDeliveryJob) Name() string { return "subscription_delivery" }

// Run delivers each due subscription in its own transaction. One failure does
// not stop the rest; all failures come back together.
func (j *subscriptionDeliveryJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	due, err := j.subs.ListDue(ctx, asOf, j.batch)
	if err != nil {
		return fmt.Errorf("list due subscriptions: %w", err)
	}

	var errs error
	counts := map[string]int{}
	for _, sub := range due {
		outcome, err := j.deliver(ctx, sub.ID, asOf)
		counts[outcome]++
		j.record(outcome)

		subCtx := j.logg.WithFields(j.logg.WithSubscriptionID(ctx, sub.ID.String()), map[string]any{
			"product_id": sub.ProductID.String(),
			"outcome":    outcome,
		})
		switch outcome {
		case deliveryFailed:
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
		case deliveryRejected:
			j.logg.Warn(j.logg.WithField(subCtx, "error", err.Error()), "subscription.delivery.rejected")
			paused, recErr := j.subs.RecordRejection(ctx, sub.ID, err.Error())
			if recErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("subscription %s: record rejection: %w", sub.ID, recErr))
				continue
			}
			if paused {
				counts[deliveryPaused]++
				j.record(deliveryPaused)
				j.logg.Warn(subCtx, "subscription.delivery.paused")
			}
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"due":      len(due),
		"created":  counts[deliveryCreated],
		"rejected": counts[deliveryRejected],
		"skipped":  counts[deliverySkipped],
		"failed":   counts[deliveryFailed],
		"paused":   counts[deliveryPaused],
	}), "subscription delivery loop complete")
	return errs
}

func (j *subscriptionDeliveryJob) deliver(ctx context.Context, subscriptionID uuid.UUID, asOf time.Time) (string, error) {
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		sub, err := j.subs.LockDue(ctx, tx, subscriptionID, asOf)
		if err != nil {
			return err
		}
		deliveryDate := sub.NextDelivery

		order, err := j.orders.CreateFromSubscription(ctx, tx, sub)
		if err != nil {
			return err
		}
		if err := j.subs.ConsumeDelivery(ctx, tx, sub); err != nil {
			return err
		}
		if err := j.subs.Advance(ctx, tx, sub); err != nil {
			return err
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionDeliveryCreated,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Data: payloads.SubscriptionDeliveryCreatedEvent{
				SubscriptionID: sub.ID,
				OrderID:        order.ID,
				DeliveryDate:   deliveryDate,
				NextDelivery:   sub.NextDelivery,
			},
		})
	})

	switch {
	case err == nil:
		return deliveryCreated, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		// cancelled or delivered by another run since ListDue
		return deliverySkipped, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation), pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
		return deliveryRejected, err
	default:
		return deliveryFailed, err
	}
}

func (j *subscriptionDeliveryJob) record(outcome string) {
	if j.metrics != nil {
		j.metrics.SubscriptionDelivery(outcome)
	}
}
