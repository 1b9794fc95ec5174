package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
	"github.com/angelmondragon/medcart-backend/pkg/outbox"
	"github.com/angelmondragon/medcart-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/medcart-backend/pkg/validation"
)

const (
	// DefaultLookahead is how many deliveries' worth of stock a subscription holds.
	DefaultLookahead = 3
	// DefaultMaxRejections is how many consecutive undeliverable due dates a
	// subscription survives before it is paused.
	DefaultMaxRejections = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	DecrementOnFulfillment(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, fromReservation bool) error
}

// Service manages recurring deliveries and the stock they hold.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*SubscriptionDTO, error)
	Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*SubscriptionDTO, error)
	Get(ctx context.Context, userID, subscriptionID uuid.UUID) (*SubscriptionDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]SubscriptionDTO, error)
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error)

	// Delivery steps run by the cron worker inside its own transaction.
	LockDue(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, asOf time.Time) (*models.Subscription, error)
	ConsumeDelivery(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error
	Advance(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error
	// RecordRejection runs in its own transaction after a delivery was refused.
	RecordRejection(ctx context.Context, subscriptionID uuid.UUID, reason string) (paused bool, err error)
}

type ServiceParams struct {
	Repo      *Repository
	Tx        txRunner
	Stock     stockReserver
	Outbox    outbox.Emitter
	Logger    *logger.Logger
	Lookahead int
	// MaxRejections defaults to DefaultMaxRejections.
	MaxRejections int
	Now           func() time.Time
}

type service struct {
	repo          *Repository
	tx            txRunner
	stock         stockReserver
	outbox        outbox.Emitter
	logg          *logger.Logger
	lookahead     int
	maxRejections int
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	lookahead := params.Lookahead
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	maxRejections := params.MaxRejections
	if maxRejections <= 0 {
		maxRejections = DefaultMaxRejections
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:          params.Repo,
		tx:            params.Tx,
		stock:         params.Stock,
		outbox:        params.Outbox,
		logg:          params.Logger,
		lookahead:     lookahead,
		maxRejections: maxRejections,
		now:           now,
	}, nil
}

// Create reserves quantity * lookahead units before persisting. A shortfall
// rejects the subscription and leaves stock untouched.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*SubscriptionDTO, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if !input.Frequency.IsValid() {
		return nil, validation.FieldError("frequency", "must be one of weekly, biweekly, monthly, yearly")
	}

	today := dateOnly(s.now())
	start := today.AddDate(0, 0, 1)
	if input.StartDate != nil {
		start = dateOnly(*input.StartDate)
		if start.Before(today) {
			return nil, validation.FieldError("start_date", "must not be in the past")
		}
	}

	reserve := input.Quantity * s.lookahead
	sub := &models.Subscription{
		UserID:           userID,
		ProductID:        input.ProductID,
		Frequency:        input.Frequency,
		Quantity:         input.Quantity,
		ReservedQuantity: reserve,
		NextDelivery:     start,
		IsActive:         true,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.WithContext(ctx).First(&product, "id = ?", input.ProductID).Error; err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.Purchasable(s.now()) {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not available for subscription")
		}
		if err := s.stock.Reserve(ctx, tx, product.ID, reserve); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		sub.Product = &product
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionCreated,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.UserRoleCustomer},
			Data: payloads.SubscriptionCreatedEvent{
				SubscriptionID:   sub.ID,
				UserID:           userID,
				ProductID:        sub.ProductID,
				Frequency:        sub.Frequency,
				Quantity:         sub.Quantity,
				ReservedQuantity: sub.ReservedQuantity,
				NextDelivery:     sub.NextDelivery,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := ToDTO(*sub)
	return &dto, nil
}

// Cancel is idempotent: cancelling an inactive subscription changes nothing.
func (s *service) Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*SubscriptionDTO, error) {
	var result models.Subscription
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindForUser(ctx, userID, subscriptionID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		result = *sub
		if !sub.IsActive {
			return nil
		}

		at := s.now().UTC()
		affected, err := repo.Deactivate(ctx, sub.ID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel subscription")
		}
		if affected == 0 {
			return nil
		}
		if err := s.stock.Release(ctx, tx, sub.ProductID, sub.ReservedQuantity); err != nil {
			return err
		}

		released := sub.ReservedQuantity
		result.IsActive = false
		result.ReservedQuantity = 0
		result.CancelledAt = &at
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionCancelled,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.UserRoleCustomer},
			Data: payloads.SubscriptionCancelledEvent{
				SubscriptionID:   sub.ID,
				UserID:           userID,
				ProductID:        sub.ProductID,
				ReleasedQuantity: released,
				CancelledAt:      at,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(result)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, userID, subscriptionID uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.repo.FindForUser(ctx, userID, subscriptionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	dto := ToDTO(*sub)
	return &dto, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]SubscriptionDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	out := make([]SubscriptionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToDTO(row))
	}
	return out, nil
}

func (s *service) ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error) {
	rows, err := s.repo.ListDue(ctx, dateOnly(asOf), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due subscriptions")
	}
	return rows, nil
}

// LockDue returns NOT_FOUND when the subscription was cancelled or already
// advanced since it was listed.
func (s *service) LockDue(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, asOf time.Time) (*models.Subscription, error) {
	sub, err := s.repo.WithTx(tx).LockDue(ctx, subscriptionID, dateOnly(asOf))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not due")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock subscription")
	}
	return sub, nil
}

// ConsumeDelivery ships one delivery's units out of the reservation and then
// tops the reservation back up to quantity * lookahead when stock allows.
// A failed top-up is logged, not returned: the delivery itself succeeded.
func (s *service) ConsumeDelivery(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error {
	fromReservation := min(sub.Quantity, sub.ReservedQuantity)
	if fromReservation > 0 {
		if err := s.stock.DecrementOnFulfillment(ctx, tx, sub.ProductID, fromReservation, true); err != nil {
			return err
		}
	}
	if rest := sub.Quantity - fromReservation; rest > 0 {
		if err := s.stock.DecrementOnFulfillment(ctx, tx, sub.ProductID, rest, false); err != nil {
			return err
		}
	}
	reserved := sub.ReservedQuantity - fromReservation

	if want := sub.Quantity*s.lookahead - reserved; want > 0 {
		err := s.stock.Reserve(ctx, tx, sub.ProductID, want)
		switch {
		case err == nil:
			reserved += want
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"subscription_id": sub.ID.String(),
					"product_id":      sub.ProductID.String(),
					"requested":       want,
				})
				s.logg.Warn(logCtx, "subscription.reservation.topup_short")
			}
		default:
			return err
		}
	}

	if err := s.repo.WithTx(tx).Update(ctx, sub.ID, map[string]any{
		"reserved_quantity": reserved,
		"updated_at":        s.now().UTC(),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription reservation")
	}
	sub.ReservedQuantity = reserved
	return nil
}

// Advance moves next_delivery forward by one interval, stamps the delivery and
// clears the rejection streak.
func (s *service) Advance(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error {
	if !sub.Frequency.IsValid() {
		return errors.New("subscription has invalid frequency " + string(sub.Frequency))
	}
	delivered := s.now().UTC()
	next := NextAfter(sub.NextDelivery, sub.Frequency)
	if err := s.repo.WithTx(tx).Update(ctx, sub.ID, map[string]any{
		"next_delivery":       next,
		"last_delivered_at":   delivered,
		"delivery_rejections": 0,
		"updated_at":          delivered,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance subscription")
	}
	sub.NextDelivery = next
	sub.LastDeliveredAt = &delivered
	sub.DeliveryRejections = 0
	return nil
}

// RecordRejection bumps the rejection streak of an active subscription. When
// the streak reaches the limit the subscription is paused and its reservation
// goes back to the shelf. A subscription that is no longer active is ignored.
func (s *service) RecordRejection(ctx context.Context, subscriptionID uuid.UUID, reason string) (bool, error) {
	paused := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindActive(ctx, subscriptionID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}

		at := s.now().UTC()
		rejections := sub.DeliveryRejections + 1
		if rejections < s.maxRejections {
			if err := repo.Update(ctx, sub.ID, map[string]any{
				"delivery_rejections": rejections,
				"updated_at":          at,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record delivery rejection")
			}
			return nil
		}

		affected, err := repo.Pause(ctx, sub.ID, rejections, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pause subscription")
		}
		if affected == 0 {
			return nil
		}
		if err := s.stock.Release(ctx, tx, sub.ProductID, sub.ReservedQuantity); err != nil {
			return err
		}
		paused = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionPaused,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Data: payloads.SubscriptionPausedEvent{
				SubscriptionID:   sub.ID,
				UserID:           sub.UserID,
				ProductID:        sub.ProductID,
				Rejections:       rejections,
				Reason:           reason,
				ReleasedQuantity: sub.ReservedQuantity,
				PausedAt:         at,
			},
		})
	})
	if err != nil {
		return false, err
	}
	return paused, nil
}
