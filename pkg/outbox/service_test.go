package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	"github.com/angelmondragon/medcart-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopeInTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.OrderCreatedEvent{OrderID: orderID, OrderNumber: "ORD-20260501-ABCDEF12"},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "aggregate_id = ?", orderID).Error)
	require.Nil(t, row.PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)

	var data payloads.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, "ORD-20260501-ABCDEF12", data.OrderNumber)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventSubscriptionCreated,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   uuid.New(),
			Data:          payloads.SubscriptionCreatedEvent{},
		}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitRejectsUnknownEventsAndNilTx(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated}))

	conn := dbtest.Open(t)
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "nope", AggregateID: uuid.New()}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.EventOrderCreated}))
}

func TestEmitDerivesAndChecksAggregateType(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()
	subID := uuid.New()

	err := svc.Emit(ctx, conn, DomainEvent{
		EventType:     enums.EventSubscriptionCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   subID,
	})
	require.ErrorContains(t, err, "belongs to subscription")

	require.NoError(t, svc.Emit(ctx, conn, DomainEvent{EventType: enums.EventSubscriptionCancelled, AggregateID: subID}))
	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "aggregate_id = ?", subID).Error)
	require.Equal(t, enums.AggregateSubscription, row.AggregateType)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.Emit(ctx, conn, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          payloads.OrderCreatedEvent{},
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New("transient")))

	pending, err := repo.CountPending(ctx, 3)
	require.NoError(t, err)
	require.EqualValues(t, 1, pending)

	require.NoError(t, repo.MarkTerminalTx(conn, rows[1].ID, errors.New("fatal"), 3))
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Empty(t, rows)
}
