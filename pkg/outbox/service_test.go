package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kitstock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
)

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	orderID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "customer"}

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor,
			Data:          map[string]any{"order_id": orderID},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor.UserID, envelope.Actor.UserID)
	assert.JSONEq(t, `{"order_id":"`+orderID.String()+`"}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregatePart,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}))
		return gorm.ErrInvalidData
	})

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitValidatesInput(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated})
	assert.Error(t, err)

	err = svc.Emit(context.Background(), conn, DomainEvent{EventType: "bogus"})
	assert.Error(t, err)

	err = svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventReservationsExpired,
		AggregateType: enums.AggregateReservation,
	})
	assert.ErrorContains(t, err, "aggregate id")

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitStampsOccurredAtInUTC(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	svc.now = func() time.Time { return fixed }

	providerID := uuid.New()
	actor := types.Actor{ID: uuid.New(), Role: enums.ActorRoleProvider, ProviderID: &providerID}
	require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOfferingInventoryChanged,
		AggregateType: enums.AggregateOffering,
		AggregateID:   uuid.New(),
		Actor:         RefFor(actor),
		Data:          struct{}{},
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.Take(&row).Error)
	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.True(t, envelope.OccurredAt.Equal(fixed))
	assert.Equal(t, time.UTC, envelope.OccurredAt.Location())
	require.NotNil(t, envelope.Actor.ProviderID)
	assert.Equal(t, providerID, *envelope.Actor.ProviderID)
	assert.Equal(t, "provider", envelope.Actor.Role)
}

func TestRepositoryLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	old := models.OutboxEvent{
		EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder,
		AggregateID: uuid.New(), Payload: json.RawMessage(`{}`),
	}
	fresh := models.OutboxEvent{
		EventType: enums.EventOrderDeleted, AggregateType: enums.AggregateOrder,
		AggregateID: uuid.New(), Payload: json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Insert(conn, old))
	require.NoError(t, repo.Insert(conn, fresh))

	var pending []models.OutboxEvent
	err := conn.Transaction(func(tx *gorm.DB) error {
		var ferr error
		pending, ferr = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return ferr
	})
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, repo.MarkFailedTx(conn, pending[1].ID, assert.AnError))
	require.NoError(t, repo.DeadLetterTx(conn, pending[1], enums.DeadLetterMaxAttempts, assert.AnError, 3))
	require.NoError(t, repo.MarkPublishedTx(conn, pending[0].ID))

	err = conn.Transaction(func(tx *gorm.DB) error {
		var ferr error
		pending, ferr = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return ferr
	})
	require.NoError(t, err)
	assert.Empty(t, pending, "published and terminal rows should be skipped")

	deleted, err := repo.DeletePublishedBefore(nil, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestDeadLetterTxCopiesRowAndParksIt(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	event := models.OutboxEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregatePart,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  4,
	}
	require.NoError(t, conn.Create(&event).Error)
	long := errors.New(strings.Repeat("x", maxLastErrorLen+50))

	err := conn.Transaction(func(tx *gorm.DB) error {
		return repo.DeadLetterTx(tx, event, enums.DeadLetterRejected, long, 10)
	})
	require.NoError(t, err)

	found, err := repo.FindDeadLetter(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.DeadLetterRejected, found.ErrorReason)
	assert.Equal(t, 4, found.AttemptCount)
	assert.JSONEq(t, `{"version":1}`, string(found.Payload))
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, maxLastErrorLen)

	var parked models.OutboxEvent
	require.NoError(t, conn.Take(&parked, "id = ?", event.ID).Error)
	assert.Equal(t, 10, parked.AttemptCount)
	assert.Nil(t, parked.PublishedAt)

	missing, err := repo.FindDeadLetter(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	kept, err := repo.DeleteDeadLettersBefore(nil, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, kept)
	pruned, err := repo.DeleteDeadLettersBefore(nil, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)
}

func TestDeadLetterTxRejectsBadInput(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	assert.Error(t, repo.DeadLetterTx(nil, models.OutboxEvent{}, enums.DeadLetterMalformed, nil, 1))
	assert.Error(t, repo.DeadLetterTx(conn, models.OutboxEvent{}, "non_retryable", nil, 1))
}
