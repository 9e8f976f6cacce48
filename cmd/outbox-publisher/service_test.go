package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/metrics"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox/registry"
)

var errPermanent = errors.New("permanent")

func orderEvent(t *testing.T, eventID string, attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, eventID),
		AttemptCount:  attempts,
		CreatedAt:     time.Now(),
	}
}

func orderResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Topic:         "kitstock-orders",
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    uuid.NewString(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.OrderCreatedEvent{},
	}
}

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			orderEvent(t, "event-one", 0),
			orderEvent(t, "event-two", 0),
		},
	}
	broker := &fakeBroker{results: []error{errors.New("transient"), nil}}
	service := newTestService(t, repo, broker, &fakeRegistry{resolved: orderResolved()}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestPublishKeysByAggregateAndSetsAttributes(t *testing.T) {
	event := orderEvent(t, "keyed", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	broker := &fakeBroker{}
	service := newTestService(t, repo, broker, &fakeRegistry{resolved: orderResolved()}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(broker.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(broker.sent))
	}
	sent := broker.sent[0]
	if sent.topic != "kitstock-orders" {
		t.Fatalf("unexpected topic %q", sent.topic)
	}
	if sent.msg.Key != event.AggregateID.String() {
		t.Fatalf("message key %q, want aggregate id", sent.msg.Key)
	}
	if sent.msg.Attributes["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event_type attribute %q", sent.msg.Attributes["event_type"])
	}
	if sent.msg.Attributes["event_id"] != event.ID.String() {
		t.Fatalf("unexpected event_id attribute %q", sent.msg.Attributes["event_id"])
	}
	if !bytes.Equal(sent.msg.Data, event.Payload) {
		t.Fatalf("payload not forwarded verbatim")
	}
	if len(repo.published) != 1 {
		t.Fatalf("expected published row recorded once, got %d", len(repo.published))
	}
}

func TestServiceDeadLettersRejectedRows(t *testing.T) {
	event := orderEvent(t, "unroutable", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: &registry.Rejection{Reason: enums.DeadLetterUnroutable, Err: errors.New("no route")}}
	broker := &fakeBroker{}
	service := newTestService(t, repo, broker, reg, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(broker.sent) != 0 {
		t.Fatalf("rejected row should never reach the broker")
	}
	if got := len(repo.deadLetters); got != 1 {
		t.Fatalf("expected one dead letter, got %d", got)
	}
	entry := repo.deadLetters[0]
	if entry.id != event.ID {
		t.Fatalf("dead letter id mismatch: %s", entry.id)
	}
	if entry.reason != enums.DeadLetterUnroutable {
		t.Fatalf("unexpected reason: %s", entry.reason)
	}
	if entry.parkAt != 5 {
		t.Fatalf("row parked at %d, want max attempts", entry.parkAt)
	}
}

func TestServiceTreatsUnclassifiedResolveErrorsAsMalformed(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, "odd", 0)}}
	service := newTestService(t, repo, &fakeBroker{}, &fakeRegistry{err: errors.New("boom")}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.deadLetters) != 1 || repo.deadLetters[0].reason != enums.DeadLetterMalformed {
		t.Fatalf("unexpected dead letters %+v", repo.deadLetters)
	}
}

func TestServiceDeadLettersOnPermanentBrokerError(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, "permanent", 0)}}
	broker := &fakeBroker{results: []error{errPermanent}}
	service := newTestService(t, repo, broker, &fakeRegistry{resolved: orderResolved()}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(repo.deadLetters); got != 1 {
		t.Fatalf("expected dead letter, got %d", got)
	}
	if repo.deadLetters[0].reason != enums.DeadLetterRejected {
		t.Fatalf("unexpected reason: %s", repo.deadLetters[0].reason)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("permanent failure should not be retried")
	}
}

func TestServiceDeadLettersOnMaxAttempts(t *testing.T) {
	event := orderEvent(t, "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	broker := &fakeBroker{results: []error{errors.New("transient")}}
	service := newTestService(t, repo, broker, &fakeRegistry{resolved: orderResolved()}, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(repo.deadLetters); got != 1 {
		t.Fatalf("expected dead letter, got %d", got)
	}
	entry := repo.deadLetters[0]
	if entry.reason != enums.DeadLetterMaxAttempts {
		t.Fatalf("unexpected reason: %s", entry.reason)
	}
	if !strings.Contains(entry.cause.Error(), "gave up after 2 attempts") {
		t.Fatalf("unexpected cause %q", entry.cause)
	}
	if entry.parkAt != 2 {
		t.Fatalf("row parked at %d", entry.parkAt)
	}
}

func TestServiceAbortsBatchWhenBookkeepingFails(t *testing.T) {
	repo := &fakeRepo{
		events:  []models.OutboxEvent{orderEvent(t, "a", 0), orderEvent(t, "b", 0)},
		markErr: errors.New("connection reset"),
	}
	broker := &fakeBroker{}
	service := newTestService(t, repo, broker, &fakeRegistry{resolved: orderResolved()}, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatal("expected batch error")
	}
	if len(broker.sent) != 1 {
		t.Fatalf("batch should stop after the failed mark, sent %d", len(broker.sent))
	}
}

func TestServiceEmptyBatchReportsIdle(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeBroker{}, &fakeRegistry{resolved: orderResolved()}, nil)
	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected idle batch")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("unexpected first backoff %s", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("expected cap, got %s", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, broker Broker, reg registryResolver, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakeDB{},
		Broker:     broker,
		BrokerName: "fake",
		Repository: repo,
		Registry:   reg,
		Metrics:    metrics.NewOutboxMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type deadLetter struct {
	id     uuid.UUID
	reason enums.DeadLetterReason
	cause  error
	parkAt int
}

type fakeRepo struct {
	events      []models.OutboxEvent
	markErr     error
	published   []uuid.UUID
	failed      []uuid.UUID
	deadLetters []deadLetter
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) DeadLetterTx(tx *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error, parkAt int) error {
	f.deadLetters = append(f.deadLetters, deadLetter{id: event.ID, reason: reason, cause: cause, parkAt: parkAt})
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type sentMessage struct {
	topic string
	msg   outbox.Message
}

type fakeBroker struct {
	results []error
	sent    []sentMessage
}

func (f *fakeBroker) Ping(context.Context) error {
	return nil
}

func (f *fakeBroker) Publish(_ context.Context, topic string, msg outbox.Message) error {
	f.sent = append(f.sent, sentMessage{topic: topic, msg: msg})
	if len(f.results) == 0 {
		return nil
	}
	err := f.results[0]
	f.results = f.results[1:]
	return err
}

func (f *fakeBroker) IsPermanent(err error) bool {
	return errors.Is(err, errPermanent)
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}
