package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type processorFixture struct {
	repo      *GormOutboxRepository
	bus       *InMemoryEventBus
	handler   *testHandler
	processor *OutboxProcessor
}

func newProcessorFixture(t *testing.T, config OutboxProcessorConfig) *processorFixture {
	t.Helper()
	logger := zap.NewNop()
	serializer := NewEventSerializer()
	serializer.Register(posted, &testEvent{})

	repo := NewGormOutboxRepository(setupOutboxDB(t))
	bus := NewInMemoryEventBus(logger)
	handler := newTestHandler(posted)
	bus.Subscribe(handler, posted)

	return &processorFixture{
		repo:      repo,
		bus:       bus,
		handler:   handler,
		processor: NewOutboxProcessor(repo, bus, serializer, config, logger),
	}
}

func (f *processorFixture) save(t *testing.T, eventType string) *shared.OutboxEntry {
	t.Helper()
	entry := newOutboxEntry(t, uuid.New(), eventType)
	require.NoError(t, f.repo.Save(context.Background(), entry))
	return entry
}

func (f *processorFixture) status(t *testing.T, id uuid.UUID) *shared.OutboxEntry {
	t.Helper()
	stored, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return stored
}

func TestOutboxProcessor_Flush(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	entry := f.save(t, posted)

	f.processor.Flush(context.Background(), []*shared.OutboxEntry{entry})

	require.Len(t, f.handler.getHandled(), 1)
	assert.Equal(t, entry.EventID, f.handler.getHandled()[0].EventID())
	stored := f.status(t, entry.ID)
	assert.Equal(t, shared.OutboxStatusSent, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestOutboxProcessor_Flush_SkipsClaimedEntries(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	entry := f.save(t, posted)
	_, err := f.repo.MarkProcessing(context.Background(), []uuid.UUID{entry.ID})
	require.NoError(t, err)

	f.processor.Flush(context.Background(), []*shared.OutboxEntry{entry})

	assert.Empty(t, f.handler.getHandled())
	assert.Equal(t, shared.OutboxStatusProcessing, f.status(t, entry.ID).Status)
}

func TestOutboxProcessor_Flush_HandlerFailureSchedulesRetry(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	f.handler.setError(errors.New("subscriber down"))
	entry := f.save(t, posted)

	f.processor.Flush(context.Background(), []*shared.OutboxEntry{entry})

	stored := f.status(t, entry.ID)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.LastError, "subscriber down")
	require.NotNil(t, stored.NextRetryAt)
}

func TestOutboxProcessor_ProcessBatch(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	first := f.save(t, posted)
	second := f.save(t, posted)

	f.processor.ProcessBatch(context.Background())

	assert.Len(t, f.handler.getHandled(), 2)
	assert.Equal(t, shared.OutboxStatusSent, f.status(t, first.ID).Status)
	assert.Equal(t, shared.OutboxStatusSent, f.status(t, second.ID).Status)
}

func TestOutboxProcessor_ProcessBatch_RetriesDueEntries(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	ctx := context.Background()
	entry := newOutboxEntry(t, uuid.New(), posted)
	entry.MarkFailed("subscriber down")
	past := time.Now().Add(-time.Second)
	entry.NextRetryAt = &past
	require.NoError(t, f.repo.Save(ctx, entry))

	f.processor.ProcessBatch(ctx)

	assert.Len(t, f.handler.getHandled(), 1)
	assert.Equal(t, shared.OutboxStatusSent, f.status(t, entry.ID).Status)
}

func TestOutboxProcessor_UnknownEventTypeGoesDead(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	entry := newOutboxEntry(t, uuid.New(), "unregistered.event.v1")
	entry.MaxRetries = 1
	require.NoError(t, f.repo.Save(context.Background(), entry))

	f.processor.ProcessBatch(context.Background())

	stored := f.status(t, entry.ID)
	assert.Equal(t, shared.OutboxStatusDead, stored.Status)
	assert.Contains(t, stored.LastError, "unknown event type")
	assert.Empty(t, f.handler.getHandled())
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	f := newProcessorFixture(t, DefaultOutboxProcessorConfig())
	ctx := context.Background()
	old := newOutboxEntry(t, uuid.New(), posted)
	old.MarkSent()
	longAgo := time.Now().Add(-30 * 24 * time.Hour)
	old.ProcessedAt = &longAgo
	require.NoError(t, f.repo.Save(ctx, old))

	f.processor.Cleanup(ctx)

	_, err := f.repo.FindByID(ctx, old.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	f := newProcessorFixture(t, OutboxProcessorConfig{
		BatchSize:    10,
		PollInterval: 20 * time.Millisecond,
	})
	entry := f.save(t, posted)

	require.NoError(t, f.processor.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return len(f.handler.getHandled()) == 1
	}, 2*time.Second, 20*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.processor.Stop(stopCtx))
	assert.Equal(t, shared.OutboxStatusSent, f.status(t, entry.ID).Status)
}

func TestDefaultOutboxProcessorConfig(t *testing.T) {
	config := DefaultOutboxProcessorConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.True(t, config.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, config.CleanupRetention)
	assert.Equal(t, time.Hour, config.CleanupInterval)
}
