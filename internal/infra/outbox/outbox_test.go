package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/events"
	eventdispatcher "github.com/ahrav/academy/internal/infra/event_dispatcher"
	"github.com/ahrav/academy/internal/infra/eventbus/kafka"
	membus "github.com/ahrav/academy/internal/infra/eventbus/memory"
	"github.com/ahrav/academy/internal/infra/outbox"
	"github.com/ahrav/academy/internal/infra/storage/outbox/memory"
	"github.com/ahrav/academy/pkg/common/logger"
	"github.com/ahrav/academy/pkg/common/timeutil"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	msgs   []kafka.Message
	failAt int // 1-based publish number that fails; 0 never fails
	calls  int
}

func (s *recordingSink) Publish(_ context.Context, msg kafka.Message) error {
	s.calls++
	if s.failAt == s.calls {
		return errors.New("broker unavailable")
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func newDispatcher(store outbox.Store) *eventdispatcher.Dispatcher {
	tracer := noop.NewTracerProvider().Tracer("test")
	journal := outbox.NewJournal(store, timeutil.NewMock(testNow))
	return eventdispatcher.New(tracer, logger.Noop(), eventdispatcher.WithJournal(journal))
}

func TestJournal_RecordsCascadeAndFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewJournalStore()
	d := newDispatcher(store)

	courseID := uuid.New()
	require.NoError(t, d.RegisterHandler(ctx, content.EventTypeCourseCreated, "test.deactivate",
		func(ctx context.Context, _ events.EventEnvelope) error {
			return d.PublishDomainEvent(ctx, content.NewCourseDeactivatedEvent(courseID, testNow))
		}))
	require.NoError(t, d.RegisterHandler(ctx, content.EventTypeCourseDeactivated, "test.fails",
		func(context.Context, events.EventEnvelope) error { return errors.New("boom") }))

	err := d.PublishDomainEvent(ctx, content.NewCourseCreatedEvent(courseID, "Go", decimal.NewFromInt(100), testNow))
	require.Error(t, err)

	rows := store.Records()
	require.Len(t, rows, 2)

	// Rows are appended as dispatch starts, so the cause comes first.
	root, nested := rows[0], rows[1]
	assert.Less(t, root.Seq, nested.Seq)
	assert.Equal(t, content.EventTypeCourseCreated, root.EventType)
	assert.Equal(t, eventdispatcher.OutcomeFailedHandler, root.Outcome)
	assert.Equal(t, "test.deactivate", root.FailedHandler)
	assert.Equal(t, courseID.String(), root.AggregateID)
	assert.Equal(t, outbox.StatusPending, root.Status)
	assert.Equal(t, testNow, root.RecordedAt)

	assert.Equal(t, content.EventTypeCourseDeactivated, nested.EventType)
	assert.Equal(t, eventdispatcher.OutcomeFailedHandler, nested.Outcome)
	assert.Equal(t, "test.fails", nested.FailedHandler)
	assert.Contains(t, nested.Error, "boom")
	assert.Equal(t, 1, nested.Depth)
	assert.Equal(t, root.EventID, nested.CausationID)
	assert.Equal(t, root.ChainID, nested.ChainID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(root.Payload, &payload))
	assert.Equal(t, "Go", payload["Name"])
}

func TestJournal_HandledWithoutSubscribers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewJournalStore()
	d := newDispatcher(store)

	require.NoError(t, d.PublishDomainEvent(ctx, content.NewCourseReactivatedEvent(uuid.New(), testNow)))

	rows := store.Records()
	require.Len(t, rows, 1)
	assert.Equal(t, eventdispatcher.OutcomeHandled, rows[0].Outcome)
	assert.False(t, rows[0].Failed())
	assert.Empty(t, rows[0].Error)
}

func TestRelay_PublishesInJournalOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewJournalStore()
	d := newDispatcher(store)

	for range 3 {
		require.NoError(t, d.PublishDomainEvent(ctx, content.NewCourseReactivatedEvent(uuid.New(), testNow)))
	}

	sink := &recordingSink{}
	relay := outbox.NewRelay(store, sink, outbox.RelayConfig{BatchSize: 10, RatePerSecond: 1000, Burst: 10},
		timeutil.NewMock(testNow), logger.Noop(), noop.NewTracerProvider().Tracer("test"))

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows := store.Records()
	for i, msg := range sink.msgs {
		assert.Equal(t, rows[i].AggregateID, msg.Key)
		assert.Equal(t, rows[i].EventID.String(), msg.Headers["event_id"])

		var wire map[string]any
		require.NoError(t, json.Unmarshal(msg.Value, &wire))
		assert.Equal(t, string(content.EventTypeCourseReactivated), wire["event_type"])
	}
	for _, r := range rows {
		assert.Equal(t, outbox.StatusPublished, r.Status)
		require.NotNil(t, r.PublishedAt)
	}

	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "published rows are not sent again")
}

func TestRelay_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewJournalStore()
	d := newDispatcher(store)

	for range 3 {
		require.NoError(t, d.PublishDomainEvent(ctx, content.NewCourseReactivatedEvent(uuid.New(), testNow)))
	}

	sink := &recordingSink{failAt: 2}
	relay := outbox.NewRelay(store, sink, outbox.RelayConfig{RatePerSecond: 1000, Burst: 10},
		timeutil.NewMock(testNow), logger.Noop(), noop.NewTracerProvider().Tracer("test"))

	n, err := relay.RunOnce(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)

	rows := store.Records()
	assert.Equal(t, outbox.StatusPublished, rows[0].Status)
	assert.Equal(t, outbox.StatusPending, rows[1].Status)
	assert.Equal(t, 1, rows[1].Attempts)
	assert.Equal(t, outbox.StatusPending, rows[2].Status)
	assert.Zero(t, rows[2].Attempts)

	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRelay_StartRejectsBadSchedule(t *testing.T) {
	relay := outbox.NewRelay(memory.NewJournalStore(), &recordingSink{}, outbox.RelayConfig{Schedule: "not a schedule"},
		nil, logger.Noop(), noop.NewTracerProvider().Tracer("test"))
	assert.Error(t, relay.Start(context.Background()))
}

func TestRelay_InMemoryBrokerMarksCriticalEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.NewJournalStore()
	d := newDispatcher(store)

	courseID := uuid.New()
	require.NoError(t, d.PublishDomainEvent(ctx, content.NewLessonUpdatedEvent(courseID, uuid.New(), testNow)))
	require.NoError(t, d.PublishDomainEvent(ctx, content.NewCourseDeactivatedEvent(courseID, testNow)))

	broker := membus.NewBroker()
	var got []kafka.Message
	require.NoError(t, broker.Subscribe(ctx, func(m kafka.Message) error {
		got = append(got, m)
		return nil
	}))

	relay := outbox.NewRelay(store, broker, outbox.RelayConfig{RatePerSecond: 1000, Burst: 10},
		timeutil.NewMock(testNow), logger.Noop(), noop.NewTracerProvider().Tracer("test"))

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, got, 2)
	assert.NotContains(t, got[0].Headers, "critical")
	assert.Equal(t, "true", got[1].Headers["critical"])
}
