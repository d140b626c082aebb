package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventdispatcher "github.com/ahrav/academy/internal/infra/event_dispatcher"
	"github.com/ahrav/academy/internal/infra/outbox"
	"github.com/ahrav/academy/internal/infra/storage"
)

func testRecord(now time.Time, depth int) outbox.Record {
	r := outbox.Record{
		EventID:     uuid.New(),
		EventType:   "CourseCreated",
		AggregateID: uuid.NewString(),
		ChainID:     uuid.New(),
		Depth:       depth,
		Payload:     json.RawMessage(`{"Name":"Go"}`),
		Outcome:     eventdispatcher.OutcomeHandled,
		Status:      outbox.StatusPending,
		OccurredAt:  now,
		RecordedAt:  now,
	}
	if depth > 0 {
		r.CausationID = uuid.New()
	}
	return r
}

func TestJournalStore_AppendFetchMark(t *testing.T) {
	t.Parallel()
	db, cleanup := storage.SetupTestContainer(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(db, storage.NoOpTracer())
	now := time.Now().UTC().Truncate(time.Microsecond)

	root := testRecord(now, 0)
	root.Outcome = eventdispatcher.OutcomeInFlight
	nested := testRecord(now, 1)
	nested.Outcome = eventdispatcher.OutcomeInFlight

	require.NoError(t, store.Append(ctx, root))
	require.NoError(t, store.Append(ctx, nested))
	require.NoError(t, store.Append(ctx, root), "re-appending an event id is a no-op")

	require.NoError(t, store.UpdateOutcome(ctx, nested.EventID,
		eventdispatcher.OutcomeFailedHandler, "content.increment_enrollment_count", "boom"))
	require.NoError(t, store.UpdateOutcome(ctx, root.EventID, eventdispatcher.OutcomeHandled, "", ""))
	assert.Error(t, store.UpdateOutcome(ctx, uuid.New(), eventdispatcher.OutcomeHandled, "", ""))

	pending, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, root.EventID, pending[0].EventID, "rows come back in append order")
	assert.Equal(t, uuid.Nil, pending[0].CausationID)
	assert.Equal(t, eventdispatcher.OutcomeHandled, pending[0].Outcome)
	assert.JSONEq(t, `{"Name":"Go"}`, string(pending[0].Payload))
	assert.Equal(t, now, pending[0].OccurredAt)
	assert.Equal(t, nested.EventID, pending[1].EventID)
	assert.Equal(t, nested.CausationID, pending[1].CausationID)
	assert.Equal(t, "content.increment_enrollment_count", pending[1].FailedHandler)
	assert.Equal(t, "boom", pending[1].Error)
	assert.Equal(t, eventdispatcher.OutcomeFailedHandler, pending[1].Outcome)

	require.NoError(t, store.MarkPublished(ctx, pending[0].Seq, now))
	require.NoError(t, store.MarkAttemptFailed(ctx, pending[1].Seq))

	pending, err = store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, nested.EventID, pending[0].EventID)
	assert.Equal(t, 1, pending[0].Attempts)

	assert.Error(t, store.MarkPublished(ctx, 999_999, now))
}
