package outbox

import (
	"context"
	"fmt"

	eventdispatcher "github.com/ahrav/academy/internal/infra/event_dispatcher"
	"github.com/ahrav/academy/internal/infra/eventbus/reliability"
	"github.com/ahrav/academy/pkg/common/timeutil"
)

var _ eventdispatcher.Journal = (*Journal)(nil)

// Journal adapts a Store to the dispatcher's journal hook.
type Journal struct {
	store    Store
	timeProv timeutil.Provider
}

// NewJournal creates a Journal writing to store.
func NewJournal(store Store, tp timeutil.Provider) *Journal {
	if tp == nil {
		tp = timeutil.Default()
	}
	return &Journal{store: store, timeProv: tp}
}

// Record appends the delivery as a PENDING row when its dispatch starts.
func (j *Journal) Record(ctx context.Context, d eventdispatcher.Delivery) error {
	r, err := NewRecord(d, j.timeProv.Now())
	if err != nil {
		return err
	}
	return j.store.Append(ctx, r)
}

// Settle stores the delivery outcome on the row Record appended.
func (j *Journal) Settle(ctx context.Context, d eventdispatcher.Delivery) error {
	if d.Envelope.Payload == nil {
		return fmt.Errorf("settle %s: envelope has no payload", d.Envelope.Type)
	}
	var errText string
	if d.Err != nil {
		errText = d.Err.Error()
	}
	return j.store.UpdateOutcome(ctx, d.Envelope.Payload.EventID(), d.Outcome, d.FailedHandler, errText)
}

// Failed reports whether the journaled delivery hit a failing handler.
func (r Record) Failed() bool { return r.Outcome == eventdispatcher.OutcomeFailedHandler }

// Headers are the broker headers the relay attaches to a row.
func (r Record) Headers() map[string]string {
	h := map[string]string{
		"event_id":   r.EventID.String(),
		"event_type": string(r.EventType),
		"chain_id":   r.ChainID.String(),
	}
	if r.Failed() {
		h["failed_handler"] = r.FailedHandler
	}
	if reliability.IsCriticalEvent(r.EventType) {
		h["critical"] = "true"
	}
	return h
}
