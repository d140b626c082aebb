package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/infra/eventbus/kafka"
	"github.com/ahrav/academy/internal/infra/eventbus/reliability"
	"github.com/ahrav/academy/pkg/common"
	"github.com/ahrav/academy/pkg/common/logger"
	"github.com/ahrav/academy/pkg/common/timeutil"
)

// Sink accepts integration events. *kafka.Publisher satisfies it.
type Sink interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// RelayConfig tunes the relay.
type RelayConfig struct {
	// Schedule is a cron expression with a seconds field, e.g. "*/5 * * * * *".
	Schedule string
	// BatchSize caps the rows published per run.
	BatchSize int
	// RatePerSecond and Burst throttle publishes.
	RatePerSecond float64
	Burst         int
}

// DefaultRelayConfig runs every five seconds, 100 rows at a time.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{Schedule: "*/5 * * * * *", BatchSize: 100, RatePerSecond: 200, Burst: 20}
}

// Relay moves PENDING journal rows to a Sink in journal order. Delivery is at
// least once: a row whose publish succeeded but whose mark failed is sent again.
type Relay struct {
	store   Store
	sink    Sink
	limiter *common.RateLimiter
	cfg     RelayConfig

	cron *cron.Cron
	// runMu keeps a manual RunOnce from overlapping a scheduled run.
	runMu sync.Mutex

	timeProv timeutil.Provider
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewRelay creates a relay. Call Start to schedule it or RunOnce to drive it by hand.
func NewRelay(
	store Store,
	sink Sink,
	cfg RelayConfig,
	tp timeutil.Provider,
	log *logger.Logger,
	tracer trace.Tracer,
) *Relay {
	def := DefaultRelayConfig()
	if cfg.Schedule == "" {
		cfg.Schedule = def.Schedule
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond, cfg.Burst = def.RatePerSecond, def.Burst
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if tp == nil {
		tp = timeutil.Default()
	}

	return &Relay{
		store:    store,
		sink:     sink,
		limiter:  common.NewRateLimiter(cfg.RatePerSecond, cfg.Burst),
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeProv: tp,
		logger:   log.With("component", "outbox_relay"),
		tracer:   tracer,
	}
}

// Start schedules the relay. Runs use ctx and stop when it is cancelled or Stop is called.
func (r *Relay) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.cfg.Schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Warn(ctx, "Outbox relay run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule outbox relay %q: %w", r.cfg.Schedule, err)
	}

	r.cron.Start()
	r.logger.Info(ctx, "Outbox relay started", "schedule", r.cfg.Schedule, "batch_size", r.cfg.BatchSize)
	return nil
}

// Stop halts scheduling and waits for a running batch to finish.
func (r *Relay) Stop() {
	<-r.cron.Stop().Done()
}

// SetRate changes the publish throttle at runtime.
func (r *Relay) SetRate(rps float64, burst int) { r.limiter.UpdateLimits(rps, burst) }

// RunOnce publishes one batch and returns how many rows reached the sink. It
// stops at the first failure so later rows never overtake an earlier one.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	ctx, span := r.tracer.Start(ctx, "outbox_relay.run_once",
		trace.WithAttributes(attribute.Int("batch_size", r.cfg.BatchSize)))
	defer span.End()

	rows, err := r.store.FetchPending(ctx, r.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return 0, fmt.Errorf("fetch pending journal rows: %w", err)
	}

	published := 0
	for _, row := range rows {
		if err := r.limiter.Wait(ctx); err != nil {
			return published, err
		}
		if err := r.publish(ctx, row); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish failed")
			return published, err
		}
		published++
	}

	span.SetAttributes(attribute.Int("published", published))
	if published > 0 {
		r.logger.Debug(ctx, "Outbox relay published batch", "published", published)
	}
	return published, nil
}

func (r *Relay) publish(ctx context.Context, row Record) error {
	value, err := json.Marshal(newIntegrationEvent(row))
	if err != nil {
		return fmt.Errorf("encode journal row %d: %w", row.Seq, err)
	}

	msg := kafka.Message{Key: row.AggregateID, Value: value, Headers: row.Headers()}
	if err := r.sink.Publish(ctx, msg); err != nil {
		if reliability.IsCriticalEvent(row.EventType) {
			r.logger.Error(ctx, "Critical event delivery failed", "seq", row.Seq, "event_type", row.EventType, "error", err)
		}
		if markErr := r.store.MarkAttemptFailed(ctx, row.Seq); markErr != nil {
			r.logger.Error(ctx, "Failed to count relay attempt", "seq", row.Seq, "error", markErr)
		}
		return fmt.Errorf("publish journal row %d (%s): %w", row.Seq, row.EventType, err)
	}

	if err := r.store.MarkPublished(ctx, row.Seq, r.timeProv.Now()); err != nil {
		return fmt.Errorf("mark journal row %d published: %w", row.Seq, err)
	}
	return nil
}

// integrationEvent is the wire form consumers outside the process receive.
type integrationEvent struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	ChainID     string          `json:"chain_id"`
	CausationID string          `json:"causation_id,omitempty"`
	Depth       int             `json:"depth"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

func newIntegrationEvent(r Record) integrationEvent {
	ev := integrationEvent{
		EventID:     r.EventID.String(),
		EventType:   string(r.EventType),
		AggregateID: r.AggregateID,
		ChainID:     r.ChainID.String(),
		Depth:       r.Depth,
		OccurredAt:  r.OccurredAt,
		Payload:     r.Payload,
	}
	if r.Depth > 0 {
		ev.CausationID = r.CausationID.String()
	}
	return ev
}
