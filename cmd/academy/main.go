// Command academy runs the Content, Student and Payment contexts against
// postgres, applies an optional seed catalog and relays the event journal to
// Kafka until it is told to stop.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/academy/internal/app/choreography"
	appstudent "github.com/ahrav/academy/internal/app/student"
	"github.com/ahrav/academy/internal/config"
	"github.com/ahrav/academy/internal/config/fileloader"
	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/infra/catalog"
	eventdispatcher "github.com/ahrav/academy/internal/infra/event_dispatcher"
	"github.com/ahrav/academy/internal/infra/eventbus/kafka"
	"github.com/ahrav/academy/internal/infra/eventbus/memory"
	"github.com/ahrav/academy/internal/infra/gateway"
	"github.com/ahrav/academy/internal/infra/outbox"
	"github.com/ahrav/academy/internal/infra/storage"
	contentstore "github.com/ahrav/academy/internal/infra/storage/content/postgres"
	outboxstore "github.com/ahrav/academy/internal/infra/storage/outbox/postgres"
	paymentstore "github.com/ahrav/academy/internal/infra/storage/payment/postgres"
	studentstore "github.com/ahrav/academy/internal/infra/storage/student/postgres"
	"github.com/ahrav/academy/pkg/common/logger"
	"github.com/ahrav/academy/pkg/common/otel"
	"github.com/ahrav/academy/pkg/common/timeutil"
)

var build = "develop"

func main() {
	// Set the correct number of threads for the service
	_, _ = maxprocs.Set()

	configPath := flag.String("config", "", "path to academy.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to get hostname: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	metadata := map[string]string{
		"service":  cfg.Service.Name,
		"hostname": hostname,
		"build":    build,
	}
	appLog := logger.NewWithMetadata(
		os.Stdout,
		logger.ParseLevel(cfg.Service.LogLevel),
		cfg.Service.Name,
		otel.GetTraceID,
		logEvents,
		metadata,
	)
	defer func() { _ = appLog.Sync() }()

	ctx := context.Background()
	if err := run(ctx, appLog, cfg, hostname); err != nil {
		appLog.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, cfg *config.Config, hostname string) error {
	// -------------------------------------------------------------------------
	// GOMAXPROCS
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// -------------------------------------------------------------------------
	// Start Tracing Support
	var (
		tracerProvider trace.TracerProvider = tracenoop.NewTracerProvider()
		meterProvider  metric.MeterProvider = metricnoop.NewMeterProvider()
	)
	if cfg.Tracing.Enabled {
		log.Info(ctx, "startup", "status", "initializing tracing support", "endpoint", cfg.Tracing.Endpoint)
		providers, teardown, err := otel.InitTelemetry(log, otel.Config{
			ServiceName:      cfg.Service.Name,
			ExporterEndpoint: cfg.Tracing.Endpoint,
			ExcludedSpans:    map[string]struct{}{"outbox_relay.run_once": {}},
			Probability:      cfg.Tracing.Probability,
			ResourceAttributes: map[string]string{
				"library.language": "go",
				"host.name":        hostname,
			},
			InsecureExporter: true,
		})
		if err != nil {
			return fmt.Errorf("starting tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Service.ShutdownTimeout)
			defer cancel()
			teardown(shutdownCtx)
		}()
		tracerProvider, meterProvider = providers.Tracer, providers.Meter
	}
	tracer := tracerProvider.Tracer(cfg.Service.Name)

	// -------------------------------------------------------------------------
	// Database
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("parsing db config: %w", err)
	}
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer(otelpgx.WithTracerProvider(tracerProvider))

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating db pool: %w", err)
	}
	defer pool.Close()

	if cfg.Database.Migrations != "" {
		log.Info(ctx, "startup", "status", "applying migrations", "source", cfg.Database.Migrations)
		if err := storage.Migrate(pool, cfg.Database.Migrations); err != nil {
			return err
		}
	}

	courses := contentstore.NewCourseStore(pool, tracer)
	journalStore := outboxstore.NewJournalStore(pool, tracer)

	// -------------------------------------------------------------------------
	// Course catalog
	var (
		courseCatalog content.CourseCatalog = catalog.NewRepositoryCatalog(courses)
		invalidator   events.EventHandler
	)
	if cfg.Redis.URL != "" {
		cache, err := catalog.NewRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connecting outline cache: %w", err)
		}
		defer cache.Close()

		cached := catalog.NewCachedCatalog(courseCatalog, cache, cfg.Redis.OutlineTTL, log, tracer)
		courseCatalog, invalidator = cached, cached
	}

	// -------------------------------------------------------------------------
	// Dispatcher and contexts
	timeProv := timeutil.Default()

	dispatcherMetrics, err := eventdispatcher.NewMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("creating dispatcher metrics: %w", err)
	}
	dispatcher := eventdispatcher.New(tracer, log,
		eventdispatcher.WithJournal(outbox.NewJournal(journalStore, timeProv)),
		eventdispatcher.WithMetrics(dispatcherMetrics),
	)

	academy, err := choreography.Wire(ctx, dispatcher, choreography.Deps{
		Stores: choreography.Stores{
			Courses: courses,
			Student: appstudent.Repositories{
				Students:     studentstore.NewStudentStore(pool, tracer),
				Enrollments:  studentstore.NewEnrollmentStore(pool, tracer),
				Progress:     studentstore.NewProgressStore(pool, tracer),
				Certificates: studentstore.NewCertificateStore(pool, tracer),
			},
			Payments: paymentstore.NewPaymentStore(pool, tracer),
		},
		Catalog:            courseCatalog,
		Gateway:            gateway.NewSimulated(cfg.Gateway.Latency, log, tracer),
		OutlineInvalidator: invalidator,
		Time:               timeProv,
		Logger:             log,
		Tracer:             tracer,
	})
	if err != nil {
		return fmt.Errorf("wiring contexts: %w", err)
	}

	// -------------------------------------------------------------------------
	// Seed catalog
	if cfg.SeedFile != "" {
		seed, err := fileloader.NewFileLoader(cfg.SeedFile).Load(ctx)
		if err != nil {
			return err
		}
		if err := applySeed(ctx, academy, seed, log); err != nil {
			return fmt.Errorf("applying seed %s: %w", cfg.SeedFile, err)
		}
	}

	// -------------------------------------------------------------------------
	// Outbox relay
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Relay.Enabled {
		log.Info(ctx, "startup", "status", "initializing outbox relay", "transport", cfg.Relay.Transport)

		var sink outbox.Sink
		switch cfg.Relay.Transport {
		case config.TransportMemory:
			broker := memory.NewBroker()
			if err := broker.Subscribe(runCtx, func(m kafka.Message) error {
				log.Info(runCtx, "Relayed event", "key", m.Key, "event_type", m.Headers["event_type"], "critical", m.Headers["critical"] == "true")
				return nil
			}); err != nil {
				return fmt.Errorf("subscribing to in-memory broker: %w", err)
			}
			sink = broker
		default:
			publisherMetrics, err := kafka.NewMetrics(meterProvider)
			if err != nil {
				return fmt.Errorf("creating kafka metrics: %w", err)
			}
			publisher, err := kafka.ConnectWithRetry(runCtx, &kafka.Config{
				Brokers:  cfg.Kafka.Brokers,
				Topic:    cfg.Kafka.Topic,
				ClientID: cfg.Kafka.ClientID,
			}, log, publisherMetrics, tracer)
			if err != nil {
				return fmt.Errorf("connecting kafka: %w", err)
			}
			defer publisher.Close()
			sink = publisher
		}

		relay := outbox.NewRelay(journalStore, sink, outbox.RelayConfig{
			Schedule:      cfg.Relay.Schedule,
			BatchSize:     cfg.Relay.BatchSize,
			RatePerSecond: cfg.Relay.RatePerSecond,
			Burst:         cfg.Relay.Burst,
		}, timeProv, log, tracer)
		if err := relay.Start(runCtx); err != nil {
			return fmt.Errorf("starting relay: %w", err)
		}
		defer relay.Stop()
	}

	// -------------------------------------------------------------------------
	// Shutdown
	log.Info(ctx, "startup", "status", "academy running", "build", build)
	<-runCtx.Done()
	log.Info(ctx, "shutdown", "status", "shutdown started")
	defer log.Info(ctx, "shutdown", "status", "shutdown complete")

	return nil
}
