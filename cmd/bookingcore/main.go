package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/villaclean/bookingcore/internal/access"
	"github.com/villaclean/bookingcore/internal/application"
	"github.com/villaclean/bookingcore/internal/config"
	"github.com/villaclean/bookingcore/internal/escalation"
	httptransport "github.com/villaclean/bookingcore/internal/http"
	"github.com/villaclean/bookingcore/internal/jobs"
	"github.com/villaclean/bookingcore/internal/lock"
	"github.com/villaclean/bookingcore/internal/logging"
	"github.com/villaclean/bookingcore/internal/notify"
	"github.com/villaclean/bookingcore/internal/observe"
	"github.com/villaclean/bookingcore/internal/persistence"
	"github.com/villaclean/bookingcore/internal/persistence/sqlstore"
	"github.com/villaclean/bookingcore/internal/recurrence"
	"github.com/villaclean/bookingcore/internal/refcode"
	"github.com/villaclean/bookingcore/internal/signature"
)

const (
	serviceName = "bookingcore"
	version     = "dev"

	trackerScanJob = "tracker-scan"
	seriesTopUpJob = "series-top-up"
)

func main() {
	bootLogger := logging.NewJSON(os.Stdout, slog.LevelInfo)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		bootLogger.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSON(os.Stdout, cfg.SlogLevel()).With("service", serviceName, "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bookingcore stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := observe.InitTracing(ctx, observe.TracingConfig{
		ServiceName: serviceName,
		Version:     version,
		Environment: cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	cipher, err := access.NewCipher(cfg.AccessCipher, cfg.AccessKey)
	if err != nil {
		return fmt.Errorf("access cipher: %w", err)
	}

	notifier, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	svc := newServices(cfg, store, notifier, cipher, logger)

	scheduler := jobs.New(locker, observe.Tracer(), logger, jobs.WithLocation(cfg.Location))
	for _, job := range svc.jobs(cfg) {
		if err := scheduler.Register(job); err != nil {
			return err
		}
	}

	verifier, err := signature.NewVerifier(cfg.TransportAuthToken)
	if err != nil {
		return err
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Webhook: httptransport.NewWebhookHandler(httptransport.WebhookConfig{
			Processor:     svc.commands,
			Verifier:      verifier,
			PublicBaseURL: cfg.PublicBaseURL,
			Tracer:        observe.Tracer(),
			Logger:        logger,
		}),
		Bookings: httptransport.NewBookingHandler(svc.bookings, svc.series, logger),
		Access:   httptransport.NewAccessHandler(svc.access, time.Now, logger),
		Health:   store.Ping,
		Logger:   logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.Trace(observe.Tracer()),
			httptransport.RequestLogger(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	scheduler.Start(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("bookingcore listening", "addr", server.Addr)
	serveErr := server.ListenAndServe()

	select {
	case <-scheduler.Stop().Done():
	case <-time.After(cfg.JobTimeout):
		logger.Warn("scheduled jobs still running at shutdown")
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// openStore connects to the configured database and applies pending migrations.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, sqlstore.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	logger.Info("applying database migrations", "driver", cfg.DatabaseDriver)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

// newNotifier publishes to AMQP when a broker is configured and logs otherwise.
func newNotifier(cfg config.Config, logger *slog.Logger) (notify.Notifier, func(), error) {
	if cfg.AMQPURL == "" {
		logger.Warn("AMQP is not configured; notifications are only logged")
		return notify.NewLogNotifier(logger), func() {}, nil
	}
	publisher, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, err
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close AMQP notifier", "error", err)
		}
	}, nil
}

// newLocker returns a Redis backed lock for multi-replica deployments and an
// in-process lock otherwise.
func newLocker(cfg config.Config) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NewLocalLocker(time.Now), func() {}, nil
	}
	client, err := lock.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewRedisLocker(client, serviceName), func() { _ = client.Close() }, nil
}

type services struct {
	bookings *application.BookingService
	trackers *application.TrackerService
	series   *application.SeriesService
	access   *application.AccessService
	commands *application.CommandProcessor
}

// repositories is the full persistence surface the services are built on.
type repositories interface {
	persistence.BookingRepository
	persistence.TrackerRepository
	persistence.DirectoryRepository
	persistence.LedgerRepository
}

func newServices(cfg config.Config, store repositories, notifier notify.Notifier, cipher access.Cipher, logger *slog.Logger) services {
	thresholds := escalation.Thresholds{
		Remind:      cfg.RemindAfter,
		Escalate:    cfg.EscalateAfter,
		AutoDecline: cfg.AutoDeclineAfter,
	}
	return services{
		bookings: application.NewBookingServiceWithLogger(store, store, notifier, refcode.New, cfg.Location, uuid.NewString, time.Now, logger),
		trackers: application.NewTrackerServiceWithLogger(store, store, store, notifier, thresholds, logger),
		series:   application.NewSeriesServiceWithLogger(store, recurrence.NewEngine(cfg.Location), cfg.SeriesMinFuture, refcode.New, uuid.NewString, time.Now, logger),
		access:   application.NewAccessServiceWithLogger(store, store, cipher, cfg.Location, logger),
		commands: application.NewCommandProcessorWithLogger(store, store, store, store, notifier, time.Now, logger).WithPhoneRegion(cfg.PhoneRegion),
	}
}

func (s services) jobs(cfg config.Config) []jobs.Job {
	return []jobs.Job{
		{
			Name:    trackerScanJob,
			Spec:    cfg.TrackerScanSpec,
			Timeout: cfg.JobTimeout,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := s.trackers.Scan(ctx, now)
				return err
			},
		},
		{
			Name:    seriesTopUpJob,
			Spec:    cfg.SeriesTopUpSpec,
			Timeout: cfg.JobTimeout,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := s.series.TopUp(ctx, now)
				return err
			},
		},
	}
}
