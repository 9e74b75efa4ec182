// cmd/pipeline-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"safety-pipeline/internal/common/aws"
	"safety-pipeline/internal/common/config"
	"safety-pipeline/internal/common/database"
	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/common/observability"
	"safety-pipeline/internal/ingest"
	"safety-pipeline/internal/models"
	"safety-pipeline/internal/ops"
	"safety-pipeline/internal/pipeline"
	"safety-pipeline/internal/pipeline/dedup"
	"safety-pipeline/internal/pipeline/dispatch"
	"safety-pipeline/internal/pipeline/fanout"
	"safety-pipeline/internal/pipeline/geoindex"
	"safety-pipeline/internal/pipeline/scoring"
	"safety-pipeline/internal/reminder"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pipeline manager...")

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Push / Mail Transports ---
	var push dispatch.PushTransport = noopPush{}
	if cfg.Push.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Push.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		push = dispatch.NewSNSTransport(snsClient, cfg.Push.TopicARN)
		zapLog.Info("SNS push transport initialized")
	} else {
		zapLog.Info("push transport disabled")
	}

	var mail dispatch.MailSender
	if cfg.Mail.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Mail.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		mail = dispatch.NewSESMailer(sesClient, cfg.Mail.FromEmail)
		zapLog.Info("SES mail escalation initialized")
	}

	// --- Assemble Pipeline ---
	geo := geoindex.NewClient(esClient.Client, cfg.Database.Elasticsearch.LocationIndex, log)
	resolver := fanout.NewResolver(geo, cfg.Pipeline.DefaultRadiusKm, log)
	ledger := dedup.NewLedger(rdb.GetClient(), cfg.Pipeline.DedupWindow, log)
	dispatcher := dispatch.NewDispatcher(
		&dispatch.Config{MailEnabled: cfg.Mail.Enabled},
		pg.GetDB(), ledger, push, mail, log,
	)
	classifier := scoring.NewClassifier(pg.GetDB(), scoring.Region{
		Center:   models.LatLng{Lat: cfg.Scoring.UrbanCenterLat, Lng: cfg.Scoring.UrbanCenterLng},
		RadiusKm: cfg.Scoring.UrbanRadiusKm,
	}, log)
	pipe := pipeline.New(resolver, dispatcher, classifier, obs, log)

	// --- Reminder Supervisor ---
	reminderStore := reminder.NewPostgresStore(pg.GetDB())
	supervisor := reminder.NewSupervisor(
		&reminder.Config{
			PollInterval:           cfg.Reminders.PollInterval,
			PanicAfter:             cfg.Reminders.PanicAfter,
			LookAfterMeInactivity:  cfg.Reminders.LookAfterMeInactivity,
			LookAfterMeLongSession: cfg.Reminders.LookAfterMeLongSession,
		},
		reminderStore, pipe, clockwork.NewRealClock(), log,
	)
	go supervisor.Run(ctx, reminderStore)
	zapLog.Info("Reminder supervisor started")

	// --- Ops Server ---
	opsServer := ops.NewServer(cfg.Ops.Addr, map[string]ops.HealthCheck{
		"postgres":      pg.Ping,
		"redis":         rdb.Ping,
		"elasticsearch": func(context.Context) error { return esClient.Ping() },
	}, log)
	go func() {
		if err := opsServer.Start(); err != nil {
			zapLog.Error("ops server failed", zap.Error(err))
		}
	}()

	// --- Kafka Consumer ---
	consumer := ingest.NewConsumer(ingest.NewReader(&cfg.Kafka), pipe, log)
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Run(ctx)
	}()
	zapLog.Info("Consuming notification events",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received, stopping pipeline...")
	case err := <-consumerDone:
		if err != nil {
			zapLog.Error("consumer exited", zap.Error(err))
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumer.Close(); err != nil {
		zapLog.Error("error closing consumer", zap.Error(err))
	}
	supervisor.StopAll()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("error stopping ops server", zap.Error(err))
	}

	zapLog.Info("Pipeline manager stopped gracefully")
}

// noopPush stands in when the push transport is disabled; in-app
// records remain the channel of record.
type noopPush struct{}

func (noopPush) Publish(context.Context, string, models.ClientNotification) error { return nil }
