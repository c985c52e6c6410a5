package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/zapmesa/zapmesa/cmd/mainconfig"
	appconfig "github.com/zapmesa/zapmesa/internal/config"
	"github.com/zapmesa/zapmesa/internal/conversation"
	"github.com/zapmesa/zapmesa/internal/messaging"
	"github.com/zapmesa/zapmesa/internal/notify"
	"github.com/zapmesa/zapmesa/internal/observability/metrics"
	"github.com/zapmesa/zapmesa/internal/store"
	"github.com/zapmesa/zapmesa/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting zapmesa assistant worker", "env", cfg.Env)

	if cfg.InboundQueueURL == "" {
		logger.Error("INBOUND_QUEUE_URL is required")
		os.Exit(1)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsConfig, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.InboundQueueURL)

	establishments := store.NewEstablishmentStore(pool)
	clients := store.NewClientStore(pool)
	conversations := store.NewConversationStore(pool)
	messages := store.NewMessageStore(pool)
	reservations := store.NewReservationStore(pool)

	messenger := messaging.NewWhatsAppSender(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIToken, logger)

	var emailSender notify.EmailSender
	if cfg.AlertEmailEnabled {
		emailSender = notify.NewSESSender(sesv2.NewFromConfig(awsConfig), notify.SESConfig{
			FromEmail: cfg.AlertFromEmail,
			FromName:  cfg.AlertFromName,
		}, logger)
	}
	alerts := notify.NewService(establishments, messenger, emailSender, logger)

	processor := conversation.NewProcessor(establishments, clients, conversations, messages, cfg.HistoryLimit, logger)
	interceptor := conversation.NewInterceptor(conversations, logger)
	orchestrator := conversation.NewOrchestrator(
		conversation.NewOpenAIChatClient(cfg.OpenAIAPIKey), nil, cfg.OpenAIModel, cfg.AssistantTimeout, logger,
	)
	dispatcher := conversation.NewDispatcher(
		conversations, reservations, messages, messenger, alerts, cfg.PendingActionTTL, logger,
	)

	worker := conversation.NewWorker(
		queue,
		processor,
		interceptor,
		orchestrator,
		dispatcher,
		logger,
		conversation.WithMetrics(metrics.NewConversationMetrics(nil)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down assistant worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("assistant worker stopped")
	case <-doneCtx.Done():
		logger.Error("assistant worker shutdown timed out", "error", doneCtx.Err())
	}
}
