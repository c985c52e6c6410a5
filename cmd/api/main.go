package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/zapmesa/zapmesa/cmd/mainconfig"
	"github.com/zapmesa/zapmesa/internal/api/router"
	appconfig "github.com/zapmesa/zapmesa/internal/config"
	"github.com/zapmesa/zapmesa/internal/conversation"
	"github.com/zapmesa/zapmesa/internal/http/handlers"
	"github.com/zapmesa/zapmesa/internal/messaging"
	"github.com/zapmesa/zapmesa/internal/notify"
	"github.com/zapmesa/zapmesa/internal/observability/metrics"
	"github.com/zapmesa/zapmesa/internal/store"
	"github.com/zapmesa/zapmesa/pkg/logging"
)

func main() {
	// .env is optional; deployed environments inject configuration directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting zapmesa API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"memory_queue", cfg.UseMemoryQueue,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	establishments := store.NewEstablishmentStore(pool)
	clients := store.NewClientStore(pool)
	conversations := store.NewConversationStore(pool)
	messages := store.NewMessageStore(pool)
	reservations := store.NewReservationStore(pool)

	var awsCfg aws.Config
	if !cfg.UseMemoryQueue || cfg.AlertEmailEnabled {
		awsCfg, err = mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
	}

	metricsReg := prometheus.NewRegistry()
	convMetrics := metrics.NewConversationMetrics(metricsReg)

	var deduper conversation.Deduper
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		deduper = conversation.NewRedisDeduper(redis.NewClient(opts), cfg.DedupWindow, logger)
		logger.Info("using redis deduper", "addr", cfg.RedisAddr)
	} else {
		deduper = conversation.NewMemoryDeduper(cfg.DedupWindow)
	}

	messenger := messaging.NewWhatsAppSender(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIToken, logger)

	var emailSender notify.EmailSender
	if cfg.AlertEmailEnabled {
		emailSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
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

	var publisher *conversation.Publisher
	var worker *conversation.Worker
	if cfg.UseMemoryQueue {
		queue := conversation.NewMemoryQueue()
		publisher = conversation.NewPublisher(queue, logger)
		worker = conversation.NewWorker(queue, processor, interceptor, orchestrator, dispatcher, logger,
			conversation.WithMetrics(convMetrics))
	} else {
		// SQS mode: the assistant-worker binary consumes the queue so inbound
		// messages survive API restarts.
		queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL)
		publisher = conversation.NewPublisher(queue, logger)
	}

	webhooks := handlers.NewWhatsAppWebhookHandler(handlers.WhatsAppWebhookConfig{
		Publisher:    publisher,
		Deduper:      deduper,
		WebhookToken: cfg.WebhookToken,
		Logger:       logger,
		Metrics:      convMetrics,
	})
	conversationHandler := handlers.NewConversationHandler(messages, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		WhatsAppWebhooks:    webhooks,
		ConversationHandler: conversationHandler,
		MetricsHandler:      promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}),
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if worker != nil {
		worker.Start(workerCtx)
		logger.Info("in-process conversation worker started")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if worker != nil {
		stopWorker()
		waitCh := make(chan struct{})
		go func() {
			worker.Wait()
			close(waitCh)
		}()
		select {
		case <-waitCh:
			logger.Info("conversation worker stopped")
		case <-shutdownCtx.Done():
			logger.Error("conversation worker shutdown timed out", "error", shutdownCtx.Err())
		}
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
