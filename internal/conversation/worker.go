package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/zapmesa/zapmesa/internal/observability/metrics"
	"github.com/zapmesa/zapmesa/pkg/logging"
)

const (
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

type envelopeProcessor interface {
	Process(ctx context.Context, env Envelope) (Result, error)
}

type confirmationInterceptor interface {
	Intercept(ctx context.Context, conv *Conversation, text string) (Decision, bool)
}

type decisionMaker interface {
	Decide(ctx context.Context, conv *Conversation, history []Message, text string) Decision
}

type decisionDispatcher interface {
	Dispatch(ctx context.Context, conv *Conversation, clientPhone string, decision Decision) error
}

// queueDepthReporter is implemented by queues that can report their backlog;
// SQS does not, so depth gauging is best effort.
type queueDepthReporter interface {
	Len() int
}

// Worker is the single queue consumer. One goroutine drains the queue so
// envelopes for the same conversation are always handled in arrival order.
type Worker struct {
	queue       queueClient
	processor   envelopeProcessor
	interceptor confirmationInterceptor
	decider     decisionMaker
	dispatcher  decisionDispatcher
	depth       queueDepthReporter
	metrics     *metrics.ConversationMetrics
	logger      *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	receiveWaitSecs  int
	receiveBatchSize int
	metrics          *metrics.ConversationMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many envelopes to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithMetrics wires pipeline metrics.
func WithMetrics(m *metrics.ConversationMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker constructs the queue consumer around the pipeline stages.
func NewWorker(
	queue queueClient,
	processor envelopeProcessor,
	interceptor confirmationInterceptor,
	decider decisionMaker,
	dispatcher decisionDispatcher,
	logger *logging.Logger,
	opts ...WorkerOption,
) *Worker {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if interceptor == nil {
		panic("conversation: interceptor cannot be nil")
	}
	if decider == nil {
		panic("conversation: decider cannot be nil")
	}
	if dispatcher == nil {
		panic("conversation: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	depth, _ := queue.(queueDepthReporter)

	return &Worker{
		queue:       queue,
		processor:   processor,
		interceptor: interceptor,
		decider:     decider,
		dispatcher:  dispatcher,
		depth:       depth,
		metrics:     cfg.metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// Start launches the consumer goroutine until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Wait blocks until the consumer goroutine exits.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started")

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping")
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive envelopes", "error", err)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		if w.depth != nil {
			w.metrics.SetQueueDepth(w.depth.Len())
		}

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage processes one envelope end to end. Failures are logged and
// the envelope is dropped; one bad message never stalls the ones behind it.
func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	defer w.deleteMessage(context.Background(), msg.ReceiptHandle)
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic while handling envelope", "panic", r, "msg_id", msg.ID)
			w.metrics.ObserveEnvelope("panicked")
		}
	}()

	start := time.Now()

	var env Envelope
	if err := json.Unmarshal([]byte(msg.Body), &env); err != nil {
		w.logger.Error("failed to decode envelope", "error", err, "msg_id", msg.ID)
		w.metrics.ObserveEnvelope("malformed")
		return
	}

	result, err := w.processor.Process(ctx, env)
	if err != nil {
		w.logger.Error("failed to process envelope", "error", err, "envelope_id", env.ID)
		w.metrics.ObserveEnvelope("failed")
		return
	}
	if result.Ignore {
		w.logger.Debug("ignoring envelope", "reason", result.IgnoreReason, "envelope_id", env.ID)
		w.metrics.ObserveEnvelope("ignored")
		return
	}

	conv := result.Conversation
	if conv.Mode != ModeAuto {
		// The transcript keeps growing, but a human (or pause) owns replies.
		w.logger.Info("skipping auto reply",
			"mode", conv.Mode,
			"conversation_id", conv.ID,
			"envelope_id", env.ID,
		)
		w.metrics.ObserveEnvelope("skipped_mode")
		return
	}

	decision, intercepted := w.interceptor.Intercept(ctx, conv, result.Text)
	if !intercepted {
		decision = w.decider.Decide(ctx, conv, result.History, result.Text)
	}
	w.metrics.ObserveDecision(string(decision.Handover))

	if err := w.dispatcher.Dispatch(ctx, conv, result.ClientPhone, decision); err != nil {
		w.logger.Error("failed to dispatch decision", "error", err, "conversation_id", conv.ID)
		w.metrics.ObserveEnvelope("failed")
		return
	}

	w.metrics.ObserveEnvelope("dispatched")
	w.metrics.ObserveProcessDuration(time.Since(start).Seconds())
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete envelope", "error", err)
	}
}

var (
	_ envelopeProcessor       = (*Processor)(nil)
	_ confirmationInterceptor = (*Interceptor)(nil)
	_ decisionMaker           = (*Orchestrator)(nil)
	_ decisionDispatcher      = (*Dispatcher)(nil)
)
