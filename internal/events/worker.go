package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/reactivities/reactivities/internal/metrics"
	"github.com/reactivities/reactivities/internal/model"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "activity_event_workers"

	// DefaultBatchSize is the max events per batch.
	DefaultBatchSize = 500

	// DefaultBlockTimeout is how long a read waits for new entries.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the number of persist attempts per batch.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the first backoff between persist attempts.
	DefaultRetryDelay = 2 * time.Second

	// DefaultClaimInterval is how often pending entries are scanned.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is how long an entry stays pending before another
	// consumer may take it.
	DefaultClaimIdle = 30 * time.Second

	// DefaultMetricsInterval is how often the backlog gauge is refreshed.
	DefaultMetricsInterval = 5 * time.Second

	readErrorBackoff = time.Second
)

// Repository persists activity events. Inserts must ignore event ids that
// already exist.
type Repository interface {
	BulkInsert(ctx context.Context, events []*model.ActivityEvent) error
}

// Forwarder publishes persisted events downstream.
type Forwarder interface {
	Forward(ctx context.Context, events []*model.ActivityEvent) error
}

// Worker moves activity events from the Redis stream into Postgres and on
// to the forwarder. Entries are acknowledged only after both succeed.
//
// Stopping is two-step: cancelling Run's context or calling Shutdown stops
// reading, while a batch already taken from the stream runs to completion.
// Only an expired Shutdown context aborts it.
type Worker struct {
	stream     Stream
	repo       Repository
	forwarder  Forwarder
	logger     *slog.Logger
	metrics    metrics.Recorder
	consumerID string

	batchSize       int
	blockTimeout    time.Duration
	maxRetries      int
	retryDelay      time.Duration
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration
	lastClaim       time.Time
	lastMetrics     time.Time

	mu         sync.Mutex
	started    bool
	stopReads  context.CancelFunc
	abortBatch context.CancelFunc
	done       chan struct{}
}

// NewWorker creates a worker reading from client. forwarder may be nil.
func NewWorker(client *redis.Client, repo Repository, forwarder Forwarder, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	return newWorker(newRedisStream(client), repo, forwarder, logger, consumerID, recorder)
}

func newWorker(stream Stream, repo Repository, forwarder Forwarder, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		stream:          stream,
		repo:            repo,
		forwarder:       forwarder,
		logger:          logger.With("component", "events.worker", "consumer_id", consumerID),
		metrics:         recorder,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		maxRetries:      DefaultMaxRetries,
		retryDelay:      DefaultRetryDelay,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
	}
}

// SetBlockTimeout overrides how long a read waits for new entries.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetRetryDelay overrides the first backoff between persist attempts.
func (w *Worker) SetRetryDelay(delay time.Duration) {
	if delay > 0 {
		w.retryDelay = delay
	}
}

// Run consumes the stream until ctx is cancelled or Shutdown is called,
// then returns once the batch in hand is finished.
func (w *Worker) Run(ctx context.Context) error {
	readCtx, stopReads := context.WithCancel(ctx)
	batchCtx, abortBatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopReads()
	defer abortBatch()

	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.stopReads = stopReads
	w.abortBatch = abortBatch
	w.done = make(chan struct{})
	w.mu.Unlock()
	defer close(w.done)

	if err := w.stream.EnsureGroup(readCtx); err != nil {
		if readCtx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("event worker started", "forwarding", w.forwarder != nil)

	for readCtx.Err() == nil {
		messages, err := w.next(readCtx)
		if err != nil {
			if readCtx.Err() != nil {
				break
			}
			w.logger.Error("stream read failed", "error", err)
			select {
			case <-readCtx.Done():
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		if len(messages) == 0 {
			continue
		}

		if err := w.handle(batchCtx, messages); err != nil {
			// Unacked entries are reclaimed after claimIdle.
			w.logger.Error("batch left pending", "batch_size", len(messages), "error", err)
		}
	}

	w.logger.Info("event worker stopped")
	return nil
}

// Shutdown stops reading and waits for the in-flight batch. When ctx
// expires first the batch is aborted and its entries stay pending.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	stopReads, abortBatch, done := w.stopReads, w.abortBatch, w.done
	w.mu.Unlock()

	w.logger.Info("event worker draining")
	stopReads()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		abortBatch()
		w.logger.Warn("event worker drain timed out, batch aborted")
		return ctx.Err()
	}
}

// next returns reclaimed entries when a claim scan is due and finds any,
// otherwise new entries.
func (w *Worker) next(ctx context.Context) ([]redis.XMessage, error) {
	now := time.Now()

	if now.Sub(w.lastMetrics) >= w.metricsInterval {
		w.lastMetrics = now
		if backlog, err := w.stream.Backlog(ctx); err != nil {
			w.logger.Warn("failed to read stream backlog", "error", err)
		} else {
			w.metrics.SetEventQueueDepth(backlog)
		}
	}

	if now.Sub(w.lastClaim) >= w.claimInterval {
		w.lastClaim = now
		claimed, err := w.stream.Claim(ctx, w.consumerID, w.claimIdle, w.batchSize)
		if err != nil {
			w.logger.Warn("failed to claim pending entries", "error", err)
		} else if len(claimed) > 0 {
			w.logger.Info("reclaimed pending entries", "count", len(claimed))
			return claimed, nil
		}
	}

	return w.stream.Read(ctx, w.consumerID, w.batchSize, w.blockTimeout)
}

// handle dead-letters and acknowledges unusable entries, then persists,
// forwards and acknowledges the rest.
func (w *Worker) handle(ctx context.Context, messages []redis.XMessage) error {
	b := parseMessages(messages)

	if len(b.poison) > 0 {
		ids := make([]string, 0, len(b.poison))
		for _, p := range b.poison {
			w.logger.Warn("dead-lettering event",
				"message_id", p.msg.ID,
				"reason", p.reason,
				"detail", p.detail,
			)
			if err := w.stream.DeadLetter(ctx, p.msg, p.reason, p.detail); err != nil {
				// Left pending so the dead-letter write is retried on reclaim.
				w.logger.Error("dead-letter write failed", "message_id", p.msg.ID, "error", err)
				continue
			}
			w.metrics.IncEventProcessed("dead_lettered")
			ids = append(ids, p.msg.ID)
		}
		if err := w.stream.Ack(ctx, ids...); err != nil {
			return err
		}
	}

	if len(b.events) == 0 {
		return nil
	}
	if err := w.deliverWithRetry(ctx, b.events); err != nil {
		return err
	}
	return w.stream.Ack(ctx, b.ids...)
}

// deliverWithRetry retries deliver with exponential backoff until ctx ends.
func (w *Worker) deliverWithRetry(ctx context.Context, events []*model.ActivityEvent) error {
	err := retry.Do(
		func() error { return w.deliver(ctx, events) },
		retry.Context(ctx),
		retry.Attempts(uint(w.maxRetries)),
		retry.Delay(w.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			w.logger.Warn("batch delivery failed, retrying", "attempt", attempt+1, "error", err)
		}),
	)
	if err != nil {
		for range events {
			w.metrics.IncEventProcessed("failed")
		}
	}
	return err
}

// deliver persists a batch and forwards it. A retry after a forward failure
// inserts again, which the repository ignores by event id.
func (w *Worker) deliver(ctx context.Context, events []*model.ActivityEvent) error {
	start := time.Now()

	if err := w.repo.BulkInsert(ctx, events); err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}
	if w.forwarder != nil {
		if err := w.forwarder.Forward(ctx, events); err != nil {
			return fmt.Errorf("forward: %w", err)
		}
	}

	elapsed := time.Since(start)
	w.logger.Debug("batch delivered", "events", len(events), "duration", elapsed)
	w.metrics.ObserveEventBatchSize(len(events))
	w.metrics.ObserveEventBatchDuration(elapsed)
	for _, e := range events {
		w.metrics.IncEventProcessed("success")
		w.metrics.ObserveEventIngestLag(time.Since(e.OccurredAt))
	}
	return nil
}

type poisonMessage struct {
	msg    redis.XMessage
	reason string
	detail string
}

// batch is one read split into deliverable events and poison entries.
type batch struct {
	events []*model.ActivityEvent
	ids    []string // stream ids of events, in order
	poison []poisonMessage
}

func parseMessages(messages []redis.XMessage) batch {
	b := batch{
		events: make([]*model.ActivityEvent, 0, len(messages)),
		ids:    make([]string, 0, len(messages)),
	}

	for _, msg := range messages {
		raw, ok := msg.Values["payload"].(string)
		if !ok {
			b.poison = append(b.poison, poisonMessage{msg, "invalid_format", "payload field missing or not a string"})
			continue
		}
		var p Payload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			b.poison = append(b.poison, poisonMessage{msg, "unmarshal_error", err.Error()})
			continue
		}
		if err := ValidatePayload(p); err != nil {
			b.poison = append(b.poison, poisonMessage{msg, "validation_error", err.Error()})
			continue
		}

		b.ids = append(b.ids, msg.ID)
		b.events = append(b.events, &model.ActivityEvent{
			ID:         ulid.Make().String(),
			EventID:    msg.ID,
			Type:       model.EventType(p.Type),
			ActivityID: p.ActivityID,
			Actor:      p.Actor,
			Title:      p.Title,
			OccurredAt: time.UnixMilli(p.OccurredAt).UTC(),
		})
	}
	return b
}
