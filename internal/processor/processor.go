// Package processor consumes alert events and runs them through the delivery
// orchestrator on a pool of workers. Events of one user always go to the same
// worker, so they are handled in the order they were published.
package processor

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/metrics"
	"github.com/Hibaxbelghith/argus-sub000/internal/orchestrator"
	"github.com/Hibaxbelghith/argus-sub000/internal/retry"
)

const (
	// DefaultWorkers is the default size of the worker pool.
	DefaultWorkers = 10
	// queueSize is the buffer of each worker's queue.
	queueSize = 2
	// commitTimeout bounds an offset commit or a dead-letter publish,
	// including during shutdown.
	commitTimeout = 5 * time.Second
)

// DefaultRetry is how often a failed event is reprocessed before it is
// dead-lettered.
func DefaultRetry() retry.Config {
	return retry.Config{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}
}

// MessageReader reads alert events from a message queue.
type MessageReader interface {
	// ReadMessage returns the next decoded event and its raw message. On a
	// decode failure the raw message is returned with the error.
	ReadMessage(ctx context.Context) (*alert.Event, *kafka.Message, error)

	// CommitMessage commits the offset for the given message.
	CommitMessage(ctx context.Context, msg *kafka.Message) error
}

// EventHandler processes one alert event.
type EventHandler interface {
	Process(ctx context.Context, event *alert.Event) (*orchestrator.Outcome, error)
}

// DeadLetterPublisher receives events that kept failing.
type DeadLetterPublisher interface {
	PublishAlert(ctx context.Context, event *alert.Event) error
}

// processError marks handler failures as retryable unless the event itself
// is invalid.
type processError struct{ err error }

func (e processError) Error() string   { return e.err.Error() }
func (e processError) Unwrap() error   { return e.err }
func (e processError) Retryable() bool { return !errors.Is(e.err, orchestrator.ErrInvalidEvent) }

// job is a unit of work for the worker pool.
type job struct {
	event   *alert.Event
	tracked *tracked
}

// Processor reads events and hands them to the handler.
type Processor struct {
	reader  MessageReader
	handler EventHandler
	workers int
	metrics metrics.Recorder
	retry   retry.Config
	dlq     DeadLetterPublisher
	offsets *offsetTracker
}

// Option is a functional option for configuring a Processor.
type Option func(*Processor)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMetrics sets a custom metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithRetry sets how failed events are reprocessed. Invalid configs are ignored.
func WithRetry(cfg retry.Config) Option {
	return func(p *Processor) {
		if cfg.Validate() == nil {
			p.retry = cfg
		}
	}
}

// WithDeadLetter publishes events that still fail after retries to pub
// before their offset is committed. Without it such events are logged and
// skipped.
func WithDeadLetter(pub DeadLetterPublisher) Option {
	return func(p *Processor) {
		if pub != nil {
			p.dlq = pub
		}
	}
}

// New creates a processor.
func New(reader MessageReader, handler EventHandler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		workers: DefaultWorkers,
		metrics: metrics.NewNoOp(),
		retry:   DefaultRetry(),
		offsets: newOffsetTracker(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads events until ctx is cancelled, then waits for in-flight events
// to finish. Offsets are committed only after an event was handled.
func (p *Processor) Run(ctx context.Context) error {
	slog.Info("Starting alert processing loop", "workers", p.workers)

	queues := make([]chan job, p.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan job, queueSize)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queues[i] {
				p.handle(ctx, j)
			}
		}()
	}

	p.dispatch(ctx, queues)

	for _, q := range queues {
		close(q)
	}
	wg.Wait()
	slog.Info("Alert processing loop stopped", "uncommitted", p.offsets.inFlight())
	return nil
}

// dispatch reads messages and routes each to its user's worker.
func (p *Processor) dispatch(ctx context.Context, queues []chan job) {
	for {
		event, msg, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if msg == nil {
				slog.Error("Failed to read alert event", "error", err)
				continue
			}
			// Undecodable messages can never succeed; skip past them.
			slog.Error("Skipping undecodable alert message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			p.metrics.RecordError()
			p.commit(ctx, p.offsets.track(*msg))
			continue
		}

		j := job{event: event, tracked: p.offsets.track(*msg)}
		select {
		case queues[workerFor(event.UserID, len(queues))] <- j:
		case <-ctx.Done():
			return
		}
	}
}

// handle processes one event, retrying transient failures. Every outcome
// except shutdown and a failed dead-letter publish commits the offset, so a
// poisoned event cannot stall its partition.
func (p *Processor) handle(ctx context.Context, j job) {
	err := retry.WithRetry(ctx, p.retry, "process alert event "+j.event.ID, func() error {
		if _, err := p.handler.Process(ctx, j.event); err != nil {
			return processError{err: err}
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, orchestrator.ErrInvalidEvent):
		slog.Warn("Skipping invalid alert event",
			"alert_id", j.event.ID,
			"user_id", j.event.UserID,
			"error", err,
		)
	case ctx.Err() != nil:
		slog.Info("Shutting down, leaving alert event uncommitted",
			"alert_id", j.event.ID,
			"error", err,
		)
		return
	default:
		if !p.deadLetter(ctx, j, err) {
			return
		}
	}
	p.commit(ctx, j.tracked)
}

// deadLetter hands an event that kept failing to the dead-letter publisher
// and reports whether its offset may be committed.
func (p *Processor) deadLetter(ctx context.Context, j job, cause error) bool {
	p.metrics.RecordError()
	if p.dlq == nil {
		slog.Error("Dropping alert event after retries",
			"alert_id", j.event.ID,
			"user_id", j.event.UserID,
			"partition", j.tracked.msg.Partition,
			"offset", j.tracked.msg.Offset,
			"error", cause,
		)
		return true
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := p.dlq.PublishAlert(pubCtx, j.event); err != nil {
		slog.Error("Failed to dead-letter alert event, leaving uncommitted",
			"alert_id", j.event.ID,
			"user_id", j.event.UserID,
			"cause", cause,
			"error", err,
		)
		return false
	}
	slog.Warn("Alert event dead-lettered after retries",
		"alert_id", j.event.ID,
		"user_id", j.event.UserID,
		"partition", j.tracked.msg.Partition,
		"offset", j.tracked.msg.Offset,
		"error", cause,
	)
	return true
}

func (p *Processor) commit(ctx context.Context, tr *tracked) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	err := p.offsets.complete(tr, func(msg kafka.Message) error {
		return p.reader.CommitMessage(commitCtx, &msg)
	})
	if err != nil {
		slog.Error("Failed to commit offset",
			"partition", tr.msg.Partition,
			"offset", tr.msg.Offset,
			"error", err,
		)
	}
}

// workerFor maps a user to a worker index.
func workerFor(userID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(n))
}
