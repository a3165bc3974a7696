package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/retry"
	"github.com/Hibaxbelghith/argus-sub000/internal/store"
)

// PanicError is returned for an adapter that panicked during delivery.
type PanicError struct {
	Channel delivery.Channel
	Value   any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s adapter panicked: %v", e.Channel, e.Value)
}

// Retryable implements retry.Classified.
func (e *PanicError) Retryable() bool { return false }

// dispatch delivers every pending record concurrently, one goroutine per
// channel, and waits for all of them.
func (o *Orchestrator) dispatch(ctx context.Context, event *alert.Event, pending []*delivery.Record) {
	recipient, err := o.store.GetRecipient(ctx, event.UserID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("Failed to load recipient contact details",
				"user_id", event.UserID,
				"error", err,
			)
		}
		recipient = &delivery.Recipient{UserID: event.UserID}
	}

	var g errgroup.Group
	for _, rec := range pending {
		g.Go(func() error {
			o.deliver(ctx, rec, event, recipient)
			return nil
		})
	}
	_ = g.Wait()
}

// deliver sends one record through its adapter with retries and persists the
// terminal status.
func (o *Orchestrator) deliver(ctx context.Context, rec *delivery.Record, event *alert.Event, recipient *delivery.Recipient) {
	// Terminal state is persisted even if ctx is cancelled mid-delivery.
	persistCtx := context.WithoutCancel(ctx)

	adapter, ok := o.adapters.Get(rec.Channel)
	if !ok {
		o.finish(persistCtx, rec, channel.Result{}, fmt.Errorf("no adapter registered for channel %s", rec.Channel), delivery.CodeNoAdapter)
		return
	}

	var result channel.Result
	err := retry.Do(ctx, o.retry, "deliver_"+string(rec.Channel), func() error {
		res, err := safeDeliver(ctx, adapter, rec, event, recipient)
		if err == nil {
			result = res
		}
		return err
	}, func(attempt int, err error, backoff time.Duration) {
		rec.RetryCount++
		o.save(persistCtx, rec)
		o.appendLog(persistCtx, delivery.NewLogEntry(rec, delivery.EventRetry, map[string]string{
			"channel":       string(rec.Channel),
			"attempt":       strconv.Itoa(attempt),
			"backoff":       backoff.String(),
			"error_message": err.Error(),
		}, o.now().UTC()))
		o.metrics.RecordRetry(string(rec.Channel))
	})

	code := ""
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		code = delivery.CodePanic
	}
	o.finish(persistCtx, rec, result, err, code)
}

// safeDeliver calls the adapter, converting a panic into a PanicError.
func safeDeliver(ctx context.Context, adapter channel.Adapter, rec *delivery.Record, event *alert.Event, recipient *delivery.Recipient) (res channel.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Channel: rec.Channel, Value: r}
		}
	}()
	return adapter.Deliver(ctx, rec, event, recipient)
}

// finish transitions rec to sent or failed, saves it and logs the outcome.
// An empty code is derived from err.
func (o *Orchestrator) finish(ctx context.Context, rec *delivery.Record, result channel.Result, err error, code string) {
	now := o.now().UTC()
	if err != nil {
		if code == "" {
			code = channel.ErrorCode(err)
		}
		retryable := retry.IsRetryable(err)
		if transErr := rec.MarkFailed(code, err.Error(), retryable, now); transErr != nil {
			slog.Error("Failed to mark delivery failed", "delivery_id", rec.ID, "error", transErr)
			return
		}
		slog.Error("Delivery failed",
			"delivery_id", rec.ID,
			"alert_id", rec.AlertEventID,
			"user_id", rec.UserID,
			"channel", rec.Channel,
			"error_code", code,
			"retryable", retryable,
			"retry_count", rec.RetryCount,
			"error", err,
		)
		o.metrics.RecordFailed(string(rec.Channel))
	} else {
		if transErr := rec.MarkSent(result.ProviderRef, now); transErr != nil {
			slog.Error("Failed to mark delivery sent", "delivery_id", rec.ID, "error", transErr)
			return
		}
		if limErr := o.limiter.Record(ctx, rec.UserID, rec.ID, now); limErr != nil {
			slog.Warn("Failed to record send for rate limiting", "delivery_id", rec.ID, "error", limErr)
		}
		slog.Info("Delivery sent",
			"delivery_id", rec.ID,
			"alert_id", rec.AlertEventID,
			"user_id", rec.UserID,
			"channel", rec.Channel,
			"provider_ref", rec.ProviderRef,
		)
		o.metrics.RecordSent(string(rec.Channel))
	}
	o.save(ctx, rec)
	o.appendLog(ctx, delivery.TerminalEntry(rec, now))
}
