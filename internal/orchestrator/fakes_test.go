package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/metrics"
	"github.com/Hibaxbelghith/argus-sub000/internal/rules"
	"github.com/Hibaxbelghith/argus-sub000/internal/store/memory"
)

// fakeAdapter records calls and answers with deliver, or success when nil.
type fakeAdapter struct {
	ch      delivery.Channel
	calls   atomic.Int32
	deliver func(call int) (channel.Result, error)

	mu        sync.Mutex
	events    []*alert.Event
	recipient *delivery.Recipient
}

func newFakeAdapter(ch delivery.Channel) *fakeAdapter {
	return &fakeAdapter{ch: ch}
}

func (f *fakeAdapter) Channel() delivery.Channel { return f.ch }

func (f *fakeAdapter) Deliver(_ context.Context, rec *delivery.Record, event *alert.Event, recipient *delivery.Recipient) (channel.Result, error) {
	call := int(f.calls.Add(1))
	f.mu.Lock()
	f.events = append(f.events, event)
	f.recipient = recipient
	f.mu.Unlock()
	if f.deliver != nil {
		return f.deliver(call)
	}
	return channel.Result{ProviderRef: string(f.ch) + "-" + rec.ID}, nil
}

func (f *fakeAdapter) lastEvent() *alert.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	return f.events[len(f.events)-1]
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []*delivery.LogEntry
}

func (a *recordingAudit) PublishLog(_ context.Context, entry *delivery.LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *recordingAudit) events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Event
	}
	return out
}

// countingMetrics counts stops, sends and retries.
type countingMetrics struct {
	metrics.NoOp

	mu      sync.Mutex
	stopped map[string]int
	sent    map[string]int
	retries map[string]int
	errors  int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		stopped: make(map[string]int),
		sent:    make(map[string]int),
		retries: make(map[string]int),
	}
}

func (m *countingMetrics) RecordStopped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped[reason]++
}

func (m *countingMetrics) RecordSent(ch string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[ch]++
}

func (m *countingMetrics) RecordRetry(ch string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[ch]++
}

func (m *countingMetrics) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

func (m *countingMetrics) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors
}

var _ metrics.Recorder = (*countingMetrics)(nil)

// fixedClock always returns t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

const (
	opListRules      = "ListRules"
	opCountSimilar   = "CountSimilarAlerts"
	opCreateDelivery = "CreateDelivery"
	opReleaseAlert   = "ReleaseAlert"
)

type fault struct {
	call int
	err  error
}

// faultyStore wraps a memory store and fails chosen calls once.
type faultyStore struct {
	*memory.Store

	mu     sync.Mutex
	calls  map[string]int
	faults map[string][]fault
}

func newFaultyStore(st *memory.Store) *faultyStore {
	return &faultyStore{
		Store:  st,
		calls:  make(map[string]int),
		faults: make(map[string][]fault),
	}
}

// failOnce makes the call-th invocation of op return err.
func (s *faultyStore) failOnce(op string, call int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], fault{call: call, err: err})
}

func (s *faultyStore) callCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *faultyStore) check(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	for i, f := range s.faults[op] {
		if f.call == s.calls[op] {
			s.faults[op] = append(s.faults[op][:i], s.faults[op][i+1:]...)
			return f.err
		}
	}
	return nil
}

func (s *faultyStore) ListRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	if err := s.check(opListRules); err != nil {
		return nil, err
	}
	return s.Store.ListRules(ctx, userID)
}

func (s *faultyStore) CountSimilarAlerts(ctx context.Context, userID string, alertType alert.Type, since time.Time, excludeID string) (int, error) {
	if err := s.check(opCountSimilar); err != nil {
		return 0, err
	}
	return s.Store.CountSimilarAlerts(ctx, userID, alertType, since, excludeID)
}

func (s *faultyStore) CreateDelivery(ctx context.Context, rec *delivery.Record) error {
	if err := s.check(opCreateDelivery); err != nil {
		return err
	}
	return s.Store.CreateDelivery(ctx, rec)
}

func (s *faultyStore) ReleaseAlert(ctx context.Context, eventID string) error {
	if err := s.check(opReleaseAlert); err != nil {
		return err
	}
	return s.Store.ReleaseAlert(ctx, eventID)
}

// flakyLimiter fails its first call with err and then never limits.
type flakyLimiter struct {
	err    error
	failed atomic.Bool
}

func (l *flakyLimiter) Exceeded(context.Context, string, int, time.Time) (bool, error) {
	if l.failed.CompareAndSwap(false, true) {
		return false, l.err
	}
	return false, nil
}
