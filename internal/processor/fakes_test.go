package processor

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/orchestrator"
)

// fakeMessage is one scripted read: an event, or a decode failure when event is nil.
type fakeMessage struct {
	event *alert.Event
	msg   kafka.Message
}

// fakeReader serves scripted messages, then blocks until ctx is cancelled.
type fakeReader struct {
	mu        sync.Mutex
	messages  []fakeMessage
	committed []int64
}

func (f *fakeReader) ReadMessage(ctx context.Context) (*alert.Event, *kafka.Message, error) {
	f.mu.Lock()
	if len(f.messages) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	m := f.messages[0]
	f.messages = f.messages[1:]
	f.mu.Unlock()

	msg := m.msg
	if m.event == nil {
		return nil, &msg, errors.New("failed to decode alert")
	}
	return m.event, &msg, nil
}

func (f *fakeReader) CommitMessage(_ context.Context, msg *kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msg.Offset)
	return nil
}

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

// fakeHandler records handled events per user. Ids in fail always fail;
// ids in flaky fail that many times before succeeding.
type fakeHandler struct {
	mu      sync.Mutex
	handled map[string][]string
	fail    map[string]error
	flaky   map[string]int
	total   int
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{
		handled: make(map[string][]string),
		fail:    make(map[string]error),
		flaky:   make(map[string]int),
	}
}

func (f *fakeHandler) Process(_ context.Context, event *alert.Event) (*orchestrator.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total++
	if err, ok := f.fail[event.ID]; ok {
		return nil, err
	}
	if f.flaky[event.ID] > 0 {
		f.flaky[event.ID]--
		return nil, errors.New("connection reset by peer")
	}
	f.handled[event.UserID] = append(f.handled[event.UserID], event.ID)
	return &orchestrator.Outcome{EventID: event.ID, UserID: event.UserID}, nil
}

func (f *fakeHandler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// fakeDeadLetter records dead-lettered event ids, failing with err when set.
type fakeDeadLetter struct {
	mu       sync.Mutex
	err      error
	attempts int
	ids      []string
}

func (f *fakeDeadLetter) PublishAlert(_ context.Context, event *alert.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, event.ID)
	return nil
}

func (f *fakeDeadLetter) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

func (f *fakeDeadLetter) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}
