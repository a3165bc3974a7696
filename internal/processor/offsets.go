package processor

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

type partitionKey struct {
	topic     string
	partition int
}

// tracked is one fetched message awaiting completion.
type tracked struct {
	key  partitionKey
	msg  kafka.Message
	done bool
}

// offsetTracker commits a partition's offset only once every earlier message
// fetched from it has been handled. Workers finish out of order, and a commit
// covers everything before the committed offset.
type offsetTracker struct {
	mu      sync.Mutex
	pending map[partitionKey][]*tracked
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{pending: make(map[partitionKey][]*tracked)}
}

// track registers msg in fetch order.
func (t *offsetTracker) track(msg kafka.Message) *tracked {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr := &tracked{key: partitionKey{topic: msg.Topic, partition: msg.Partition}, msg: msg}
	t.pending[tr.key] = append(t.pending[tr.key], tr)
	return tr
}

// complete marks tr handled and commits the newest message of its partition
// whose predecessors are all handled. The lock is held across commit so a
// partition's committed offset never moves backwards.
func (t *offsetTracker) complete(tr *tracked, commit func(kafka.Message) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr.done = true

	queue := t.pending[tr.key]
	n := 0
	for n < len(queue) && queue[n].done {
		n++
	}
	if n == 0 {
		return nil
	}
	last := queue[n-1].msg
	if len(queue) == n {
		delete(t.pending, tr.key)
	} else {
		t.pending[tr.key] = queue[n:]
	}
	return commit(last)
}

// inFlight returns the number of tracked messages not yet committed.
func (t *offsetTracker) inFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, queue := range t.pending {
		n += len(queue)
	}
	return n
}
