package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Broker is the in-process fan-out. Each subscriber gets a buffered channel;
// when it is full the event is dropped for that subscriber.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	buffer int
	closed bool
	logger *zap.Logger
}

type subscription struct {
	studentID string
	ch        chan Event
	once      sync.Once
}

// NewBroker creates a Broker with per-subscriber buffer size.
func NewBroker(buffer int, logger *zap.Logger) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		subs:   make(map[uint64]*subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a listener for studentID ("" = all students).
func (b *Broker) Subscribe(studentID string) (<-chan Event, func()) {
	sub := &subscription{studentID: studentID, ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
	}
	return sub.ch, cancel
}

// Publish delivers ev to every matching subscriber without blocking.
func (b *Broker) Publish(_ context.Context, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.studentID != "" && sub.studentID != ev.StudentID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Debug("progress event dropped for slow subscriber",
				zap.String("student_id", ev.StudentID),
				zap.String("event", ev.Name),
			)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later Subscribe calls get a closed channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(b.subs, id)
	}
}
