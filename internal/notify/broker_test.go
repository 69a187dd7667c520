package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestBroker_DeliversToMatchingSubscribers(t *testing.T) {
	b := NewBroker(4, zap.NewNop())

	mine, cancelMine := b.Subscribe("stu-1")
	defer cancelMine()
	other, cancelOther := b.Subscribe("stu-2")
	defer cancelOther()
	all, cancelAll := b.Subscribe("")
	defer cancelAll()

	b.Publish(context.Background(), NewProgressUpdated("stu-1", "submit", true))

	select {
	case ev := <-mine:
		if ev.StudentID != "stu-1" || ev.Name != EventProgressUpdated {
			t.Errorf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("stu-1 subscriber got nothing")
	}
	select {
	case <-all:
	default:
		t.Fatal("wildcard subscriber got nothing")
	}
	select {
	case ev := <-other:
		t.Fatalf("stu-2 subscriber should not receive %+v", ev)
	default:
	}
}

func TestBroker_FullSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker(1, zap.NewNop())
	ch, cancel := b.Subscribe("stu-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(context.Background(), NewProgressUpdated("stu-1", "submit", true))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if len(ch) != 1 {
		t.Errorf("expected exactly one buffered event, got %d", len(ch))
	}
}

func TestBroker_CancelIsIdempotent(t *testing.T) {
	b := NewBroker(1, zap.NewNop())
	ch, cancel := b.Subscribe("stu-1")

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	if b.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.Subscribers())
	}
	// publishing after cancel must not panic
	b.Publish(context.Background(), NewProgressUpdated("stu-1", "submit", true))
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker(1, zap.NewNop())
	ch, cancel := b.Subscribe("")
	b.Close()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after broker close")
	}

	late, _ := b.Subscribe("")
	if _, ok := <-late; ok {
		t.Error("subscribing to a closed broker should yield a closed channel")
	}
}

// ── RedisRelay ──

type fakeTransport struct {
	mu         sync.Mutex
	published  [][]byte
	err        error
	calls      chan struct{}
	subscribes atomic.Int32
}

func (f *fakeTransport) Publish(_ context.Context, _ string, payload []byte) error {
	f.mu.Lock()
	f.published = append(f.published, payload)
	f.mu.Unlock()
	f.calls <- struct{}{}
	return f.err
}

func (f *fakeTransport) Subscribe(context.Context, string) (*goredis.PubSub, error) {
	f.subscribes.Add(1)
	return nil, errors.New("not supported")
}

func TestRedisRelay_PublishesEncodedEvent(t *testing.T) {
	ft := &fakeTransport{calls: make(chan struct{}, 1)}
	local := NewBroker(1, zap.NewNop())
	relay := NewRedisRelay(ft, "workbook:progress_updated", local, zap.NewNop())

	relay.Publish(context.Background(), NewProgressUpdated("stu-9", "submit", true))

	select {
	case <-ft.calls:
	case <-time.After(time.Second):
		t.Fatal("relay never published")
	}

	ft.mu.Lock()
	defer ft.mu.Unlock()
	var ev Event
	if err := json.Unmarshal(ft.published[0], &ev); err != nil {
		t.Fatalf("payload is not an event: %v", err)
	}
	if ev.StudentID != "stu-9" {
		t.Errorf("expected stu-9, got %s", ev.StudentID)
	}
}

func TestRedisRelay_FallsBackToLocalBroker(t *testing.T) {
	ft := &fakeTransport{calls: make(chan struct{}, 1), err: errors.New("redis down")}
	local := NewBroker(1, zap.NewNop())
	ch, cancel := local.Subscribe("stu-9")
	defer cancel()
	relay := NewRedisRelay(ft, "workbook:progress_updated", local, zap.NewNop())
	relay.live.Store(true)

	relay.Publish(context.Background(), NewProgressUpdated("stu-9", "submit", true))

	select {
	case ev := <-ch:
		if ev.StudentID != "stu-9" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not delivered locally after redis failure")
	}
}

func TestRedisRelay_RunReturnsSubscribeError(t *testing.T) {
	relay := NewRedisRelay(&fakeTransport{calls: make(chan struct{}, 1)}, "c", NewBroker(1, nil), zap.NewNop())
	if err := relay.Run(context.Background()); err == nil {
		t.Error("expected subscribe error")
	}
}

func TestRedisRelay_DeliversLocallyAfterSubscribeFailure(t *testing.T) {
	ft := &fakeTransport{calls: make(chan struct{}, 1)}
	local := NewBroker(1, zap.NewNop())
	ch, cancel := local.Subscribe("stu-9")
	defer cancel()
	relay := NewRedisRelay(ft, "workbook:progress_updated", local, zap.NewNop())

	if err := relay.Run(context.Background()); err == nil {
		t.Fatal("expected subscribe error")
	}
	if relay.Live() {
		t.Fatal("relay must not be live after a failed subscribe")
	}

	relay.Publish(context.Background(), NewProgressUpdated("stu-9", "submit", true))

	select {
	case ev := <-ch:
		if ev.StudentID != "stu-9" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event never reached the local subscriber")
	}
	select {
	case <-ft.calls:
	case <-time.After(time.Second):
		t.Fatal("other instances should still get the event through redis")
	}
}

func TestRedisRelay_LiveSubscriptionDoesNotDeliverTwice(t *testing.T) {
	ft := &fakeTransport{calls: make(chan struct{}, 1)}
	local := NewBroker(2, zap.NewNop())
	ch, cancel := local.Subscribe("stu-9")
	defer cancel()
	relay := NewRedisRelay(ft, "workbook:progress_updated", local, zap.NewNop())
	relay.live.Store(true)

	relay.Publish(context.Background(), NewProgressUpdated("stu-9", "submit", true))

	select {
	case <-ft.calls:
	case <-time.After(time.Second):
		t.Fatal("relay never published")
	}
	select {
	case ev := <-ch:
		t.Errorf("live relay should leave delivery to the subscription, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisRelay_ServeRetriesUntilCancelled(t *testing.T) {
	ft := &fakeTransport{calls: make(chan struct{}, 1)}
	relay := NewRedisRelay(ft, "c", NewBroker(1, nil), zap.NewNop())
	relay.retryInitial = time.Millisecond
	relay.retryMax = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Serve(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for ft.subscribes.Load() < 3 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("expected repeated subscribe attempts, got %d", ft.subscribes.Load())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
