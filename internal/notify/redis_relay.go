package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 3 * time.Second

var errSubscriptionClosed = errors.New("redis subscription closed")

// RedisTransport is the part of pkg/redis.Client the relay needs.
type RedisTransport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (*goredis.PubSub, error)
}

// RedisRelay publishes events on a Redis channel so every server instance
// sees them; Run feeds what arrives on the channel into the local broker.
//
// Local subscribers only hear from Redis while this instance's subscription
// is live. Until then, and after it drops, Publish also delivers to the
// local broker directly. If Redis rejects a publish the event still reaches
// local subscribers.
type RedisRelay struct {
	transport RedisTransport
	channel   string
	local     *Broker
	logger    *zap.Logger
	live      atomic.Bool

	retryInitial time.Duration
	retryMax     time.Duration
}

// NewRedisRelay creates a RedisRelay.
func NewRedisRelay(transport RedisTransport, channel string, local *Broker, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		transport:    transport,
		channel:      channel,
		local:        local,
		logger:       logger,
		retryInitial: time.Second,
		retryMax:     30 * time.Second,
	}
}

// Live reports whether the Redis subscription is currently relaying.
func (r *RedisRelay) Live() bool { return r.live.Load() }

// Publish sends ev to Redis on a background goroutine.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("encode progress event", zap.Error(err))
		return
	}

	// without a live subscription Redis would never hand the event back
	deliveredLocally := !r.live.Load()
	if deliveredLocally {
		r.local.Publish(ctx, ev)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := r.transport.Publish(ctx, r.channel, payload); err != nil {
			r.logger.Warn("redis publish failed",
				zap.String("channel", r.channel),
				zap.String("student_id", ev.StudentID),
				zap.Bool("delivered_locally", deliveredLocally),
				zap.Error(err),
			)
			if !deliveredLocally {
				r.local.Publish(ctx, ev)
			}
		}
	}()
}

// Run relays channel messages into the local broker until ctx ends or the
// subscription drops.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps, err := r.transport.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}
	defer ps.Close()

	r.live.Store(true)
	defer r.live.Store(false)

	r.logger.Info("progress event relay started", zap.String("channel", r.channel))

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errSubscriptionClosed
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("discarding malformed progress event", zap.Error(err))
				continue
			}
			r.local.Publish(ctx, ev)
		}
	}
}

// Serve keeps Run going, re-subscribing with exponential backoff whenever
// the subscription fails, until ctx ends.
func (r *RedisRelay) Serve(ctx context.Context) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.retryInitial
	eb.MaxInterval = r.retryMax
	eb.MaxElapsedTime = 0

	op := func() error {
		err := r.Run(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errSubscriptionClosed
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("progress event relay down, delivering locally until it reconnects",
			zap.String("channel", r.channel),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	_ = backoff.RetryNotify(op, backoff.WithContext(eb, ctx), notify)
	r.logger.Info("progress event relay stopped", zap.String("channel", r.channel))
}
