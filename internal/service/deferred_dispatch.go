package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/risk-alert-api/internal/worker"
)

const deferredDispatchLockTTL = 24 * time.Hour

// TaskSubmitter queues background work without blocking.
type TaskSubmitter interface {
	Submit(task worker.Task) bool
}

// DeferredDispatcher runs an alert dispatch some time after a trigger.
type DeferredDispatcher interface {
	// After schedules one dispatch for key. It returns false when key was
	// already scheduled or the work could not be queued.
	After(delay time.Duration, key string) bool
}

type deferredDispatcher struct {
	pool       TaskSubmitter
	dispatcher AlertDispatcher
	redis      *redis.Client
	keyPrefix  string
	logger     zerolog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeferredDispatcher builds the upload hook. redisClient may be nil.
func NewDeferredDispatcher(pool TaskSubmitter, dispatcher AlertDispatcher, redisClient *redis.Client, channelBase string, logger zerolog.Logger) DeferredDispatcher {
	if channelBase == "" {
		channelBase = "risk"
	}
	return &deferredDispatcher{
		pool:       pool,
		dispatcher: dispatcher,
		redis:      redisClient,
		keyPrefix:  channelBase + ":alerts:deferred:",
		logger:     logger.With().Str("component", "deferred_dispatch").Logger(),
		seen:       make(map[string]struct{}),
	}
}

func (d *deferredDispatcher) After(delay time.Duration, key string) bool {
	if d.pool == nil || d.dispatcher == nil || key == "" {
		return false
	}

	d.mu.Lock()
	if _, ok := d.seen[key]; ok {
		d.mu.Unlock()
		d.logger.Debug().Str("key", key).Msg("dispatch already scheduled for key")
		return false
	}
	d.seen[key] = struct{}{}
	d.mu.Unlock()

	accepted := d.pool.Submit(func(ctx context.Context) {
		defer d.release(key)
		d.run(ctx, delay, key)
	})
	if !accepted {
		d.release(key)
		d.logger.Warn().Str("key", key).Msg("deferred dispatch dropped")
		return false
	}

	d.logger.Info().Str("key", key).Dur("delay", delay).Msg("deferred dispatch scheduled")
	return true
}

// release forgets key once its dispatch has finished. Redis keeps the
// longer-lived lock when configured.
func (d *deferredDispatcher) release(key string) {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
}

func (d *deferredDispatcher) run(ctx context.Context, delay time.Duration, key string) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			d.logger.Info().Str("key", key).Msg("deferred dispatch cancelled by shutdown")
			return
		case <-timer.C:
		}
	}

	if d.redis != nil {
		acquired, err := d.redis.SetNX(ctx, d.keyPrefix+key, time.Now().UTC().Format(time.RFC3339), deferredDispatchLockTTL).Result()
		if err != nil {
			d.logger.Warn().Err(err).Str("key", key).Msg("deferred dispatch lock unavailable, dispatching anyway")
		} else if !acquired {
			d.logger.Info().Str("key", key).Msg("deferred dispatch already handled by another instance")
			return
		}
	}

	result, err := d.dispatcher.Dispatch(ctx)
	if err != nil {
		d.logger.Error().Err(err).Str("key", key).Msg("deferred dispatch failed")
		return
	}

	d.logger.Info().
		Str("key", key).
		Int("high_risk", result.HighRiskCount).
		Int("emails_sent", result.StudentEmailsSent+result.MentorEmailsSent).
		Int("failures", len(result.Errors)).
		Msg("deferred dispatch completed")
}
