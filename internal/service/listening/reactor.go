// internal/service/listening/reactor.go

package listening

import (
	"context"
	"sync"
	"time"

	"tweetpulse/internal/domain/post"
	"tweetpulse/internal/logging"
)

// Reactor favorites and re-shares positive posts without blocking the pipeline
type Reactor struct {
	platform post.Reactions
	timeout  time.Duration
	metrics  *Metrics
	logger   logging.Logger
	wg       sync.WaitGroup
}

// NewReactor creates a new reactor
func NewReactor(platform post.Reactions, timeout time.Duration, metrics *Metrics, logger logging.Logger) *Reactor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Reactor{
		platform: platform,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// React issues favorite and reshare for the post in a detached goroutine.
// Failures are logged; the caller never waits on the outcome.
func (r *Reactor) React(p post.Post) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		r.do(ctx, "favorite", p.ID, r.platform.Favorite)
		r.do(ctx, "reshare", p.ID, r.platform.Reshare)
	}()
}

func (r *Reactor) do(ctx context.Context, action, postID string, fn func(context.Context, string) error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.Reactions.WithLabelValues(action, "error").Inc()
			r.logger.WithFields(logging.Fields{
				"action":   action,
				"tweet_id": postID,
				"panic":    rec,
			}).Error("Reaction panicked")
		}
	}()

	if err := fn(ctx, postID); err != nil {
		r.metrics.Reactions.WithLabelValues(action, "error").Inc()
		r.logger.WithError(err).WithFields(logging.Fields{
			"action":   action,
			"tweet_id": postID,
		}).Warn("Reaction failed")
		return
	}

	r.metrics.Reactions.WithLabelValues(action, "ok").Inc()
	r.logger.WithFields(logging.Fields{
		"action":   action,
		"tweet_id": postID,
	}).Debug("Reaction sent")
}

// Wait blocks until outstanding reactions finish or ctx ends
func (r *Reactor) Wait(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(c)
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
