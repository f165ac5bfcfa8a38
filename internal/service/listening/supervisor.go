// internal/service/listening/supervisor.go

package listening

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"tweetpulse/internal/domain/post"
	"tweetpulse/internal/logging"
)

// State is the connection state of the supervisor
type State int32

const (
	StateStopped State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	default:
		return "stopped"
	}
}

// EventHandler processes one matching event
type EventHandler interface {
	Process(ctx context.Context, ev post.MatchEvent) error
}

// SupervisorConfig contains configuration for the stream supervisor
type SupervisorConfig struct {
	Keywords    []string
	Usernames   []string
	Language    string
	FilterLevel string
	// RestartDelay is waited only after a restart attempt itself fails
	RestartDelay time.Duration
}

// Supervisor owns the stream subscription and feeds events to the handler one at a time
type Supervisor struct {
	platform post.Platform
	handler  EventHandler
	config   SupervisorConfig
	metrics  *Metrics
	logger   logging.Logger

	subscription post.Subscription
	state        atomic.Int32
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

var errStreamClosed = errors.New("stream event channel closed")

// NewSupervisor creates a new stream supervisor
func NewSupervisor(
	platform post.Platform,
	handler EventHandler,
	metrics *Metrics,
	logger logging.Logger,
	config SupervisorConfig,
) *Supervisor {
	if config.Language == "" {
		config.Language = "en"
	}
	if config.FilterLevel == "" {
		config.FilterLevel = "none"
	}
	return &Supervisor{
		platform: platform,
		handler:  handler,
		config:   config,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start resolves the followed accounts, opens the subscription and begins consuming events.
// Any failure here is a startup failure.
func (s *Supervisor) Start(ctx context.Context) error {
	var accounts []post.Account
	if len(s.config.Usernames) > 0 {
		var err error
		accounts, err = s.platform.ResolveAccounts(ctx, s.config.Usernames)
		if err != nil {
			return fmt.Errorf("error resolving followed accounts: %w", err)
		}
	}

	s.subscription = post.Subscription{
		Language:    s.config.Language,
		FilterLevel: s.config.FilterLevel,
		Track:       append([]string(nil), s.config.Keywords...),
		Follow:      accounts,
	}

	stream, err := s.platform.Subscribe(ctx, s.subscription)
	if err != nil {
		return fmt.Errorf("error starting stream: %w", err)
	}
	s.setState(StateConnected)

	s.logger.WithFields(logging.Fields{
		"track":  s.subscription.Track,
		"follow": s.subscription.FollowIDs(),
	}).Info("Stream connected")

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(runCtx, stream)

	return nil
}

// State returns the current connection state
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Subscription returns the subscription built at start
func (s *Supervisor) Subscription() post.Subscription {
	return s.subscription
}

// Stop stops accepting events and waits for the in-flight post, bounded by ctx
func (s *Supervisor) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	c := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(c)
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run consumes the stream and restarts it whenever it stops
func (s *Supervisor) run(ctx context.Context, stream post.Stream) {
	defer s.wg.Done()

	for {
		err := s.consume(ctx, stream)
		stream.Close()
		s.setState(StateStopped)

		if ctx.Err() != nil {
			s.logger.Warn("Stream supervisor cancelled")
			return
		}

		s.logger.WithError(err).Warn("Stream stopped, restarting")
		stream = s.restart(ctx)
		if stream == nil {
			return
		}
	}
}

// consume handles events until the stream stops or ctx is cancelled
func (s *Supervisor) consume(ctx context.Context, stream post.Stream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-stream.Stopped():
			return err
		case ev, ok := <-stream.Events():
			if !ok {
				return errStreamClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.handle(ctx, ev)
		}
	}
}

// restart issues one subscribe call per stop; only a failed call is followed by a delay
func (s *Supervisor) restart(ctx context.Context) post.Stream {
	for {
		s.metrics.StreamRestarts.Inc()
		stream, err := s.platform.Subscribe(ctx, s.subscription)
		if err == nil {
			s.setState(StateConnected)
			s.logger.Info("Stream reconnected")
			return stream
		}

		s.logger.WithError(err).Error("Failed to restart stream")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.config.RestartDelay):
		}
	}
}

// handle runs the pipeline for one event inside its own failure boundary.
// The pass runs on a context detached from cancellation so shutdown lets it finish.
func (s *Supervisor) handle(ctx context.Context, ev post.MatchEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			s.metrics.PostsFailed.WithLabelValues(StagePanic).Inc()
			s.logger.WithFields(logging.Fields{
				"tweet_id": ev.Post.ID,
				"panic":    rec,
				"stack":    string(debug.Stack()),
			}).Error("Post processing panicked")
		}
	}()

	if err := s.handler.Process(context.WithoutCancel(ctx), ev); err != nil {
		entry := s.logger.WithError(err).WithField("tweet_id", ev.Post.ID)
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			entry = entry.WithField("stage", stageErr.Stage)
		}
		entry.Error("Post processing failed")
	}
}

func (s *Supervisor) setState(state State) {
	s.state.Store(int32(state))
	if state == StateConnected {
		s.metrics.StreamConnected.Set(1)
	} else {
		s.metrics.StreamConnected.Set(0)
	}
}
