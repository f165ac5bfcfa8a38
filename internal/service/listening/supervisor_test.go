package listening

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"tweetpulse/internal/domain/post"
)

type recordingHandler struct {
	mu      sync.Mutex
	ids     []string
	panicOn string
	err     error
}

func (h *recordingHandler) Process(ctx context.Context, ev post.MatchEvent) error {
	if ev.Post.ID == h.panicOn {
		panic("handler exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, ev.Post.ID)
	return h.err
}

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.ids...)
}

func newTestSupervisor(platform *fakePlatform, handler EventHandler, cfg SupervisorConfig) (*Supervisor, *Metrics) {
	metrics := newTestMetrics()
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 10 * time.Millisecond
	}
	return NewSupervisor(platform, handler, metrics, newTestLogger(), cfg), metrics
}

func stopSupervisor(t *testing.T, s *Supervisor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func send(t *testing.T, s *fakeStream, id string) {
	t.Helper()
	select {
	case s.events <- post.MatchEvent{Post: post.Post{ID: id}}:
	case <-time.After(time.Second):
		t.Fatalf("event %s was not consumed", id)
	}
}

func TestSupervisorStartBuildsSubscription(t *testing.T) {
	platform := &fakePlatform{accounts: []post.Account{{ID: "11", UserName: "golang"}}}
	s, metrics := newTestSupervisor(platform, &recordingHandler{}, SupervisorConfig{
		Keywords:  []string{"#golang"},
		Usernames: []string{"golang"},
	})

	require.NoError(t, s.Start(context.Background()))
	defer stopSupervisor(t, s)

	require.Equal(t, StateConnected, s.State())
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.StreamConnected))

	sub := s.Subscription()
	require.Equal(t, "en", sub.Language)
	require.Equal(t, "none", sub.FilterLevel)
	require.Equal(t, []string{"#golang"}, sub.Track)
	require.Equal(t, []string{"11"}, sub.FollowIDs())
	require.Equal(t, 1, platform.subscribeCount())
}

func TestSupervisorStartFailures(t *testing.T) {
	t.Run("resolve", func(t *testing.T) {
		platform := &fakePlatform{resolveErr: errors.New("unknown user")}
		s, _ := newTestSupervisor(platform, &recordingHandler{}, SupervisorConfig{Usernames: []string{"nobody"}})

		require.Error(t, s.Start(context.Background()))
		require.Equal(t, 0, platform.subscribeCount())
		require.Equal(t, StateStopped, s.State())
	})

	t.Run("subscribe", func(t *testing.T) {
		platform := &fakePlatform{subscribeErrs: []error{errors.New("unauthorized")}}
		s, _ := newTestSupervisor(platform, &recordingHandler{}, SupervisorConfig{Keywords: []string{"#golang"}})

		require.Error(t, s.Start(context.Background()))
		require.Equal(t, StateStopped, s.State())
	})
}

func TestSupervisorSkipsResolveWithoutUsernames(t *testing.T) {
	platform := &fakePlatform{resolveErr: errors.New("must not be called")}
	s, _ := newTestSupervisor(platform, &recordingHandler{}, SupervisorConfig{Keywords: []string{"#golang"}})

	require.NoError(t, s.Start(context.Background()))
	defer stopSupervisor(t, s)
	require.Empty(t, s.Subscription().Follow)
}

func TestSupervisorDeliversEventsInOrder(t *testing.T) {
	platform := &fakePlatform{}
	handler := &recordingHandler{}
	s, _ := newTestSupervisor(platform, handler, SupervisorConfig{Keywords: []string{"#golang"}})

	require.NoError(t, s.Start(context.Background()))
	defer stopSupervisor(t, s)

	for _, id := range []string{"1", "2", "3"} {
		send(t, platform.stream(0), id)
	}
	require.Eventually(t, func() bool { return len(handler.seen()) == 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"1", "2", "3"}, handler.seen())
}

func TestSupervisorRestartsOncePerStop(t *testing.T) {
	platform := &fakePlatform{}
	handler := &recordingHandler{}
	s, metrics := newTestSupervisor(platform, handler, SupervisorConfig{
		Keywords:     []string{"#golang"},
		RestartDelay: time.Hour,
	})

	require.NoError(t, s.Start(context.Background()))
	defer stopSupervisor(t, s)

	platform.stream(0).stopped <- errors.New("connection reset")
	require.Eventually(t, func() bool { return platform.subscribeCount() == 2 }, time.Second, 5*time.Millisecond)
	require.True(t, platform.stream(0).isClosed())

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, platform.subscribeCount())
	require.Equal(t, StateConnected, s.State())
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.StreamRestarts))

	send(t, platform.stream(1), "after-restart")
	require.Eventually(t, func() bool { return len(handler.seen()) == 1 }, time.Second, 5*time.Millisecond)

	platform.stream(1).stopped <- nil
	require.Eventually(t, func() bool { return platform.subscribeCount() == 3 }, time.Second, 5*time.Millisecond)

	sub := s.Subscription()
	for _, got := range platform.subscriptions {
		require.Equal(t, sub.Track, got.Track)
	}
}

func TestSupervisorRestartsWhenEventChannelCloses(t *testing.T) {
	platform := &fakePlatform{}
	s, _ := newTestSupervisor(platform, &recordingHandler{}, SupervisorConfig{Keywords: []string{"#golang"}})

	require.NoError(t, s.Start(context.Background()))
	defer stopSupervisor(t, s)

	close(platform.stream(0).events)
	require.Eventually(t, func() bool { return platform.subscribeCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSupervisorRetriesFailedRestartAfterDelay(t *testing.T) {
	platform := &fakePlatform{subscribeErrs: []error{nil, errors.New("rate limited")}}
	s, metrics := newTestSupervisor(platform, &recordingHandler{}, SupervisorConfig{
		Keywords:     []string{"#golang"},
		RestartDelay: 20 * time.Millisecond,
	})

	require.NoError(t, s.Start(context.Background()))
	defer stopSupervisor(t, s)

	platform.stream(0).stopped <- errors.New("connection reset")
	require.Eventually(t, func() bool { return platform.subscribeCount() == 3 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.State() == StateConnected }, time.Second, 5*time.Millisecond)
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.StreamRestarts))
}

func TestSupervisorSurvivesHandlerPanicAndError(t *testing.T) {
	platform := &fakePlatform{}
	handler := &recordingHandler{panicOn: "bad", err: errors.New("persist failed")}
	s, metrics := newTestSupervisor(platform, handler, SupervisorConfig{Keywords: []string{"#golang"}})

	require.NoError(t, s.Start(context.Background()))
	defer stopSupervisor(t, s)

	send(t, platform.stream(0), "bad")
	send(t, platform.stream(0), "good")

	require.Eventually(t, func() bool { return len(handler.seen()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"good"}, handler.seen())
	require.Equal(t, 1, platform.subscribeCount())
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.PostsFailed.WithLabelValues(StagePanic)))
}

func TestSupervisorStop(t *testing.T) {
	platform := &fakePlatform{}
	s, metrics := newTestSupervisor(platform, &recordingHandler{}, SupervisorConfig{Keywords: []string{"#golang"}})

	require.NoError(t, s.Start(context.Background()))
	stopSupervisor(t, s)

	require.Equal(t, StateStopped, s.State())
	require.True(t, platform.stream(0).isClosed())
	require.Equal(t, 1, platform.subscribeCount())
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.StreamConnected))
}

func TestSupervisorStopsWhenParentContextEnds(t *testing.T) {
	platform := &fakePlatform{}
	s, _ := newTestSupervisor(platform, &recordingHandler{}, SupervisorConfig{Keywords: []string{"#golang"}})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return s.State() == StateStopped }, time.Second, 5*time.Millisecond)
	stopSupervisor(t, s)
}
