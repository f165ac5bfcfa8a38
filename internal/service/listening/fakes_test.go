package listening

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"tweetpulse/internal/domain/post"
	"tweetpulse/internal/domain/sentiment"
	"tweetpulse/internal/logging"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	doc      sentiment.DocumentSentiment
	entities []sentiment.Entity
	phrases  []string

	sentimentErr error
	entitiesErr  error
	phrasesErr   error
	panicOn      string

	calls []string
	texts []string
}

func (f *fakeAnalyzer) record(op, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	f.texts = append(f.texts, text)
}

func (f *fakeAnalyzer) AnalyzeSentiment(ctx context.Context, text string) (sentiment.DocumentSentiment, error) {
	f.record("sentiment", text)
	if f.panicOn == text {
		panic("analyzer exploded")
	}
	return f.doc, f.sentimentErr
}

func (f *fakeAnalyzer) RecognizeEntities(ctx context.Context, text string) ([]sentiment.Entity, error) {
	f.record("entities", text)
	return f.entities, f.entitiesErr
}

func (f *fakeAnalyzer) ExtractKeyPhrases(ctx context.Context, text string) ([]string, error) {
	f.record("key_phrases", text)
	return f.phrases, f.phrasesErr
}

type fakeStore struct {
	mu      sync.Mutex
	results []sentiment.Result
	err     error
}

func (f *fakeStore) SaveResult(ctx context.Context, result sentiment.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.results = append(f.results, result)
	return nil
}

func (f *fakeStore) ListRecent(ctx context.Context, limit int) ([]sentiment.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentiment.Record
	for i := len(f.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.results[i].Record)
	}
	return out, nil
}

func (f *fakeStore) GetResult(ctx context.Context, tweetID string) (*sentiment.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.results {
		if f.results[i].Record.TweetID == tweetID {
			r := f.results[i]
			return &r, nil
		}
	}
	return nil, sentiment.ErrNotFound
}

func (f *fakeStore) saved() []sentiment.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentiment.Result(nil), f.results...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []sentiment.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event sentiment.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type fakeStream struct {
	events  chan post.MatchEvent
	stopped chan error
	closeMu sync.Mutex
	closed  bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events:  make(chan post.MatchEvent),
		stopped: make(chan error, 1),
	}
}

func (s *fakeStream) Events() <-chan post.MatchEvent { return s.events }
func (s *fakeStream) Stopped() <-chan error         { return s.stopped }

func (s *fakeStream) Close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	s.closed = true
}

func (s *fakeStream) isClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

type fakePlatform struct {
	mu            sync.Mutex
	accounts      []post.Account
	resolveErr    error
	subscribeErrs []error
	streams       []*fakeStream
	subscriptions []post.Subscription

	favorites   []string
	reshares    []string
	favoriteErr error
	reshareErr  error
}

func (f *fakePlatform) ResolveAccounts(ctx context.Context, usernames []string) ([]post.Account, error) {
	return f.accounts, f.resolveErr
}

func (f *fakePlatform) Subscribe(ctx context.Context, sub post.Subscription) (post.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions = append(f.subscriptions, sub)
	if len(f.subscribeErrs) > 0 {
		err := f.subscribeErrs[0]
		f.subscribeErrs = f.subscribeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	s := newFakeStream()
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakePlatform) Favorite(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favorites = append(f.favorites, postID)
	return f.favoriteErr
}

func (f *fakePlatform) Reshare(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reshares = append(f.reshares, postID)
	return f.reshareErr
}

func (f *fakePlatform) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscriptions)
}

func (f *fakePlatform) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.streams) {
		return nil
	}
	return f.streams[i]
}

func (f *fakePlatform) reactions() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.favorites...), append([]string(nil), f.reshares...)
}

func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func newTestLogger() logging.Logger {
	return logging.NewDiscardLogger()
}
