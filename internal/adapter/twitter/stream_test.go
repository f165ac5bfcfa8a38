package twitter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	twitter "github.com/g8rswimmer/go-twitter/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"tweetpulse/internal/domain/post"
	"tweetpulse/internal/logging"
)

func rawMessage() *twitter.TweetRaw {
	return &twitter.TweetRaw{
		Tweets: []*twitter.TweetObj{
			{
				ID:       "100",
				Text:     "Great news! #topic",
				AuthorID: "42",
				Language: "en",
			},
			{
				ID:              "101",
				Text:            "@golang nice",
				AuthorID:        "43",
				InReplyToUserID: "7",
			},
			{
				ID:       "102",
				Text:     "RT @golang: hello",
				AuthorID: "7",
				ReferencedTweets: []*twitter.TweetReferencedTweetObj{
					{Type: "retweeted", ID: "99"},
				},
			},
		},
		Includes: &twitter.TweetRawIncludes{
			Users: []*twitter.UserObj{
				{
					ID:            "42",
					UserName:      "alice",
					CreatedAt:     "2019-03-01T10:00:00.000Z",
					PublicMetrics: &twitter.UserMetricsObj{Followers: 500},
				},
				{ID: "7", UserName: "golang", CreatedAt: "2009-01-01T00:00:00.000Z"},
			},
		},
	}
}

func TestMatchEvents(t *testing.T) {
	events := matchEvents(rawMessage(), map[string]bool{"7": true})
	require.Len(t, events, 3)

	first := events[0]
	require.Equal(t, "100", first.Post.ID)
	require.Equal(t, "Great news! #topic", first.Post.Content())
	require.Equal(t, "alice", first.Post.Author.UserName)
	require.Equal(t, 500, first.Post.Author.FollowersCount)
	require.Equal(t, time.Date(2019, 3, 1, 10, 0, 0, 0, time.UTC), first.Post.Author.CreatedAt)
	require.False(t, first.Post.IsRetweet)
	require.Empty(t, first.MatchedFollowIDs)

	reply := events[1]
	require.Equal(t, []string{"7"}, reply.MatchedFollowIDs)
	require.False(t, reply.AuthorMatched())
	require.Zero(t, reply.Post.Author.FollowersCount)

	retweet := events[2]
	require.True(t, retweet.Post.IsRetweet)
	require.Equal(t, []string{"7"}, retweet.MatchedFollowIDs)
	require.True(t, retweet.AuthorMatched())
}

func TestMatchEventsNil(t *testing.T) {
	require.Nil(t, matchEvents(nil, nil))
	require.Empty(t, matchEvents(&twitter.TweetRaw{}, nil))
}

func TestParseTime(t *testing.T) {
	require.Equal(t, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), parseTime("2020-01-02T03:04:05Z"))
	require.True(t, parseTime("not a time").IsZero())
}

func receiveEvent(t *testing.T, s *stream, id string) {
	t.Helper()
	select {
	case ev := <-s.Events():
		require.Equal(t, id, ev.Post.ID)
	case <-time.After(2 * time.Second):
		t.Fatalf("event %s not delivered", id)
	}
}

func receiveStop(t *testing.T, s *stream) error {
	t.Helper()
	select {
	case err := <-s.Stopped():
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("stop not reported")
		return nil
	}
}

func TestStreamPumpSkipsMessageErrors(t *testing.T) {
	messages := make(chan *twitter.TweetMessage, 1)
	errs := make(chan error)
	disconnects := make(chan *twitter.DisconnectionError, 1)

	var mu sync.Mutex
	var reported []error
	s := newStream(nil, nil, []string{"7"}, func(err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	})
	go s.pump(feed{messages: messages, errs: errs, disconnects: disconnects})
	defer s.Close()

	boom := errors.New("stream error: normalize error")
	errs <- boom

	messages <- &twitter.TweetMessage{Raw: rawMessage()}
	for _, id := range []string{"100", "101", "102"} {
		receiveEvent(t, s, id)
	}

	mu.Lock()
	require.Equal(t, []error{boom}, reported)
	mu.Unlock()

	select {
	case err := <-s.Stopped():
		t.Fatalf("stream stopped on a message error: %v", err)
	default:
	}

	disconnects <- &twitter.DisconnectionError{
		Disconnections: []*twitter.Disconnection{{Title: "Operational Disconnect", Detail: "closed by operator"}},
	}
	err := receiveStop(t, s)
	require.ErrorIs(t, err, errDisconnected)
	require.Contains(t, err.Error(), "Operational Disconnect")
}

func TestStreamPumpReportsClosedSource(t *testing.T) {
	messages := make(chan *twitter.TweetMessage)
	s := newStream(nil, nil, nil, nil)
	go s.pump(feed{messages: messages})
	defer s.Close()

	close(messages)
	require.ErrorIs(t, receiveStop(t, s), errStreamEnded)
}

func TestStreamPumpDrainsAfterConnectionEnds(t *testing.T) {
	messages := make(chan *twitter.TweetMessage, 1)
	conn := newStreamConn()
	s := newStream(nil, conn, nil, nil)

	messages <- &twitter.TweetMessage{Raw: &twitter.TweetRaw{Tweets: []*twitter.TweetObj{{ID: "100"}}}}
	conn.end(io.EOF)

	go s.pump(feed{messages: messages, ended: conn.ended})
	defer s.Close()

	receiveEvent(t, s, "100")
	require.ErrorIs(t, receiveStop(t, s), errStreamEnded)
}

func TestStreamPumpStopsWhenHeartbeatIsLost(t *testing.T) {
	s := newStream(nil, nil, nil, nil)
	s.checkEvery = 10 * time.Millisecond

	var alive atomic.Bool
	alive.Store(true)
	go s.pump(feed{messages: make(chan *twitter.TweetMessage), alive: alive.Load})
	defer s.Close()

	time.Sleep(30 * time.Millisecond)
	select {
	case err := <-s.Stopped():
		t.Fatalf("stream stopped while alive: %v", err)
	default:
	}

	alive.Store(false)
	require.ErrorIs(t, receiveStop(t, s), errConnectionLost)
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	s := newStream(nil, newStreamConn(), nil, nil)
	go s.pump(feed{messages: make(chan *twitter.TweetMessage)})
	s.Close()
	s.Close()
}

func TestDisconnectError(t *testing.T) {
	require.ErrorIs(t, disconnectError(nil), errDisconnected)

	err := disconnectError(&twitter.DisconnectionError{
		Connections: []*twitter.Connection{{Title: "TooManyConnections", Detail: "limit reached"}},
	})
	require.ErrorIs(t, err, errDisconnected)
	require.Contains(t, err.Error(), "TooManyConnections: limit reached")
}

const streamTweet = `{"data":{"id":"100","text":"Great news! #topic","author_id":"42"},"includes":{"users":[{"id":"42","username":"alice","created_at":"2019-03-01T10:00:00.000Z","public_metrics":{"followers_count":500}}]}}`

// newStreamServer answers the rules listing and serves the stream with fn
func newStreamServer(t *testing.T, fn func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/2/tweets/search/stream/rules":
			_, _ = w.Write([]byte(`{"meta":{"sent":"2024-01-01T00:00:00Z","result_count":0}}`))
		case "/2/tweets/search/stream":
			fn(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
}

func writeLine(w http.ResponseWriter, line string) {
	_, _ = w.Write([]byte(line + "\r\n"))
	w.(http.Flusher).Flush()
}

func subscribe(t *testing.T, host string) (*Platform, *stream) {
	t.Helper()
	p, err := NewPlatform(Config{BearerToken: "b", Host: host}, logging.NewDiscardLogger())
	require.NoError(t, err)

	ps, err := p.Subscribe(context.Background(), post.Subscription{Language: "en"})
	require.NoError(t, err)
	return p, ps.(*stream)
}

func TestSubscribeReportsServerClosingTheStream(t *testing.T) {
	srv := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeLine(w, streamTweet)
	})
	defer srv.Close()

	_, s := subscribe(t, srv.URL)
	defer s.Close()

	receiveEvent(t, s, "100")
	require.ErrorIs(t, receiveStop(t, s), errStreamEnded)
}

func TestSubscribeKeepsStreamingPastMalformedMessages(t *testing.T) {
	srv := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeLine(w, "{not json")
		writeLine(w, streamTweet)
		<-r.Context().Done()
	})
	defer srv.Close()

	_, s := subscribe(t, srv.URL)
	defer s.Close()

	receiveEvent(t, s, "100")

	select {
	case err := <-s.Stopped():
		t.Fatalf("stream stopped on a malformed message: %v", err)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestMessageErrorIsCounted(t *testing.T) {
	p, err := NewPlatform(Config{BearerToken: "b"}, logging.NewDiscardLogger())
	require.NoError(t, err)

	p.messageError(errors.New("stream error: unmarshal error"))
	require.Equal(t, float64(1), testutil.ToFloat64(p.messageErrors))
	require.Len(t, p.Collectors(), 1)
}
