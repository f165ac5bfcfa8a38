// internal/adapter/twitter/stream.go

package twitter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	twitter "github.com/g8rswimmer/go-twitter/v2"

	"tweetpulse/internal/domain/post"
)

var (
	errStreamEnded    = errors.New("stream ended")
	errConnectionLost = errors.New("stream heartbeat lost")
	errDisconnected   = errors.New("stream disconnected by platform")
)

const (
	// heartbeatCheck is how often the library's keep-alive state is polled
	heartbeatCheck = 5 * time.Second

	// drainWait bounds how long messages already read are still delivered after the connection ends
	drainWait = 100 * time.Millisecond
)

var streamOpts = twitter.TweetSearchStreamOpts{
	Expansions: []twitter.Expansion{twitter.ExpansionAuthorID},
	TweetFields: []twitter.TweetField{
		twitter.TweetFieldCreatedAt,
		twitter.TweetFieldAuthorID,
		twitter.TweetFieldLanguage,
		twitter.TweetFieldInReplyToUserID,
		twitter.TweetFieldReferencedTweets,
	},
	UserFields: []twitter.UserField{
		twitter.UserFieldCreatedAt,
		twitter.UserFieldPublicMetrics,
	},
}

// Subscribe installs the subscription's rules and opens the filtered stream
func (p *Platform) Subscribe(ctx context.Context, sub post.Subscription) (post.Stream, error) {
	if sub.FilterLevel != "" && sub.FilterLevel != "none" {
		p.logger.WithField("filter_level", sub.FilterLevel).Warn("Filter level is not supported by the filtered stream, ignoring")
	}

	if err := p.syncRules(ctx, sub); err != nil {
		return nil, err
	}

	conn := newStreamConn()
	ts, err := p.app.TweetSearchStream(withStreamConn(ctx, conn), streamOpts)
	if err != nil {
		return nil, fmt.Errorf("error opening stream: %w", err)
	}

	s := newStream(ts, conn, sub.FollowIDs(), p.messageError)
	go s.pump(feed{
		messages:    ts.Tweets(),
		errs:        ts.Err(),
		disconnects: ts.DisconnectionError(),
		ended:       conn.ended,
		alive:       ts.Connection,
	})
	return s, nil
}

// messageError records a message the library could not decode; the stream keeps running
func (p *Platform) messageError(err error) {
	p.messageErrors.Inc()
	p.logger.WithError(err).Warn("Skipping malformed stream message")
}

// feed is what the pump reads from one library stream
type feed struct {
	messages    <-chan *twitter.TweetMessage
	errs        <-chan error
	disconnects <-chan *twitter.DisconnectionError
	ended       <-chan struct{}
	alive       func() bool
}

// stream adapts the library stream to post.Stream
type stream struct {
	source     *twitter.TweetStream
	conn       *streamConn
	followIDs  map[string]bool
	onError    func(error)
	checkEvery time.Duration

	events  chan post.MatchEvent
	stopped chan error
	done    chan struct{}
	once    sync.Once
}

func newStream(source *twitter.TweetStream, conn *streamConn, followIDs []string, onError func(error)) *stream {
	ids := make(map[string]bool, len(followIDs))
	for _, id := range followIDs {
		ids[id] = true
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &stream{
		source:     source,
		conn:       conn,
		followIDs:  ids,
		onError:    onError,
		checkEvery: heartbeatCheck,
		events:     make(chan post.MatchEvent),
		stopped:    make(chan error, 1),
		done:       make(chan struct{}),
	}
}

func (s *stream) Events() <-chan post.MatchEvent { return s.events }
func (s *stream) Stopped() <-chan error         { return s.stopped }

// Close releases the connection. The body is closed first so the library's
// reader returns and can observe its close signal.
func (s *stream) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.close()
		}
		if s.source != nil {
			s.source.Close()
		}
	})
}

// pump forwards posts until the connection ends. Per-message errors are
// reported and skipped; only connection loss stops the stream.
func (s *stream) pump(f feed) {
	ticker := time.NewTicker(s.checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-f.messages:
			if !ok {
				s.stop(errStreamEnded)
				return
			}
			if !s.deliver(msg) {
				return
			}
		case err, ok := <-f.errs:
			if !ok {
				f.errs = nil
				continue
			}
			s.onError(err)
		case d, ok := <-f.disconnects:
			if !ok {
				f.disconnects = nil
				continue
			}
			s.stop(disconnectError(d))
			return
		case <-f.ended:
			s.drain(f.messages)
			if s.conn != nil {
				s.stop(s.conn.reason())
			} else {
				s.stop(errStreamEnded)
			}
			return
		case <-ticker.C:
			if f.alive != nil && !f.alive() {
				s.stop(errConnectionLost)
				return
			}
		}
	}
}

// drain delivers messages the library read before the connection ended
func (s *stream) drain(messages <-chan *twitter.TweetMessage) {
	timer := time.NewTimer(drainWait)
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-timer.C:
			return
		case msg, ok := <-messages:
			if !ok || !s.deliver(msg) {
				return
			}
		}
	}
}

// deliver sends the events of one message; false means the stream was closed
func (s *stream) deliver(msg *twitter.TweetMessage) bool {
	if msg == nil {
		return true
	}
	for _, ev := range matchEvents(msg.Raw, s.followIDs) {
		select {
		case s.events <- ev:
		case <-s.done:
			return false
		}
	}
	return true
}

func (s *stream) stop(err error) {
	select {
	case s.stopped <- err:
	default:
	}
}

func disconnectError(d *twitter.DisconnectionError) error {
	if d == nil {
		return errDisconnected
	}
	for _, dc := range d.Disconnections {
		if dc != nil {
			return fmt.Errorf("%w: %s: %s", errDisconnected, dc.Title, dc.Detail)
		}
	}
	for _, c := range d.Connections {
		if c != nil {
			return fmt.Errorf("%w: %s: %s", errDisconnected, c.Title, c.Detail)
		}
	}
	return errDisconnected
}

// matchEvents maps one stream message to match events, joining each post with
// its expanded author
func matchEvents(raw *twitter.TweetRaw, followIDs map[string]bool) []post.MatchEvent {
	if raw == nil {
		return nil
	}

	users := make(map[string]*twitter.UserObj)
	if raw.Includes != nil {
		for _, u := range raw.Includes.Users {
			if u != nil {
				users[u.ID] = u
			}
		}
	}

	events := make([]post.MatchEvent, 0, len(raw.Tweets))
	for _, t := range raw.Tweets {
		if t == nil {
			continue
		}
		events = append(events, post.MatchEvent{
			Post:             toPost(t, users[t.AuthorID]),
			MatchedFollowIDs: matchedFollowIDs(t, followIDs),
		})
	}
	return events
}

// toPost maps a v2 tweet. FullText stays empty: the library does not decode
// note_tweet, so long posts arrive with their truncated text only.
func toPost(t *twitter.TweetObj, u *twitter.UserObj) post.Post {
	p := post.Post{
		ID:              t.ID,
		Text:            t.Text,
		Language:        t.Language,
		InReplyToUserID: t.InReplyToUserID,
		IsRetweet:       isRetweet(t),
		Author:          post.Author{ID: t.AuthorID},
	}

	if u != nil {
		p.Author.UserName = u.UserName
		p.Author.CreatedAt = parseTime(u.CreatedAt)
		if u.PublicMetrics != nil {
			p.Author.FollowersCount = u.PublicMetrics.Followers
		}
	}
	return p
}

func isRetweet(t *twitter.TweetObj) bool {
	for _, ref := range t.ReferencedTweets {
		if ref != nil && ref.Type == "retweeted" {
			return true
		}
	}
	return false
}

// matchedFollowIDs returns the followed accounts a post involves as author or reply target
func matchedFollowIDs(t *twitter.TweetObj, followIDs map[string]bool) []string {
	var ids []string
	if followIDs[t.AuthorID] {
		ids = append(ids, t.AuthorID)
	}
	if t.InReplyToUserID != "" && t.InReplyToUserID != t.AuthorID && followIDs[t.InReplyToUserID] {
		ids = append(ids, t.InReplyToUserID)
	}
	return ids
}

// parseTime reads an API timestamp; an unparseable value yields the zero time,
// which the age filter treats as an old account
func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
