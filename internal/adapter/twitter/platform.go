// internal/adapter/twitter/platform.go

package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dghubble/oauth1"
	twitter "github.com/g8rswimmer/go-twitter/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"tweetpulse/internal/domain/post"
	"tweetpulse/internal/logging"
)

// DefaultHost is the public API host
const DefaultHost = "https://api.twitter.com"

// Config contains configuration for the platform adapter
type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	BearerToken  string
	Host         string
	// AccountID is the acting account; looked up from the user token when empty
	AccountID    string

	// ReactionInterval is the minimum spacing between user-context writes; zero disables it
	ReactionInterval time.Duration
}

// Platform implements post.Platform on the v2 API. Stream rules and lookups use
// the app bearer token; likes and retweets are signed with the user token.
type Platform struct {
	app     *twitter.Client
	user    *twitter.Client
	logger  logging.Logger
	limiter *rate.Limiter

	messageErrors prometheus.Counter

	mu        sync.Mutex
	accountID string
}

// NewPlatform creates a new platform adapter
func NewPlatform(cfg Config, logger logging.Logger) (*Platform, error) {
	if cfg.BearerToken == "" {
		return nil, errors.New("bearer token is required")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	host := strings.TrimRight(cfg.Host, "/")

	oauth := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	userHTTP := oauth.Client(oauth1.NoContext, oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))
	userHTTP.Timeout = 15 * time.Second

	limit := rate.Inf
	if cfg.ReactionInterval > 0 {
		limit = rate.Every(cfg.ReactionInterval)
	}

	messageErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetpulse_stream_message_errors_total",
		Help: "Stream messages skipped because they could not be decoded",
	})

	return &Platform{
		app: &twitter.Client{
			Authorizer: bearer{token: cfg.BearerToken},
			// No client timeout: the stream response is long lived
			Client: &http.Client{Transport: connTransport{base: http.DefaultTransport}},
			Host:   host,
		},
		user: &twitter.Client{
			Authorizer: signed{},
			Client:     userHTTP,
			Host:       host,
		},
		logger:        logger,
		limiter:       rate.NewLimiter(limit, 2),
		messageErrors: messageErrors,
		accountID:     cfg.AccountID,
	}, nil
}

// Collectors returns the adapter's metrics for registration
func (p *Platform) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.messageErrors}
}

type bearer struct {
	token string
}

func (a bearer) Add(req *http.Request) {
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", a.token))
}

// signed leaves authorization to the oauth1 transport
type signed struct{}

func (signed) Add(*http.Request) {}

// ResolveAccounts looks up the ids of the given usernames. Every name must resolve.
func (p *Platform) ResolveAccounts(ctx context.Context, usernames []string) ([]post.Account, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(usernames))
	for _, name := range usernames {
		names = append(names, strings.TrimPrefix(name, "@"))
	}

	resp, err := p.app.UserNameLookup(ctx, names, twitter.UserLookupOpts{})
	if err != nil {
		return nil, fmt.Errorf("error looking up users: %w", err)
	}

	var users []*twitter.UserObj
	if resp.Raw != nil {
		users = resp.Raw.Users
	}
	return accountsFor(usernames, users)
}

func accountsFor(usernames []string, users []*twitter.UserObj) ([]post.Account, error) {
	byName := make(map[string]*twitter.UserObj, len(users))
	for _, u := range users {
		if u != nil {
			byName[strings.ToLower(u.UserName)] = u
		}
	}

	accounts := make([]post.Account, 0, len(usernames))
	var missing []string
	for _, name := range usernames {
		u, ok := byName[strings.ToLower(strings.TrimPrefix(name, "@"))]
		if !ok {
			missing = append(missing, name)
			continue
		}
		accounts = append(accounts, post.Account{ID: u.ID, UserName: u.UserName})
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("users not found: %s", strings.Join(missing, ", "))
	}
	return accounts, nil
}

// Favorite likes the post as the acting account
func (p *Platform) Favorite(ctx context.Context, postID string) error {
	id, err := p.actingAccount(ctx)
	if err != nil {
		return err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("error waiting to like %s: %w", postID, err)
	}
	if _, err := p.user.UserLikes(ctx, id, postID); err != nil {
		return fmt.Errorf("error liking %s: %w", postID, err)
	}
	return nil
}

// Reshare retweets the post as the acting account
func (p *Platform) Reshare(ctx context.Context, postID string) error {
	id, err := p.actingAccount(ctx)
	if err != nil {
		return err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("error waiting to retweet %s: %w", postID, err)
	}
	if _, err := p.user.UserRetweet(ctx, id, postID); err != nil {
		return fmt.Errorf("error retweeting %s: %w", postID, err)
	}
	return nil
}

func (p *Platform) actingAccount(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accountID != "" {
		return p.accountID, nil
	}

	resp, err := p.user.AuthUserLookup(ctx, twitter.UserLookupOpts{})
	if err != nil {
		return "", fmt.Errorf("error looking up acting account: %w", err)
	}
	if resp.Raw == nil || len(resp.Raw.Users) == 0 || resp.Raw.Users[0] == nil {
		return "", errors.New("acting account lookup returned no user")
	}

	p.accountID = resp.Raw.Users[0].ID
	p.logger.WithField("account_id", p.accountID).Info("Resolved acting account")
	return p.accountID, nil
}
