// internal/service/listening/filter.go

package listening

import (
	"time"

	"tweetpulse/internal/domain/post"
)

// RejectReason names why a post was dropped before enrichment
type RejectReason string

// Rejection reasons, also used as the metric label
const (
	RejectNone          RejectReason = ""
	RejectRetweet       RejectReason = "retweet"
	RejectNewAccount    RejectReason = "new_account"
	RejectFewFollowers  RejectReason = "few_followers"
	RejectFollowMatched RejectReason = "follow_not_author"
)

// FilterConfig contains the eligibility thresholds
type FilterConfig struct {
	MinFollowers        int
	MinAccountAgeMonths int
}

// DefaultFilterConfig returns the standard thresholds
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinFollowers:        100,
		MinAccountAgeMonths: 1,
	}
}

// Filter decides whether a matching post is eligible for enrichment
type Filter struct {
	config FilterConfig
}

// NewFilter creates a new filter
func NewFilter(config FilterConfig) *Filter {
	return &Filter{config: config}
}

// Evaluate returns true when the post should be enriched, otherwise false and the reason.
// Rejection is a normal outcome, not an error.
func (f *Filter) Evaluate(ev post.MatchEvent, now time.Time) (bool, RejectReason) {
	p := ev.Post

	if p.IsRetweet {
		return false, RejectRetweet
	}

	if p.Author.CreatedAt.After(now.AddDate(0, -f.config.MinAccountAgeMonths, 0)) {
		return false, RejectNewAccount
	}

	if p.Author.FollowersCount < f.config.MinFollowers {
		return false, RejectFewFollowers
	}

	// A follow-based match must come from the followed account itself
	if len(ev.MatchedFollowIDs) > 0 && !ev.AuthorMatched() {
		return false, RejectFollowMatched
	}

	return true, RejectNone
}
