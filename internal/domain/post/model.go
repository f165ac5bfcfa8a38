package post

import (
	"time"
)

// Author is the account that published a post
type Author struct {
	ID             string
	UserName       string
	CreatedAt      time.Time
	FollowersCount int
}

// Post is a status update delivered by the streaming platform
type Post struct {
	ID              string
	Text            string
	FullText        string
	Language        string
	IsRetweet       bool
	InReplyToUserID string
	Author          Author
}

// Content returns the extended text when the platform provided one, else the standard text
func (p Post) Content() string {
	if p.FullText != "" {
		return p.FullText
	}
	return p.Text
}

// MatchEvent is a stream notification for a post that matched the subscription
type MatchEvent struct {
	Post Post
	// MatchedFollowIDs holds the followed account ids that caused the match, if any
	MatchedFollowIDs []string
}

// AuthorMatched reports whether the post author is among the matched follow ids
func (e MatchEvent) AuthorMatched() bool {
	for _, id := range e.MatchedFollowIDs {
		if id == e.Post.Author.ID {
			return true
		}
	}
	return false
}

// Account is a resolved followed account
type Account struct {
	ID       string
	UserName string
}

// Subscription describes a filtered stream
type Subscription struct {
	Language    string
	FilterLevel string
	Track       []string
	Follow      []Account
}

// FollowIDs returns the ids of the followed accounts
func (s Subscription) FollowIDs() []string {
	ids := make([]string, 0, len(s.Follow))
	for _, a := range s.Follow {
		ids = append(ids, a.ID)
	}
	return ids
}
