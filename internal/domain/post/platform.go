// internal/domain/post/platform.go

package post

import (
	"context"
)

// Stream is a live filtered subscription
type Stream interface {
	// Events delivers matching posts in arrival order
	Events() <-chan MatchEvent

	// Stopped receives once when the platform ends the stream; the error may be nil
	Stopped() <-chan error

	// Close releases the underlying connection
	Close()
}

// Reactions are the post-level actions the platform supports
type Reactions interface {
	// Favorite marks a post as liked by the acting account
	Favorite(ctx context.Context, postID string) error

	// Reshare re-publishes a post from the acting account
	Reshare(ctx context.Context, postID string) error
}

// Platform is the streaming social-media platform
type Platform interface {
	Reactions

	// ResolveAccounts maps usernames to account ids
	ResolveAccounts(ctx context.Context, usernames []string) ([]Account, error)

	// Subscribe opens a filtered stream
	Subscribe(ctx context.Context, sub Subscription) (Stream, error)
}
