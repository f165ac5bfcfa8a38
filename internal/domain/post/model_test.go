package post

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentPrefersFullText(t *testing.T) {
	require.Equal(t, "short", Post{Text: "short"}.Content())
	require.Equal(t, "the full text", Post{Text: "short", FullText: "the full text"}.Content())
}

func TestAuthorMatched(t *testing.T) {
	ev := MatchEvent{Post: Post{Author: Author{ID: "42"}}}
	require.False(t, ev.AuthorMatched())

	ev.MatchedFollowIDs = []string{"7", "42"}
	require.True(t, ev.AuthorMatched())

	ev.MatchedFollowIDs = []string{"7"}
	require.False(t, ev.AuthorMatched())
}

func TestSubscriptionFollowIDs(t *testing.T) {
	sub := Subscription{Follow: []Account{{ID: "1", UserName: "a"}, {ID: "2", UserName: "b"}}}
	require.Equal(t, []string{"1", "2"}, sub.FollowIDs())
	require.Empty(t, Subscription{}.FollowIDs())
}
