// internal/service/listening/classifier.go

package listening

import (
	"tweetpulse/internal/domain/post"
	"tweetpulse/internal/domain/sentiment"
)

// IsPositive derives the verdict that drives reactions. It is true when
//
//	(the author is a matched follow AND the document is not negative) OR
//	(the document is positive AND no sentence is mixed or negative).
//
// The first clause is not gated by the sentence check.
func IsPositive(doc sentiment.DocumentSentiment, ev post.MatchEvent) bool {
	followed := ev.AuthorMatched() && doc.Label != sentiment.LabelNegative
	return followed || (doc.Label == sentiment.LabelPositive && !hasDissentingSentence(doc))
}

func hasDissentingSentence(doc sentiment.DocumentSentiment) bool {
	for _, s := range doc.Sentences {
		if s.Label == sentiment.LabelMixed || s.Label == sentiment.LabelNegative {
			return true
		}
	}
	return false
}
