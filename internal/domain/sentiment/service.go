// internal/domain/sentiment/service.go

package sentiment

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no result exists for a post
var ErrNotFound = errors.New("sentiment result not found")

// Analyzer defines the text analysis capability
type Analyzer interface {
	// AnalyzeSentiment returns the document and sentence level sentiment
	AnalyzeSentiment(ctx context.Context, text string) (DocumentSentiment, error)

	// RecognizeEntities returns the named entities found in the text
	RecognizeEntities(ctx context.Context, text string) ([]Entity, error)

	// ExtractKeyPhrases returns the key phrases found in the text
	ExtractKeyPhrases(ctx context.Context, text string) ([]string, error)
}

// Store defines storage for sentiment results
type Store interface {
	// SaveResult writes the record and all its child rows atomically
	SaveResult(ctx context.Context, result Result) error

	// ListRecent returns the most recently created records, newest first
	ListRecent(ctx context.Context, limit int) ([]Record, error)

	// GetResult returns the record and child rows for a post
	GetResult(ctx context.Context, tweetID string) (*Result, error)
}

// Publisher announces stored results to interested consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
