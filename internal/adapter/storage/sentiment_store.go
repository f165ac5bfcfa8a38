// internal/adapter/storage/sentiment_store.go

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tweetpulse/internal/domain/sentiment"
)

// SentimentStore implements storage for sentiment results
type SentimentStore struct {
	db *sql.DB
}

// NewSentimentStore creates a new sentiment store
func NewSentimentStore(db *sql.DB) *SentimentStore {
	return &SentimentStore{
		db: db,
	}
}

// SaveResult writes the record and all of its child rows in one transaction.
// Either everything is stored or nothing is.
func (s *SentimentStore) SaveResult(ctx context.Context, result sentiment.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	r := result.Record
	query := `
		INSERT INTO tweet_sentiments (
			tweet_id, author_id, tweet_content, is_positive, tweeted_by, tweeted_on
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING id
	`

	var id int64
	err = tx.QueryRowContext(ctx, query,
		r.TweetID,
		r.AuthorID,
		r.TweetContent,
		r.IsPositive,
		r.TweetedBy,
		r.TweetedOn,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("error inserting sentiment record: %w", err)
	}

	// Insert sentence details
	if len(result.Details) > 0 {
		args := make([]interface{}, 0, len(result.Details)*6)
		for _, d := range result.Details {
			args = append(args, r.TweetID, d.Sentence, d.Positive, d.Negative, d.Neutral, string(d.Sentiment))
		}
		query := "INSERT INTO sentiment_details (tweet_id, sentence, positive, negative, neutral, sentiment) VALUES " +
			placeholders(len(result.Details), 6)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("error inserting sentiment details: %w", err)
		}
	}

	// Insert entities
	if len(result.Entities) > 0 {
		args := make([]interface{}, 0, len(result.Entities)*5)
		for _, e := range result.Entities {
			args = append(args, r.TweetID, e.EntityText, e.Category, e.SubCategory, e.Confidence)
		}
		query := "INSERT INTO tweet_entities (tweet_id, entity_text, category, sub_category, confidence) VALUES " +
			placeholders(len(result.Entities), 5)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("error inserting entities: %w", err)
		}
	}

	// Insert key phrases
	if len(result.Phrases) > 0 {
		args := make([]interface{}, 0, len(result.Phrases)*2)
		for _, p := range result.Phrases {
			args = append(args, r.TweetID, p.KeyPhrase)
		}
		query := "INSERT INTO tweet_key_phrases (tweet_id, key_phrase) VALUES " +
			placeholders(len(result.Phrases), 2)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("error inserting key phrases: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing sentiment result: %w", err)
	}

	return nil
}

// ListRecent returns the most recently stored records, newest first
func (s *SentimentStore) ListRecent(ctx context.Context, limit int) ([]sentiment.Record, error) {
	query := `
		SELECT id, tweet_id, author_id, tweet_content, is_positive, tweeted_by, tweeted_on
		FROM tweet_sentiments
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	records := make([]sentiment.Record, 0, limit)
	for rows.Next() {
		var r sentiment.Record
		if err := rows.Scan(
			&r.ID,
			&r.TweetID,
			&r.AuthorID,
			&r.TweetContent,
			&r.IsPositive,
			&r.TweetedBy,
			&r.TweetedOn,
		); err != nil {
			return nil, fmt.Errorf("error scanning sentiment record: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sentiment records: %w", err)
	}

	return records, nil
}

// GetResult retrieves the record for a post with its child rows
func (s *SentimentStore) GetResult(ctx context.Context, tweetID string) (*sentiment.Result, error) {
	query := `
		SELECT id, tweet_id, author_id, tweet_content, is_positive, tweeted_by, tweeted_on
		FROM tweet_sentiments
		WHERE tweet_id = $1
	`

	var result sentiment.Result
	r := &result.Record
	err := s.db.QueryRowContext(ctx, query, tweetID).Scan(
		&r.ID,
		&r.TweetID,
		&r.AuthorID,
		&r.TweetContent,
		&r.IsPositive,
		&r.TweetedBy,
		&r.TweetedOn,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentiment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying sentiment record: %w", err)
	}

	if result.Details, err = s.details(ctx, tweetID); err != nil {
		return nil, err
	}
	if result.Entities, err = s.entities(ctx, tweetID); err != nil {
		return nil, err
	}
	if result.Phrases, err = s.phrases(ctx, tweetID); err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *SentimentStore) details(ctx context.Context, tweetID string) ([]sentiment.Detail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tweet_id, sentence, positive, negative, neutral, sentiment
		FROM sentiment_details
		WHERE tweet_id = $1
		ORDER BY id
	`, tweetID)
	if err != nil {
		return nil, fmt.Errorf("error querying sentiment details: %w", err)
	}
	defer rows.Close()

	details := []sentiment.Detail{}
	for rows.Next() {
		var d sentiment.Detail
		var label string
		if err := rows.Scan(&d.ID, &d.TweetID, &d.Sentence, &d.Positive, &d.Negative, &d.Neutral, &label); err != nil {
			return nil, fmt.Errorf("error scanning sentiment detail: %w", err)
		}
		d.Sentiment = sentiment.Label(label)
		details = append(details, d)
	}
	return details, rows.Err()
}

func (s *SentimentStore) entities(ctx context.Context, tweetID string) ([]sentiment.EntityMention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tweet_id, entity_text, category, sub_category, confidence
		FROM tweet_entities
		WHERE tweet_id = $1
		ORDER BY id
	`, tweetID)
	if err != nil {
		return nil, fmt.Errorf("error querying entities: %w", err)
	}
	defer rows.Close()

	entities := []sentiment.EntityMention{}
	for rows.Next() {
		var e sentiment.EntityMention
		var sub sql.NullString
		if err := rows.Scan(&e.ID, &e.TweetID, &e.EntityText, &e.Category, &sub, &e.Confidence); err != nil {
			return nil, fmt.Errorf("error scanning entity: %w", err)
		}
		if sub.Valid {
			e.SubCategory = &sub.String
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *SentimentStore) phrases(ctx context.Context, tweetID string) ([]sentiment.KeyPhrase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tweet_id, key_phrase
		FROM tweet_key_phrases
		WHERE tweet_id = $1
		ORDER BY id
	`, tweetID)
	if err != nil {
		return nil, fmt.Errorf("error querying key phrases: %w", err)
	}
	defer rows.Close()

	phrases := []sentiment.KeyPhrase{}
	for rows.Next() {
		var p sentiment.KeyPhrase
		if err := rows.Scan(&p.ID, &p.TweetID, &p.KeyPhrase); err != nil {
			return nil, fmt.Errorf("error scanning key phrase: %w", err)
		}
		phrases = append(phrases, p)
	}
	return phrases, rows.Err()
}

// placeholders builds "($1, $2), ($3, $4)" for rows of cols values each
func placeholders(rows, cols int) string {
	var b strings.Builder
	n := 1
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < cols; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}
