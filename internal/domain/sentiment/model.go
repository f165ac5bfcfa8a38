package sentiment

import (
	"time"
)

// Label is a sentiment classification
type Label string

// Sentiment labels returned by the analysis service
const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
	LabelMixed    Label = "mixed"
)

// ConfidenceScores holds per-label confidence values in [0,1]
type ConfidenceScores struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// SentenceSentiment is the analysis of one sentence
type SentenceSentiment struct {
	Text   string           `json:"text"`
	Label  Label            `json:"sentiment"`
	Scores ConfidenceScores `json:"confidenceScores"`
}

// DocumentSentiment is the analysis of a whole text
type DocumentSentiment struct {
	Label     Label               `json:"sentiment"`
	Scores    ConfidenceScores    `json:"confidenceScores"`
	Sentences []SentenceSentiment `json:"sentences"`
}

// Entity is a recognized named entity
type Entity struct {
	Text            string  `json:"text"`
	Category        string  `json:"category"`
	SubCategory     string  `json:"subcategory,omitempty"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// Record is the stored verdict for one processed post
type Record struct {
	ID           int64     `json:"id"`
	TweetID      string    `json:"tweetId"`
	AuthorID     string    `json:"authorId"`
	TweetContent string    `json:"tweetContent"`
	IsPositive   bool      `json:"isPositive"`
	TweetedBy    int64     `json:"tweetedBy"`
	TweetedOn    time.Time `json:"tweetedOn"`
}

// Detail is the stored analysis of one sentence
type Detail struct {
	ID        int64   `json:"id"`
	TweetID   string  `json:"tweetId"`
	Sentence  string  `json:"sentence"`
	Positive  float64 `json:"positive"`
	Negative  float64 `json:"negative"`
	Neutral   float64 `json:"neutral"`
	Sentiment Label   `json:"sentiment"`
}

// EntityMention is a stored recognized entity
type EntityMention struct {
	ID          int64   `json:"id"`
	TweetID     string  `json:"tweetId"`
	EntityText  string  `json:"entityText"`
	Category    string  `json:"category"`
	SubCategory *string `json:"subCategory"`
	Confidence  float64 `json:"confidence"`
}

// KeyPhrase is a stored extracted phrase
type KeyPhrase struct {
	ID        int64  `json:"id"`
	TweetID   string `json:"tweetId"`
	KeyPhrase string `json:"keyPhrase"`
}

// Result is everything persisted for one post, written as a single unit
type Result struct {
	Record   Record          `json:"record"`
	Details  []Detail        `json:"details"`
	Entities []EntityMention `json:"entities"`
	Phrases  []KeyPhrase     `json:"phrases"`
}

// Event announces a persisted result
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Result     Result    `json:"result"`
}

// EventRecorded is the type of the event published after a result is stored
const EventRecorded = "sentiment.recorded"

// NewResult builds the rows for one post from the three analyses
func NewResult(record Record, doc DocumentSentiment, entities []Entity, phrases []string) Result {
	result := Result{
		Record:   record,
		Details:  make([]Detail, 0, len(doc.Sentences)),
		Entities: make([]EntityMention, 0, len(entities)),
		Phrases:  make([]KeyPhrase, 0, len(phrases)),
	}

	for _, s := range doc.Sentences {
		result.Details = append(result.Details, Detail{
			TweetID:   record.TweetID,
			Sentence:  s.Text,
			Positive:  s.Scores.Positive,
			Negative:  s.Scores.Negative,
			Neutral:   s.Scores.Neutral,
			Sentiment: s.Label,
		})
	}

	for _, e := range entities {
		mention := EntityMention{
			TweetID:    record.TweetID,
			EntityText: e.Text,
			Category:   e.Category,
			Confidence: e.ConfidenceScore,
		}
		if e.SubCategory != "" {
			sub := e.SubCategory
			mention.SubCategory = &sub
		}
		result.Entities = append(result.Entities, mention)
	}

	for _, p := range phrases {
		result.Phrases = append(result.Phrases, KeyPhrase{
			TweetID:   record.TweetID,
			KeyPhrase: p,
		})
	}

	return result
}
