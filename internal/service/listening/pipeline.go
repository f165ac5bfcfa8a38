// internal/service/listening/pipeline.go

package listening

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tweetpulse/internal/domain/post"
	"tweetpulse/internal/domain/sentiment"
	"tweetpulse/internal/logging"
)

// Pipeline stages that can fail
const (
	StageSentiment  = "sentiment"
	StageEntities   = "entities"
	StageKeyPhrases = "key_phrases"
	StagePersist    = "persist"
	StagePanic      = "panic"
)

// StageError reports which pipeline stage failed for a post
type StageError struct {
	Stage   string
	TweetID string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("tweet %s: %s: %v", e.TweetID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline runs filter, normalize, annotate, classify, persist, react and log for one post
type Pipeline struct {
	filter     *Filter
	normalizer *Normalizer
	analyzer   sentiment.Analyzer
	store      sentiment.Store
	reactor    *Reactor
	publisher  sentiment.Publisher
	metrics    *Metrics
	logger     logging.Logger
	now        func() time.Time
}

// PipelineDeps holds the collaborators of a pipeline
type PipelineDeps struct {
	Filter     *Filter
	Normalizer *Normalizer
	Analyzer   sentiment.Analyzer
	Store      sentiment.Store
	Reactor    *Reactor
	// Publisher is optional
	Publisher sentiment.Publisher
	Metrics   *Metrics
	Logger    logging.Logger
}

// NewPipeline creates a new pipeline
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		filter:     deps.Filter,
		normalizer: deps.Normalizer,
		analyzer:   deps.Analyzer,
		store:      deps.Store,
		reactor:    deps.Reactor,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// Process handles one matching event. A filtered post returns nil; a failed stage
// returns a *StageError and nothing is persisted for the post.
func (p *Pipeline) Process(ctx context.Context, ev post.MatchEvent) error {
	p.metrics.PostsReceived.Inc()
	now := p.now()

	if ok, reason := p.filter.Evaluate(ev, now); !ok {
		p.metrics.PostsFiltered.WithLabelValues(string(reason)).Inc()
		p.logger.WithFields(logging.Fields{
			"tweet_id": ev.Post.ID,
			"reason":   reason,
		}).Debug("Post filtered")
		return nil
	}

	text := p.normalizer.Normalize(ev.Post.Content())

	doc, err := timed(p, StageSentiment, func() (sentiment.DocumentSentiment, error) {
		return p.analyzer.AnalyzeSentiment(ctx, text)
	})
	if err != nil {
		return p.fail(StageSentiment, ev, err)
	}

	entities, err := timed(p, StageEntities, func() ([]sentiment.Entity, error) {
		return p.analyzer.RecognizeEntities(ctx, text)
	})
	if err != nil {
		return p.fail(StageEntities, ev, err)
	}

	phrases, err := timed(p, StageKeyPhrases, func() ([]string, error) {
		return p.analyzer.ExtractKeyPhrases(ctx, text)
	})
	if err != nil {
		return p.fail(StageKeyPhrases, ev, err)
	}

	positive := IsPositive(doc, ev)

	result := sentiment.NewResult(sentiment.Record{
		TweetID:      ev.Post.ID,
		AuthorID:     ev.Post.Author.ID,
		TweetContent: text,
		IsPositive:   positive,
		TweetedBy:    0,
		TweetedOn:    now,
	}, doc, entities, phrases)

	if err := p.store.SaveResult(ctx, result); err != nil {
		return p.fail(StagePersist, ev, err)
	}

	if positive {
		p.reactor.React(ev.Post)
	}

	p.metrics.observeProcessed(positive)
	p.emit(ctx, doc, result)

	return nil
}

func (p *Pipeline) fail(stage string, ev post.MatchEvent, err error) error {
	p.metrics.PostsFailed.WithLabelValues(stage).Inc()
	return &StageError{Stage: stage, TweetID: ev.Post.ID, Err: err}
}

// emit writes the structured payload log and publishes the result event
func (p *Pipeline) emit(ctx context.Context, doc sentiment.DocumentSentiment, result sentiment.Result) {
	passID := uuid.New().String()

	p.logger.WithFields(logging.Fields{
		"pass_id":   passID,
		"tweet_id":  result.Record.TweetID,
		"positive":  result.Record.IsPositive,
		"sentiment": marshalField(doc),
		"details":   marshalField(result.Details),
		"entities":  marshalField(result.Entities),
		"phrases":   marshalField(result.Phrases),
	}).Info("Post analyzed")

	if p.publisher == nil {
		return
	}

	event := sentiment.Event{
		ID:         passID,
		Type:       sentiment.EventRecorded,
		OccurredAt: p.now(),
		Result:     result,
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.WithError(err).WithField("tweet_id", result.Record.TweetID).Warn("Failed to publish result event")
	}
}

func timed[T any](p *Pipeline, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	p.metrics.AnnotationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	return v, err
}

func marshalField(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("marshal error: %v", err)
	}
	return string(data)
}
