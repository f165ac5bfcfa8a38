// internal/adapter/textanalytics/client.go

package textanalytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"tweetpulse/internal/domain/sentiment"
)

const (
	apiPath      = "/text/analytics/v3.1"
	subscription = "Ocp-Apim-Subscription-Key"
	documentID   = "1"
)

// ErrNoDocument is returned when the service answers without a result for the submitted text
var ErrNoDocument = errors.New("text analytics returned no document")

// APIError is a non-2xx answer from the service
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("text analytics returned status: %d", e.StatusCode)
	}
	return fmt.Sprintf("text analytics returned status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// DocumentError is a per-document failure reported inside a 200 answer
type DocumentError struct {
	Code    string
	Message string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("text analytics document error: %s: %s", e.Code, e.Message)
}

// Config contains configuration for the text analytics client
type Config struct {
	Endpoint   string
	Key        string
	Language   string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client calls the sentiment, entity recognition and key phrase endpoints
type Client struct {
	endpoint string
	key      string
	language string
	client   *http.Client
	executor failsafe.Executor[*http.Response]
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// NewClient creates a new text analytics client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("text analytics endpoint is required")
	}
	if cfg.Key == "" {
		return nil, errors.New("text analytics key is required")
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		key:      cfg.Key,
		language: cfg.Language,
		client:   &http.Client{Timeout: cfg.Timeout},
		executor: failsafe.With(newRetryPolicy(cfg)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ShouldRetry retries network errors, rate limits and server errors
func ShouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

//nolint:bodyclose // generic type parameter, not a response
func newRetryPolicy(cfg Config) retrypolicy.RetryPolicy[*http.Response] {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 5 * time.Second
		if cfg.MaxDelay < cfg.BaseDelay {
			cfg.MaxDelay = cfg.BaseDelay
		}
	}

	return retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(ShouldRetry).
		Build()
}

type document struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

type request struct {
	Documents []document `json:"documents"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type documentError struct {
	ID    string    `json:"id"`
	Error errorBody `json:"error"`
}

type sentimentResponse struct {
	Documents []struct {
		ID string `json:"id"`
		sentiment.DocumentSentiment
	} `json:"documents"`
	Errors []documentError `json:"errors"`
}

type entitiesResponse struct {
	Documents []struct {
		ID       string             `json:"id"`
		Entities []sentiment.Entity `json:"entities"`
	} `json:"documents"`
	Errors []documentError `json:"errors"`
}

type keyPhrasesResponse struct {
	Documents []struct {
		ID         string   `json:"id"`
		KeyPhrases []string `json:"keyPhrases"`
	} `json:"documents"`
	Errors []documentError `json:"errors"`
}

// AnalyzeSentiment returns document and per-sentence sentiment for text
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (sentiment.DocumentSentiment, error) {
	var out sentimentResponse
	if err := c.post(ctx, "/sentiment", text, &out); err != nil {
		return sentiment.DocumentSentiment{}, err
	}
	if err := firstError(out.Errors); err != nil {
		return sentiment.DocumentSentiment{}, err
	}
	if len(out.Documents) == 0 {
		return sentiment.DocumentSentiment{}, ErrNoDocument
	}
	return out.Documents[0].DocumentSentiment, nil
}

// RecognizeEntities returns the named entities found in text
func (c *Client) RecognizeEntities(ctx context.Context, text string) ([]sentiment.Entity, error) {
	var out entitiesResponse
	if err := c.post(ctx, "/entities/recognition/general", text, &out); err != nil {
		return nil, err
	}
	if err := firstError(out.Errors); err != nil {
		return nil, err
	}
	if len(out.Documents) == 0 {
		return nil, ErrNoDocument
	}
	return out.Documents[0].Entities, nil
}

// ExtractKeyPhrases returns the key phrases of text
func (c *Client) ExtractKeyPhrases(ctx context.Context, text string) ([]string, error) {
	var out keyPhrasesResponse
	if err := c.post(ctx, "/keyPhrases", text, &out); err != nil {
		return nil, err
	}
	if err := firstError(out.Errors); err != nil {
		return nil, err
	}
	if len(out.Documents) == 0 {
		return nil, ErrNoDocument
	}
	return out.Documents[0].KeyPhrases, nil
}

func (c *Client) post(ctx context.Context, path, text string, out any) error {
	body, err := json.Marshal(request{
		Documents: []document{{ID: documentID, Language: c.language, Text: text}},
	})
	if err != nil {
		return fmt.Errorf("error encoding request: %w", err)
	}

	url := c.endpoint + apiPath + path

	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(subscription, c.key)

		resp, err := c.client.Do(req)
		if ShouldRetry(resp, err) && resp != nil {
			// The last failed attempt is decoded after the executor returns
			drainToError(resp)
		}
		return resp, err
	})
	if err != nil {
		if exceeded := retrypolicy.AsExceededError(err); exceeded != nil {
			if last, ok := exceeded.LastResult.(*http.Response); ok && last != nil {
				return fmt.Errorf("%s: retries exhausted: %w", path, readAPIError(last))
			}
			if exceeded.LastError != nil {
				err = exceeded.LastError
			}
		}
		return fmt.Errorf("error calling text analytics %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return readAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding %s response: %w", path, err)
	}
	return nil
}

// drainToError buffers the body so it can be closed now and still decoded later
func drainToError(resp *http.Response) {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error errorBody `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

func firstError(errs []documentError) error {
	if len(errs) == 0 {
		return nil
	}
	return &DocumentError{Code: errs[0].Error.Code, Message: errs[0].Error.Message}
}
