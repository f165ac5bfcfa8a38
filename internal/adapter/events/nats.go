// internal/adapter/events/nats.go

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"tweetpulse/internal/config"
	"tweetpulse/internal/domain/sentiment"
	"tweetpulse/internal/logging"
)

// RecordedSuffix is appended to the configured subject for result events
const RecordedSuffix = ".recorded"

// Connect opens a NATS connection with logging handlers
func Connect(cfg config.NATSConfig, logger logging.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("tweetpulse"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}

type publishConn interface {
	Publish(subject string, data []byte) error
}

type subscribeConn interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Publisher publishes result events to the event bus
type Publisher struct {
	conn    publishConn
	subject string
}

// NewPublisher creates a publisher on <subject>.recorded
func NewPublisher(conn publishConn, subject string) *Publisher {
	return &Publisher{
		conn:    conn,
		subject: subject + RecordedSuffix,
	}
}

// Publish sends the event as JSON
func (p *Publisher) Publish(ctx context.Context, event sentiment.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("error publishing to %s: %w", p.subject, err)
	}
	return nil
}

// Subscriber delivers raw result events from the event bus
type Subscriber struct {
	conn    subscribeConn
	subject string
	logger  logging.Logger
}

// NewSubscriber creates a subscriber on <subject>.recorded
func NewSubscriber(conn subscribeConn, subject string, logger logging.Logger) *Subscriber {
	return &Subscriber{
		conn:    conn,
		subject: subject + RecordedSuffix,
		logger:  logger,
	}
}

// Subscribe calls fn with the payload of every event until the returned function is called
func (s *Subscriber) Subscribe(fn func(data []byte)) (func(), error) {
	sub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.WithError(err).Debug("NATS unsubscribe failed")
		}
	}, nil
}
