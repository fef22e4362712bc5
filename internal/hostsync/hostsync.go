// Package hostsync hands the working collection to the embedding host
// application ("Save to project") through a Kafka topic.
package hostsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/plot-editor/internal/core/observability"
)

var ErrHostUnavailable = errors.New("host integration unavailable")

// ModelUpdate is the message the host consumes.
type ModelUpdate struct {
	GeoJSON *geojson.FeatureCollection `json:"geoJson"`
	Name    string                     `json:"name,omitempty"`
	Mode    string                     `json:"mode,omitempty"`
	SavedAt time.Time                  `json:"saved_at"`
}

type Publisher struct {
	topic  string
	prod   sarama.SyncProducer
	logger *slog.Logger
}

// NewPublisher connects a synchronous producer to brokers.
func NewPublisher(brokers []string, topic string, timeout time.Duration, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("hostsync: no brokers: %w", ErrHostUnavailable)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Timeout = timeout
	cfg.Producer.MaxMessageBytes = 8 << 20
	cfg.Net.DialTimeout = timeout

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("hostsync: create sync producer: %w", err)
	}
	return NewWithProducer(prod, topic, logger), nil
}

func NewWithProducer(prod sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{topic: topic, prod: prod, logger: logger}
}

// SaveProject publishes the update and waits for the broker to acknowledge
// it. A nil Publisher reports ErrHostUnavailable.
func (p *Publisher) SaveProject(ctx context.Context, u ModelUpdate) error {
	if p == nil || p.prod == nil {
		observability.IncHostSync("unavailable")
		return ErrHostUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.SavedAt.IsZero() {
		u.SavedAt = time.Now().UTC()
	}
	b, err := json.Marshal(u)
	if err != nil {
		observability.IncHostSync("error")
		return fmt.Errorf("hostsync: marshal: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(b),
	}
	if u.Name != "" {
		msg.Key = sarama.StringEncoder(u.Name)
	}
	partition, offset, err := p.prod.SendMessage(msg)
	if err != nil {
		observability.IncHostSync("error")
		return fmt.Errorf("hostsync: send to %s: %w", p.topic, errors.Join(ErrHostUnavailable, err))
	}
	observability.IncHostSync("ok")
	p.logger.InfoContext(ctx, "project saved to host",
		"topic", p.topic,
		"partition", partition,
		"offset", offset,
		"bytes", len(b))
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.prod == nil {
		return nil
	}
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("hostsync: close producer: %w", err)
	}
	return nil
}
