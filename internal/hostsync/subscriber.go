package hostsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/plot-editor/internal/core/observability"
	mylog "github.com/mohammed-shakir/plot-editor/internal/logger"
	"github.com/mohammed-shakir/plot-editor/internal/store"
)

// Loader receives collections pushed by the host.
type Loader interface {
	Set(st store.State, origin store.Origin)
}

type SubscriberConfig struct {
	Brokers          []string
	Topic            string
	GroupID          string
	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
}

// Subscriber consumes ModelUpdate messages published by the host and loads
// each collection into the store.
type Subscriber struct {
	cfg    SubscriberConfig
	loader Loader
	logger *slog.Logger
	seen   *versionDedupe
}

func NewSubscriber(cfg SubscriberConfig, loader Loader, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 3 * time.Second
	}
	if cfg.RebalanceTimeout <= 0 {
		cfg.RebalanceTimeout = 30 * time.Second
	}
	return &Subscriber{cfg: cfg, loader: loader, logger: logger, seen: newVersionDedupe(0)}
}

// Start joins the consumer group and blocks until ctx is done.
func (s *Subscriber) Start(ctx context.Context) error {
	if s.loader == nil {
		return errors.New("hostsync: missing loader")
	}
	if len(s.cfg.Brokers) == 0 {
		return fmt.Errorf("hostsync: no brokers: %w", ErrHostUnavailable)
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = s.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = s.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = s.cfg.RebalanceTimeout
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(s.cfg.Brokers, s.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("hostsync: create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: s.ProcessOne}
	s.logger.Info("host model feed starting",
		"brokers", s.cfg.Brokers, "topic", s.cfg.Topic, "group", s.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("host model feed shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{s.cfg.Topic}, handler); err != nil {
				s.logger.Error("host model feed error", "err", err)
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne decodes one host message and replaces the collection. Messages
// without a collection, or not newer than the last one loaded under the same
// name, are skipped.
func (s *Subscriber) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var u ModelUpdate
	if err := json.Unmarshal(msg.Value, &u); err != nil {
		observability.IncHostSync("decode_error")
		s.logger.ErrorContext(ctx, "host model decode failed",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"err", err)
		// a malformed message is dropped so it cannot block the partition
		return nil
	}
	if u.GeoJSON == nil {
		observability.IncHostSync("skipped")
		return nil
	}
	if !u.SavedAt.IsZero() && !s.seen.shouldApply(u.Name, u.SavedAt.UnixNano()) {
		observability.IncHostSync("stale")
		s.logger.DebugContext(ctx, "stale host model skipped", "name", u.Name, "saved_at", u.SavedAt)
		return nil
	}

	st := store.State{Map: u.GeoJSON}
	if u.Name != "" {
		st.Meta = &store.Meta{Name: u.Name}
	}
	s.loader.Set(st, store.OriginLoad)
	observability.IncHostSync("received")
	s.logger.InfoContext(mylog.WithComponent(ctx, "hostsync"), "host model loaded",
		"name", u.Name,
		"features", len(u.GeoJSON.Features),
		"offset", msg.Offset)
	return nil
}

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

type groupHandler struct {
	process messageProcessor
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim context done: %w", ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				return fmt.Errorf("process failed (topic=%s, part=%d, off=%d): %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
