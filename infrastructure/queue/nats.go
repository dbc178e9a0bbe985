package queue

import (
	"encoding/json"
	"fmt"

	"notifyhub/internal/entity"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const DefaultSubjectPrefix = "jobs"

// JobSink receives decoded job events.
type JobSink interface {
	PublishUpdate(update entity.JobUpdate) error
	PublishStats(stats entity.JobStats)
}

// JobBridge subscribes to the scheduler's job subjects and relays every event
// to the sink:
//
//	<prefix>.update  entity.JobUpdate
//	<prefix>.stats   entity.JobStats
type JobBridge struct {
	conn   *nats.Conn
	prefix string
	sink   JobSink
	subs   []*nats.Subscription
	logger zerolog.Logger
}

func NewJobBridge(natsURL, prefix string, sink JobSink, logger zerolog.Logger) (*JobBridge, error) {
	nc, err := nats.Connect(natsURL, nats.Name("notifyhub"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newJobBridge(nc, prefix, sink, logger), nil
}

func newJobBridge(nc *nats.Conn, prefix string, sink JobSink, logger zerolog.Logger) *JobBridge {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &JobBridge{
		conn:   nc,
		prefix: prefix,
		sink:   sink,
		logger: logger,
	}
}

func (b *JobBridge) UpdateSubject() string {
	return b.prefix + ".update"
}

func (b *JobBridge) StatsSubject() string {
	return b.prefix + ".stats"
}

func (b *JobBridge) Subscribe() error {
	handlers := map[string]func([]byte) error{
		b.UpdateSubject(): b.handleUpdate,
		b.StatsSubject():  b.handleStats,
	}
	for subject, handle := range handlers {
		handle := handle
		sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
			if err := handle(msg.Data); err != nil {
				b.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Dropped job event")
			}
		})
		if err != nil {
			return fmt.Errorf("nats subscribe %q: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
		b.logger.Info().Str("subject", subject).Msg("NATS job bridge subscribed")
	}
	return nil
}

func (b *JobBridge) handleUpdate(data []byte) error {
	var update entity.JobUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return fmt.Errorf("decode job update: %w", err)
	}
	return b.sink.PublishUpdate(update)
}

func (b *JobBridge) handleStats(data []byte) error {
	var stats entity.JobStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return fmt.Errorf("decode job stats: %w", err)
	}
	b.sink.PublishStats(stats)
	return nil
}

// Close drains the NATS connection.
func (b *JobBridge) Close() {
	if b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.logger.Warn().Err(err).Msg("NATS drain error")
	}
}
