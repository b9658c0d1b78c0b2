package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/segmentio/kafka-go"
)

// SendFunc delivers a batch; an error leaves the whole batch unpublished.
type SendFunc func(ctx context.Context, records []Record) error

// Source is anything that can hand out pending outbox records.
type Source interface {
	Drain(ctx context.Context, limit int, send SendFunc) (int, error)
}

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	source    Source
	writer    Writer
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(source Source, writer Writer, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// NewKafkaWriter returns nil when no brokers are configured.
func NewKafkaWriter(brokers string) *kafka.Writer {
	list := kafkax.SplitBrokers(brokers)
	if len(list) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(list...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if p.writer == nil {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishOnce(ctx)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox published", "count", n)
			}
		}
	}
}

// PublishOnce drains one batch and returns how many events were delivered.
func (p *Publisher) PublishOnce(ctx context.Context) (int, error) {
	return p.source.Drain(ctx, p.batchSize, p.send)
}

func (p *Publisher) send(ctx context.Context, records []Record) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
		msg := kafka.Message{
			Topic:   r.EventType,
			Key:     []byte(r.AggregateID),
			Value:   r.Payload,
			Headers: kafkax.EventHeaders(r.Event.ID, r.EventType),
		}
		msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
		msgs = append(msgs, msg)
	}
	return p.writer.WriteMessages(ctx, msgs...)
}
