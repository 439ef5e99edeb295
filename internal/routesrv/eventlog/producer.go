package eventlog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/routesrv/config"
)

// Producer publishes route change events with acks from all in-sync replicas
// and idempotence enabled. Publish failures never propagate to the write
// path; the caller logs and counts them.
type Producer struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
}

// NewProducer creates the Kafka producer client.
func NewProducer(cfg *config.KafkaConfig) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordRetries(cfg.ProducerRetries),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create kafka producer")
		return nil, err
	}
	return &Producer{
		client:  client,
		topic:   cfg.Topic,
		timeout: time.Duration(cfg.PublishTimeout) * time.Second,
	}, nil
}

// Publish sends one event synchronously, keyed by the canonical route
// identifier so per-route ordering holds. The call is bounded by the publish
// timeout regardless of the caller's context.
func (p *Producer) Publish(ctx context.Context, event RouteEvent) apperrors.Error {
	data, aerr := event.Marshal()
	if aerr != nil {
		return aerr
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	record := &kgo.Record{
		Topic: p.topic,
		Key:   event.Key(),
		Value: data,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("event_id", event.EventID).
			Str("action", event.Action).
			Msg("failed to publish route event")
		return ErrEventLog.MsgErr("failed to publish event", err)
	}

	log.Ctx(ctx).Debug().
		Str("event_id", event.EventID).
		Str("action", event.Action).
		Str("key", string(event.Key())).
		Msg("route event published")
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
