package eventlog

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/common/correlation"
	"github.com/routeplane/routeplane/internal/routesrv/config"
)

// Handler processes one route change event. Returning an error leaves the
// offset uncommitted so the event is redelivered.
type Handler func(ctx context.Context, event RouteEvent) apperrors.Error

// Consumer runs one consumer group's poll loop. Offsets are committed only
// after the handler has applied its side effect, giving at-least-once
// delivery.
type Consumer struct {
	client  *kgo.Client
	group   string
	handler Handler
}

// NewConsumer joins the consumer group and subscribes to the event topic.
func NewConsumer(cfg *config.KafkaConfig, group string, handler Handler) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		log.Error().Err(err).Str("group", group).Msg("failed to create kafka consumer")
		return nil, err
	}
	return &Consumer{
		client:  client,
		group:   group,
		handler: handler,
	}, nil
}

// Group returns the consumer group name.
func (c *Consumer) Group() string {
	return c.group
}

// Run polls until ctx is canceled. Handler failures stop the current batch
// without committing, so the failed record and everything after it are
// redelivered. Malformed messages are committed and skipped; redelivering
// them can never succeed.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().Str("group", c.group).Msg("consumer started")
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || errors.Is(ctx.Err(), context.Canceled) {
			log.Info().Str("group", c.group).Msg("consumer stopped")
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			log.Warn().Err(err).Str("group", c.group).Str("topic", topic).Int32("partition", partition).Msg("fetch error")
		})

		var failed bool
		fetches.EachRecord(func(record *kgo.Record) {
			if failed {
				return
			}
			if err := c.process(ctx, record); err != nil {
				failed = true
				return
			}
			if err := c.client.CommitRecords(ctx, record); err != nil {
				log.Warn().Err(err).Str("group", c.group).Msg("offset commit failed")
				failed = true
			}
		})

		if failed {
			// back off before redelivery so a broken downstream adapter is
			// not hammered
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, record *kgo.Record) apperrors.Error {
	event, aerr := UnmarshalRouteEvent(record.Value)
	if aerr != nil {
		// committed by the caller so the poison message is not redelivered
		log.Warn().Err(aerr).Str("group", c.group).Int64("offset", record.Offset).Msg("skipping malformed event")
		return nil
	}

	ectx := ctx
	if event.CorrelationID != "" {
		ectx = correlation.WithID(ctx, event.CorrelationID)
		ectx = log.With().Str("correlation_id", event.CorrelationID).Logger().WithContext(ectx)
	}

	if err := c.handler(ectx, event); err != nil {
		log.Ctx(ectx).Warn().Err(err).
			Str("group", c.group).
			Str("event_id", event.EventID).
			Msg("event handler failed, offset not committed")
		return err
	}
	return nil
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
