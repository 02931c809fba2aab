package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ehr/labspec/internal/domain/resolution"
)

// EventHandler processes one decoded event.
type EventHandler interface {
	Dispatch(ctx context.Context, ev Event) ([]resolution.Outcome, error)
}

// ScopeFunc runs fn with ctx scoped to a tenant.
type ScopeFunc func(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error

// recordSource is the subset of *kgo.Client the consumer uses.
type recordSource interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Close()
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// Consumer reads lifecycle events from Kafka. Offsets are committed after a
// batch was handled; an event that fails is logged and not retried, since the
// next lifecycle event of the same order triggers resolution again.
type Consumer struct {
	src           recordSource
	handler       EventHandler
	scope         ScopeFunc
	defaultTenant string
	logger        zerolog.Logger
}

type ConsumerOption func(*Consumer)

// WithTenantScope runs every event inside scope, using the event tenant or
// defaultTenant.
func WithTenantScope(scope ScopeFunc, defaultTenant string) ConsumerOption {
	return func(c *Consumer) {
		c.scope = scope
		c.defaultTenant = defaultTenant
	}
}

func NewConsumer(cfg ConsumerConfig, handler EventHandler, logger zerolog.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka brokers and topic are required")
	}
	group := cfg.Group
	if group == "" {
		group = "labspec"
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return newConsumer(cl, handler, logger, opts...), nil
}

func newConsumer(src recordSource, handler EventHandler, logger zerolog.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{src: src, handler: handler, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.src.Close()
	for {
		fetches := c.src.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error().Err(err).
				Str("topic", topic).
				Int32("partition", partition).
				Msg("kafka fetch failed")
		})

		var records []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			c.handle(ctx, r)
			records = append(records, r)
		})
		if len(records) == 0 {
			continue
		}
		if err := c.src.CommitRecords(ctx, records...); err != nil {
			c.logger.Error().Err(err).Int("records", len(records)).Msg("commit offsets failed")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, r *kgo.Record) {
	ev, err := DecodeEvent(r.Value)
	if err != nil {
		c.logger.Warn().Err(err).
			Int64("offset", r.Offset).
			Int32("partition", r.Partition).
			Msg("dropping undecodable lifecycle event")
		return
	}

	var outcomes []resolution.Outcome
	dispatch := func(ctx context.Context) error {
		var err error
		outcomes, err = c.handler.Dispatch(ctx, ev)
		return err
	}
	if c.scope != nil {
		tenant := ev.TenantID
		if tenant == "" {
			tenant = c.defaultTenant
		}
		err = c.scope(ctx, tenant, dispatch)
	} else {
		err = dispatch(ctx)
	}
	if err != nil {
		c.logger.Error().Err(err).
			Str("event", ev.ID).
			Str("type", string(ev.Type)).
			Str("order", ev.OrderUID).
			Msg("lifecycle event failed")
		return
	}

	bound := 0
	for _, o := range outcomes {
		if o.Bound() {
			bound++
		}
	}
	c.logger.Info().
		Str("event", ev.ID).
		Str("type", string(ev.Type)).
		Int("analyses", len(outcomes)).
		Int("bound", bound).
		Msg("lifecycle event handled")
}
