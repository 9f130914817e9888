package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"vetcare/apperrors"
	"vetcare/profile"
)

// Routing keys that trigger a recompute.
const (
	RKRatingSubmitted = "rating.submitted"
	RKRatingDeleted   = "rating.deleted"
)

// RoutingKeys lists every key the consumer binds.
var RoutingKeys = []string{RKRatingSubmitted, RKRatingDeleted}

// Event is the envelope published when a rating changes.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData identifies the professional whose rating changed.
type EventData struct {
	ProfessionalID json.Number `json:"professional_id"`
}

// Recomputer is satisfied by *Aggregator.
type Recomputer interface {
	Recompute(ctx context.Context, professionalID int64) (*float64, error)
}

// DeliverySource is satisfied by *mq.Consumer.
type DeliverySource interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

// Consumer turns rating events into recomputes.
type Consumer struct {
	agg    Recomputer
	logger *zap.Logger
}

// NewConsumer creates a rating event consumer.
func NewConsumer(agg Recomputer, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{agg: agg, logger: logger.Named("rating.consumer")}
}

// Run handles deliveries until ctx is cancelled or the source closes.
func (c *Consumer) Run(ctx context.Context, src DeliverySource) error {
	msgs, err := src.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("rating: consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle processes one delivery and settles it. Malformed events are dropped,
// events for unknown professionals are acknowledged, and every other failure
// is requeued.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	log := c.logger.With(zap.String("routing_key", d.RoutingKey), zap.Uint64("delivery_tag", d.DeliveryTag))

	id, err := decode(d)
	if err != nil {
		log.Warn("dropping malformed rating event", zap.Error(err))
		settle(log, d.Nack(false, false))
		return
	}

	_, err = c.agg.Recompute(ctx, id)
	switch {
	case err == nil:
		settle(log, d.Ack(false))
	case errors.Is(err, apperrors.ErrNotFound):
		log.Warn("rating event for unknown professional", zap.Int64("professional_id", id))
		settle(log, d.Ack(false))
	default:
		log.Error("recompute failed, requeueing", zap.Int64("professional_id", id), zap.Error(err))
		settle(log, d.Nack(false, true))
	}
}

func decode(d amqp.Delivery) (int64, error) {
	if d.RoutingKey != RKRatingSubmitted && d.RoutingKey != RKRatingDeleted {
		return 0, fmt.Errorf("unexpected routing key %q", d.RoutingKey)
	}
	var ev Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		return 0, err
	}
	return profile.ParseID(ev.Data.ProfessionalID.String())
}

func settle(log *zap.Logger, err error) {
	if err != nil {
		log.Error("settle delivery", zap.Error(err))
	}
}
