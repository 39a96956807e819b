// Package events publishes milestone lifecycle events to a RabbitMQ
// topic exchange. Delivery to end users (websockets, notification
// fan-out) is owned by downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ExchangeName is the topic exchange all lifecycle events go through.
const ExchangeName = "teamtrack.events"

// Routing keys for milestone lifecycle events.
const (
	MilestoneCreated  = "milestone.created"
	MilestoneApproved = "milestone.approved"
	MilestoneRejected = "milestone.rejected"
	MilestoneDeleted  = "milestone.deleted"
)

// MilestoneEvent is the payload published for every lifecycle event.
type MilestoneEvent struct {
	MilestoneID uuid.UUID `json:"milestone_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	Status      string    `json:"status"`
	ActorID     uuid.UUID `json:"actor_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher emits milestone lifecycle events. A failed publish is logged
// and dropped; eventing is best-effort and never blocks a transition.
type Publisher interface {
	PublishMilestone(ctx context.Context, routingKey string, event MilestoneEvent)
	Close()
}

// amqpPublisher implements Publisher over a RabbitMQ channel.
type amqpPublisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *zap.Logger
}

// NewPublisher connects to RabbitMQ and declares the topic exchange.
func NewPublisher(url string, logger *zap.Logger) (Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &amqpPublisher{conn: conn, channel: ch, logger: logger}, nil
}

// PublishMilestone publishes one lifecycle event.
func (p *amqpPublisher) PublishMilestone(ctx context.Context, routingKey string, event MilestoneEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal milestone event", zap.Error(err))
		return
	}

	err = p.channel.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   event.OccurredAt,
			Body:        body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish milestone event",
			zap.String("routing_key", routingKey),
			zap.String("milestone_id", event.MilestoneID.String()),
			zap.Error(err))
	}
}

// Close shuts down the channel and connection.
func (p *amqpPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// noopPublisher drops all events. Used when AMQP is not configured.
type noopPublisher struct{}

// NewNoopPublisher returns a publisher that discards events.
func NewNoopPublisher() Publisher {
	return &noopPublisher{}
}

func (n *noopPublisher) PublishMilestone(ctx context.Context, routingKey string, event MilestoneEvent) {
}

func (n *noopPublisher) Close() {}

var (
	_ Publisher = (*amqpPublisher)(nil)
	_ Publisher = (*noopPublisher)(nil)
)
