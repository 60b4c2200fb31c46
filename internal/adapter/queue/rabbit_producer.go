package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aq2208/storefront-api/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	createdRoutingKey = "order.created"
	paidRoutingKey    = "order.paid"
)

// RabbitProducer implements usecase.EventPublisher over a topic exchange.
// Downstream consumers (fulfillment, notifications) bind their own queues;
// this service only publishes.
type RabbitProducer struct {
	ch       *amqp.Channel
	exchange string
}

// NewRabbitProducer declares the exchange once at startup.
func NewRabbitProducer(ch *amqp.Channel, exchange string) (*RabbitProducer, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	// Publisher confirms so a broker outage surfaces as an error, not a
	// silently dropped event.
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitProducer{ch: ch, exchange: exchange}, nil
}

func (p *RabbitProducer) PublishCreated(ctx context.Context, msg usecase.OrderCreatedMsg) error {
	return p.publish(ctx, createdRoutingKey, msg)
}

func (p *RabbitProducer) PublishPaid(ctx context.Context, msg usecase.OrderPaidMsg) error {
	return p.publish(ctx, paidRoutingKey, msg)
}

func (p *RabbitProducer) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Body:         body,
	}

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	return nil
}

var _ usecase.EventPublisher = (*RabbitProducer)(nil)
