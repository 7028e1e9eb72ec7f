package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

type EventType string

const (
	OrderConfirmed EventType = "order.confirmed"
	OrderCancelled EventType = "order.cancelled"
)

// OrderEvent announces the payment outcome of an order to downstream consumers
// such as the notification mailer.
type OrderEvent struct {
	ID                uuid.UUID `json:"id"`
	Type              EventType `json:"type"`
	OrderID           uint      `json:"orderId"`
	OrderNumber       string    `json:"orderNumber"`
	CheckoutRequestID string    `json:"checkoutRequestId"`
	Receipt           string    `json:"receipt,omitempty"`
	Amount            string    `json:"amount"`
	Reason            string    `json:"reason,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OrderEvent) error { return nil }

type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connection error: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel error: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("exchange declare error: %w", err)
	}

	log.Info().Str("exchange", exchange).Msg("connected to RabbitMQ")
	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event OrderEvent) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishers.
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Publish(p.exchange, string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("event publish error: %w", err)
	}
	log.Debug().Str("routing_key", string(event.Type)).Str("order_number", event.OrderNumber).Msg("event published")
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

func newPublishing(event OrderEvent) (amqp.Publishing, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("event serialization error: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Headers: amqp.Table{
			"order_id":       strconv.FormatUint(uint64(event.OrderID), 10),
			"order_number":   event.OrderNumber,
			"correlation_id": event.CheckoutRequestID,
			"event_type":     string(event.Type),
		},
	}, nil
}
