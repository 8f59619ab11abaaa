package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Publisher pushes domain events to the broker.
type Publisher interface {
	Publish(ctx context.Context, key string, event Event) error
	Close() error
}

type amqpPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

// NewAMQPPublisher connects to RabbitMQ and declares the topic exchange.
func NewAMQPPublisher(url, exchange string, log *slog.Logger) (Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &amqpPublisher{
		conn:     conn,
		exchange: exchange,
		log:      log.With(slog.String("service", "amqp_publisher")),
	}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, key string, event Event) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, p.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err == nil {
		p.log.Debug("event published",
			slog.String("key", key),
			slog.String("exchange", p.exchange))
	}
	return err
}

func (p *amqpPublisher) Close() error {
	return p.conn.Close()
}
