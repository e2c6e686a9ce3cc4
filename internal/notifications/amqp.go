package notifications

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the slice of *amqp.Channel the publisher uses
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// AMQPPublisher writes lifecycle messages to a durable topic exchange.
// Routing keys take the form <prefix>.<type>, e.g. seats.booking_confirmed.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	prefix   string
}

func NewAMQPPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // autoDelete
		false,        // internal
		false,        // noWait
		nil,          // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}

	p := newAMQPPublisherWith(ch, cfg)
	p.conn = conn
	return p, nil
}

func newAMQPPublisherWith(ch amqpChannel, cfg AMQPConfig) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: cfg.Exchange, prefix: cfg.RoutingKey}
}

func (p *AMQPPublisher) routingKey(t LifecycleType) string {
	key := strings.ToLower(string(t))
	if p.prefix == "" {
		return key
	}
	return p.prefix + "." + key
}

func (p *AMQPPublisher) Publish(ctx context.Context, event *LifecycleEvent) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Type:         string(event.Type),
		Timestamp:    event.OccurredAt,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, p.routingKey(event.Type), false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
