// Package events mirrors dashboard broadcast events onto an AMQP topic
// exchange for external integrations. Publishing is fire-and-forget and adds
// no delivery guarantees beyond the relational store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mizajour/leadline/internal/live"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher mirrors live events to an external system.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event live.Event) error
	Close() error
}

// amqpChannel abstracts the amqp091 channel methods we use, enabling test
// fakes without a broker.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPPublisher publishes JSON-encoded live events to a topic exchange.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	ch       amqpChannel
	exchange string
	logger   zerolog.Logger
}

// Dial connects to the broker, declares the topic exchange, and returns a
// ready publisher.
func Dial(url, exchange string, logger zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial %s: %w", exchange, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		logger:   logger.With().Str("component", "events").Logger(),
	}, nil
}

// Publish sends one event. Messages are persistent JSON with a uuid message
// id; a broker failure is returned to the caller, who treats it as
// best-effort.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event live.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", routingKey, err)
	}
	p.logger.Debug().Str("key", routingKey).Str("exchange", p.exchange).Msg("published")
	return nil
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
