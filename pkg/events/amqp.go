package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes events as JSON to a topic exchange, routed by
// event type.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string

	lock sync.Mutex
	ch   *amqp.Channel
}

type NewAMQPPublisherOptions struct {
	URL      string
	Exchange string
}

func NewAMQPPublisher(opts NewAMQPPublisherOptions) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp broker: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %v", err)
	}

	if err := ch.ExchangeDeclare(
		opts.Exchange, // name
		"topic",       // kind
		true,          // durable
		false,         // auto-delete
		false,         // internal
		false,         // no-wait
		nil,           // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %v", opts.Exchange, err)
	}

	return &AMQPPublisher{
		conn:     conn,
		exchange: opts.Exchange,
		ch:       ch,
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// channels are not safe for concurrent publishing
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.ch.Publish(
		p.exchange, // exchange
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		msg,
	); err != nil {
		return fmt.Errorf("failed to publish %s: %v", event.Type, err)
	}
	return nil
}

func newPublishing(event Event) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal %s event: %v", event.Type, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Time,
		Type:         event.Type,
		MessageId:    event.SessionID,
		Body:         body,
	}, nil
}

func (p *AMQPPublisher) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to close channel: %v", err)
	}
	return p.conn.Close()
}
