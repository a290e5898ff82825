package events

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	xerrors "ChainPilot/internal/errors"
)

// RabbitMQConfig describes the broker connection for the event publisher.
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// RabbitMQPublisher sends events to a RabbitMQ queue as JSON messages.
type RabbitMQPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewRabbitMQPublisher connects to the broker and declares the queue.
func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	if cfg.URL == "" {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "rabbitmq url must not be empty")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "chainpilot.events"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "connect rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "open rabbitmq channel")
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, cfg.AutoDelete, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "declare rabbitmq queue")
	}
	return &RabbitMQPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish implements Publisher.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeUnknown, err, "encode event")
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}); err != nil {
		return xerrors.Wrap(xerrors.CodeUnknown, err, "publish event")
	}
	return nil
}

// Close closes the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
