package rabbitmq

import (
	"context"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/rabbitmq/amqp091-go"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

var _ Publisher = &QueuePublisher{}

//counterfeiter:generate . Publisher
type Publisher interface {
	Publish(ctx context.Context, msg amqp091.Publishing) error
}

func NewQueuePublisher(rabbitMQURL string, queueName string) (*QueuePublisher, error) {
	publisher := &QueuePublisher{
		rabbitMQURL: rabbitMQURL,
		queueName:   queueName,
	}

	err := publisher.connectChannel()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to connect to RabbitMQ")
	}

	return publisher, nil
}

// QueuePublisher sends persistent JSON messages to a single durable queue,
// reconnecting once if the channel was closed under it
type QueuePublisher struct {
	rabbitMQURL string
	conn        *amqp091.Connection
	channel     *amqp091.Channel
	queueName   string
}

func (q *QueuePublisher) connectChannel() error {
	q.Close()

	conn, err := amqp091.Dial(q.rabbitMQURL)
	if err != nil {
		return errors.Wrap(err, "Failed to dial rabbitMQURL")
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "Failed to create rabbit channel")
	}

	_, err = channel.QueueDeclare(
		q.queueName,
		true,
		false,
		false,
		false,
		nil,
	)

	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "Failed to declare the queue")
	}

	q.conn = conn
	q.channel = channel
	return nil
}

func (q *QueuePublisher) publishWithoutRetry(ctx context.Context, msg amqp091.Publishing) error {
	if q.channel == nil {
		return amqp091.ErrClosed
	}

	msg.ContentType = "application/json"
	msg.DeliveryMode = amqp091.Persistent

	return q.channel.PublishWithContext(
		ctx,
		"",
		q.queueName,
		true,
		false,
		msg,
	)
}

func (q *QueuePublisher) Publish(ctx context.Context, msg amqp091.Publishing) error {
	err := q.publishWithoutRetry(ctx, msg)

	if err != nil {
		publishErr := errors.Wrap(err, "Failed to publish message to rabbitMQ channel")
		shouldReset := errors.Is(err, amqp091.ErrClosed)
		if !shouldReset {
			return publishErr
		}

		err = q.connectChannel()
		if err != nil {
			log.WithError(err).
				WithField("queue_name", q.queueName).
				Error("Unable to reconnect to rabbitMQ channel")
			return publishErr
		}

		return q.publishWithoutRetry(ctx, msg)
	}

	return nil
}

func (q *QueuePublisher) Close() {
	if q.conn != nil {
		_ = q.conn.Close()
	}

	q.conn = nil
	q.channel = nil
}
