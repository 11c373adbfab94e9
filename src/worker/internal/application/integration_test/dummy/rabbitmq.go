package dummy

import (
	"context"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/rabbitmq"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/worker"
)

var _ worker.MessageChannel = &RabbitMQ{}
var _ rabbitmq.Publisher = &RabbitMQ{}
var _ amqp091.Acknowledger = &RabbitMQ{}

func NewRabbitMQ() *RabbitMQ {
	return &RabbitMQ{
		deliveries: make(chan amqp091.Delivery, 100),
	}
}

// RabbitMQ is an in process queue, whatever is published comes back out of
// Consume with the dummy as its acknowledger
type RabbitMQ struct {
	Unavailable bool

	mutex       sync.Mutex
	deliveries  chan amqp091.Delivery
	closed      bool
	nextTag     uint64
	published   []amqp091.Publishing
	ackCounter  int
	nackCounter int
}

func (r *RabbitMQ) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error) {
	return r.deliveries, nil
}

func (r *RabbitMQ) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.closed {
		r.closed = true
		close(r.deliveries)
	}

	return nil
}

func (r *RabbitMQ) Publish(ctx context.Context, msg amqp091.Publishing) error {
	if r.Unavailable {
		return NetworkFailure
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return amqp091.ErrClosed
	}

	r.nextTag++
	r.published = append(r.published, msg)
	r.deliveries <- amqp091.Delivery{
		Acknowledger: r,
		ContentType:  msg.ContentType,
		DeliveryMode: msg.DeliveryMode,
		DeliveryTag:  r.nextTag,
		Type:         msg.Type,
		Body:         msg.Body,
	}

	return nil
}

func (r *RabbitMQ) Ack(tag uint64, multiple bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.ackCounter++
	return nil
}

func (r *RabbitMQ) Nack(tag uint64, multiple bool, requeue bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.nackCounter++
	return nil
}

func (r *RabbitMQ) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

func (r *RabbitMQ) AckCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.ackCounter
}

func (r *RabbitMQ) NackCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.nackCounter
}

// Published is every message that went through Publish, oldest first
func (r *RabbitMQ) Published() []amqp091.Publishing {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]amqp091.Publishing(nil), r.published...)
}
