package testing

import (
	"encoding/json"
	"net"
	"net/url"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	"github.com/rabbitmq/amqp091-go"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/rabbitmq"
)

// SkipWithoutRabbitMQ skips the suite when no broker is listening
func SkipWithoutRabbitMQ() {
	host := ExpectSuccess(url.Parse(RabbitMQHost)).Host

	conn, err := net.DialTimeout("tcp", host, time.Second)
	if err != nil {
		Skip("RabbitMQ is not running at " + RabbitMQHost)
	}

	_ = conn.Close()
}

func MakeRabbitMQConnection() *amqp091.Connection {
	return ExpectSuccess(amqp091.Dial(RabbitMQHost))
}

func ResetRabbitMQ(conn *amqp091.Connection) {
	channel := ExpectSuccess(conn.Channel())
	defer channel.Close()
	ExpectSuccess(channel.QueuePurge(RabbitMQQueueName, false))
}

func AfterSuiteRabbitMQ(conn *amqp091.Connection) {
	channel := ExpectSuccess(conn.Channel())
	defer channel.Close()
	ExpectSuccess(channel.QueueDelete(RabbitMQQueueName, false, false, false))
	_ = conn.Close()
}

func MakeRabbitMQPublisher() *rabbitmq.QueuePublisher {
	return ExpectSuccess(rabbitmq.NewQueuePublisher(RabbitMQHost, RabbitMQQueueName))
}

type ReceivedMessage struct {
	Type         string
	ContentType  string
	DeliveryMode uint8
	Message      map[string]any
}

type RabbitMQConsumer struct {
	channel          *amqp091.Channel
	lock             sync.Mutex
	queueName        string
	receivedMessages []ReceivedMessage
	err              error
}

func NewRabbitMQConsumer(conn *amqp091.Connection) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		channel:   ExpectSuccess(conn.Channel()),
		queueName: RabbitMQQueueName,
	}
}

func (r *RabbitMQConsumer) AsyncStart() {
	r.lock.Lock()
	if r.channel == nil {
		r.lock.Unlock()
		return
	}

	messageStream := ExpectSuccess(r.channel.Consume(
		r.queueName,
		"",
		true,
		false,
		false,
		false,
		nil,
	))
	r.lock.Unlock()

	go func() {
		for message := range messageStream {
			body := map[string]any{}
			err := json.Unmarshal(message.Body, &body)

			r.lock.Lock()
			if err != nil {
				r.err = err
			} else {
				r.receivedMessages = append(r.receivedMessages, ReceivedMessage{
					Type:         message.Type,
					ContentType:  message.ContentType,
					DeliveryMode: message.DeliveryMode,
					Message:      body,
				})
			}
			r.lock.Unlock()
		}
	}()
}

func (r *RabbitMQConsumer) Stop() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.channel != nil {
		_ = r.channel.Close()
		r.channel = nil
	}
}

func (r *RabbitMQConsumer) Unload() ([]ReceivedMessage, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.err != nil {
		return nil, r.err
	}

	receivedMessages := r.receivedMessages
	r.receivedMessages = nil
	return receivedMessages, nil
}
