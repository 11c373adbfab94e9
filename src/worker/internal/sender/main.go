package main

import (
	"context"
	"encoding/json"

	"github.com/apex/log"
	"github.com/rabbitmq/amqp091-go"
	"github.com/veedubyou/karaoke-worker/src/shared/config/dev"
	"github.com/veedubyou/karaoke-worker/src/shared/config/envvar"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/rabbitmq"
	runentity "github.com/veedubyou/karaoke-worker/src/shared/run/entity"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/start"
)

// sends one start job to the development queue
func main() {
	rabbitURL := envvar.GetOr(envvar.RABBITMQ_URL, dev.RabbitMQHost)

	publisher, err := rabbitmq.NewQueuePublisher(rabbitURL, dev.RabbitMQQueueName)
	if err != nil {
		panic(err)
	}
	defer publisher.Close()

	startJobParams := start.JobParams{
		Request: runentity.Request{
			InputURL:  dev.FakeStorageHost + "/" + dev.FakeStorageBucket + "/uploads/sample.mp3",
			Karaoke:   true,
			Mode:      "professional",
			Semitones: -2,
		},
	}

	jobBody, err := json.Marshal(startJobParams)
	if err != nil {
		panic(err)
	}

	err = publisher.Publish(context.Background(), amqp091.Publishing{Type: start.JobType, Body: jobBody})
	if err != nil {
		panic(err)
	}

	log.WithField("input_url", startJobParams.InputURL).Info("Sent start job")
}
