package dev

import "github.com/veedubyou/karaoke-worker/src/shared/config"

// DynamoDB
const (
	DynamoAccessKeyID     = "local"
	DynamoSecretAccessKey = "local"
	DynamoDBHost          = "http://localhost:8000"
	DynamoDBRegion        = "localhost"
)

var DynamoConfig = config.LocalDynamo{
	AccessKeyID:     DynamoAccessKeyID,
	SecretAccessKey: DynamoSecretAccessKey,
	Region:          DynamoDBRegion,
	Host:            DynamoDBHost,
}

// RabbitMQ
const (
	RabbitMQHost      = "amqp://localhost:5672"
	RabbitMQQueueName = "karaoke-runs-dev"
)

// Cloud storage
const (
	FakeStorageHost     = "http://localhost:4443/storage/v1/b"
	FakeStorageEndpoint = "http://localhost:4443/storage/v1/"
	FakeStorageBucket   = "karaoke-runs-dev"
)
