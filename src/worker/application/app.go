package application

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/guregu/dynamo"
	"github.com/rabbitmq/amqp091-go"
	"github.com/veedubyou/karaoke-worker/src/shared/config"
	dynamolib "github.com/veedubyou/karaoke-worker/src/shared/lib/dynamo"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/rabbitmq"
	runentity "github.com/veedubyou/karaoke-worker/src/shared/run/entity"
	runstorage "github.com/veedubyou/karaoke-worker/src/shared/run/storage"
	filestore "github.com/veedubyou/karaoke-worker/src/worker/internal/application/cloud_storage/store"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/executor"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/job_router"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/process"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/start"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/transfer"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/artifact"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/isolator"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/pipeline"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/separator"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/transcoder"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/worker"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/storagepath"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/working_dir"
	"google.golang.org/api/option"
)

func must[T any](t T, err error) T {
	if err != nil {
		panic(err)
	}

	return t
}

type App struct {
	worker    worker.QueueWorker
	publisher *rabbitmq.QueuePublisher
}

type Config struct {
	RabbitMQURL        string
	RabbitMQQueueName  string
	DynamoConfig       config.Dynamo
	CloudStorageConfig config.CloudStorage

	DemucsBinPath         string
	AudioSeparatorBinPath string
	FFmpegBinPath         string
	FFprobeBinPath        string
	WorkingDirPath        string
	// TorchHome is where demucs keeps downloaded model weights
	TorchHome string
}

func NewApp(config Config) *App {
	consumerConn := must(amqp091.Dial(config.RabbitMQURL))
	publisher := must(rabbitmq.NewQueuePublisher(config.RabbitMQURL, config.RabbitMQQueueName))

	return &App{
		worker:    newWorker(config, consumerConn, publisher),
		publisher: publisher,
	}
}

func (a *App) Start(ctx context.Context) error {
	err := a.worker.Start(ctx)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to start worker")
	}

	return nil
}

func (a *App) Stop() {
	a.worker.Stop()
	a.publisher.Close()
}

func newWorker(config Config, consumerConn *amqp091.Connection, publisher rabbitmq.Publisher) worker.QueueWorker {
	runStore := runstorage.NewDB(newDynamoDB(config.DynamoConfig))

	queueWorker := must(worker.NewQueueWorkerFromConnection(
		consumerConn,
		config.RabbitMQQueueName,
		newJobRouter(config, runStore, publisher)))

	return queueWorker
}

func newDynamoDB(dynamoConfig config.Dynamo) dynamolib.DynamoDBWrapper {
	dbSession := session.Must(session.NewSession())

	var dbConfig *aws.Config

	switch t := dynamoConfig.(type) {
	case config.ProdDynamo:
		dbConfig = aws.NewConfig().
			WithCredentials(credentials.NewStaticCredentials(
				t.AccessKeyID,
				t.SecretAccessKey,
				"",
			)).
			WithRegion(t.Region)

	case config.LocalDynamo:
		dbConfig = aws.NewConfig().
			WithCredentials(credentials.NewStaticCredentials(
				t.AccessKeyID,
				t.SecretAccessKey,
				"",
			)).
			WithRegion(t.Region).
			WithEndpoint(t.Host)

	default:
		panic("Unexpected dynamo config type")
	}

	return dynamolib.NewDynamoDBWrapper(dynamo.New(dbSession, dbConfig))
}

func newGoogleFileStore(cloudStorageConfig config.CloudStorage) filestore.GoogleFileStore {
	switch t := cloudStorageConfig.(type) {
	case config.ProdCloudStorage:
		return must(filestore.NewGoogleFileStore(
			t.StorageHost,
			option.WithCredentialsJSON([]byte(t.SecretKey)),
		))

	case config.LocalCloudStorage:
		return must(filestore.NewGoogleFileStore(
			t.StorageHost,
			option.WithEndpoint(t.HostEndpoint),
			option.WithoutAuthentication(),
		))

	default:
		panic("Unrecognized cloud storage config")
	}
}

func newJobRouter(config Config, runStore runentity.Store, publisher rabbitmq.Publisher) job_router.JobRouter {
	return job_router.NewJobRouter(
		runStore,
		publisher,
		start.NewJobHandler(runStore),
		newProcessJobHandler(config, runStore))
}

func newProcessJobHandler(config Config, runStore runentity.Store) process.JobHandler {
	workingDir := must(working_dir.NewWorkingDir(config.WorkingDirPath))

	if err := os.MkdirAll(separator.CheckpointsDir(config.TorchHome), os.ModePerm); err != nil {
		panic(err)
	}

	binaryExecutor := executor.BinaryFileExecutor{}
	controller := pipeline.NewController(
		separator.NewDemucsSeparator(config.DemucsBinPath, config.TorchHome, binaryExecutor),
		isolator.NewAudioSeparatorIsolator(config.AudioSeparatorBinPath, binaryExecutor),
		transcoder.NewFFmpegTranscoder(config.FFmpegBinPath, binaryExecutor),
		transcoder.NewFFProbe(config.FFprobeBinPath, binaryExecutor),
		artifact.FileStore{},
		workingDir,
	)

	pathGenerator := storagepath.Generator{
		Host:   config.CloudStorageConfig.GetStorageHost(),
		Bucket: config.CloudStorageConfig.GetBucket(),
	}

	transferrer := transfer.NewTransferrer(
		newGoogleFileStore(config.CloudStorageConfig),
		artifact.FileStore{},
		pathGenerator,
		workingDir,
	)

	return process.NewJobHandler(runStore, transferrer, controller)
}

// DefaultTorchHome matches where torch looks when TORCH_HOME isn't set
func DefaultTorchHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".cache", "torch")
}
