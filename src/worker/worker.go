package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/apex/log"
	"github.com/veedubyou/karaoke-worker/src/shared/config"
	"github.com/veedubyou/karaoke-worker/src/shared/config/dev"
	"github.com/veedubyou/karaoke-worker/src/shared/config/envvar"
	"github.com/veedubyou/karaoke-worker/src/shared/config/local"
	"github.com/veedubyou/karaoke-worker/src/shared/config/prod"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/env"
	"github.com/veedubyou/karaoke-worker/src/worker/application"
)

func main() {
	var appConfig application.Config

	switch env.Get() {
	case env.Production:
		ffmpegBinPath := envvar.MustGet(envvar.FFMPEG_BIN_PATH)
		appConfig = application.Config{
			DynamoConfig: config.ProdDynamo{
				AccessKeyID:     envvar.MustGet(envvar.AWS_ACCESS_KEY_ID),
				SecretAccessKey: envvar.MustGet(envvar.AWS_SECRET_ACCESS_KEY),
				Region:          prod.DynamoDBRegion,
			},
			CloudStorageConfig: config.ProdCloudStorage{
				StorageHost: prod.GOOGLE_STORAGE_HOST,
				SecretKey:   envvar.MustGet(envvar.GOOGLE_CLOUD_KEY),
				BucketName:  envvar.MustGet(envvar.GOOGLE_CLOUD_STORAGE_BUCKET_NAME),
			},
			RabbitMQURL:           envvar.MustGet(envvar.RABBITMQ_URL),
			RabbitMQQueueName:     envvar.MustGet(envvar.RABBITMQ_QUEUE_NAME),
			DemucsBinPath:         envvar.MustGet(envvar.DEMUCS_BIN_PATH),
			AudioSeparatorBinPath: envvar.MustGet(envvar.AUDIO_SEPARATOR_BIN_PATH),
			FFmpegBinPath:         ffmpegBinPath,
			FFprobeBinPath:        envvar.GetOr(envvar.FFPROBE_BIN_PATH, config.SiblingBin(ffmpegBinPath, "ffprobe")),
			WorkingDirPath:        envvar.MustGet(envvar.KARAOKE_WORKING_DIR_PATH),
			TorchHome:             envvar.GetOr(envvar.MODEL_CACHE_DIR, application.DefaultTorchHome()),
		}

	case env.Development:
		appConfig = application.Config{
			DynamoConfig: dev.DynamoConfig,
			CloudStorageConfig: config.LocalCloudStorage{
				StorageHost:  dev.FakeStorageHost,
				HostEndpoint: dev.FakeStorageEndpoint,
				BucketName:   dev.FakeStorageBucket,
			},
			RabbitMQURL:           dev.RabbitMQHost,
			RabbitMQQueueName:     dev.RabbitMQQueueName,
			DemucsBinPath:         config.DemucsPath(),
			AudioSeparatorBinPath: config.AudioSeparatorPath(),
			FFmpegBinPath:         config.FFmpegPath(),
			FFprobeBinPath:        config.FFprobePath(),
			WorkingDirPath:        local.WorkingDir(),
			TorchHome: envvar.GetOr(envvar.MODEL_CACHE_DIR,
				filepath.Join(local.ProjectRoot(), "/src/worker/wd/torch")),
		}

	default:
		panic("Unexpected environment")
	}

	app := application.NewApp(appConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down worker")
		app.Stop()
	}()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}
}
