package job_router

import (
	"context"
	"encoding/json"

	"github.com/apex/log"
	"github.com/rabbitmq/amqp091-go"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/rabbitmq"
	"github.com/veedubyou/karaoke-worker/src/shared/run/entity"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/job_message"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/process"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/start"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
)

func NewJobRouter(
	runStore runentity.Store,
	publisher rabbitmq.Publisher,
	startHandler start.StartJobHandler,
	processHandler process.ProcessJobHandler,
) JobRouter {
	return JobRouter{
		runStore:       runStore,
		publisher:      publisher,
		startHandler:   startHandler,
		processHandler: processHandler,
	}
}

type JobRouter struct {
	runStore       runentity.Store
	publisher      rabbitmq.Publisher
	startHandler   start.StartJobHandler
	processHandler process.ProcessJobHandler
}

func (j JobRouter) HandleMessage(ctx context.Context, message amqp091.Delivery) error {
	switch message.Type {
	case start.JobType:
		return j.handleStartJob(ctx, message)

	case process.JobType:
		return j.handleProcessJob(ctx, message)

	default:
		return cerr.Field("message_type", message.Type).Error("Unrecognized message type")
	}
}

func (j JobRouter) handleStartJob(ctx context.Context, message amqp091.Delivery) error {
	runIdentifier, err := j.startHandler.HandleStartJob(ctx, message.Body)
	if err != nil {
		return cerr.Wrap(err).Error(start.ErrorMessage)
	}

	err = j.publishJob(ctx, process.JobType, process.JobParams{RunIdentifier: runIdentifier})
	if err != nil {
		err = cerr.Field("run_id", runIdentifier.RunID).Wrap(err).Error("Failed to queue the run for processing")
		j.abortRun(ctx, runIdentifier, err)
		return err
	}

	return nil
}

func (j JobRouter) handleProcessJob(ctx context.Context, message amqp091.Delivery) error {
	params, outputURL, err := j.processHandler.HandleProcessJob(ctx, message.Body)
	if err != nil {
		err = cerr.Wrap(err).Error(process.ErrorMessage)
		j.abortRun(ctx, runIdentifierOf(message.Body), err)
		return err
	}

	log.WithFields(log.Fields{
		"run_id":     params.RunID,
		"output_url": outputURL,
	}).Info("Processed run")

	return nil
}

func (j JobRouter) publishJob(ctx context.Context, jobType string, params any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return cerr.Field("job_type", jobType).Wrap(err).Error("Failed to marshal job params")
	}

	err = j.publisher.Publish(ctx, amqp091.Publishing{
		Type: jobType,
		Body: body,
	})
	if err != nil {
		return cerr.Field("job_type", jobType).Wrap(err).Error("Failed to publish job")
	}

	return nil
}

// abortRun is best effort, a run that can't be aborted stays running and the
// original error is what gets reported
func (j JobRouter) abortRun(ctx context.Context, runIdentifier job_message.RunIdentifier, cause error) {
	if runIdentifier.RunID == "" {
		return
	}

	logger := log.WithField("run_id", runIdentifier.RunID)

	err := j.runStore.UpdateRun(ctx, runIdentifier.RunID, func(run runentity.Run) (runentity.Run, error) {
		if err := run.Abort(cause.Error()); err != nil {
			return runentity.Run{}, err
		}

		return run, nil
	})

	if err != nil {
		logger.WithError(err).Error("Failed to abort run")
		return
	}

	logger.Info("Aborted run")
}

func runIdentifierOf(body []byte) job_message.RunIdentifier {
	runIdentifier := job_message.RunIdentifier{}
	_ = json.Unmarshal(body, &runIdentifier)
	return runIdentifier
}
