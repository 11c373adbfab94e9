package start

import (
	"context"
	"encoding/json"

	"github.com/apex/log"
	"github.com/veedubyou/karaoke-worker/src/shared/run/entity"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/job_message"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/pipeline"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

const JobType string = "start_job"
const ErrorMessage string = "Failed to start the karaoke run"

//counterfeiter:generate . StartJobHandler
type StartJobHandler interface {
	HandleStartJob(ctx context.Context, message []byte) (job_message.RunIdentifier, error)
}

type JobParams struct {
	runentity.Request
}

func NewJobHandler(runStore runentity.Store) JobHandler {
	return JobHandler{
		runStore: runStore,
	}
}

type JobHandler struct {
	runStore runentity.Store
}

// HandleStartJob records a pending run for the request and returns its ID
func (s JobHandler) HandleStartJob(ctx context.Context, message []byte) (job_message.RunIdentifier, error) {
	params, err := unmarshalMessage(message)
	if err != nil {
		return job_message.RunIdentifier{}, cerr.Wrap(err).Error("Failed to read start job")
	}

	run := runentity.NewRun(params.Request)

	err = s.runStore.SetRun(ctx, run)
	if err != nil {
		return job_message.RunIdentifier{}, cerr.Field("run_id", run.ID()).
			Wrap(err).Error("Failed to save the new run")
	}

	log.WithFields(log.Fields{
		"run_id":    run.ID(),
		"input_url": params.InputURL,
	}).Info("Created run")

	return job_message.RunIdentifier{RunID: run.ID()}, nil
}

func unmarshalMessage(message []byte) (JobParams, error) {
	params := JobParams{}
	err := json.Unmarshal(message, &params)
	if err != nil {
		return JobParams{}, cerr.Wrap(err).Error("Failed to unmarshal message JSON")
	}

	errctx := cerr.Field("job_params", params)

	if params.InputURL == "" {
		return JobParams{}, errctx.Error("Missing input URL")
	}

	if params.Karaoke {
		switch pipeline.Mode(params.Mode) {
		case pipeline.Basic, pipeline.Professional:
		default:
			return JobParams{}, errctx.Error("Unknown karaoke mode")
		}
	}

	if params.TrimStart < 0 || (params.TrimEnd != nil && *params.TrimEnd < 0) {
		return JobParams{}, errctx.Error("Trim offsets can't be negative")
	}

	return params, nil
}
