package process

import (
	"context"
	"encoding/json"

	"github.com/apex/log"
	"github.com/veedubyou/karaoke-worker/src/shared/run/entity"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/job_message"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/transfer"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/pipeline"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

const JobType string = "process_track"
const ErrorMessage string = "Failed to produce the requested track"

//counterfeiter:generate . ProcessJobHandler
type ProcessJobHandler interface {
	HandleProcessJob(ctx context.Context, message []byte) (JobParams, string, error)
}

type JobParams struct {
	job_message.RunIdentifier
}

func NewJobHandler(runStore runentity.Store, transferrer transfer.Transferrer, controller pipeline.Controller) JobHandler {
	return JobHandler{
		runStore:    runStore,
		transferrer: transferrer,
		controller:  controller,
	}
}

type JobHandler struct {
	runStore    runentity.Store
	transferrer transfer.Transferrer
	controller  pipeline.Controller
}

// HandleProcessJob drives a pending run to completion and returns the URL
// of the published track. A failure leaves the run running, aborting it is
// up to the caller.
func (p JobHandler) HandleProcessJob(ctx context.Context, message []byte) (JobParams, string, error) {
	params, err := unmarshalMessage(message)
	if err != nil {
		return JobParams{}, "", cerr.Wrap(err).Error("Failed to read process job")
	}

	errctx := cerr.Field("run_id", params.RunID)

	var request runentity.Request
	err = p.runStore.UpdateRun(ctx, params.RunID, func(run runentity.Run) (runentity.Run, error) {
		if err := run.Start(); err != nil {
			return runentity.Run{}, err
		}

		request = run.Defined.Request
		return run, nil
	})
	if err != nil {
		return JobParams{}, "", errctx.Wrap(err).Error("Failed to start the run")
	}

	inputPath, err := p.transferrer.FetchInput(ctx, request.InputURL)
	if err != nil {
		return JobParams{}, "", errctx.Wrap(err).Error("Failed to fetch the input")
	}

	controller := p.controller.WithObserver(newRecorder(p.runStore, params.RunID))
	output, err := controller.Process(ctx, pipeline.Request{
		InputPath: inputPath,
		Karaoke:   request.Karaoke,
		Mode:      pipeline.Mode(request.Mode),
		Semitones: request.Semitones,
		TrimStart: request.TrimStart,
		TrimEnd:   request.TrimEnd,
	})
	if err != nil {
		return JobParams{}, "", errctx.Wrap(err).Error("Pipeline failed")
	}

	outputURL, err := p.transferrer.Publish(ctx, params.RunID, output)
	if err != nil {
		return JobParams{}, "", errctx.Wrap(err).Error("Failed to publish the output")
	}

	err = p.runStore.UpdateRun(ctx, params.RunID, func(run runentity.Run) (runentity.Run, error) {
		if err := run.Finish(outputURL); err != nil {
			return runentity.Run{}, err
		}

		return run, nil
	})
	if err != nil {
		return JobParams{}, "", errctx.Wrap(err).Error("Failed to finish the run")
	}

	log.WithFields(log.Fields{
		"run_id":     params.RunID,
		"output_url": outputURL,
	}).Info("Run is done")

	return params, outputURL, nil
}

func unmarshalMessage(message []byte) (JobParams, error) {
	params := JobParams{}
	err := json.Unmarshal(message, &params)
	if err != nil {
		return JobParams{}, cerr.Wrap(err).Error("Failed to unmarshal message JSON")
	}

	if params.RunID == "" {
		return JobParams{}, cerr.Field("job_params", params).Error("Missing run ID")
	}

	return params, nil
}
