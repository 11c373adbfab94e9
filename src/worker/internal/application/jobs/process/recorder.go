package process

import (
	"context"

	"github.com/apex/log"
	"github.com/veedubyou/karaoke-worker/src/shared/run/entity"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/pipeline"
)

var _ pipeline.Observer = recorder{}

func newRecorder(runStore runentity.Store, runID string) recorder {
	return recorder{
		runStore: runStore,
		runID:    runID,
	}
}

// recorder keeps the run's stage list in step with the controller. Losing a
// stage record doesn't stop the run, the artifacts are what matter.
type recorder struct {
	runStore runentity.Store
	runID    string
}

func (r recorder) StageChanged(ctx context.Context, event pipeline.Event) {
	logger := log.WithFields(log.Fields{
		"run_id":   r.runID,
		"stage":    event.Stage,
		"state":    event.State,
		"artifact": event.Artifact,
	})

	errMsg := ""
	if event.Err != nil {
		errMsg = event.Err.Error()
		logger = logger.WithError(event.Err)
	}

	if event.State.IsSettled() {
		logger.Info("Stage settled")
	} else {
		logger.Debug("Stage changed")
	}

	err := r.runStore.UpdateRun(ctx, r.runID, func(run runentity.Run) (runentity.Run, error) {
		err := run.RecordStage(string(event.Stage), runentity.StageState(event.State), event.Artifact, errMsg)
		if err != nil {
			return runentity.Run{}, err
		}

		return run, nil
	})

	if err != nil {
		logger.WithError(err).Warn("Failed to record stage on the run")
	}
}
