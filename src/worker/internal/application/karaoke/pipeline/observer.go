package pipeline

import (
	"context"

	"github.com/apex/log"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/stage"
)

type Event struct {
	Stage    stage.Stage
	State    stage.State
	Artifact string
	Err      error
}

//counterfeiter:generate . Observer
type Observer interface {
	StageChanged(ctx context.Context, event Event)
}

type ObserverFunc func(ctx context.Context, event Event)

func (o ObserverFunc) StageChanged(ctx context.Context, event Event) {
	o(ctx, event)
}

var _ Observer = logObserver{}

type logObserver struct{}

func (logObserver) StageChanged(ctx context.Context, event Event) {
	logger := log.WithFields(log.Fields{
		"stage":    event.Stage,
		"state":    event.State,
		"artifact": event.Artifact,
	})

	if event.Err != nil {
		logger.WithError(event.Err).Warn("Stage failed")
		return
	}

	logger.Info("Stage changed")
}
