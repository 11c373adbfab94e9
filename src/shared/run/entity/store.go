package runentity

import "context"

type RunUpdater func(run Run) (Run, error)

type Store interface {
	GetRun(ctx context.Context, runID string) (Run, error)
	SetRun(ctx context.Context, run Run) error
	UpdateRun(ctx context.Context, runID string, updater RunUpdater) error
}
