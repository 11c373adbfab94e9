package dummy

import (
	"context"
	"sync"

	"github.com/veedubyou/karaoke-worker/src/shared/run/entity"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
)

var _ runentity.Store = &RunStore{}

func NewDummyRunStore() *RunStore {
	return &RunStore{
		Unavailable: false,
		State:       make(map[string]runentity.Run),
	}
}

// RunStore hands out copies, so callers can't change what's stored without going through it
type RunStore struct {
	Unavailable bool
	State       map[string]runentity.Run
	mutex       sync.RWMutex
}

func (r *RunStore) GetRun(ctx context.Context, runID string) (runentity.Run, error) {
	if r.Unavailable {
		return runentity.Run{}, NetworkFailure
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	run, ok := r.State[runID]
	if !ok {
		return runentity.Run{}, NotFound
	}

	return copyRun(run)
}

func (r *RunStore) SetRun(ctx context.Context, run runentity.Run) error {
	if r.Unavailable {
		return NetworkFailure
	}

	stored, err := copyRun(run)
	if err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.State[run.ID()] = stored
	return nil
}

func (r *RunStore) UpdateRun(ctx context.Context, runID string, updater runentity.RunUpdater) error {
	if r.Unavailable {
		return NetworkFailure
	}

	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to get run from DB")
	}

	updatedRun, err := updater(run)
	if err != nil {
		return cerr.Wrap(err).Error("Run update function failed")
	}

	return r.SetRun(ctx, updatedRun)
}

// Runs is every stored run, in no particular order
func (r *RunStore) Runs() []runentity.Run {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	runs := make([]runentity.Run, 0, len(r.State))
	for _, run := range r.State {
		copied, err := copyRun(run)
		if err == nil {
			runs = append(runs, copied)
		}
	}

	return runs
}

func copyRun(run runentity.Run) (runentity.Run, error) {
	fields, err := run.ToMap()
	if err != nil {
		return runentity.Run{}, cerr.Wrap(err).Error("Failed to copy run")
	}

	copied := runentity.Run{}
	if err = copied.FromMap(fields); err != nil {
		return runentity.Run{}, cerr.Wrap(err).Error("Failed to copy run")
	}

	return copied, nil
}
