package stage

// Stage names one step of a pipeline run. The values are persisted on run
// records, so don't rename them.
type Stage string

const (
	Trim       Stage = "trim"
	Separation Stage = "separation"
	Isolation  Stage = "isolation"
	Blend      Stage = "blend"
	Polish     Stage = "polish"
	Pitch      Stage = "pitch"
	Probe      Stage = "probe"
)

type State string

const (
	Cached    State = "cached"
	Running   State = "running"
	Failed    State = "failed"
	Succeeded State = "succeeded"
)

func (s State) IsSettled() bool {
	return s == Cached || s == Succeeded || s == Failed
}
