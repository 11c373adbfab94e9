package runentity

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/errors/mark"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/jsonlib"
)

var InvalidTransition = errors.New("invalid run transition")

type Status string

const (
	PendingStatus Status = "pending"
	RunningStatus Status = "running"
	DoneStatus    Status = "done"
	AbortedStatus Status = "aborted"
)

func (s Status) IsTerminal() bool {
	return s == DoneStatus || s == AbortedStatus
}

type StageState string

const (
	StageCached    StageState = "cached"
	StageRunning   StageState = "running"
	StageFailed    StageState = "failed"
	StageSucceeded StageState = "succeeded"
)

type StageRecord struct {
	Stage    string     `json:"stage"`
	State    StageState `json:"state"`
	Artifact string     `json:"artifact"`
	Error    string     `json:"error"`
	At       time.Time  `json:"at"`
}

type Request struct {
	InputURL  string   `json:"input_url"`
	Karaoke   bool     `json:"karaoke"`
	Mode      string   `json:"mode"`
	Semitones int      `json:"semitones"`
	TrimStart float64  `json:"trim_start"`
	TrimEnd   *float64 `json:"trim_end"`
}

type RunFields struct {
	ID string `json:"id"`
	Request
	Status       Status        `json:"status"`
	Stages       []StageRecord `json:"stages"`
	OutputURL    string        `json:"output_url"`
	ErrorMessage string        `json:"error_message"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Run is the durable record of one pipeline run. Attributes written by
// anyone else are kept in Extra and survive updates.
type Run struct {
	jsonlib.Flatten[RunFields]
}

func NewRun(request Request) Run {
	now := time.Now().UTC()

	run := Run{}
	run.Defined = RunFields{
		ID:        uuid.New().String(),
		Request:   request,
		Status:    PendingStatus,
		Stages:    []StageRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	run.Extra = map[string]any{}

	return run
}

func (r *Run) ID() string {
	return r.Defined.ID
}

func (r *Run) Start() error {
	if r.Defined.Status != PendingStatus {
		return r.invalidTransition(RunningStatus)
	}

	r.Defined.Status = RunningStatus
	r.touch()
	return nil
}

// RecordStage settles the stage's open record, or opens a new one
func (r *Run) RecordStage(stage string, state StageState, artifact string, errMsg string) error {
	if r.Defined.Status != RunningStatus {
		return mark.Message(InvalidTransition, "Stages can only be recorded on a running run")
	}

	record := StageRecord{
		Stage:    stage,
		State:    state,
		Artifact: artifact,
		Error:    errMsg,
		At:       time.Now().UTC(),
	}

	last := len(r.Defined.Stages) - 1
	if last >= 0 && r.Defined.Stages[last].Stage == stage && r.Defined.Stages[last].State == StageRunning {
		r.Defined.Stages[last] = record
	} else {
		r.Defined.Stages = append(r.Defined.Stages, record)
	}

	r.touch()
	return nil
}

func (r *Run) Finish(outputURL string) error {
	if r.Defined.Status != RunningStatus {
		return r.invalidTransition(DoneStatus)
	}

	r.Defined.Status = DoneStatus
	r.Defined.OutputURL = outputURL
	r.touch()
	return nil
}

func (r *Run) Abort(errorMessage string) error {
	if r.Defined.Status.IsTerminal() {
		return r.invalidTransition(AbortedStatus)
	}

	r.Defined.Status = AbortedStatus
	r.Defined.ErrorMessage = errorMessage
	r.touch()
	return nil
}

func (r *Run) touch() {
	r.Defined.UpdatedAt = time.Now().UTC()
}

func (r *Run) invalidTransition(to Status) error {
	return mark.Message(InvalidTransition, "Run "+r.Defined.ID+" can't go from "+string(r.Defined.Status)+" to "+string(to))
}
