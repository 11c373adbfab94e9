package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/artifact"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/audiofx"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/failure"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/isolator"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/separator"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/stage"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/transcoder"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/working_dir"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

type Mode string

const (
	Basic        Mode = "basic"
	Professional Mode = "professional"
)

var blendWeights = []float64{0.5, 0.5}

type Timeouts struct {
	Separation time.Duration
	Isolation  time.Duration
	Mix        time.Duration
	Polish     time.Duration
	Pitch      time.Duration
	Trim       time.Duration
	Probe      time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Separation: 3 * time.Hour,
		Isolation:  3 * time.Hour,
		Mix:        5 * time.Minute,
		Polish:     5 * time.Minute,
		Pitch:      5 * time.Minute,
		Trim:       5 * time.Minute,
		Probe:      30 * time.Second,
	}
}

type Request struct {
	InputPath string
	Karaoke   bool
	Mode      Mode
	Semitones int
	TrimStart float64
	TrimEnd   *float64
}

func NewController(
	separator separator.Separator,
	isolator isolator.Isolator,
	transcoder transcoder.Transcoder,
	prober transcoder.Prober,
	store artifact.Store,
	workingDir working_dir.WorkingDir,
) Controller {
	return Controller{
		separator:  separator,
		isolator:   isolator,
		transcoder: transcoder,
		prober:     prober,
		store:      store,
		workingDir: workingDir,
		timeouts:   DefaultTimeouts(),
		observer:   logObserver{},
	}
}

// Controller sequences the external tools into karaoke, pitch and trim runs.
// Each stage writes one durable artifact, and a stage whose artifact already
// exists is skipped. Stages of one run are strictly sequential.
type Controller struct {
	separator  separator.Separator
	isolator   isolator.Isolator
	transcoder transcoder.Transcoder
	prober     transcoder.Prober
	store      artifact.Store
	workingDir working_dir.WorkingDir
	timeouts   Timeouts
	observer   Observer
}

func (c Controller) WithObserver(observer Observer) Controller {
	c.observer = observer
	return c
}

func (c Controller) WithTimeouts(timeouts Timeouts) Controller {
	c.timeouts = timeouts
	return c
}

func (c Controller) ProduceKaraoke(ctx context.Context, inputPath string, mode Mode) (string, error) {
	errctx := cerr.Field("input_path", inputPath).Field("mode", mode)

	if err := ensureInput(inputPath); err != nil {
		return "", errctx.Wrap(err).Error("Cannot produce karaoke")
	}

	switch mode {
	case Basic:
		return c.separate(ctx, inputPath, separator.TwoStemModel)

	case Professional:
		output, err := c.produceProfessional(ctx, inputPath)
		if err != nil {
			return "", errctx.Wrap(err).Error("Professional karaoke run aborted")
		}

		return output, nil

	default:
		return "", failure.Mark(errctx.Error("Unknown karaoke mode"), failure.InvalidParameter, "Cannot produce karaoke")
	}
}

func (c Controller) produceProfessional(ctx context.Context, inputPath string) (string, error) {
	accompaniment, err := c.separate(ctx, inputPath, separator.SixStemModel)
	if err != nil {
		return "", err
	}

	instrumental, err := c.runStage(ctx, stageRun{
		stage:     stage.Isolation,
		key:       IsolationPath(inputPath),
		timeout:   c.timeouts.Isolation,
		cacheable: true,
		scratch:   "isolate-*",
		produce: func(ctx context.Context, scratchDir string, stagingPath string) (string, error) {
			return c.isolator.Isolate(ctx, inputPath, scratchDir)
		},
	})
	if err != nil {
		return "", err
	}

	blend, err := c.runStage(ctx, stageRun{
		stage:     stage.Blend,
		key:       BlendPath(inputPath),
		timeout:   c.timeouts.Mix,
		cacheable: true,
		produce: func(ctx context.Context, _ string, stagingPath string) (string, error) {
			inputs := []string{accompaniment, instrumental}
			return stagingPath, c.transcoder.Mix(ctx, inputs, blendWeights, stagingPath)
		},
	})
	if err != nil {
		return "", err
	}

	return c.runStage(ctx, stageRun{
		stage:     stage.Polish,
		key:       PolishPath(inputPath),
		timeout:   c.timeouts.Polish,
		cacheable: true,
		produce: func(ctx context.Context, _ string, stagingPath string) (string, error) {
			return stagingPath, c.transcoder.ApplyFilters(ctx, blend, audiofx.PolishChain(), stagingPath)
		},
	})
}

func (c Controller) separate(ctx context.Context, inputPath string, model separator.Model) (string, error) {
	return c.runStage(ctx, stageRun{
		stage:     stage.Separation,
		key:       SeparationPath(inputPath, model),
		timeout:   c.timeouts.Separation,
		cacheable: true,
		scratch:   "separate-*",
		produce: func(ctx context.Context, scratchDir string, stagingPath string) (string, error) {
			return c.separator.Separate(ctx, inputPath, model, scratchDir)
		},
	})
}

// AdjustPitch always re-renders, a previous output for the same shift is overwritten
func (c Controller) AdjustPitch(ctx context.Context, inputPath string, semitones int) (string, error) {
	if clamped, ok := audiofx.ClampSemitones(semitones); !ok {
		log.WithFields(log.Fields{
			"requested": semitones,
			"clamped":   clamped,
		}).Warn("Pitch shift is limited to an octave, clamping")
		semitones = clamped
	}

	errctx := cerr.Field("input_path", inputPath).Field("semitones", semitones)
	if err := ensureInput(inputPath); err != nil {
		return "", errctx.Wrap(err).Error("Cannot adjust pitch")
	}

	return c.runStage(ctx, stageRun{
		stage:   stage.Pitch,
		key:     PitchPath(inputPath, semitones),
		timeout: c.timeouts.Pitch,
		produce: func(ctx context.Context, _ string, stagingPath string) (string, error) {
			return stagingPath, c.transcoder.ApplyFilters(ctx, inputPath, audiofx.PitchChain(semitones), stagingPath)
		},
	})
}

// Trim drops start seconds from the front and, when end is given, end seconds
// from the back. It never re-encodes.
func (c Controller) Trim(ctx context.Context, inputPath string, start float64, end *float64) (string, error) {
	errctx := cerr.Field("input_path", inputPath).Field("start", start)
	if end != nil {
		errctx = errctx.Field("end", *end)
	}

	if start < 0 || (end != nil && *end < 0) {
		return "", failure.Mark(errctx.Error("Trim offsets can't be negative"), failure.InvalidParameter, "Cannot trim")
	}

	if err := ensureInput(inputPath); err != nil {
		return "", errctx.Wrap(err).Error("Cannot trim")
	}

	var duration *float64
	if end != nil {
		target, err := c.trimmedDuration(ctx, inputPath, start, *end)
		if err != nil {
			return "", errctx.Wrap(err).Error("Cannot trim")
		}

		duration = &target
	}

	return c.runStage(ctx, stageRun{
		stage:   stage.Trim,
		key:     TrimPath(inputPath, start, end),
		timeout: c.timeouts.Trim,
		produce: func(ctx context.Context, _ string, stagingPath string) (string, error) {
			return stagingPath, c.transcoder.Trim(ctx, inputPath, start, duration, stagingPath)
		},
	})
}

func (c Controller) trimmedDuration(ctx context.Context, inputPath string, start float64, end float64) (float64, error) {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeouts.Probe)
	defer cancel()

	total, err := c.prober.Duration(probeCtx, inputPath)
	if err != nil {
		return 0, failure.WithStage(classify(probeCtx, err), stage.Probe)
	}

	target := total - start - end
	if target <= 0 {
		msg := fmt.Sprintf("Trimming %gs from the start and %gs from the end of a %gs track leaves %gs",
			start, end, total, target)
		return 0, failure.WithStage(failure.Message(failure.InvalidParameter, msg), stage.Trim)
	}

	return target, nil
}

// Process runs whatever the request asks for in a fixed order: trim, then
// karaoke, then pitch. Each step feeds on the previous step's output.
func (c Controller) Process(ctx context.Context, request Request) (string, error) {
	current := request.InputPath
	errctx := cerr.Field("input_path", request.InputPath)

	if request.TrimStart > 0 || request.TrimEnd != nil {
		trimmed, err := c.Trim(ctx, current, request.TrimStart, request.TrimEnd)
		if err != nil {
			return "", errctx.Wrap(err).Error("Failed to trim")
		}
		current = trimmed
	}

	if request.Karaoke {
		karaoke, err := c.ProduceKaraoke(ctx, current, request.Mode)
		if err != nil {
			return "", errctx.Wrap(err).Error("Failed to produce karaoke")
		}
		current = karaoke
	}

	if request.Semitones != 0 {
		shifted, err := c.AdjustPitch(ctx, current, request.Semitones)
		if err != nil {
			return "", errctx.Wrap(err).Error("Failed to adjust pitch")
		}
		current = shifted
	}

	return current, nil
}

type stageRun struct {
	stage   stage.Stage
	key     string
	timeout time.Duration
	// cacheable stages are skipped when their artifact is already present
	cacheable bool
	// scratch is the name pattern of a working dir to hold for the stage, if any
	scratch string
	produce func(ctx context.Context, scratchDir string, stagingPath string) (string, error)
}

func (c Controller) runStage(ctx context.Context, run stageRun) (string, error) {
	errctx := cerr.Field("stage", run.stage).Field("artifact", run.key)

	if run.cacheable && c.store.Has(run.key) {
		cached, err := c.store.Get(run.key)
		if err == nil {
			c.observer.StageChanged(ctx, Event{Stage: run.stage, State: stage.Cached, Artifact: cached})
			return cached, nil
		}

		log.WithError(err).WithField("artifact", run.key).Warn("Artifact vanished after lookup, producing it again")
	}

	c.observer.StageChanged(ctx, Event{Stage: run.stage, State: stage.Running, Artifact: run.key})

	output, err := c.produce(ctx, run)
	if err != nil {
		err = failure.WithStage(errctx.Wrap(err).Error("Stage failed"), run.stage)
		c.observer.StageChanged(ctx, Event{Stage: run.stage, State: stage.Failed, Artifact: run.key, Err: err})
		return "", err
	}

	c.observer.StageChanged(ctx, Event{Stage: run.stage, State: stage.Succeeded, Artifact: output})
	return output, nil
}

func (c Controller) produce(ctx context.Context, run stageRun) (string, error) {
	scratchDir := ""
	if run.scratch != "" {
		scratch, err := c.workingDir.NewScratch(run.scratch)
		if err != nil {
			return "", err
		}

		// released only after the store has moved the output out of it
		defer scratch.Release()
		scratchDir = scratch.Dir()
	}

	stageCtx, cancel := context.WithTimeout(ctx, run.timeout)
	defer cancel()

	output, err := c.store.Put(stageCtx, run.key, func(ctx context.Context, stagingPath string) (string, error) {
		return run.produce(ctx, scratchDir, stagingPath)
	})
	if err != nil {
		return "", classify(stageCtx, err)
	}

	return output, nil
}

func classify(stageCtx context.Context, err error) error {
	switch {
	case errors.Is(stageCtx.Err(), context.DeadlineExceeded):
		return failure.Mark(err, failure.StageTimeout, "Stage ran out of time")
	case errors.Is(err, artifact.NotFound), errors.Is(err, artifact.EmptyFile):
		return failure.Mark(err, failure.ExpectedArtifactMissing, "Stage produced no usable artifact")
	default:
		return err
	}
}

func ensureInput(inputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		return failure.Mark(cerr.Field("input_path", inputPath).Wrap(err).Error("Input file is not readable"),
			failure.InvalidParameter, "Bad input")
	}

	if info.IsDir() {
		return failure.Message(failure.InvalidParameter, "Input is a directory: "+inputPath)
	}

	return nil
}
