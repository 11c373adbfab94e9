package failure

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/errors/mark"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/stage"
)

var (
	ExternalToolFailure     = errors.New("external tool failed")
	ExpectedArtifactMissing = errors.New("expected artifact is missing")
	StageTimeout            = errors.New("stage ran past its deadline")
	InvalidParameter        = errors.New("invalid parameter")
)

func Mark(err error, kind error, msg string) error {
	return mark.Wrap(err, kind, msg)
}

func Message(kind error, msg string) error {
	return mark.Message(kind, msg)
}

// FromTool marks an error returned by an external tool that ran under ctx.
// A tool killed at ctx's deadline timed out, it didn't fail on its own.
func FromTool(ctx context.Context, err error, msg string) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Mark(err, StageTimeout, msg+": deadline exceeded")
	case ctx.Err() != nil:
		return errors.Wrap(err, msg+": cancelled")
	default:
		return Mark(err, ExternalToolFailure, msg)
	}
}

// Is reports whether err carries the kind mark anywhere in its chain
func Is(err error, kind error) bool {
	return errors.Is(err, kind)
}

type stageError struct {
	stage stage.Stage
	cause error
}

func (s *stageError) Error() string {
	return fmt.Sprintf("%s stage: %s", s.stage, s.cause.Error())
}

func (s *stageError) Unwrap() error {
	return s.cause
}

func (s *stageError) Format(st fmt.State, verb rune) {
	errors.FormatError(s, st, verb)
}

func (s *stageError) FormatError(p errors.Printer) error {
	p.Printf("%s stage", s.stage)
	return s.cause
}

// WithStage records which stage err came out of. The innermost stage wins
// if err is already tagged.
func WithStage(err error, s stage.Stage) error {
	if err == nil {
		return nil
	}

	if _, ok := StageOf(err); ok {
		return err
	}

	return &stageError{stage: s, cause: err}
}

func StageOf(err error) (stage.Stage, bool) {
	var tagged *stageError
	if errors.As(err, &tagged) {
		return tagged.stage, true
	}

	return "", false
}
