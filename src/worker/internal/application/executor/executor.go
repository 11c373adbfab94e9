package executor

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

//counterfeiter:generate . Executor
type Executor interface {
	CommandContext(ctx context.Context, name string, args ...string) Command
}

//counterfeiter:generate . Command
type Command interface {
	SetDir(dir string)
	// SetEnv adds to the worker's own environment, it doesn't replace it
	SetEnv(env ...string)
	CombinedOutput() ([]byte, error)
}

var _ Executor = BinaryFileExecutor{}

type BinaryFileExecutor struct{}

// CommandContext runs name in its own process group. When ctx is done the
// whole group is killed, so helpers the tool spawned don't outlive it.
func (BinaryFileExecutor) CommandContext(ctx context.Context, name string, args ...string) Command {
	cmd := exec.Command(name, args...)
	setProcessGroup(cmd)

	return &binaryFileCommand{
		ctx: ctx,
		cmd: cmd,
		logger: log.WithFields(log.Fields{
			"bin": filepath.Base(name),
		}),
	}
}

type binaryFileCommand struct {
	ctx    context.Context
	cmd    *exec.Cmd
	logger log.Interface
}

func (b *binaryFileCommand) SetDir(dir string) {
	b.cmd.Dir = dir
}

func (b *binaryFileCommand) SetEnv(env ...string) {
	if b.cmd.Env == nil {
		b.cmd.Env = os.Environ()
	}

	b.cmd.Env = append(b.cmd.Env, env...)
}

// CombinedOutput collects stdout and stderr like exec.Cmd does, and also
// streams every line to the debug log while the tool is still running
func (b *binaryFileCommand) CombinedOutput() ([]byte, error) {
	output := bytes.Buffer{}
	lines := &lineLogger{logger: b.logger}

	writer := io.MultiWriter(&output, lines)
	b.cmd.Stdout = writer
	b.cmd.Stderr = writer

	if err := b.ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "Command was not started")
	}

	b.logger.WithField("args", b.cmd.Args[1:]).Debug("Running command")
	if err := b.cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "Failed to start command")
	}

	done := make(chan error, 1)
	go func() {
		done <- b.cmd.Wait()
	}()

	var err error
	select {
	case <-b.ctx.Done():
		killProcessGroup(b.cmd)
		waitErr := <-done
		lines.Flush()

		err = errors.Wrap(b.ctx.Err(), "Command was killed")
		if waitErr != nil {
			err = errors.WithSecondaryError(err, waitErr)
		}

		b.logger.WithError(err).Warn("Stopped command")
		return output.Bytes(), err
	case err = <-done:
	}

	lines.Flush()
	return output.Bytes(), err
}

type lineLogger struct {
	logger  log.Interface
	pending []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.pending = append(l.pending, p...)

	for {
		// progress bars redraw with \r, treat it as a line end too
		idx := bytes.IndexAny(l.pending, "\r\n")
		if idx < 0 {
			break
		}

		l.emit(l.pending[:idx])
		l.pending = l.pending[idx+1:]
	}

	return len(p), nil
}

func (l *lineLogger) Flush() {
	l.emit(l.pending)
	l.pending = nil
}

func (l *lineLogger) emit(line []byte) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return
	}

	l.logger.Debug(string(trimmed))
}
