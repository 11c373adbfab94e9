package dummy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/executor"
)

var _ executor.Executor = &Executor{}

type Invocation struct {
	Bin  string
	Args []string
	Dir  string
	Env  []string
}

// Flag returns the value that follows flag, or "" if flag wasn't passed
func (i Invocation) Flag(flag string) string {
	for idx, arg := range i.Args {
		if arg == flag && idx+1 < len(i.Args) {
			return i.Args[idx+1]
		}

		if strings.HasPrefix(arg, flag+"=") {
			return strings.TrimPrefix(arg, flag+"=")
		}
	}

	return ""
}

func (i Invocation) Has(arg string) bool {
	for _, a := range i.Args {
		if a == arg {
			return true
		}
	}

	return false
}

type Behaviour func(ctx context.Context, invocation Invocation) ([]byte, error)

func NewDummyExecutor() *Executor {
	return &Executor{
		behaviours: map[string]Behaviour{},
	}
}

// Executor stands in for the real binaries. Each bin gets a Behaviour that
// usually writes the files the real tool would have written.
type Executor struct {
	mutex       sync.Mutex
	behaviours  map[string]Behaviour
	invocations []Invocation
}

func (e *Executor) On(bin string, behaviour Behaviour) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.behaviours[bin] = behaviour
}

func (e *Executor) Invocations(bin string) []Invocation {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	matches := []Invocation{}
	for _, invocation := range e.invocations {
		if invocation.Bin == bin {
			matches = append(matches, invocation)
		}
	}

	return matches
}

func (e *Executor) CallCount(bin string) int {
	return len(e.Invocations(bin))
}

func (e *Executor) TotalCallCount() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return len(e.invocations)
}

func (e *Executor) CommandContext(ctx context.Context, name string, args ...string) executor.Command {
	return &command{
		executor: e,
		ctx:      ctx,
		invocation: Invocation{
			Bin:  name,
			Args: args,
		},
	}
}

func (e *Executor) run(ctx context.Context, invocation Invocation) ([]byte, error) {
	e.mutex.Lock()
	e.invocations = append(e.invocations, invocation)
	behaviour, ok := e.behaviours[invocation.Bin]
	e.mutex.Unlock()

	if !ok {
		return []byte("command not found"), errors.Newf("no dummy behaviour for %s", invocation.Bin)
	}

	return behaviour(ctx, invocation)
}

type command struct {
	executor   *Executor
	ctx        context.Context
	invocation Invocation
}

func (c *command) SetDir(dir string) {
	c.invocation.Dir = dir
}

func (c *command) SetEnv(env ...string) {
	c.invocation.Env = append(c.invocation.Env, env...)
}

func (c *command) CombinedOutput() ([]byte, error) {
	return c.executor.run(c.ctx, c.invocation)
}

func writeFile(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}

	return os.WriteFile(path, []byte(content), 0644)
}

// Demucs writes the no_vocals stem where demucs would, tagged with the model
func Demucs() Behaviour {
	return func(ctx context.Context, invocation Invocation) ([]byte, error) {
		inputPath := invocation.Args[len(invocation.Args)-1]
		base := filepath.Base(inputPath)
		trackName := strings.TrimSuffix(base, filepath.Ext(base))
		model := invocation.Flag("-n")

		stemPath := filepath.Join(invocation.Flag("-o"), model, trackName, "no_vocals.mp3")
		if err := writeFile(stemPath, "no_vocals:"+model); err != nil {
			return nil, err
		}

		return []byte("Separated tracks will be stored in " + stemPath), nil
	}
}

func AudioSeparator() Behaviour {
	return func(ctx context.Context, invocation Invocation) ([]byte, error) {
		names := map[string]string{}
		if err := json.Unmarshal([]byte(invocation.Flag("--custom_output_names")), &names); err != nil {
			return []byte("bad output names"), err
		}

		stemPath := filepath.Join(invocation.Flag("--output_dir"), names["Instrumental"]+".mp3")
		if err := writeFile(stemPath, "instrumental"); err != nil {
			return nil, err
		}

		return []byte("Separation complete"), nil
	}
}

// FFmpeg writes its output file with the filter graph as content, which lets
// tests see what a given artifact went through
func FFmpeg() Behaviour {
	return func(ctx context.Context, invocation Invocation) ([]byte, error) {
		destPath := FFmpegDest(invocation)
		content := invocation.Flag("-af") + invocation.Flag("-filter_complex") + invocation.Flag("-t")
		if content == "" {
			content = "copy"
		}

		if err := writeFile(destPath, content); err != nil {
			return nil, err
		}

		return []byte("size=1kB time=00:00:01.00"), nil
	}
}

func FFmpegDest(invocation Invocation) string {
	for i := len(invocation.Args) - 1; i >= 0; i-- {
		if invocation.Args[i] != "-y" {
			return invocation.Args[i]
		}
	}

	return ""
}

// Metadata prints the JSON ffprobe would for a file lasting seconds
func Metadata(seconds float64) Behaviour {
	return func(ctx context.Context, invocation Invocation) ([]byte, error) {
		return []byte(fmt.Sprintf(`{"streams":[{"codec_type":"audio"}],"format":{"filename":%q,"duration":"%f"}}`,
			invocation.Args[len(invocation.Args)-1], seconds)), nil
	}
}

// Fails exits nonzero after printing output
func Fails(output string) Behaviour {
	return func(ctx context.Context, invocation Invocation) ([]byte, error) {
		return []byte(output), errors.New("exit status 1")
	}
}

// Silent exits cleanly without writing anything
func Silent() Behaviour {
	return func(ctx context.Context, invocation Invocation) ([]byte, error) {
		return nil, nil
	}
}

// Hangs until the caller's deadline, the way a killed process would return
func Hangs() Behaviour {
	return func(ctx context.Context, invocation Invocation) ([]byte, error) {
		<-ctx.Done()
		return []byte("killed"), errors.New("signal: killed")
	}
}
