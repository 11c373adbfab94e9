package transcoder

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/executor"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/failure"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
)

var _ Prober = FFProbe{}

//counterfeiter:generate . Prober
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type probeData struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func NewFFProbe(ffprobeBinPath string, executor executor.Executor) FFProbe {
	return FFProbe{
		ffprobeBinPath: ffprobeBinPath,
		executor:       executor,
	}
}

// FFProbe reads container metadata with the configured ffprobe binary. It
// runs under the caller's deadline like every other tool.
type FFProbe struct {
	ffprobeBinPath string
	executor       executor.Executor
}

func (f FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	errctx := cerr.Field("path", path)

	args := []string{"-v", "error", "-show_format", "-show_streams", "-of", "json", path}
	output, err := f.executor.CommandContext(ctx, f.ffprobeBinPath, args...).CombinedOutput()
	if err != nil {
		return 0, failure.FromTool(ctx,
			errctx.Field("ffprobe_args", args).
				Field("ffprobe_output", string(output)).
				Wrap(err).Error("Error occurred while running ffprobe: "+string(output)),
			"ffprobe failed",
		)
	}

	return parseDuration(string(output), errctx)
}

func parseDuration(raw string, errctx cerr.Context) (float64, error) {
	data := probeData{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return 0, failure.Mark(errctx.Wrap(err).Error("ffprobe returned malformed JSON"), failure.ExternalToolFailure, "ffprobe failed")
	}

	duration, err := strconv.ParseFloat(data.Format.Duration, 64)
	if err != nil {
		return 0, failure.Mark(
			errctx.Field("duration", data.Format.Duration).Wrap(err).Error("ffprobe returned no usable duration"),
			failure.ExternalToolFailure,
			"ffprobe failed",
		)
	}

	return duration, nil
}
