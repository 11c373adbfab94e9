package transcoder

import (
	"context"
	"os"

	"github.com/apex/log"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/executor"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/audiofx"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/failure"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var _ Transcoder = FFmpegTranscoder{}

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

//counterfeiter:generate . Transcoder
type Transcoder interface {
	Mix(ctx context.Context, inputPaths []string, weights []float64, destPath string) error
	ApplyFilters(ctx context.Context, inputPath string, chain audiofx.Chain, destPath string) error
	// Trim stream copies inputPath from start, for duration seconds when given
	Trim(ctx context.Context, inputPath string, start float64, duration *float64, destPath string) error
}

func NewFFmpegTranscoder(ffmpegBinPath string, executor executor.Executor) FFmpegTranscoder {
	return FFmpegTranscoder{
		ffmpegBinPath: ffmpegBinPath,
		executor:      executor,
	}
}

type FFmpegTranscoder struct {
	ffmpegBinPath string
	executor      executor.Executor
}

func (f FFmpegTranscoder) Mix(ctx context.Context, inputPaths []string, weights []float64, destPath string) error {
	if len(inputPaths) == 0 || len(inputPaths) != len(weights) {
		return failure.Mark(
			cerr.Field("input_paths", inputPaths).Field("weights", weights).Error("Every mix input needs exactly one weight"),
			failure.InvalidParameter,
			"Cannot mix",
		)
	}

	streams := make([]*ffmpeg.Stream, len(inputPaths))
	for i, inputPath := range inputPaths {
		streams[i] = ffmpeg.Input(inputPath).Audio()
	}

	args := ffmpeg.Filter(streams, "amix", ffmpeg.Args{}, ffmpeg.KwArgs(audiofx.AmixOptions(weights))).
		Output(destPath, ffmpeg.KwArgs{"b:a": audiofx.OutputBitrate}).
		OverWriteOutput().
		GetArgs()

	return f.run(ctx, "mix", args, destPath)
}

func (f FFmpegTranscoder) ApplyFilters(ctx context.Context, inputPath string, chain audiofx.Chain, destPath string) error {
	args := ffmpeg.Input(inputPath).
		Output(destPath, ffmpeg.KwArgs{
			"af":  chain.String(),
			"b:a": audiofx.OutputBitrate,
		}).
		OverWriteOutput().
		GetArgs()

	return f.run(ctx, "filter", args, destPath)
}

func (f FFmpegTranscoder) Trim(ctx context.Context, inputPath string, start float64, duration *float64, destPath string) error {
	outputArgs := ffmpeg.KwArgs{
		"ss": audiofx.FormatSeconds(start),
		"c":  "copy",
	}

	if duration != nil {
		outputArgs["t"] = audiofx.FormatSeconds(*duration)
	}

	args := ffmpeg.Input(inputPath).
		Output(destPath, outputArgs).
		OverWriteOutput().
		GetArgs()

	return f.run(ctx, "trim", args, destPath)
}

func (f FFmpegTranscoder) run(ctx context.Context, operation string, args []string, destPath string) error {
	errctx := cerr.Field("operation", operation).Field("dest_path", destPath)

	logger := log.WithFields(log.Fields{
		"operation": operation,
		"destPath":  destPath,
	})

	logger.Info("Running ffmpeg command")

	cmd := f.executor.CommandContext(ctx, f.ffmpegBinPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return failure.FromTool(ctx,
			errctx.Field("ffmpeg_args", args).
				Field("ffmpeg_output", string(output)).
				Wrap(err).Error("Error occurred while running ffmpeg: "+string(output)),
			"ffmpeg failed",
		)
	}

	info, err := os.Stat(destPath)
	if err != nil || info.Size() == 0 {
		return failure.Mark(
			errctx.Wrap(err).Error("ffmpeg exited cleanly but wrote nothing"),
			failure.ExpectedArtifactMissing,
			"ffmpeg output is missing",
		)
	}

	logger.Info("Finished ffmpeg command")
	return nil
}
