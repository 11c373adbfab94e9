package separator

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/executor"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/failure"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
)

type Model string

const (
	TwoStemModel Model = "htdemucs"
	SixStemModel Model = "htdemucs_6s"
)

const (
	outputDirName = "separated"
	stemFileName  = "no_vocals.mp3"
)

// the 6 stem model is only used on the professional path, so it gets the
// slower high quality settings
var qualityArgs = map[Model][]string{
	TwoStemModel: nil,
	SixStemModel: {"--float32", "--shifts=10", "--overlap=0.25"},
}

var _ Separator = DemucsSeparator{}

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

//counterfeiter:generate . Separator
type Separator interface {
	// Separate writes the accompaniment of inputPath under scratchDir and returns its path
	Separate(ctx context.Context, inputPath string, model Model, scratchDir string) (string, error)
}

func NewDemucsSeparator(demucsBinPath string, torchHome string, executor executor.Executor) DemucsSeparator {
	return DemucsSeparator{
		demucsBinPath: demucsBinPath,
		torchHome:     torchHome,
		executor:      executor,
	}
}

type DemucsSeparator struct {
	demucsBinPath string
	torchHome     string
	executor      executor.Executor
}

func (d DemucsSeparator) Separate(ctx context.Context, inputPath string, model Model, scratchDir string) (string, error) {
	errctx := cerr.Field("input_path", inputPath).
		Field("model", model).
		Field("scratch_dir", scratchDir)

	extraArgs, ok := qualityArgs[model]
	if !ok {
		return "", failure.Mark(errctx.Error("Unknown demucs model"), failure.InvalidParameter, "Cannot separate")
	}

	outputDir := filepath.Join(scratchDir, outputDirName)
	args := []string{"--two-stems=vocals", "-n", string(model)}
	args = append(args, extraArgs...)
	args = append(args, "--mp3", "--mp3-bitrate=320", "-o", outputDir, inputPath)

	logger := log.WithFields(log.Fields{
		"inputPath": inputPath,
		"model":     model,
		"outputDir": outputDir,
	})

	SweepPartialDownloads(d.torchHome)

	logger.Info("Running demucs command")

	cmd := d.executor.CommandContext(ctx, d.demucsBinPath, args...)
	cmd.SetDir(scratchDir)
	cmd.SetEnv("TORCH_HOME=" + d.torchHome)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", failure.FromTool(ctx,
			errctx.Field("demucs_args", args).
				Field("demucs_output", string(output)).
				Wrap(err).Error("Error occurred while running demucs: "+string(output)),
			"Demucs failed",
		)
	}

	stemPath := StemPath(scratchDir, model, inputPath)
	info, err := os.Stat(stemPath)
	if err != nil || info.Size() == 0 {
		return "", failure.Mark(
			errctx.Field("stem_path", stemPath).Wrap(err).Error("Demucs exited cleanly but wrote no stem"),
			failure.ExpectedArtifactMissing,
			"Demucs output is missing",
		)
	}

	logger.Info("Finished demucs command")
	return stemPath, nil
}

// StemPath is where demucs puts the accompaniment stem for the given input
func StemPath(scratchDir string, model Model, inputPath string) string {
	base := filepath.Base(inputPath)
	trackName := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(scratchDir, outputDirName, string(model), trackName, stemFileName)
}
