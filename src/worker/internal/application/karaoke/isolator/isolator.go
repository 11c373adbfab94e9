package isolator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/executor"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/failure"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
)

const (
	Model         = "model_bs_roformer_ep_317_sdr_12.9755.ckpt"
	outputDirName = "mdx_separated"
	stemName      = "Instrumental"
	normalization = "0.9"
)

var _ Isolator = AudioSeparatorIsolator{}

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

//counterfeiter:generate . Isolator
type Isolator interface {
	// Isolate writes the instrumental of inputPath under scratchDir and returns its path
	Isolate(ctx context.Context, inputPath string, scratchDir string) (string, error)
}

func NewAudioSeparatorIsolator(binPath string, executor executor.Executor) AudioSeparatorIsolator {
	return AudioSeparatorIsolator{
		binPath:  binPath,
		executor: executor,
	}
}

type AudioSeparatorIsolator struct {
	binPath  string
	executor executor.Executor
}

func (a AudioSeparatorIsolator) Isolate(ctx context.Context, inputPath string, scratchDir string) (string, error) {
	errctx := cerr.Field("input_path", inputPath).Field("scratch_dir", scratchDir)

	outputDir := filepath.Join(scratchDir, outputDirName)
	outputName := instrumentalName(inputPath)

	// pin the output name so we never have to go looking for what the tool wrote
	customNames, err := json.Marshal(map[string]string{stemName: outputName})
	if err != nil {
		return "", errctx.Wrap(err).Error("Failed to encode output names")
	}

	args := []string{
		inputPath,
		"-m", Model,
		"--output_format", "MP3",
		"--output_dir", outputDir,
		"--normalization", normalization,
		"--single_stem", stemName,
		"--custom_output_names", string(customNames),
	}

	logger := log.WithFields(log.Fields{
		"inputPath": inputPath,
		"outputDir": outputDir,
	})

	logger.Info("Running audio-separator command")

	cmd := a.executor.CommandContext(ctx, a.binPath, args...)
	cmd.SetDir(scratchDir)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", failure.FromTool(ctx,
			errctx.Field("audio_separator_args", args).
				Field("audio_separator_output", string(output)).
				Wrap(err).Error("Error occurred while running audio-separator: "+string(output)),
			"audio-separator failed",
		)
	}

	stemPath := StemPath(scratchDir, inputPath)
	info, err := os.Stat(stemPath)
	if err != nil || info.Size() == 0 {
		return "", failure.Mark(
			errctx.Field("stem_path", stemPath).Wrap(err).Error("audio-separator exited cleanly but wrote no stem"),
			failure.ExpectedArtifactMissing,
			"audio-separator output is missing",
		)
	}

	logger.Info("Finished audio-separator command")
	return stemPath, nil
}

func StemPath(scratchDir string, inputPath string) string {
	return filepath.Join(scratchDir, outputDirName, instrumentalName(inputPath)+".mp3")
}

func instrumentalName(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_" + stemName
}
