package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/audiofx"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/separator"
)

// Durable artifacts sit next to their input, named after it. The names are
// the cache keys: a later run on the same input finds and reuses them.

func basePath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
}

func SeparationPath(inputPath string, model separator.Model) string {
	return basePath(inputPath) + "_" + string(model) + "_no_vocals.mp3"
}

func IsolationPath(inputPath string) string {
	return basePath(inputPath) + "_mdx_instrumental.mp3"
}

func BlendPath(inputPath string) string {
	return basePath(inputPath) + "_ensemble_karaoke.mp3"
}

func PolishPath(inputPath string) string {
	return basePath(inputPath) + "_final_polished_karaoke.mp3"
}

func PitchPath(inputPath string, semitones int) string {
	return basePath(inputPath) + "_pitch" + audiofx.SemitoneLabel(semitones) + ".mp3"
}

// TrimPath keeps the input's container since trimming never re-encodes. The
// offsets are part of the name, a different trim is a different artifact.
func TrimPath(inputPath string, start float64, end *float64) string {
	label := "_trim" + audiofx.FormatSeconds(start) + "s"
	if end != nil {
		label += "-" + audiofx.FormatSeconds(*end) + "s"
	}

	return basePath(inputPath) + label + filepath.Ext(inputPath)
}
