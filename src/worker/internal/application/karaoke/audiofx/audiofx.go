// Package audiofx builds the ffmpeg filter graphs used by the karaoke stages.
// Nothing here touches audio, it only produces filter strings.
package audiofx

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MinSemitones = -12
	MaxSemitones = 12

	// dB ceiling for the brightness compensation applied around a pitch shift
	maxBrightnessGain = 2.5
	gainPerSemitone   = 0.2

	OutputBitrate = "320k"
)

// Chain is a comma joined ffmpeg audio filter graph
type Chain []string

func (c Chain) String() string {
	return strings.Join(c, ",")
}

func PolishChain() Chain {
	return Chain{
		"highpass=f=20",
		"equalizer=f=3000:width_type=o:width=1:g=1",
		"highshelf=f=8000:g=1.5",
		"dynaudnorm=f=300:g=10:p=0.8:m=10:r=0.4:b=0",
		"compand=attacks=0.15:decays=0.4:points=-80/-80|-45/-25|-27/-15|0/-8",
		"alimiter=limit=0.96",
	}
}

// ClampSemitones bounds s to one octave either way. The bool is false when
// s had to be changed.
func ClampSemitones(s int) (int, bool) {
	switch {
	case s < MinSemitones:
		return MinSemitones, false
	case s > MaxSemitones:
		return MaxSemitones, false
	default:
		return s, true
	}
}

func PitchRatio(semitones int) float64 {
	return math.Pow(2, float64(semitones)/12)
}

func BrightnessGain(semitones int) float64 {
	gain := math.Abs(float64(semitones)) * gainPerSemitone
	return math.Min(gain, maxBrightnessGain)
}

// PitchChain shifts by semitones while keeping tempo. Downward shifts dull the
// top end, so they get an extra pre-shift shelf boost.
func PitchChain(semitones int) Chain {
	gain := BrightnessGain(semitones)

	chain := Chain{}
	if semitones < 0 {
		chain = append(chain, fmt.Sprintf("highshelf=f=6000:g=%s", formatNumber(gain*0.5)))
	}

	return append(chain,
		fmt.Sprintf("rubberband=pitch=%s", formatNumber(PitchRatio(semitones))),
		fmt.Sprintf("highshelf=f=7000:g=%s", formatNumber(gain)),
		"equalizer=f=3500:width_type=o:width=0.8:g=0.8",
	)
}

// AmixOptions configures amix for len(weights) inputs with normalisation off,
// so the weights apply as given
func AmixOptions(weights []float64) map[string]any {
	formatted := make([]string, len(weights))
	for i, w := range weights {
		formatted[i] = formatNumber(w)
	}

	return map[string]any{
		"inputs":    strconv.Itoa(len(weights)),
		"weights":   strings.Join(formatted, " "),
		"duration":  "longest",
		"normalize": "0",
	}
}

func formatNumber(f float64) string {
	rounded := math.Round(f*1e6) / 1e6
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// FormatSeconds renders a time offset for ffmpeg's -ss and -t options
func FormatSeconds(seconds float64) string {
	return formatNumber(seconds)
}

func SemitoneLabel(semitones int) string {
	return fmt.Sprintf("%+d", semitones)
}
