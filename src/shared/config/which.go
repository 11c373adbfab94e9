package config

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

func FindBin(bin string) string {
	cmd := exec.Command("which", bin)
	output, err := cmd.CombinedOutput()

	stringOutput := string(output)
	if err != nil {
		panic(fmt.Sprintf("Failed to find %s: %s", bin, stringOutput))
	}

	trimmedOutput := strings.TrimSpace(stringOutput)
	if trimmedOutput == "" {
		panic(fmt.Sprintf("No bin found for %s", bin))
	}

	return trimmedOutput
}

func DemucsPath() string {
	return FindBin("demucs")
}

func AudioSeparatorPath() string {
	return FindBin("audio-separator")
}

func FFmpegPath() string {
	return FindBin("ffmpeg")
}

func FFprobePath() string {
	return FindBin("ffprobe")
}

// SiblingBin is bin in the same directory as binPath. ffmpeg builds ship
// ffprobe next to ffmpeg.
func SiblingBin(binPath string, bin string) string {
	return filepath.Join(filepath.Dir(binPath), bin)
}
