package separator

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
)

var partialDownloadSuffixes = []string{".partial", ".th.part"}

func CheckpointsDir(torchHome string) string {
	return filepath.Join(torchHome, "hub", "checkpoints")
}

// SweepPartialDownloads removes model weights left half downloaded by an
// interrupted run, otherwise torch refuses to load them. Failures are logged
// and otherwise ignored. Returns the number of files removed.
func SweepPartialDownloads(torchHome string) int {
	dir := CheckpointsDir(torchHome)
	logger := log.WithField("checkpoints_dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithError(err).Warn("Failed to read model cache for partial downloads")
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isPartialDownload(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.WithError(err).WithField("file", path).Warn("Failed to remove partial download")
			continue
		}

		logger.WithField("file", path).Info("Removed partial model download")
		removed++
	}

	return removed
}

func isPartialDownload(name string) bool {
	for _, suffix := range partialDownloadSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}

	return false
}
