package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/errors/mark"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
)

var (
	NotFound   = errors.New("artifact not found")
	EmptyFile  = errors.New("artifact is empty")
	WriteError = errors.New("failed to write artifact")
)

var _ Store = FileStore{}

// FileStore keys artifacts by their path on disk. A producer writes to a
// hidden staging file next to the key, which is renamed into place only once
// it has content, so a crashed stage never leaves a half written artifact
// that a later run would reuse.
type FileStore struct{}

func (FileStore) Has(key string) bool {
	info, err := os.Stat(key)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func (f FileStore) Get(key string) (string, error) {
	if !f.Has(key) {
		return "", mark.Message(NotFound, "No artifact at "+key)
	}

	return key, nil
}

func (f FileStore) Put(ctx context.Context, key string, producer Producer) (string, error) {
	errctx := cerr.Field("key", key)

	if err := os.MkdirAll(filepath.Dir(key), os.ModePerm); err != nil {
		return "", mark.Wrap(errctx.Wrap(err).Error("Failed to create artifact dir"), WriteError, "Cannot store artifact")
	}

	stagingPath := StagingPath(key)
	defer removeIfExists(stagingPath)

	producedPath, err := producer(ctx, stagingPath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(producedPath)
	if err != nil {
		return "", mark.Wrap(errctx.Field("produced_path", producedPath).Wrap(err).Error("Producer reported a file that isn't there"),
			NotFound, "Cannot store artifact")
	}

	if info.Size() == 0 {
		return "", mark.Message(EmptyFile, "Producer wrote an empty file for "+key)
	}

	if err := moveFile(producedPath, key); err != nil {
		return "", mark.Wrap(errctx.Field("produced_path", producedPath).Wrap(err).Error("Failed to move artifact into place"),
			WriteError, "Cannot store artifact")
	}

	log.WithField("key", key).Debug("Stored artifact")
	return key, nil
}

// StagingPath keeps the extension so tools that pick a format from the file
// name still work
func StagingPath(key string) string {
	dir, base := filepath.Split(key)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

func moveFile(src string, dest string) error {
	if src == dest {
		return nil
	}

	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	// scratch dirs may sit on another device
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}

	return copyThenRemove(src, dest)
}

func copyThenRemove(src string, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := StagingPath(dest) + ".copy"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		removeIfExists(tmp)
		return err
	}

	if err := out.Close(); err != nil {
		removeIfExists(tmp)
		return err
	}

	if err := os.Rename(tmp, dest); err != nil {
		removeIfExists(tmp)
		return err
	}

	return os.Remove(src)
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", path).Warn("Failed to clean up staging file")
	}
}
