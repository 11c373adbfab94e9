package working_dir

import (
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
)

const (
	tempDirName   = "tmp"
	inputsDirName = "inputs"
)

func NewWorkingDir(root string) (WorkingDir, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return WorkingDir{}, cerr.Field("root", root).Wrap(err).Error("Failed to convert working dir to absolute format")
	}

	workingDir := WorkingDir{root: absRoot}

	for _, dir := range []string{workingDir.Root(), workingDir.TempDir(), workingDir.InputsDir()} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return WorkingDir{}, cerr.Field("dir", dir).Wrap(err).Error("Failed to create working dir")
		}
	}

	return workingDir, nil
}

type WorkingDir struct {
	root string
}

func (w WorkingDir) Root() string {
	return w.root
}

func (w WorkingDir) TempDir() string {
	return filepath.Join(w.root, tempDirName)
}

// InputsDir holds inputs fetched from remote storage, laid out by object path
// so the same remote file always lands on the same local path
func (w WorkingDir) InputsDir() string {
	return filepath.Join(w.root, inputsDirName)
}

func (w WorkingDir) String() string {
	return w.root
}

// NewScratch creates a fresh directory under TempDir. The caller owns it
// and must call Release on every exit path.
func (w WorkingDir) NewScratch(pattern string) (Scratch, error) {
	dir, err := os.MkdirTemp(w.TempDir(), pattern)
	if err != nil {
		return Scratch{}, cerr.Field("temp_dir", w.TempDir()).
			Wrap(err).Error("Failed to create scratch dir")
	}

	return Scratch{dir: dir}, nil
}

type Scratch struct {
	dir string
}

func (s Scratch) Dir() string {
	return s.dir
}

func (s Scratch) Path(elem ...string) string {
	return filepath.Join(append([]string{s.dir}, elem...)...)
}

func (s Scratch) Release() {
	if s.dir == "" {
		return
	}

	if err := os.RemoveAll(s.dir); err != nil {
		log.WithError(err).WithField("dir", s.dir).Warn("Failed to release scratch dir")
	}
}
