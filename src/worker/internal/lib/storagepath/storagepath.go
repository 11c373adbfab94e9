package storagepath

import (
	"fmt"
	"path/filepath"
)

type Generator struct {
	Host   string
	Bucket string
}

// GeneratePath is where a run's published files live, <host>/<bucket>/runs/<run id>/<leaf>
func (g Generator) GeneratePath(runID string, leafPath string) string {
	return fmt.Sprintf("%s/%s/runs/%s/%s", g.Host, g.Bucket, runID, leafPath)
}

func (g Generator) ArtifactPath(runID string, artifactPath string) string {
	return g.GeneratePath(runID, filepath.Base(artifactPath))
}
