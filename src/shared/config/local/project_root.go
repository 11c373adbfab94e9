package local

import (
	"path"
	"runtime"
	"strings"
)

const thisFile = "/src/shared/config/local/project_root.go"

func ProjectRoot() string {
	_, filePath, _, ok := runtime.Caller(0)

	if !ok {
		panic("Failed to call runtime.Caller")
	}

	if !strings.HasSuffix(filePath, thisFile) {
		panic("project_root.go has moved, update thisFile")
	}

	// five levels up from src/shared/config/local/project_root.go
	for i := 0; i < 5; i++ {
		filePath = path.Dir(filePath)
	}

	return filePath
}

// WorkingDir is where development runs keep scratch space and downloaded inputs
func WorkingDir() string {
	return path.Join(ProjectRoot(), "/src/worker/wd/karaoke")
}
