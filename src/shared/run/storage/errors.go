package runstorage

import "github.com/cockroachdb/errors"

var (
	DefaultErrorMark = errors.New("run DB failure")
	RunNotFound      = errors.New("run not found")
	IDEmptyMark      = errors.New("run ID is empty")
	MarshalMark      = errors.New("failed to marshal run")
	UnmarshalMark    = errors.New("failed to unmarshal run")
	ConflictMark     = errors.New("run was changed concurrently")
)
