// Package artifact keeps the durable outputs of pipeline stages. An artifact
// is addressed by its final path and is present only once it has content.
package artifact

import (
	"context"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

// Producer writes an artifact to stagingPath. It may return a different path
// when the tool decided where to write, the store moves it into place either way.
type Producer func(ctx context.Context, stagingPath string) (string, error)

//counterfeiter:generate . Store
type Store interface {
	Has(key string) bool
	// Get returns the local path of a present artifact
	Get(key string) (string, error)
	// Put runs producer and publishes its output under key, replacing anything there
	Put(ctx context.Context, key string, producer Producer) (string, error)
}
