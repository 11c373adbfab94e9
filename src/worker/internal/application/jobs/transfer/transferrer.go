package transfer

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/apex/log"
	cloudstorage "github.com/veedubyou/karaoke-worker/src/worker/internal/application/cloud_storage/entity"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/artifact"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/storagepath"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/working_dir"
)

func NewTransferrer(fileStore cloudstorage.FileStore, localStore artifact.Store, pathGenerator storagepath.Generator, workingDir working_dir.WorkingDir) Transferrer {
	return Transferrer{
		fileStore:     fileStore,
		localStore:    localStore,
		pathGenerator: pathGenerator,
		workingDir:    workingDir,
	}
}

// Transferrer moves audio between cloud storage and the local working dir.
// Inputs land on a path derived from their URL, so a song requested again
// finds its input and every stage artifact next to it from the last run.
type Transferrer struct {
	fileStore     cloudstorage.FileStore
	localStore    artifact.Store
	pathGenerator storagepath.Generator
	workingDir    working_dir.WorkingDir
}

func (t Transferrer) FetchInput(ctx context.Context, inputURL string) (string, error) {
	errctx := cerr.Field("input_url", inputURL)

	localPath, err := t.LocalInputPath(inputURL)
	if err != nil {
		return "", errctx.Wrap(err).Error("Can't place the input in the working dir")
	}

	logger := log.WithFields(log.Fields{
		"input_url":  inputURL,
		"local_path": localPath,
	})

	if t.localStore.Has(localPath) {
		logger.Info("Input was fetched before, reusing it")
		return t.localStore.Get(localPath)
	}

	logger.Info("Fetching input from the remote file store")
	fetched, err := t.localStore.Put(ctx, localPath, func(ctx context.Context, stagingPath string) (string, error) {
		data, err := t.fileStore.GetFile(ctx, inputURL)
		if err != nil {
			return "", cerr.Wrap(err).Error("Failed to read input from the remote file store")
		}

		if err = os.WriteFile(stagingPath, data, 0o644); err != nil {
			return "", cerr.Field("staging_path", stagingPath).Wrap(err).Error("Failed to write input to disk")
		}

		return stagingPath, nil
	})
	if err != nil {
		return "", errctx.Wrap(err).Error("Failed to fetch input")
	}

	return fetched, nil
}

// LocalInputPath mirrors the URL's host and path under the inputs dir
func (t Transferrer) LocalInputPath(inputURL string) (string, error) {
	parsed, err := url.Parse(inputURL)
	if err != nil {
		return "", cerr.Wrap(err).Error("Input URL is malformed")
	}

	// rooting the path before cleaning keeps ".." from climbing out of the inputs dir
	relative := filepath.Clean("/" + filepath.Join(parsed.Host, parsed.Path))
	if filepath.Base(relative) == "/" || filepath.Ext(relative) == "" {
		return "", cerr.Error("Input URL doesn't name an audio file")
	}

	return filepath.Join(t.workingDir.InputsDir(), relative), nil
}

func (t Transferrer) Publish(ctx context.Context, runID string, artifactPath string) (string, error) {
	errctx := cerr.Field("run_id", runID).Field("artifact_path", artifactPath)

	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", errctx.Wrap(err).Error("Failed to read the artifact")
	}

	destinationURL := t.pathGenerator.ArtifactPath(runID, artifactPath)

	log.WithFields(log.Fields{
		"run_id":          runID,
		"destination_url": destinationURL,
	}).Info("Publishing artifact to the remote file store")

	if err = t.fileStore.WriteFile(ctx, destinationURL, data); err != nil {
		return "", errctx.Field("destination_url", destinationURL).
			Wrap(err).Error("Failed to write artifact to the remote file store")
	}

	return destinationURL, nil
}
