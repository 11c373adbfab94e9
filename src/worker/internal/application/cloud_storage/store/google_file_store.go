package store

import (
	"context"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	cloudstorage "github.com/veedubyou/karaoke-worker/src/worker/internal/application/cloud_storage/entity"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/cerr"
	"google.golang.org/api/option"
)

var (
	FileNotFound = errors.New("file not found in cloud storage")
	BadFileURL   = errors.New("file URL doesn't belong to the storage host")
)

var _ cloudstorage.FileStore = GoogleFileStore{}

func NewGoogleFileStore(storageHost string, opts ...option.ClientOption) (GoogleFileStore, error) {
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return GoogleFileStore{}, cerr.Wrap(err).Error("Failed to create cloud storage client")
	}

	return NewGoogleFileStoreFromClient(storageHost, client), nil
}

func NewGoogleFileStoreFromClient(storageHost string, client *storage.Client) GoogleFileStore {
	return GoogleFileStore{
		storageHost: strings.TrimSuffix(storageHost, "/"),
		client:      client,
	}
}

// GoogleFileStore addresses objects by URL, <storage host>/<bucket>/<object>
type GoogleFileStore struct {
	storageHost string
	client      *storage.Client
}

func (g GoogleFileStore) GetFile(ctx context.Context, fileURL string) ([]byte, error) {
	errctx := cerr.Field("file_url", fileURL)

	object, err := g.object(fileURL)
	if err != nil {
		return nil, errctx.Wrap(err).Error("Can't locate the file")
	}

	reader, err := object.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, errors.Mark(errctx.Wrap(err).Error("File doesn't exist"), FileNotFound)
		}

		return nil, errctx.Wrap(err).Error("Failed to open the file for reading")
	}

	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errctx.Wrap(err).Error("Failed to read the file")
	}

	return data, nil
}

func (g GoogleFileStore) WriteFile(ctx context.Context, fileURL string, data []byte) error {
	errctx := cerr.Field("file_url", fileURL)

	object, err := g.object(fileURL)
	if err != nil {
		return errctx.Wrap(err).Error("Can't locate the file")
	}

	log.WithFields(log.Fields{
		"file_url": fileURL,
		"bytes":    len(data),
	}).Info("Writing file to cloud storage")

	writer := object.NewWriter(ctx)
	if _, err = writer.Write(data); err != nil {
		_ = writer.Close()
		return errctx.Wrap(err).Error("Failed to write the file")
	}

	// the upload only completes on close
	if err = writer.Close(); err != nil {
		return errctx.Wrap(err).Error("Failed to finish writing the file")
	}

	return nil
}

func (g GoogleFileStore) object(fileURL string) (*storage.ObjectHandle, error) {
	bucket, objectName, err := g.splitURL(fileURL)
	if err != nil {
		return nil, err
	}

	return g.client.Bucket(bucket).Object(objectName), nil
}

func (g GoogleFileStore) splitURL(fileURL string) (string, string, error) {
	prefix := g.storageHost + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return "", "", errors.Mark(cerr.Field("storage_host", g.storageHost).
			Error("File URL is outside the storage host"), BadFileURL)
	}

	bucket, objectName, found := strings.Cut(strings.TrimPrefix(fileURL, prefix), "/")
	if !found || bucket == "" || objectName == "" {
		return "", "", errors.Mark(cerr.Error("File URL has no bucket or object name"), BadFileURL)
	}

	return bucket, objectName, nil
}
