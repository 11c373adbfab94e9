package store_test

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/fsouza/fake-gcs-server/fakestorage"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/karaoke-worker/src/shared/config/prod"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/cloud_storage/store"
)

var _ = Describe("GoogleFileStore", func() {
	var (
		server    *fakestorage.Server
		fileStore store.GoogleFileStore

		bucket      string
		existingURL string
	)

	BeforeEach(func() {
		bucket = "karaoke-bucket"
		existingURL = prod.GOOGLE_STORAGE_HOST + "/" + bucket + "/uploads/song.mp3"

		server = fakestorage.NewServer([]fakestorage.Object{
			{
				ObjectAttrs: fakestorage.ObjectAttrs{
					BucketName: bucket,
					Name:       "uploads/song.mp3",
				},
				Content: []byte("la la la"),
			},
		})

		fileStore = store.NewGoogleFileStoreFromClient(prod.GOOGLE_STORAGE_HOST, server.Client())
	})

	AfterEach(func() {
		server.Stop()
	})

	Describe("GetFile", func() {
		It("reads an existing object", func() {
			data, err := fileStore.GetFile(context.Background(), existingURL)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("la la la")))
		})

		It("marks a missing object", func() {
			_, err := fileStore.GetFile(context.Background(), prod.GOOGLE_STORAGE_HOST+"/"+bucket+"/nope.mp3")
			Expect(errors.Is(err, store.FileNotFound)).To(BeTrue())
		})

		It("rejects URLs from another host", func() {
			_, err := fileStore.GetFile(context.Background(), "https://example.com/"+bucket+"/uploads/song.mp3")
			Expect(errors.Is(err, store.BadFileURL)).To(BeTrue())
		})

		It("rejects URLs without an object name", func() {
			_, err := fileStore.GetFile(context.Background(), prod.GOOGLE_STORAGE_HOST+"/"+bucket)
			Expect(errors.Is(err, store.BadFileURL)).To(BeTrue())
		})
	})

	Describe("WriteFile", func() {
		It("writes an object that can be read back", func() {
			url := prod.GOOGLE_STORAGE_HOST + "/" + bucket + "/runs/run-id/song_final_polished_karaoke.mp3"

			err := fileStore.WriteFile(context.Background(), url, []byte("instrumental"))
			Expect(err).NotTo(HaveOccurred())

			object, err := server.GetObject(bucket, "runs/run-id/song_final_polished_karaoke.mp3")
			Expect(err).NotTo(HaveOccurred())
			Expect(object.Content).To(Equal([]byte("instrumental")))
		})

		It("overwrites an existing object", func() {
			err := fileStore.WriteFile(context.Background(), existingURL, []byte("remastered"))
			Expect(err).NotTo(HaveOccurred())

			data, err := fileStore.GetFile(context.Background(), existingURL)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("remastered")))
		})
	})
})
