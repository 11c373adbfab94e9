package start_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/karaoke-worker/src/shared/run/entity"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/integration_test/dummy"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/job_message"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/start"
)

var _ = Describe("Start", func() {
	var (
		dummyRunStore *dummy.RunStore

		handler start.JobHandler

		message []byte
	)

	marshal := func(params start.JobParams) []byte {
		bytes, err := json.Marshal(params)
		Expect(err).NotTo(HaveOccurred())
		return bytes
	}

	BeforeEach(func() {
		By("Initializing all variables", func() {
			message = nil
			dummyRunStore = dummy.NewDummyRunStore()
		})

		By("Instantiating the handler", func() {
			handler = start.NewJobHandler(dummyRunStore)
		})
	})

	Describe("Well formed message", func() {
		var job start.JobParams

		BeforeEach(func() {
			trimEnd := 5.0
			job = start.JobParams{
				Request: runentity.Request{
					InputURL:  "https://storage.googleapis.com/uploads/song.mp3",
					Karaoke:   true,
					Mode:      "professional",
					Semitones: -2,
					TrimStart: 1.5,
					TrimEnd:   &trimEnd,
				},
			}

			message = marshal(job)
		})

		Describe("Happy path", func() {
			var err error
			var runIdentifier job_message.RunIdentifier

			BeforeEach(func() {
				runIdentifier, err = handler.HandleStartJob(context.Background(), message)
			})

			It("doesn't return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("creates a pending run with the request", func() {
				run, err := dummyRunStore.GetRun(context.Background(), runIdentifier.RunID)
				Expect(err).NotTo(HaveOccurred())

				Expect(run.Defined.Status).To(Equal(runentity.PendingStatus))
				Expect(run.Defined.Request.InputURL).To(Equal(job.InputURL))
				Expect(run.Defined.Request.Mode).To(Equal("professional"))
				Expect(run.Defined.Request.Semitones).To(Equal(-2))
				Expect(run.Defined.Request.TrimStart).To(Equal(1.5))
				Expect(run.Defined.Request.TrimEnd).To(HaveValue(Equal(5.0)))
				Expect(run.Defined.Stages).To(BeEmpty())
			})

			It("creates a new run every time", func() {
				second, err := handler.HandleStartJob(context.Background(), message)
				Expect(err).NotTo(HaveOccurred())
				Expect(second.RunID).NotTo(Equal(runIdentifier.RunID))
				Expect(dummyRunStore.Runs()).To(HaveLen(2))
			})
		})

		Describe("Can't reach run store", func() {
			BeforeEach(func() {
				dummyRunStore.Unavailable = true
			})

			It("returns an error", func() {
				_, err := handler.HandleStartJob(context.Background(), message)
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Poorly formed message", func() {
		It("rejects a message that isn't JSON", func() {
			_, err := handler.HandleStartJob(context.Background(), []byte("song.mp3"))
			Expect(err).To(HaveOccurred())
		})

		It("rejects a missing input URL", func() {
			_, err := handler.HandleStartJob(context.Background(), marshal(start.JobParams{
				Request: runentity.Request{Karaoke: true, Mode: "basic"},
			}))
			Expect(err).To(HaveOccurred())
			Expect(dummyRunStore.Runs()).To(BeEmpty())
		})

		It("rejects an unknown mode", func() {
			_, err := handler.HandleStartJob(context.Background(), marshal(start.JobParams{
				Request: runentity.Request{InputURL: "https://storage.googleapis.com/a/b.mp3", Karaoke: true, Mode: "deluxe"},
			}))
			Expect(err).To(HaveOccurred())
		})

		It("ignores the mode when no karaoke is wanted", func() {
			_, err := handler.HandleStartJob(context.Background(), marshal(start.JobParams{
				Request: runentity.Request{InputURL: "https://storage.googleapis.com/a/b.mp3", Semitones: 3},
			}))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects negative trim offsets", func() {
			_, err := handler.HandleStartJob(context.Background(), marshal(start.JobParams{
				Request: runentity.Request{InputURL: "https://storage.googleapis.com/a/b.mp3", TrimStart: -1},
			}))
			Expect(err).To(HaveOccurred())
		})
	})
})
