package integration_test_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rabbitmq/amqp091-go"
	"github.com/veedubyou/karaoke-worker/src/shared/config/prod"
	"github.com/veedubyou/karaoke-worker/src/shared/run/entity"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/integration_test/dummy"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/job_router"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/process"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/start"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/jobs/transfer"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/artifact"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/isolator"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/pipeline"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/separator"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/transcoder"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/worker"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/storagepath"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/lib/working_dir"
)

const (
	demucsBin    = "/whatever/demucs"
	separatorBin = "/whatever/audio-separator"
	ffmpegBin    = "/whatever/ffmpeg"
)

var _ = Describe("IntegrationTest", func() {
	var (
		inputURL          string
		originalTrackData []byte
		bucketName        string

		rabbitMQ  *dummy.RabbitMQ
		fileStore *dummy.FileStore
		runStore  *dummy.RunStore
		executor  *dummy.Executor

		queueWorker *worker.QueueWorker
		run         func()
	)

	onlyRun := func() runentity.Run {
		runs := runStore.Runs()
		if len(runs) != 1 {
			return runentity.Run{}
		}
		return runs[0]
	}

	BeforeEach(func() {
		By("Assigning data to variables", func() {
			bucketName = "bucket-head"
			inputURL = prod.GOOGLE_STORAGE_HOST + "/" + bucketName + "/uploads/jams.mp3"
			originalTrackData = []byte("cool-jamz")
		})

		By("Instantiating all dummies", func() {
			rabbitMQ = dummy.NewRabbitMQ()
			fileStore = dummy.NewDummyFileStore()
			runStore = dummy.NewDummyRunStore()

			executor = dummy.NewDummyExecutor()
			executor.On(demucsBin, dummy.Demucs())
			executor.On(separatorBin, dummy.AudioSeparator())
			executor.On(ffmpegBin, dummy.FFmpeg())
		})

		By("Uploading the input", func() {
			err := fileStore.WriteFile(context.Background(), inputURL, originalTrackData)
			Expect(err).NotTo(HaveOccurred())
		})

		var workingDir working_dir.WorkingDir
		By("Creating the working dir", func() {
			root, err := os.MkdirTemp("", "integration-test-*")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, root)

			workingDir, err = working_dir.NewWorkingDir(root)
			Expect(err).NotTo(HaveOccurred())
		})

		var processHandler process.JobHandler
		By("Creating the process job handler", func() {
			controller := pipeline.NewController(
				separator.NewDemucsSeparator(demucsBin, filepath.Join(workingDir.Root(), "torch"), executor),
				isolator.NewAudioSeparatorIsolator(separatorBin, executor),
				transcoder.NewFFmpegTranscoder(ffmpegBin, executor),
				dummy.NewDummyProber(200),
				artifact.FileStore{},
				workingDir,
			)

			transferrer := transfer.NewTransferrer(fileStore, artifact.FileStore{}, storagepath.Generator{
				Host:   prod.GOOGLE_STORAGE_HOST,
				Bucket: bucketName,
			}, workingDir)

			processHandler = process.NewJobHandler(runStore, transferrer, controller)
		})

		By("Instantiating the worker", func() {
			router := job_router.NewJobRouter(
				runStore,
				rabbitMQ,
				start.NewJobHandler(runStore),
				processHandler,
			)

			newWorker := worker.NewQueueWorker(rabbitMQ, "test-queue", router)
			queueWorker = &newWorker
			DeferCleanup(queueWorker.Stop)
		})

		By("Setting up the run routine", func() {
			run = func() {
				go func() {
					defer GinkgoRecover()
					err := queueWorker.Start(context.Background())
					Expect(err).NotTo(HaveOccurred())
				}()

				jsonBytes, err := json.Marshal(start.JobParams{
					Request: runentity.Request{
						InputURL:  inputURL,
						Karaoke:   true,
						Mode:      "professional",
						Semitones: -3,
					},
				})
				Expect(err).NotTo(HaveOccurred())

				err = rabbitMQ.Publish(context.Background(), amqp091.Publishing{
					Type: start.JobType,
					Body: jsonBytes,
				})
				Expect(err).NotTo(HaveOccurred())
			}
		})
	})

	Describe("All jobs run successfully", func() {
		It("gets 2 acks", func() {
			run()

			Eventually(rabbitMQ.AckCount).Should(Equal(2))
		})

		It("gets no nacks", func() {
			run()

			Eventually(rabbitMQ.AckCount).Should(Equal(2))
			Consistently(rabbitMQ.NackCount).Should(Equal(0))
		})

		It("queues the run for processing", func() {
			run()

			Eventually(func() []string {
				types := []string{}
				for _, msg := range rabbitMQ.Published() {
					types = append(types, msg.Type)
				}
				return types
			}).Should(Equal([]string{start.JobType, process.JobType}))
		})

		It("publishes the karaoke track and finishes the run", func() {
			run()

			Eventually(func() runentity.Status {
				return onlyRun().Defined.Status
			}).Should(Equal(runentity.DoneStatus))

			finished := onlyRun()
			Expect(finished.Defined.OutputURL).To(HaveSuffix("/jams_final_polished_karaoke_pitch-3.mp3"))

			contents, err := fileStore.GetFile(context.Background(), finished.Defined.OutputURL)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(contents)).To(ContainSubstring("rubberband=pitch="))

			stages := []string{}
			for _, record := range finished.Defined.Stages {
				stages = append(stages, record.Stage)
			}
			Expect(stages).To(Equal([]string{"separation", "isolation", "blend", "polish", "pitch"}))
		})
	})

	Describe("A tool fails", func() {
		BeforeEach(func() {
			executor.On(separatorBin, dummy.Fails("model checkpoint is corrupt"))
		})

		It("acks the start job and nacks the process job", func() {
			run()

			Eventually(rabbitMQ.NackCount).Should(Equal(1))
			Expect(rabbitMQ.AckCount()).To(Equal(1))
		})

		It("aborts the run with the error", func() {
			run()

			Eventually(func() runentity.Status {
				return onlyRun().Defined.Status
			}).Should(Equal(runentity.AbortedStatus))

			aborted := onlyRun()
			Expect(aborted.Defined.ErrorMessage).To(ContainSubstring("model checkpoint is corrupt"))

			lastStage := aborted.Defined.Stages[len(aborted.Defined.Stages)-1]
			Expect(lastStage.Stage).To(Equal("isolation"))
			Expect(lastStage.State).To(Equal(runentity.StageFailed))
		})

		It("keeps the separation artifact for the next run", func() {
			run()

			Eventually(rabbitMQ.NackCount).Should(Equal(1))

			separation := onlyRun().Defined.Stages[0]
			Expect(separation.State).To(Equal(runentity.StageSucceeded))
			Expect(separation.Artifact).To(BeARegularFile())
		})
	})

	Describe("File storage is down", func() {
		BeforeEach(func() {
			fileStore.Unavailable = true
		})

		It("gets 1 ack for the start job", func() {
			run()

			Eventually(rabbitMQ.AckCount).Should(Equal(1))
		})

		It("gets 1 nack for the process job failing", func() {
			run()

			Eventually(rabbitMQ.NackCount).Should(Equal(1))
		})

		It("reports the aborted status", func() {
			run()

			Eventually(func() runentity.Status {
				return onlyRun().Defined.Status
			}).Should(Equal(runentity.AbortedStatus))

			Expect(executor.TotalCallCount()).To(Equal(0))
		})
	})
})
