package runstorage_test

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/markers"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/karaoke-worker/src/shared/run/entity"
	"github.com/veedubyou/karaoke-worker/src/shared/run/storage"
	. "github.com/veedubyou/karaoke-worker/src/shared/testing"
)

var _ = Describe("Run DB", func() {
	var (
		runDB runstorage.DB
		run   runentity.Run
	)

	BeforeEach(func() {
		SkipWithoutLocalDB()
		ResetDB(db)
		runDB = runstorage.NewDB(db)

		run = runentity.NewRun(runentity.Request{
			InputURL: "https://storage.googleapis.com/uploads/song.mp3",
			Karaoke:  true,
			Mode:     "basic",
		})
		run.Extra = map[string]any{"requested_by": "ops"}
	})

	Describe("GetRun", func() {
		It("reports a missing run", func() {
			_, err := runDB.GetRun(context.Background(), uuid.New().String())
			Expect(markers.Is(err, runstorage.RunNotFound)).To(BeTrue())
		})

		It("rejects an empty ID", func() {
			_, err := runDB.GetRun(context.Background(), "")
			Expect(markers.Is(err, runstorage.IDEmptyMark)).To(BeTrue())
		})
	})

	Describe("With a stored run", func() {
		BeforeEach(func() {
			Expect(runDB.SetRun(context.Background(), run)).To(Succeed())
		})

		It("reads it back with extra attributes intact", func() {
			stored := ExpectSuccess(runDB.GetRun(context.Background(), run.ID()))
			Expect(stored.Defined.InputURL).To(Equal(run.Defined.InputURL))
			Expect(stored.Defined.Status).To(Equal(runentity.PendingStatus))
			Expect(stored.Defined.Stages).To(BeEmpty())
			Expect(stored.Extra).To(Equal(map[string]any{"requested_by": "ops"}))
		})

		It("applies an update", func() {
			err := runDB.UpdateRun(context.Background(), run.ID(), func(r runentity.Run) (runentity.Run, error) {
				if err := r.Start(); err != nil {
					return runentity.Run{}, err
				}
				err := r.RecordStage("separation", runentity.StageRunning, "a.mp3", "")
				return r, err
			})
			Expect(err).NotTo(HaveOccurred())

			stored := ExpectSuccess(runDB.GetRun(context.Background(), run.ID()))
			Expect(stored.Defined.Status).To(Equal(runentity.RunningStatus))
			Expect(stored.Defined.Stages).To(HaveLen(1))
			Expect(stored.Extra).To(HaveKey("requested_by"))
		})

		It("keeps the stored run when the updater fails", func() {
			updaterErr := errors.New("not allowed")
			err := runDB.UpdateRun(context.Background(), run.ID(), func(r runentity.Run) (runentity.Run, error) {
				return runentity.Run{}, updaterErr
			})
			Expect(errors.Is(err, updaterErr)).To(BeTrue())

			stored := ExpectSuccess(runDB.GetRun(context.Background(), run.ID()))
			Expect(stored.Defined.Status).To(Equal(runentity.PendingStatus))
		})

		It("refuses to overwrite a concurrent change", func() {
			err := runDB.UpdateRun(context.Background(), run.ID(), func(r runentity.Run) (runentity.Run, error) {
				By("Sneaking in another write")
				sneaky := r
				Expect(sneaky.Abort("cancelled elsewhere")).To(Succeed())
				Expect(runDB.SetRun(context.Background(), sneaky)).To(Succeed())

				err := r.Start()
				return r, err
			})

			Expect(markers.Is(err, runstorage.ConflictMark)).To(BeTrue())
			stored := ExpectSuccess(runDB.GetRun(context.Background(), run.ID()))
			Expect(stored.Defined.Status).To(Equal(runentity.AbortedStatus))
		})
	})
})
