package transcoder_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/integration_test/dummy"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/failure"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/transcoder"
)

const ffprobeBin = "/opt/ffmpeg/bin/ffprobe"

var _ = Describe("Reading the duration", func() {
	var (
		dummyExecutor *dummy.Executor
		ffprobe       transcoder.FFProbe
	)

	BeforeEach(func() {
		dummyExecutor = dummy.NewDummyExecutor()
		dummyExecutor.On(ffprobeBin, dummy.Metadata(183.5))
		ffprobe = transcoder.NewFFProbe(ffprobeBin, dummyExecutor)
	})

	It("runs the configured binary and parses its JSON", func() {
		duration, err := ffprobe.Duration(context.Background(), "/in/song.mp3")
		Expect(err).NotTo(HaveOccurred())
		Expect(duration).To(BeNumerically("~", 183.5, 1e-6))

		invocations := dummyExecutor.Invocations(ffprobeBin)
		Expect(invocations).To(HaveLen(1))
		Expect(invocations[0].Flag("-of")).To(Equal("json"))
		Expect(invocations[0].Has("-show_format")).To(BeTrue())
		Expect(invocations[0].Args[len(invocations[0].Args)-1]).To(Equal("/in/song.mp3"))
		Expect(dummyExecutor.TotalCallCount()).To(Equal(1))
	})

	It("reports a nonzero exit as a tool failure", func() {
		dummyExecutor.On(ffprobeBin, dummy.Fails("/in/song.mp3: Invalid data found when processing input"))

		_, err := ffprobe.Duration(context.Background(), "/in/song.mp3")
		Expect(failure.Is(err, failure.ExternalToolFailure)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("Invalid data found"))
	})

	It("reports a run past the deadline as a timeout", func() {
		dummyExecutor.On(ffprobeBin, dummy.Hangs())
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := ffprobe.Duration(ctx, "/in/song.mp3")
		Expect(failure.Is(err, failure.StageTimeout)).To(BeTrue())
		Expect(failure.Is(err, failure.ExternalToolFailure)).To(BeFalse())
	})
})
