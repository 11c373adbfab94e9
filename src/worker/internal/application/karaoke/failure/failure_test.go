package failure_test

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/failure"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/stage"
)

var _ = Describe("FromTool", func() {
	var toolErr error

	BeforeEach(func() {
		toolErr = errors.New("signal: killed")
	})

	It("marks a tool that failed on its own", func() {
		err := failure.FromTool(context.Background(), toolErr, "demucs failed")
		Expect(failure.Is(err, failure.ExternalToolFailure)).To(BeTrue())
		Expect(failure.Is(err, failure.StageTimeout)).To(BeFalse())
		Expect(errors.Is(err, toolErr)).To(BeTrue())
	})

	It("marks a tool stopped at the deadline as a timeout only", func() {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		err := failure.FromTool(ctx, toolErr, "demucs failed")
		Expect(failure.Is(err, failure.StageTimeout)).To(BeTrue())
		Expect(failure.Is(err, failure.ExternalToolFailure)).To(BeFalse())
	})

	It("leaves a cancelled tool unmarked", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := failure.FromTool(ctx, toolErr, "demucs failed")
		Expect(err).To(HaveOccurred())
		Expect(failure.Is(err, failure.StageTimeout)).To(BeFalse())
		Expect(failure.Is(err, failure.ExternalToolFailure)).To(BeFalse())
	})
})

var _ = Describe("WithStage", func() {
	It("keeps the innermost stage", func() {
		err := failure.WithStage(errors.New("boom"), stage.Isolation)
		err = failure.WithStage(errors.Wrap(err, "professional run"), stage.Polish)

		s, ok := failure.StageOf(err)
		Expect(ok).To(BeTrue())
		Expect(s).To(Equal(stage.Isolation))
	})

	It("passes nil through", func() {
		Expect(failure.WithStage(nil, stage.Trim)).To(BeNil())
	})
})
