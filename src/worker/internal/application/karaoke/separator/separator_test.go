package separator_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/integration_test/dummy"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/failure"
	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/separator"
)

const demucsBin = "/whatever/demucs"

var _ = Describe("DemucsSeparator", func() {
	var (
		dummyExecutor *dummy.Executor
		demucs        separator.DemucsSeparator

		scratchDir string
		torchHome  string
		inputPath  string

		stemPath string
		err      error
	)

	BeforeEach(func() {
		By("Setting up directories", func() {
			root, mkErr := os.MkdirTemp("", "separator-test-*")
			Expect(mkErr).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, root)

			scratchDir = filepath.Join(root, "scratch")
			torchHome = filepath.Join(root, "torch")
			inputPath = filepath.Join(root, "My Song.mp3")
			Expect(os.MkdirAll(scratchDir, os.ModePerm)).To(Succeed())
			Expect(os.WriteFile(inputPath, []byte("song"), 0644)).To(Succeed())
		})

		dummyExecutor = dummy.NewDummyExecutor()
		dummyExecutor.On(demucsBin, dummy.Demucs())
		demucs = separator.NewDemucsSeparator(demucsBin, torchHome, dummyExecutor)
	})

	Describe("Two stem model", func() {
		JustBeforeEach(func() {
			stemPath, err = demucs.Separate(context.Background(), inputPath, separator.TwoStemModel, scratchDir)
		})

		It("returns the stem demucs wrote", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(stemPath).To(Equal(filepath.Join(scratchDir, "separated", "htdemucs", "My Song", "no_vocals.mp3")))
			Expect(os.ReadFile(stemPath)).To(Equal([]byte("no_vocals:htdemucs")))
		})

		It("points demucs at the model cache", func() {
			invocations := dummyExecutor.Invocations(demucsBin)
			Expect(invocations).To(HaveLen(1))
			Expect(invocations[0].Env).To(ContainElement("TORCH_HOME=" + torchHome))
			Expect(invocations[0].Dir).To(Equal(scratchDir))
		})

		It("skips the high quality settings", func() {
			invocation := dummyExecutor.Invocations(demucsBin)[0]
			Expect(invocation.Has("--two-stems=vocals")).To(BeTrue())
			Expect(invocation.Has("--float32")).To(BeFalse())
			Expect(invocation.Flag("--mp3-bitrate")).To(Equal("320"))
			Expect(invocation.Args[len(invocation.Args)-1]).To(Equal(inputPath))
		})
	})

	Describe("Six stem model", func() {
		JustBeforeEach(func() {
			stemPath, err = demucs.Separate(context.Background(), inputPath, separator.SixStemModel, scratchDir)
		})

		It("uses the high quality settings", func() {
			Expect(err).NotTo(HaveOccurred())
			invocation := dummyExecutor.Invocations(demucsBin)[0]
			Expect(invocation.Flag("-n")).To(Equal("htdemucs_6s"))
			Expect(invocation.Has("--float32")).To(BeTrue())
			Expect(invocation.Flag("--shifts")).To(Equal("10"))
			Expect(invocation.Flag("--overlap")).To(Equal("0.25"))
		})

		It("returns the stem under the model's directory", func() {
			Expect(stemPath).To(Equal(separator.StemPath(scratchDir, separator.SixStemModel, inputPath)))
			Expect(stemPath).To(ContainSubstring("htdemucs_6s"))
		})
	})

	Describe("Partial downloads in the model cache", func() {
		var checkpoints string

		BeforeEach(func() {
			checkpoints = separator.CheckpointsDir(torchHome)
			Expect(os.MkdirAll(checkpoints, os.ModePerm)).To(Succeed())
			for _, name := range []string{"955717e8-8726e21a.th", "955717e8-8726e21a.th.part", "f7e0c4bc.partial"} {
				Expect(os.WriteFile(filepath.Join(checkpoints, name), []byte("weights"), 0644)).To(Succeed())
			}
		})

		JustBeforeEach(func() {
			_, err = demucs.Separate(context.Background(), inputPath, separator.TwoStemModel, scratchDir)
		})

		It("removes only the partial files", func() {
			Expect(err).NotTo(HaveOccurred())
			entries, readErr := os.ReadDir(checkpoints)
			Expect(readErr).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Name()).To(Equal("955717e8-8726e21a.th"))
		})
	})

	It("tolerates a model cache that doesn't exist yet", func() {
		Expect(separator.SweepPartialDownloads(filepath.Join(torchHome, "missing"))).To(Equal(0))
	})

	Describe("Demucs exits nonzero", func() {
		BeforeEach(func() {
			dummyExecutor.On(demucsBin, dummy.Fails("RuntimeError: CUDA out of memory"))
		})

		It("fails as an external tool failure carrying the output", func() {
			_, err = demucs.Separate(context.Background(), inputPath, separator.TwoStemModel, scratchDir)
			Expect(err).To(HaveOccurred())
			Expect(failure.Is(err, failure.ExternalToolFailure)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("CUDA out of memory"))
		})
	})

	Describe("Demucs runs past its deadline", func() {
		BeforeEach(func() {
			dummyExecutor.On(demucsBin, dummy.Hangs())
		})

		It("fails as a timeout rather than a tool failure", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err = demucs.Separate(ctx, inputPath, separator.TwoStemModel, scratchDir)
			Expect(failure.Is(err, failure.StageTimeout)).To(BeTrue())
			Expect(failure.Is(err, failure.ExternalToolFailure)).To(BeFalse())
		})
	})

	Describe("Demucs is cancelled", func() {
		BeforeEach(func() {
			dummyExecutor.On(demucsBin, dummy.Hangs())
		})

		It("carries neither a timeout nor a tool failure", func() {
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(20*time.Millisecond, cancel)

			_, err = demucs.Separate(ctx, inputPath, separator.TwoStemModel, scratchDir)
			Expect(err).To(HaveOccurred())
			Expect(failure.Is(err, failure.StageTimeout)).To(BeFalse())
			Expect(failure.Is(err, failure.ExternalToolFailure)).To(BeFalse())
		})
	})

	Describe("Demucs exits cleanly without output", func() {
		BeforeEach(func() {
			dummyExecutor.On(demucsBin, dummy.Silent())
		})

		It("fails as a missing artifact", func() {
			_, err = demucs.Separate(context.Background(), inputPath, separator.TwoStemModel, scratchDir)
			Expect(err).To(HaveOccurred())
			Expect(failure.Is(err, failure.ExpectedArtifactMissing)).To(BeTrue())
			Expect(failure.Is(err, failure.ExternalToolFailure)).To(BeFalse())
		})
	})

	It("rejects an unknown model without running anything", func() {
		_, err = demucs.Separate(context.Background(), inputPath, separator.Model("mdx_extra"), scratchDir)
		Expect(failure.Is(err, failure.InvalidParameter)).To(BeTrue())
		Expect(dummyExecutor.TotalCallCount()).To(Equal(0))
	})
})
