package testing

import (
	"os"

	. "github.com/onsi/gomega"
	"github.com/veedubyou/karaoke-worker/src/shared/config/envvar"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/env"
)

func ExpectSuccess[T any](t T, err error) T {
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return t
}

func SetTestEnv() {
	err := os.Setenv(envvar.ENVIRONMENT, string(env.Test))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
}
