package dummy

import (
	"context"
	"sync"

	"github.com/veedubyou/karaoke-worker/src/worker/internal/application/karaoke/transcoder"
)

var _ transcoder.Prober = &Prober{}

func NewDummyProber(seconds float64) *Prober {
	return &Prober{Seconds: seconds}
}

type Prober struct {
	Seconds     float64
	Unavailable bool
	mutex       sync.Mutex
	calls       int
}

func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.calls++

	if p.Unavailable {
		return 0, NetworkFailure
	}

	return p.Seconds, nil
}

func (p *Prober) CallCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.calls
}
