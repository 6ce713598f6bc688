package doctor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/portal/internal/platform/poll"
)

// Watcher polls the verification status while a submitted profile waits
// for admin review. OnChange fires once per observed transition; the
// watcher stops itself when the status turns terminal.
type Watcher struct {
	fetch    func(ctx context.Context) (*VerificationStatus, error)
	onChange func(VerificationStatus)
	poller   *poll.Poller

	mu   sync.Mutex
	last ProfileStatus
}

func NewWatcher(c *Client, interval time.Duration, onChange func(VerificationStatus), log zerolog.Logger) *Watcher {
	w := &Watcher{fetch: c.VerificationStatus, onChange: onChange}
	w.poller = poll.New(interval, w.round, log)
	return w
}

// newWatcherFunc is the test seam: same wiring, arbitrary fetch.
func newWatcherFunc(fetch func(ctx context.Context) (*VerificationStatus, error), interval time.Duration, onChange func(VerificationStatus), log zerolog.Logger) *Watcher {
	w := &Watcher{fetch: fetch, onChange: onChange}
	w.poller = poll.New(interval, w.round, log)
	return w
}

func (w *Watcher) Start(ctx context.Context) { w.poller.Start(ctx) }
func (w *Watcher) Stop()                     { w.poller.Stop() }
func (w *Watcher) Done() <-chan struct{}     { return w.poller.Done() }

// Last returns the most recently observed status, or "" before the
// first successful round.
func (w *Watcher) Last() ProfileStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Watcher) round(ctx context.Context) (bool, error) {
	vs, err := w.fetch(ctx)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	changed := vs.ProfileStatus != w.last
	w.last = vs.ProfileStatus
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange(*vs)
	}
	return vs.ProfileStatus.Terminal(), nil
}
