// Package poll runs a fixed-interval status check with an explicit
// lifecycle. The ticker is owned by the poller and torn down on Stop or
// context cancellation, so navigating away from a view cannot leak it.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Func is one poll round. Returning done=true stops the poller (a
// terminal state was observed). Errors are transient: they are logged
// and polling continues.
type Func func(ctx context.Context) (done bool, err error)

type Poller struct {
	interval time.Duration
	fetch    Func
	log      zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func New(interval time.Duration, fetch Func, log zerolog.Logger) *Poller {
	return &Poller{interval: interval, fetch: fetch, log: log}
}

// Start begins polling. The first round fires immediately, then every
// interval. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopped = make(chan struct{})
	go p.run(ctx, p.stopped)
}

// Stop cancels polling and waits for the loop to exit. Safe to call more
// than once and safe on a poller that never started.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	stopped := p.stopped
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// Done reports the channel closed when the poll loop exits, either from
// Stop, context cancellation, or a terminal state.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *Poller) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	defer func() {
		p.mu.Lock()
		// Only clear state belonging to this run; a Stop+Start pair may
		// already have installed a new loop.
		if p.stopped == stopped && p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		done, err := p.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Msg("status poll failed, will retry")
		}
		if done {
			p.log.Debug().Msg("status poll observed terminal state")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
