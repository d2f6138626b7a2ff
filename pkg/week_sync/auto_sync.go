package week_sync

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// AutoSync runs a task on a fixed interval until stopped. Start and Stop are idempotent;
// Stop returns once the loop, including a task in progress, has exited.
type AutoSync struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewAutoSync(interval time.Duration) *AutoSync {
	return &AutoSync{interval: interval}
}

// Start launches the loop. It returns false when the loop is already running.
func (a *AutoSync) Start(task func(ctx context.Context)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return false
	}
	if a.interval <= 0 {
		log.Warnf("auto sync disabled, interval is %s", a.interval)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	}()
	log.Debugf("Auto sync started, every %s", a.interval)
	return true
}

func (a *AutoSync) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Debug("Auto sync stopped")
}

func (a *AutoSync) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}
