package replication

import (
	"context"
	"time"
)

// Run drives replication until ctx is cancelled: an initial pull, a
// heartbeat pull every poll interval, queued pushes as they arrive and the
// debounced automatic push. Always returns ctx.Err().
//
// Remote operations already in flight are not cancelled early; the loop
// exits after they return.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("replication starting",
		"poll_interval", e.pollInterval,
		"push_debounce", e.pushDebounce,
	)

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	defer e.stop()

	_ = e.Pull(ctx, true)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("replication stopped")
			return ctx.Err()

		case <-e.pushes.Wait():
			if req, ok := e.pushes.Take(); ok {
				_ = e.push(ctx, req)
			}

		case <-e.autoPush:
			if e.autoPushDue() {
				_ = e.push(ctx, pushRequest{})
			}

		case <-ticker.C:
			_ = e.Pull(ctx, false)
		}
	}
}

// Sync is the manual "sync now": push when changes are pending, otherwise
// pull.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	pending := e.pendingLocked()
	e.mu.Unlock()

	if pending {
		return e.Push(ctx, nil)
	}
	return e.Pull(ctx, false)
}

func (e *Engine) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

// armAutoPushLocked (re)starts the debounce timer. Caller holds e.mu.
func (e *Engine) armAutoPushLocked() {
	if !e.running {
		return
	}
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(e.pushDebounce, func() {
		select {
		case e.autoPush <- struct{}{}:
		default:
		}
	})
}

// autoPushDue reports whether a debounced automatic push should run: the
// engine is initialized, someone is logged in, local changes are pending
// and no queued push will already carry them.
func (e *Engine) autoPushDue() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized && e.identity.Username != "" && e.pendingLocked() && !e.pushes.Pending()
}
