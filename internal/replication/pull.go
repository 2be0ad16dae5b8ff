package replication

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/shiftguard/internal/model"
)

// Pull fetches the remote document and, when safe, replaces local state
// with it.
//
// A pull is skipped while another remote operation is in flight, and a
// non-initial pull is skipped while local changes are unpushed. If the
// engine becomes dirty during the fetch, a non-initial result is discarded.
// Until the engine is initialized every pull counts as initial. Changes a
// suspended bridge kept from being pushed do not block a pull; the remote
// document replaces them.
//
// An initial pull that finds no remote record marks the engine initialized
// and pushes the local state, creating the record.
func (e *Engine) Pull(ctx context.Context, initial bool) error {
	if !e.tryAcquire() {
		e.log.Debug("pull skipped: remote operation in flight")
		e.metrics.pull(PullBusy)
		return nil
	}
	held := true
	defer func() {
		if held {
			e.release()
		}
	}()

	e.mu.Lock()
	if !e.initialized {
		initial = true
	}
	if e.pendingLocked() && !initial {
		e.mu.Unlock()
		e.log.Debug("pull skipped: local changes pending")
		e.metrics.pull(PullDirty)
		return nil
	}
	e.busy = true
	e.mu.Unlock()

	start := time.Now()
	remoteDoc, found, err := e.remote.Fetch(ctx)
	e.metrics.observe("fetch", start)

	e.mu.Lock()
	e.busy = false

	if err != nil {
		e.mu.Unlock()
		e.log.Error("pull failed", "initial", initial, "error", err)
		e.metrics.pull(PullFailed)
		return fmt.Errorf("pull: %w", err)
	}

	if e.pendingLocked() && !initial {
		e.mu.Unlock()
		e.log.Warn("pull discarded: local changes made during fetch")
		e.metrics.pull(PullDiscarded)
		return nil
	}

	if found {
		err := e.applyRemoteLocked(remoteDoc, initial)
		e.mu.Unlock()
		if err != nil {
			e.metrics.pull(PullFailed)
			return fmt.Errorf("pull: %w", err)
		}
		e.metrics.pull(PullApplied)
		return nil
	}

	e.metrics.pull(PullNotFound)
	if !initial {
		e.mu.Unlock()
		e.log.Warn("remote record missing on heartbeat")
		return nil
	}

	e.initialized = true
	e.mu.Unlock()
	e.log.Info("remote record missing, seeding from local state")

	held = false
	e.release()
	return e.Push(ctx, nil)
}

// applyRemoteLocked replaces local state with doc. Caller holds e.mu.
func (e *Engine) applyRemoteLocked(doc model.Document, initial bool) error {
	hash, err := model.ContentHash(doc)
	if err != nil {
		return err
	}

	// The remote bridge flag replaces the local one whole, so an inactive
	// bridge reaches non-Owner clients even if they had it active.
	next := doc.Clone()
	next.Normalize()

	e.doc = next
	e.version++
	e.pushes.Drop(e.version)
	e.lastPushedHash = hash
	e.dirty = false
	e.metrics.setDirty(false)
	e.lastSync = e.clock.Now()
	e.metrics.synced(e.lastSync)
	if initial {
		e.initialized = true
	}

	e.log.Debug("pull applied",
		"initial", initial,
		"workers", len(next.Workers),
		"logs", len(next.Logs),
		"bridge_active", next.BridgeActive,
	)
	return nil
}
