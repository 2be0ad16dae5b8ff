package replication

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/shiftguard/internal/model"
)

// Push sends a document to the remote store.
//
// With a nil payload the current local state is sent, and nothing is sent
// if its content hash equals the last pushed hash. An explicit payload is
// always sent. Pushes before initialization, and pushes of a document whose
// bridge is inactive by a non-Owner, are silently dropped; the latter
// leaves its version held so the next heartbeat pull can replace it.
//
// A failed push leaves the engine dirty and returns the error; the next
// debounce or manual sync retries it.
func (e *Engine) Push(ctx context.Context, payload *model.Document) error {
	req := pushRequest{}
	if payload != nil {
		p := payload.Clone()
		e.mu.Lock()
		req = pushRequest{payload: &p, version: e.version}
		e.mu.Unlock()
	}
	return e.push(ctx, req)
}

// Flush runs the pending queued push, if any, on the calling goroutine.
func (e *Engine) Flush(ctx context.Context) error {
	req, ok := e.pushes.Take()
	if !ok {
		return nil
	}
	return e.push(ctx, req)
}

func (e *Engine) push(ctx context.Context, req pushRequest) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		e.log.Debug("push skipped: not initialized")
		e.metrics.push(PushUninitialized)
		return nil
	}

	explicit := req.payload != nil
	var doc model.Document
	var version uint64
	if explicit {
		doc = *req.payload
		version = req.version
	} else {
		doc = e.doc.Clone()
		version = e.version
	}

	if !doc.BridgeActive && !e.identity.IsOwner() {
		if version == e.version {
			e.heldVersion = version
		}
		e.mu.Unlock()
		e.log.Info("push skipped: bridge inactive", "actor", e.identity.Username)
		e.metrics.push(PushBridgeBlocked)
		return nil
	}

	hash, err := model.ContentHash(doc)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("push: %w", err)
	}

	if !explicit && hash == e.lastPushedHash {
		if version == e.version {
			e.dirty = false
			e.metrics.setDirty(false)
		}
		e.mu.Unlock()
		e.log.Debug("push skipped: content unchanged")
		e.metrics.push(PushUnchanged)
		return nil
	}

	e.busy = true
	e.mu.Unlock()

	err = e.upsert(ctx, doc)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false

	if err != nil {
		e.log.Error("push failed", "version", version, "error", err)
		e.metrics.push(PushFailed)
		e.armAutoPushLocked()
		return fmt.Errorf("push: %w", err)
	}

	e.lastPushedHash = hash
	e.lastSync = e.clock.Now()
	e.metrics.synced(e.lastSync)
	if version == e.version {
		e.dirty = false
		e.metrics.setDirty(false)
	}
	e.metrics.push(PushSucceeded)
	e.log.Info("push succeeded", "version", version, "dirty", e.dirty)
	return nil
}

// upsert updates the record and creates it when no record matched.
func (e *Engine) upsert(ctx context.Context, doc model.Document) error {
	start := time.Now()
	matched, err := e.remote.Update(ctx, doc)
	e.metrics.observe("update", start)
	if err != nil {
		return err
	}
	if matched {
		return nil
	}

	e.log.Info("remote record missing, creating")
	start = time.Now()
	err = e.remote.Create(ctx, doc)
	e.metrics.observe("create", start)
	return err
}
