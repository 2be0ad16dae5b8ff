package replication

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/shiftguard/internal/model"
)

// DocumentStore is the remote record the engine replicates against.
type DocumentStore interface {
	// Fetch returns the stored document, or found=false when none exists.
	Fetch(ctx context.Context) (doc model.Document, found bool, err error)
	// Update replaces the stored document if it exists.
	Update(ctx context.Context, doc model.Document) (matched bool, err error)
	// Create stores the document under the fixed key.
	Create(ctx context.Context, doc model.Document) error
}

// Clock supplies wall time for commit stamps and sync bookkeeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Identity is the acting account on this client.
type Identity struct {
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

// IsOwner reports whether the identity has the Owner role.
func (i Identity) IsOwner() bool {
	return i.Role == model.RoleOwner
}

// Defaults for scheduling.
const (
	DefaultPollInterval = 7 * time.Second
	DefaultPushDebounce = 1 * time.Second
)

// Status is a point-in-time view of the sync guard.
type Status struct {
	Initialized    bool      `json:"initialized"`
	Busy           bool      `json:"busy"`
	Dirty          bool      `json:"dirty"`
	HeldByBridge   bool      `json:"heldByBridge,omitempty"`
	BridgeActive   bool      `json:"bridgeActive"`
	Version        uint64    `json:"version"`
	LastPushedHash string    `json:"lastPushedHash,omitempty"`
	LastSync       time.Time `json:"lastSync,omitempty"`
	Identity       Identity  `json:"identity"`
}

// Engine replicates one client's document.
//
// Thread-safety model:
//   - Commit, Snapshot, Status, SetIdentity: safe from any goroutine
//   - Push, Pull, Sync, Flush: safe from any goroutine; remote calls are
//     serialized through a single slot
//   - Run: at most one goroutine
type Engine struct {
	remote  DocumentStore
	clock   Clock
	log     *slog.Logger
	metrics *Metrics

	pollInterval time.Duration
	pushDebounce time.Duration

	mu             sync.Mutex
	doc            model.Document
	version        uint64
	dirty          bool
	heldVersion    uint64
	initialized    bool
	busy           bool
	lastPushedHash string
	lastSync       time.Time
	identity       Identity
	running        bool
	debounce       *time.Timer

	slot     chan struct{}
	pushes   *pushQueue
	autoPush chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPollInterval sets the heartbeat pull interval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithPushDebounce sets the delay before an automatic push.
func WithPushDebounce(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pushDebounce = d
		}
	}
}

// WithInitialDocument replaces the default starting state.
func WithInitialDocument(doc model.Document) Option {
	return func(e *Engine) {
		d := doc.Clone()
		d.Normalize()
		e.doc = d
	}
}

// New creates an engine holding the default document. It is not
// initialized until its first pull completes.
func New(remote DocumentStore, opts ...Option) *Engine {
	e := &Engine{
		remote:       remote,
		clock:        systemClock{},
		log:          slog.Default(),
		pollInterval: DefaultPollInterval,
		pushDebounce: DefaultPushDebounce,
		slot:         make(chan struct{}, 1),
		pushes:       newPushQueue(),
		autoPush:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	if e.doc.Workers == nil {
		e.doc = model.DefaultDocument(e.clock.Now().UnixMilli())
	}
	return e
}

// Commit applies fn to a copy of the current document and, if fn succeeds,
// makes the result the new local state.
//
// Within one critical section it marks the engine dirty, commits the next
// state and queues a push whose payload is that exact state. fn must not
// block; permission checks and validation belong inside it, and an error
// from fn leaves everything untouched.
func (e *Engine) Commit(fn func(current model.Document) (model.Document, error)) (model.Document, error) {
	e.mu.Lock()
	next, err := fn(e.doc.Clone())
	if err != nil {
		e.mu.Unlock()
		return model.Document{}, err
	}

	next.Normalize()
	next.LastUpdated = e.clock.Now().UnixMilli()

	e.dirty = true
	e.version++
	e.doc = next

	payload := next.Clone()
	e.pushes.Offer(pushRequest{payload: &payload, version: e.version})
	e.metrics.setDirty(true)
	e.armAutoPushLocked()
	e.mu.Unlock()

	return next.Clone(), nil
}

// Snapshot returns a copy of the local document.
func (e *Engine) Snapshot() model.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// Status returns the current sync guard state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Initialized:    e.initialized,
		Busy:           e.busy,
		Dirty:          e.dirty,
		HeldByBridge:   e.dirty && !e.pendingLocked(),
		BridgeActive:   e.doc.BridgeActive,
		Version:        e.version,
		LastPushedHash: e.lastPushedHash,
		LastSync:       e.lastSync,
		Identity:       e.identity,
	}
}

// SetIdentity sets the acting account. An empty identity means logged out.
func (e *Engine) SetIdentity(id Identity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.identity = id
}

// Identity returns the acting account.
func (e *Engine) Identity() Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// pendingLocked reports whether local changes are waiting for a push that
// can still go out. Changes held back by a suspended bridge are not
// pending: the next pull replaces them. Caller holds e.mu.
func (e *Engine) pendingLocked() bool {
	return e.dirty && e.version != e.heldVersion
}

// acquire waits for the remote slot.
func (e *Engine) acquire(ctx context.Context) error {
	select {
	case e.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryAcquire takes the remote slot only if it is free.
func (e *Engine) tryAcquire() bool {
	select {
	case e.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *Engine) release() {
	<-e.slot
}
