package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/shiftguard/internal/model"
)

// Op names a remote store operation.
type Op string

const (
	OpFetch  Op = "fetch"
	OpUpdate Op = "update"
	OpCreate Op = "create"
)

// Memory is an in-process document store.
//
// The payload is kept encoded, so every Fetch goes through the same decode
// path (with defaults) as a real network response. Tests use the call
// counters, FailNext and the fetch hook to observe and steer the engine.
type Memory struct {
	mu        sync.Mutex
	payload   []byte
	calls     map[Op]int
	failures  map[Op][]error
	fetchHook func(ctx context.Context)
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		calls:    make(map[Op]int),
		failures: make(map[Op][]error),
	}
}

// Seed stores doc as if another client had created it.
func (m *Memory) Seed(doc model.Document) error {
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = data
	return nil
}

// SeedRaw stores a raw JSON payload as-is.
func (m *Memory) SeedRaw(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = append([]byte(nil), payload...)
}

// Clear removes the stored record.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = nil
}

// Document returns the stored document, if any.
func (m *Memory) Document() (model.Document, bool) {
	m.mu.Lock()
	data := m.payload
	m.mu.Unlock()
	if data == nil {
		return model.Document{}, false
	}
	doc, err := model.DecodeDocument(data)
	if err != nil {
		return model.Document{}, false
	}
	return doc, true
}

// Calls returns how many times op was invoked, failed calls included.
func (m *Memory) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of invocations across all operations.
func (m *Memory) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// ResetCalls zeroes the call counters.
func (m *Memory) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[Op]int)
}

// FailNext makes the next invocation of op return err. Calls queue up.
func (m *Memory) FailNext(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

// SetFetchHook installs fn to run inside every Fetch, after the call is
// counted and before the record is read. A hook that blocks holds the
// fetch in flight.
func (m *Memory) SetFetchHook(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchHook = fn
}

// begin counts a call and pops any injected failure.
func (m *Memory) begin(op Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	if queued := m.failures[op]; len(queued) > 0 {
		m.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}

// Fetch implements the document store read.
func (m *Memory) Fetch(ctx context.Context) (model.Document, bool, error) {
	if err := m.begin(OpFetch); err != nil {
		return model.Document{}, false, err
	}

	m.mu.Lock()
	hook := m.fetchHook
	m.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return model.Document{}, false, err
	}

	m.mu.Lock()
	data := m.payload
	m.mu.Unlock()
	if data == nil {
		return model.Document{}, false, nil
	}
	doc, err := model.DecodeDocument(data)
	if err != nil {
		return model.Document{}, false, fmt.Errorf("memory fetch: %w", err)
	}
	return doc, true, nil
}

// Update replaces the record if it exists.
func (m *Memory) Update(ctx context.Context, doc model.Document) (bool, error) {
	if err := m.begin(OpUpdate); err != nil {
		return false, err
	}
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.payload == nil {
		return false, nil
	}
	m.payload = data
	return true, nil
}

// Create writes the record, replacing any existing one.
func (m *Memory) Create(ctx context.Context, doc model.Document) error {
	if err := m.begin(OpCreate); err != nil {
		return err
	}
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = data
	return nil
}
