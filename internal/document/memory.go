package document

import (
	"context"
	"sync"
	"time"
)

// MemoryHandle is an in-process document, used by benchmarks and tests.
type MemoryHandle struct {
	mu      sync.Mutex
	name    string
	data    []byte
	modTime time.Time
	writes  int
}

// NewMemoryHandle returns a handle holding data.
func NewMemoryHandle(name string, data []byte) *MemoryHandle {
	return &MemoryHandle{name: name, data: append([]byte(nil), data...), modTime: time.Now()}
}

func (m *MemoryHandle) Name() string { return m.name }

func (m *MemoryHandle) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryHandle) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.modTime = time.Now()
	m.writes++
	return nil
}

func (m *MemoryHandle) Signal(ctx context.Context) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return Signal{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return SignalOf(m.data, m.modTime), nil
}

// Writes returns how many times Write succeeded.
func (m *MemoryHandle) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// StaticPicker always returns the same handle.
type StaticPicker struct {
	Handle Handle
}

// Pick returns p.Handle, or ErrNoDocument when it is nil.
func (p StaticPicker) Pick(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Handle == nil {
		return nil, ErrNoDocument
	}
	return p.Handle, nil
}
