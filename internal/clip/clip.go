// Package clip is the host clipboard the mirror writes to. Build constraints
// select the implementation:
//
//	clip_linux.go  golang.design/x/clipboard, falling back to memory
//	clip_other.go  memory only
package clip

import "sync"

// Item is one clipboard representation.
type Item struct {
	MIME string
	Data []byte
}

// Backend is a host clipboard.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard contents. Returns nil, nil if the
	// clipboard is empty or holds only unsupported types.
	Read() ([]Item, error)

	// Write sets the clipboard contents.
	Write(items []Item) error

	// Close releases any resources held by the backend.
	Close()
}

// Memory is a Backend that keeps the last write in memory. It stands in for
// the host clipboard on headless machines and in tests.
type Memory struct {
	mu     sync.Mutex
	items  []Item
	writes int
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Read() ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.items...), nil
}

func (m *Memory) Write(items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]Item(nil), items...)
	m.writes++
	return nil
}

// Writes reports how many times Write was called.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) Close() {}
