package prefs

import (
	"errors"
	"sync"

	"github.com/nhle/agora/internal/observe"
)

// ErrUnavailable is returned by storages that cannot persist anything,
// such as when the preferences location is read-only or disabled.
var ErrUnavailable = errors.New("preference storage unavailable")

// Change describes a write made through another handle.
type Change struct {
	Key   string
	Value string
}

// Storage is a small persisted key/value store. Watch only reports
// changes made by other handles or processes, never the caller's own
// writes, mirroring how browser storage events behave.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Watch(fn func(Change)) (stop func(), err error)
}

// Memory is an in-process storage shared by any number of handles.
// Each handle models one independent window onto the same data.
type Memory struct {
	mu      sync.Mutex
	values  map[string]string
	nextID  int
	handles map[int]*MemoryHandle
}

// NewMemory creates an empty shared memory storage.
func NewMemory() *Memory {
	return &Memory{
		values:  make(map[string]string),
		handles: make(map[int]*MemoryHandle),
	}
}

// Handle returns a new view onto the shared storage.
func (m *Memory) Handle() *MemoryHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	h := &MemoryHandle{id: m.nextID, mem: m}
	m.handles[h.id] = h
	return h
}

// MemoryHandle is one window's view of a Memory storage.
type MemoryHandle struct {
	id       int
	mem      *Memory
	watchers observe.Registry[Change]
}

// Get returns the stored value for key.
func (h *MemoryHandle) Get(key string) (string, bool, error) {
	h.mem.mu.Lock()
	defer h.mem.mu.Unlock()

	v, ok := h.mem.values[key]
	return v, ok, nil
}

// Set stores value and notifies watchers on every other handle.
func (h *MemoryHandle) Set(key, value string) error {
	h.mem.mu.Lock()
	h.mem.values[key] = value
	others := make([]*MemoryHandle, 0, len(h.mem.handles))
	for id, other := range h.mem.handles {
		if id != h.id {
			others = append(others, other)
		}
	}
	h.mem.mu.Unlock()

	for _, other := range others {
		other.watchers.Notify(Change{Key: key, Value: value})
	}
	return nil
}

// Watch registers fn for changes written through other handles.
func (h *MemoryHandle) Watch(fn func(Change)) (func(), error) {
	return h.watchers.Add(fn), nil
}

// Unavailable is a storage that fails every operation.
type Unavailable struct{}

// Get always fails.
func (Unavailable) Get(string) (string, bool, error) { return "", false, ErrUnavailable }

// Set always fails.
func (Unavailable) Set(string, string) error { return ErrUnavailable }

// Watch always fails.
func (Unavailable) Watch(func(Change)) (func(), error) { return func() {}, ErrUnavailable }
