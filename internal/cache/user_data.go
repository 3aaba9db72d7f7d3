// Package cache holds the in-memory snapshot of the signed-in user's document.
//
// Snapshots are immutable once stored: Patch works on a deep copy and swaps the
// pointer, so subscribers can compare pointers to detect changes.
package cache

import (
	"errors"
	"sync"

	"daily-driver/internal/model"
)

// ErrEmpty is returned by Patch when no user data is loaded.
var ErrEmpty = errors.New("user data cache is empty")

// Listener receives every new snapshot. A nil snapshot means the cache was reset.
// Listeners may call Read but must not write to the cache.
type Listener func(*model.UserData)

// UserData is the process-wide user data slot.
type UserData struct {
	mu        sync.RWMutex
	current   *model.UserData
	listeners map[int]Listener
	nextID    int
	resets    uint64

	// notifyMu keeps deliveries in write order without holding mu during callbacks.
	notifyMu sync.Mutex
}

func New() *UserData {
	return &UserData{listeners: make(map[int]Listener)}
}

// Read returns the current snapshot or nil. Callers must not modify it.
func (c *UserData) Read() *model.UserData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Replace stores a whole new snapshot.
func (c *UserData) Replace(data *model.UserData) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.current = data.Clone()
	snapshot := c.current
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, snapshot)
}

// Generation counts resets. Capture it before reading remote data and hand it to
// ReplaceAt so a load that raced with a sign-out cannot refill the cache.
func (c *UserData) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resets
}

// ReplaceAt stores data only if the cache has not been reset since gen was taken.
// It reports whether the snapshot was stored.
func (c *UserData) ReplaceAt(gen uint64, data *model.UserData) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.resets != gen {
		c.mu.Unlock()
		return false
	}
	c.current = data.Clone()
	snapshot := c.current
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, snapshot)
	return true
}

// Patch applies fn to a copy of the current snapshot and stores the result.
// If fn fails, the previous snapshot is kept and the error is returned.
func (c *UserData) Patch(fn func(*model.UserData) error) error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	next, listeners, err := c.apply(fn)
	if err != nil {
		return err
	}
	notify(listeners, next)
	return nil
}

func (c *UserData) apply(fn func(*model.UserData) error) (*model.UserData, []Listener, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, nil, ErrEmpty
	}
	next := c.current.Clone()
	if err := fn(next); err != nil {
		return nil, nil, err
	}
	c.current = next
	return next, c.snapshotListeners(), nil
}

// Reset empties the cache, e.g. on sign-out. Every call starts a new generation,
// even when the cache is already empty.
func (c *UserData) Reset() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.resets++
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	c.current = nil
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, nil)
}

// Subscribe registers l for future snapshots and returns a function that removes it.
func (c *UserData) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *UserData) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(c.listeners))
	for id := 0; id < c.nextID; id++ {
		if l, ok := c.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

func notify(listeners []Listener, snapshot *model.UserData) {
	for _, l := range listeners {
		l(snapshot)
	}
}
