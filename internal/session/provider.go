// Package session tracks which user is signed in on this device.
package session

import "sync"

// Provider reports the signed-in user and announces sign-in/sign-out transitions.
type Provider interface {
	// CurrentUser returns the signed-in user id, or false when nobody is signed in.
	CurrentUser() (string, bool)
	// OnChange calls fn right away with the current user ("" when signed out) and again on
	// every transition. The returned function stops the notifications.
	OnChange(fn func(userID string)) func()
}

// Manager is an in-process Provider driven by SignIn and SignOut.
type Manager struct {
	mu        sync.Mutex
	userID    string
	listeners map[int]func(string)
	nextID    int
}

func NewManager() *Manager {
	return &Manager{listeners: make(map[int]func(string))}
}

func (m *Manager) CurrentUser() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID, m.userID != ""
}

func (m *Manager) OnChange(fn func(userID string)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	current := m.userID
	m.mu.Unlock()

	fn(current)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// SignIn switches the session to userID. Signing in as the current user is a no-op.
func (m *Manager) SignIn(userID string) {
	m.set(userID)
}

func (m *Manager) SignOut() {
	m.set("")
}

func (m *Manager) set(userID string) {
	m.mu.Lock()
	if m.userID == userID {
		m.mu.Unlock()
		return
	}
	m.userID = userID
	listeners := make([]func(string), 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(userID)
	}
}
