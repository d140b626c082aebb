// Package timeutil abstracts the wall clock so domain code and services can
// be driven deterministically in tests.
package timeutil

import (
	"sync"
	"time"
)

// Provider supplies the current time.
type Provider interface {
	Now() time.Time
}

type realProvider struct{}

func (realProvider) Now() time.Time { return time.Now().UTC() }

// Default returns a Provider backed by the system clock.
func Default() Provider { return realProvider{} }

// Mock is a manually advanced clock.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock returns a Mock fixed at the given instant.
func NewMock(now time.Time) *Mock { return &Mock{now: now} }

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set moves the clock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
