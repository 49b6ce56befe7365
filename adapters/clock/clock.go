// Package clock provides time sources for entity timestamps.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/immitate/core/storage"
)

// Real reports the wall clock, in Location when set or the process's
// local zone otherwise.
type Real struct {
	Location *time.Location
}

// InZone returns a real clock for the named IANA zone. An empty name or
// "Local" selects the process's local zone.
func InZone(name string) (Real, error) {
	if name == "" || name == "Local" {
		return Real{}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Real{}, err
	}
	return Real{Location: loc}, nil
}

// Now returns the current time.
func (r Real) Now() time.Time {
	if r.Location != nil {
		return time.Now().In(r.Location)
	}
	return time.Now()
}

// Fake provides a controllable clock for testing.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set sets the fake current time.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake time forward by duration d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

var (
	_ storage.Clock = Real{}
	_ storage.Clock = (*Fake)(nil)
)
