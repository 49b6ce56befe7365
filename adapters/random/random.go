// Package random provides byte sources for identifier generation.
package random

import (
	"crypto/rand"
	"errors"
	"sync"
)

// Source produces random bytes.
type Source interface {
	Bytes(n int) ([]byte, error)
}

// Real uses crypto/rand.
type Real struct{}

// Bytes generates n cryptographically secure random bytes.
func (Real) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// ErrExhausted is returned by a Fake that was told to fail.
var ErrExhausted = errors.New("random source exhausted")

// Fake provides deterministic bytes for tests.
type Fake struct {
	mu      sync.Mutex
	counter int
	values  [][]byte
	index   int
	fail    bool
}

// NewFake creates a fake random source.
func NewFake() *Fake {
	return &Fake{}
}

// WithValues sets preset byte values to return, in order.
func (f *Fake) WithValues(values ...[]byte) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = values
	f.index = 0
	return f
}

// Failing makes every subsequent call return ErrExhausted.
func (f *Fake) Failing() *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = true
	return f
}

// Bytes returns the next preset value, padded or truncated to n, or
// counter-derived bytes once the presets run out.
func (f *Fake) Bytes(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return nil, ErrExhausted
	}

	b := make([]byte, n)
	if f.index < len(f.values) {
		copy(b, f.values[f.index])
		f.index++
		return b, nil
	}

	f.counter++
	for i := range b {
		b[i] = byte((f.counter + i) % 256)
	}
	return b, nil
}

// Reset rewinds the fake to its initial state.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter = 0
	f.index = 0
	f.fail = false
}
