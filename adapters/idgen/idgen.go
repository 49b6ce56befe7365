// Package idgen provides entity identifier generators.
package idgen

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/artpar/immitate/adapters/random"
	"github.com/artpar/immitate/core/storage"
	"github.com/google/uuid"
)

// Supported identifier formats.
const (
	FormatHex  = "hex"
	FormatUUID = "uuid"
)

// HexBytes is the number of random bytes in a hex id (20 hex chars).
const HexBytes = 10

// ForFormat returns the generator for a configured id format.
func ForFormat(format string) (storage.IDGenerator, error) {
	switch format {
	case "", FormatHex:
		return NewHex(random.Real{}), nil
	case FormatUUID:
		return UUID{}, nil
	}
	return nil, fmt.Errorf("unknown id format %q", format)
}

// Hex generates lower-case hex ids from a random source.
type Hex struct {
	source random.Source
}

// NewHex creates a hex generator reading from source.
func NewHex(source random.Source) *Hex {
	return &Hex{source: source}
}

// New returns the next id. It panics if the random source fails, as
// uuid.New does.
func (h *Hex) New() string {
	b, err := h.source.Bytes(HexBytes)
	if err != nil {
		panic(fmt.Sprintf("idgen: random source failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// UUID generates UUIDs.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.New().String()
}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + strconv.FormatUint(n, 10)
}

// Reset resets the counter (for testing).
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

var (
	_ storage.IDGenerator = (*Hex)(nil)
	_ storage.IDGenerator = UUID{}
	_ storage.IDGenerator = (*Sequential)(nil)
)
