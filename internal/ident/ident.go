// ABOUTME: Collision-checked id allocation for the shared entity namespace
// ABOUTME: Candidates come from a deterministic stream seeded per server instance

package ident

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// ErrExhausted is returned when every candidate in a full round of
// attempts collided with an existing id. This indicates a broken
// randomness source, not a full namespace.
var ErrExhausted = errors.New("id allocation attempts exhausted")

// maxAttempts bounds the collision retry loop. With random 128-bit
// candidates a single retry is already vanishingly unlikely.
const maxAttempts = 100

// Generator produces entity ids from a pseudo-random stream bound to
// the owning server's instance id. Not safe for concurrent use; the
// run loop is the only caller.
type Generator struct {
	rng *rand.Rand
}

// New creates a Generator seeded from the server instance id and a
// caller-supplied seed (typically the boot time in milliseconds).
func New(instance uuid.UUID, seed int64) *Generator {
	mixed := seed
	for i := 0; i < len(instance); i += 8 {
		mixed ^= int64(binary.BigEndian.Uint64(instance[i : i+8]))
	}
	return &Generator{rng: rand.New(rand.NewSource(mixed))}
}

// Allocate returns an id that inUse reports as free. It retries on
// collision rather than assuming the candidate space is clean.
func (g *Generator) Allocate(inUse func(uuid.UUID) bool) (uuid.UUID, error) {
	for i := 0; i < maxAttempts; i++ {
		candidate, err := uuid.NewRandomFromReader(g.rng)
		if err != nil {
			return uuid.Nil, fmt.Errorf("generating candidate id: %w", err)
		}
		if !inUse(candidate) {
			return candidate, nil
		}
	}
	return uuid.Nil, ErrExhausted
}
