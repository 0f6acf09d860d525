// ABOUTME: In-memory credential map with bcrypt hashing and verification
// ABOUTME: Hash failures surface as booleans, never as panics or fatal errors

package auth

import (
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Credentials maps user ids to bcrypt password hashes. Mutated only
// from the run loop, like the rest of the server state.
type Credentials struct {
	hashes map[uuid.UUID]string
	logger *slog.Logger
}

// NewCredentials returns an empty credential map. Pass nil logger for
// the default.
func NewCredentials(logger *slog.Logger) *Credentials {
	if logger == nil {
		logger = slog.Default()
	}
	return &Credentials{
		hashes: make(map[uuid.UUID]string),
		logger: logger.With("component", "auth"),
	}
}

// Set hashes raw and stores it for id. It returns the stored hash and
// true, or "" and false if hashing failed, in which case no state
// changed.
func (c *Credentials) Set(id uuid.UUID, raw string) (string, bool) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		c.logger.Error("password hash failed", "user_id", id, "error", err)
		return "", false
	}
	c.hashes[id] = string(hash)
	return string(hash), true
}

// Restore stores an already-hashed credential, as read back from the
// credential file.
func (c *Credentials) Restore(id uuid.UUID, hash string) {
	c.hashes[id] = hash
}

// Verify reports whether raw matches the stored hash for id. Unknown
// ids and comparison failures both verify as false.
func (c *Credentials) Verify(id uuid.UUID, raw string) bool {
	hash, ok := c.hashes[id]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}

// Has reports whether a credential exists for id.
func (c *Credentials) Has(id uuid.UUID) bool {
	_, ok := c.hashes[id]
	return ok
}

// Clear drops every stored credential. Part of the administrative
// wipe.
func (c *Credentials) Clear() {
	c.hashes = make(map[uuid.UUID]string)
}
