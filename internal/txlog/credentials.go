// ABOUTME: Append-only credential file, flushed on every write
// ABOUTME: One "<user-id> <password-hash>" line per password set

package txlog

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// CredentialFile is the companion record of password hashes. Unlike
// the transaction log it is not batched: losing a freshly set password
// to a crash would lock an admin out.
type CredentialFile struct {
	path string
	f    *os.File
}

// OpenCredentialFile opens (creating if absent) the credential file in
// append mode.
func OpenCredentialFile(path string) (*CredentialFile, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening credential file: %w", err)
	}
	return &CredentialFile{path: path, f: f}, nil
}

// Append writes one credential record and syncs it to disk.
func (c *CredentialFile) Append(id uuid.UUID, hash string) error {
	if _, err := fmt.Fprintf(c.f, "%s %s\n", id, hash); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	if err := c.f.Sync(); err != nil {
		return fmt.Errorf("syncing credential file: %w", err)
	}
	return nil
}

// Reset truncates the credential file. Part of the administrative
// wipe.
func (c *CredentialFile) Reset() error {
	if err := c.f.Truncate(0); err != nil {
		return fmt.Errorf("truncating credential file: %w", err)
	}
	if _, err := c.f.Seek(0, 0); err != nil {
		return fmt.Errorf("rewinding credential file: %w", err)
	}
	return nil
}

// Close releases the file.
func (c *CredentialFile) Close() error {
	return c.f.Close()
}
