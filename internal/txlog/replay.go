// ABOUTME: Startup replay of the transaction log and credential file
// ABOUTME: Malformed lines abort replay; a half-built store cannot be trusted

package txlog

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Replay reads the log at path line by line and hands each parsed
// record to apply, in log order. An absent file is a first run: it is
// created empty and replay succeeds with zero records. Any malformed
// line or apply failure aborts with an error naming the line.
func Replay(path string, apply func(Record) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return touch(path)
	}
	if err != nil {
		return fmt.Errorf("opening transaction log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := Parse(line)
		if err != nil {
			return fmt.Errorf("transaction log line %d: %w", lineNo, err)
		}
		if err := apply(rec); err != nil {
			return fmt.Errorf("applying transaction log line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading transaction log: %w", err)
	}
	return nil
}

// ReplayCredentials reads the credential file at path and hands each
// (user id, password hash) pair to apply. Later lines for the same id
// win, which lets password changes append rather than rewrite.
func ReplayCredentials(path string, apply func(id uuid.UUID, hash string)) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return touch(path)
	}
	if err != nil {
		return fmt.Errorf("opening credential file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, hash, ok := strings.Cut(line, " ")
		if !ok {
			return fmt.Errorf("credential file line %d: want two fields", lineNo)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return fmt.Errorf("credential file line %d: id: %w", lineNo, err)
		}
		apply(parsed, hash)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading credential file: %w", err)
	}
	return nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return f.Close()
}
