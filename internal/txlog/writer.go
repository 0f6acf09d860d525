// ABOUTME: Batched append-only writer for the transaction log
// ABOUTME: Buffers records in memory and writes them out once per batch or on Flush

package txlog

import (
	"fmt"
	"log/slog"
	"os"
)

// DefaultBatchSize is how many records accumulate before the buffer is
// written out. A crash loses at most one un-flushed batch.
const DefaultBatchSize = 15

// Writer is the durable log's append side. It is an explicit object
// owned by the caller, not shared process state; the controller holds
// a handle and appends through it. Not safe for concurrent use — all
// appends happen on the run loop.
type Writer struct {
	path      string
	f         *os.File
	pending   []string
	batchSize int
	logger    *slog.Logger
}

// NewWriter opens (creating if absent) the log file at path in append
// mode. batchSize <= 0 selects DefaultBatchSize.
func NewWriter(path string, batchSize int, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening transaction log: %w", err)
	}
	return &Writer{
		path:      path,
		f:         f,
		batchSize: batchSize,
		logger:    logger.With("component", "txlog"),
	}, nil
}

// Append buffers one record and writes the batch out when it is full.
func (w *Writer) Append(r Record) error {
	w.pending = append(w.pending, Encode(r))
	if len(w.pending) >= w.batchSize {
		return w.Flush()
	}
	return nil
}

// Pending reports how many records are buffered but not yet on disk.
func (w *Writer) Pending() int {
	return len(w.pending)
}

// Flush writes every buffered record to disk. Called on client
// disconnect and at shutdown so the tail of the log survives.
func (w *Writer) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	for _, line := range w.pending {
		if _, err := w.f.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("writing transaction log: %w", err)
		}
	}
	w.logger.Debug("log batch flushed", "records", len(w.pending))
	w.pending = w.pending[:0]
	return nil
}

// Reset discards buffered records and truncates the file. Used by the
// administrative wipe; without this a restart would replay the wiped
// state back into existence.
func (w *Writer) Reset() error {
	w.pending = w.pending[:0]
	if err := w.f.Truncate(0); err != nil {
		return fmt.Errorf("truncating transaction log: %w", err)
	}
	if _, err := w.f.Seek(0, 0); err != nil {
		return fmt.Errorf("rewinding transaction log: %w", err)
	}
	w.logger.Info("transaction log truncated")
	return nil
}

// Close flushes and releases the file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
