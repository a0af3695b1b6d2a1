package fsutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/cliptitle/internal/errors"
)

// Default retry policy for transient write failures.
const (
	DefaultAttempts = 3
	DefaultBackoff  = 100 * time.Millisecond
)

// AtomicWriter writes whole files via a temp file in the target directory
// followed by a rename, so readers never observe a partially written file.
type AtomicWriter struct {
	Attempts int
	Backoff  time.Duration
	Perm     os.FileMode

	// beforeRename runs after the temp file is synced and closed; tests use it
	// to simulate a crash before the file is moved into place.
	beforeRename func(tmpPath string) error
}

// NewAtomicWriter returns a writer with the default retry policy.
func NewAtomicWriter() *AtomicWriter {
	return &AtomicWriter{
		Attempts: DefaultAttempts,
		Backoff:  DefaultBackoff,
		Perm:     0644,
	}
}

// WriteFile writes data to path, retrying transient failures.
// After the final failed attempt it returns an ErrWriteFailed error.
func (w *AtomicWriter) WriteFile(ctx context.Context, path string, data []byte) error {
	attempts := w.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelled("write " + filepath.Base(path))
		}

		lastErr = w.writeOnce(path, data)
		if lastErr == nil {
			return nil
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return errors.NewCancelled("write " + filepath.Base(path))
			case <-time.After(w.Backoff):
			}
		}
	}
	return errors.NewWriteFailed(path, attempts, lastErr)
}

func (w *AtomicWriter) writeOnce(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if tmp != nil {
			tmp.Close()
		}
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	// Close before rename (required on Windows; fine elsewhere).
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmp = nil

	perm := w.Perm
	if perm == 0 {
		perm = 0644
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if w.beforeRename != nil {
		if err := w.beforeRename(tmpPath); err != nil {
			return err
		}
	}

	// Check if destination is a symlink (os.Rename would replace the link, not the target)
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("destination %s is a symlink", path)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}

	success = true
	return nil
}
