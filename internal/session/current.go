package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// currentFileName is where the REPL remembers the active session between
// runs, relative to the state directory.
const currentFileName = "current_session"

const currentLockRetry = 100 * time.Millisecond

// stateDir returns the per-user state directory, creating it if needed.
func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".cvswarm")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return dir, nil
}

// SaveCurrentID persists the active session id for the next REPL run.
// The write is atomic (temp file plus rename) under a file lock.
func SaveCurrentID(ctx context.Context, id string) error {
	dir, err := stateDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, currentFileName)

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, currentLockRetry)
	if err != nil {
		return fmt.Errorf("lock current session file: %w", err)
	}
	if !locked {
		return fmt.Errorf("current session file locked by another process")
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, currentFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(id + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write current session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace current session file: %w", err)
	}
	return nil
}

// LoadCurrentID returns the persisted session id, or "" when none was
// saved yet.
func LoadCurrentID(ctx context.Context) (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, currentFileName)

	lock := flock.New(path + ".lock")
	locked, err := lock.TryRLockContext(ctx, currentLockRetry)
	if err != nil {
		return "", fmt.Errorf("lock current session file: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("current session file locked by another process")
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(path) // #nosec G304 -- path is under the user state dir
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read current session: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ClearCurrentID forgets the persisted session id.
func ClearCurrentID() error {
	dir, err := stateDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, currentFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove current session file: %w", err)
	}
	return nil
}
