package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"entomo/internal/config"
)

type checkResult struct {
	Name     string
	Passed   bool
	Required bool
	Detail   string
}

// preflightChecks verifies the directories entomo writes to and the data files
// the cascade reads. Missing data files degrade the cascade but are not fatal.
func preflightChecks(cfg *config.Config) []checkResult {
	return []checkResult{
		checkDirectory("Data directory", cfg.Paths.DataDir),
		checkDirectory("Log directory", cfg.Paths.LogDir),
		checkReadable("Knowledge file", cfg.Paths.KnowledgeFile),
		checkReadable("Class index", cfg.Paths.ClassIndexFile),
	}
}

func checkDirectory(name, path string) checkResult {
	result := checkResult{Name: name, Required: true}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		result.Detail = fmt.Sprintf("%s (error: does not exist)", path)
	case err != nil:
		result.Detail = fmt.Sprintf("%s (error: stat: %v)", path, err)
	case !info.IsDir():
		result.Detail = fmt.Sprintf("%s (error: is not a directory)", path)
	default:
		if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
			result.Detail = fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)
			break
		}
		result.Passed = true
		result.Detail = fmt.Sprintf("%s (read/write ok)", path)
	}
	return result
}

func checkReadable(name, path string) checkResult {
	result := checkResult{Name: name}
	if path == "" {
		result.Detail = "not configured"
		return result
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		result.Detail = fmt.Sprintf("%s (unreadable: %v)", path, err)
		return result
	}
	result.Passed = true
	result.Detail = path
	return result
}

// acquireServeLock guards a data directory against a second `entomo serve`.
// Sessions and the history journal assume a single host.
func acquireServeLock(dataDir string) (*flock.Flock, error) {
	lockPath := filepath.Join(dataDir, "serve.lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another entomo serve holds %s", lockPath)
	}
	return lock, nil
}
