package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	lockFileName   = "recall.lock"
	defaultTimeout = 500 * time.Millisecond
	initialBackoff = 5 * time.Millisecond
	maxBackoff     = 50 * time.Millisecond
)

// writeLocker serializes store writes across processes with an OS file lock,
// so the CLI and a background watch loop can share one recall.db. The OS
// drops the lock when the holding process dies, crashed holders included.
type writeLocker struct {
	lockPath string
	lockFile *os.File
}

func newWriteLocker(baseDir string) *writeLocker {
	return &writeLocker{
		lockPath: filepath.Join(baseDir, lockFileName),
	}
}

// acquire polls for the exclusive lock until the timeout, backing off
// between attempts. On timeout the error names the current owner.
func (l *writeLocker) acquire(timeout time.Duration) error {
	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	l.lockFile = f

	deadline := time.Now().Add(timeout)
	backoff := initialBackoff

	for {
		err := l.tryLock()
		if err == nil {
			l.stampOwner()
			return nil
		}

		if time.Now().After(deadline) {
			owner := l.ownerInfo()
			l.lockFile.Close()
			l.lockFile = nil
			return fmt.Errorf("store is write-locked by %s (waited %v); another recall-sync may be running", owner, timeout)
		}

		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func (l *writeLocker) release() error {
	if l.lockFile == nil {
		return nil
	}

	l.lockFile.Truncate(0)
	l.unlock()
	l.lockFile.Close()
	l.lockFile = nil

	return nil
}

// stampOwner records who holds the lock, for the timeout diagnostic.
func (l *writeLocker) stampOwner() {
	if l.lockFile == nil {
		return
	}
	l.lockFile.Truncate(0)
	l.lockFile.Seek(0, 0)
	fmt.Fprintf(l.lockFile, "pid=%d since=%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	l.lockFile.Sync()
}

// ownerInfo reads the holder stamp back, flagging holders whose process no
// longer exists.
func (l *writeLocker) ownerInfo() string {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return "an unknown process"
	}

	var pid, since string
	for _, field := range strings.Fields(string(data)) {
		switch {
		case strings.HasPrefix(field, "pid="):
			pid = strings.TrimPrefix(field, "pid=")
		case strings.HasPrefix(field, "since="):
			since = strings.TrimPrefix(field, "since=")
		}
	}
	if pid == "" {
		return "an unknown process"
	}

	owner := fmt.Sprintf("pid %s since %s", pid, since)
	if n, err := strconv.Atoi(pid); err == nil && !isProcessAlive(n) {
		owner += " (process gone; stale lock)"
	}
	return owner
}

// tryLock and unlock are per-platform: flock on unix, LockFileEx on windows.
