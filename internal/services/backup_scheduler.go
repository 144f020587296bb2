package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// BackupSchedulerConfig holds configuration for periodic database backups
type BackupSchedulerConfig struct {
	// Dir receives the backup files.
	Dir string

	// Interval is how often a backup is written (default: 24h)
	Interval time.Duration

	// Keep is how many backup files are retained; 0 keeps all (default: 7)
	Keep int
}

// DefaultBackupSchedulerConfig returns sensible defaults
func DefaultBackupSchedulerConfig(dir string) BackupSchedulerConfig {
	return BackupSchedulerConfig{
		Dir:      dir,
		Interval: 24 * time.Hour,
		Keep:     7,
	}
}

// BackupScheduler writes a database backup on a fixed interval and prunes
// old backup files.
type BackupScheduler struct {
	store  Backuper
	config BackupSchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewBackupScheduler(store Backuper, config BackupSchedulerConfig) *BackupScheduler {
	return &BackupScheduler{
		store:  store,
		config: config,
	}
}

// Start begins the backup loop. Returns an error if already running.
func (b *BackupScheduler) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("backup scheduler is already running")
	}
	if b.config.Interval <= 0 {
		b.mu.Unlock()
		return fmt.Errorf("backup interval must be positive, got %v", b.config.Interval)
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	b.mu.Unlock()

	go b.runLoop(ctx)

	slog.InfoContext(ctx, "Backup scheduler started",
		"dir", b.config.Dir,
		"interval", b.config.Interval,
		"keep", b.config.Keep)
	return nil
}

// Stop gracefully stops the scheduler and waits for the running backup.
func (b *BackupScheduler) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	close(b.stopCh)

	select {
	case <-b.doneCh:
		slog.InfoContext(ctx, "Backup scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Backup scheduler stop timed out")
		return ctx.Err()
	}

	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
	return nil
}

func (b *BackupScheduler) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *BackupScheduler) runLoop(ctx context.Context) {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.RunOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "Scheduled backup failed", "error", err)
			}
		}
	}
}

// RunOnce writes one backup and prunes the directory.
func (b *BackupScheduler) RunOnce(ctx context.Context) (string, error) {
	if err := os.MkdirAll(b.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path, err := b.store.Backup(ctx, b.config.Dir)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Scheduled backup written", "path", path)

	removed, err := PruneBackups(b.config.Dir, b.config.Keep)
	if err != nil {
		slog.WarnContext(ctx, "Failed to prune old backups", "error", err)
	} else if removed > 0 {
		slog.InfoContext(ctx, "Pruned old backups", "removed", removed)
	}
	return path, nil
}

// PruneBackups keeps the newest keep backup files in dir and returns how
// many were removed. Backup names embed their timestamp, so name order is
// age order.
func PruneBackups(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, "pmpv_backup_") && strings.HasSuffix(n, ".db") {
			names = append(names, n)
		}
	}
	if len(names) <= keep {
		return 0, nil
	}
	sort.Strings(names)
	removed := 0
	for _, n := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, n)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
