package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeBackuper struct {
	calls int
	names []string
}

func (f *fakeBackuper) Backup(_ context.Context, dest string) (string, error) {
	name := f.names[f.calls]
	f.calls++
	path := filepath.Join(dest, name)
	return path, os.WriteFile(path, []byte("db"), 0o644)
}

func TestDefaultBackupSchedulerConfig(t *testing.T) {
	config := DefaultBackupSchedulerConfig("/tmp/b")

	if config.Interval != 24*time.Hour {
		t.Errorf("expected Interval 24h, got %v", config.Interval)
	}
	if config.Keep != 7 {
		t.Errorf("expected Keep 7, got %d", config.Keep)
	}
	if config.Dir != "/tmp/b" {
		t.Errorf("expected Dir /tmp/b, got %s", config.Dir)
	}
}

func TestBackupScheduler_IsRunning(t *testing.T) {
	scheduler := NewBackupScheduler(nil, DefaultBackupSchedulerConfig(t.TempDir()))

	if scheduler.IsRunning() {
		t.Error("scheduler should not be running initially")
	}
}

func TestBackupScheduler_StartTwice(t *testing.T) {
	scheduler := NewBackupScheduler(nil, DefaultBackupSchedulerConfig(t.TempDir()))

	scheduler.mu.Lock()
	scheduler.running = true
	scheduler.mu.Unlock()

	if err := scheduler.Start(context.Background()); err == nil {
		t.Error("expected error when starting already running scheduler")
	}
}

func TestBackupScheduler_StartStop(t *testing.T) {
	scheduler := NewBackupScheduler(&fakeBackuper{}, DefaultBackupSchedulerConfig(t.TempDir()))
	ctx := context.Background()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !scheduler.IsRunning() {
		t.Fatal("scheduler should be running after Start")
	}
	if err := scheduler.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if scheduler.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}
}

func TestBackupScheduler_StopNotRunning(t *testing.T) {
	scheduler := NewBackupScheduler(nil, DefaultBackupSchedulerConfig(t.TempDir()))

	if err := scheduler.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestBackupScheduler_RejectsZeroInterval(t *testing.T) {
	scheduler := NewBackupScheduler(nil, BackupSchedulerConfig{Dir: t.TempDir()})

	if err := scheduler.Start(context.Background()); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestBackupScheduler_RunOncePrunes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	store := &fakeBackuper{names: []string{
		"pmpv_backup_20240101_000000.db",
		"pmpv_backup_20240102_000000.db",
		"pmpv_backup_20240103_000000.db",
	}}
	scheduler := NewBackupScheduler(store, BackupSchedulerConfig{Dir: dir, Interval: time.Hour, Keep: 2})

	for i := 0; i < 3; i++ {
		if _, err := scheduler.RunOnce(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 || entries[0].Name() != "pmpv_backup_20240102_000000.db" {
		t.Fatalf("expected the two newest backups, got %v", entries)
	}
}

func TestPruneBackupsIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"pmpv.db", "notes.txt", "pmpv_backup_20240101_000000.db"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := PruneBackups(dir, 1)
	if err != nil || removed != 0 {
		t.Fatalf("expected nothing removed, got %d err=%v", removed, err)
	}
	if removed, _ := PruneBackups(dir, 0); removed != 0 {
		t.Fatalf("keep=0 must keep all, removed %d", removed)
	}
}
