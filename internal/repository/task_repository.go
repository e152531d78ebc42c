package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"desk-agenda/internal/model"
	pkgLog "desk-agenda/pkg/log"
)

var (
	ErrPersist = errors.New("persist tasks")
	ErrExport  = errors.New("export tasks")
	ErrImport  = errors.New("import tasks")
)

// TaskFileRepository keeps the task list in a flat file next to two
// alternating backups. Save replaces the primary file atomically and then
// one backup slot; Load first restores the newest backup over the primary.
type TaskFileRepository struct {
	l        pkgLog.Logger
	path     string
	backups  [2]string
	nextSlot int
}

func NewTaskFileRepository(path string, l pkgLog.Logger) *TaskFileRepository {
	return &TaskFileRepository{
		l:       l,
		path:    path,
		backups: [2]string{backupPath(path, 1), backupPath(path, 2)},
	}
}

// backupPath inserts .backupN before the extension: tareas.json becomes
// tareas.backup1.json. Names without an extension get the suffix appended.
func backupPath(path string, n int) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" || stem == "" {
		return fmt.Sprintf("%s.backup%d", path, n)
	}
	return fmt.Sprintf("%s%s.backup%d%s", dir, stem, n, ext)
}

func (r *TaskFileRepository) Path() string {
	return r.path
}

func (r *TaskFileRepository) BackupPaths() [2]string {
	return r.backups
}

// Save writes the whole collection. Only a failure on the primary file is
// reported; backup failures are logged.
func (r *TaskFileRepository) Save(ctx context.Context, tasks []model.Task) error {
	data, err := encodeTasks(tasks)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	if dir := filepath.Dir(r.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create dir %q: %w", ErrPersist, dir, err)
		}
	}

	if err := writeFileAtomic(r.path, data); err != nil {
		r.l.Errorf(ctx, "Failed to write task file %s: %v", r.path, err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	slot := r.backups[r.nextSlot]
	if err := writeFileAtomic(slot, data); err != nil {
		r.l.Warnf(ctx, "Failed to write backup %s: %v", slot, err)
		return nil
	}
	r.nextSlot = 1 - r.nextSlot
	return nil
}

// Load restores the most recent backup over the primary file and reads it.
// A missing, unreadable or malformed file yields an empty list.
func (r *TaskFileRepository) Load(ctx context.Context) []model.Task {
	r.restoreNewestBackup(ctx)

	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.l.Warnf(ctx, "Failed to read task file %s: %v", r.path, err)
		}
		return []model.Task{}
	}

	tasks, skipped, err := decodeTasks(data)
	if err != nil {
		r.l.Warnf(ctx, "Ignoring unreadable task file %s: %v", r.path, err)
		return []model.Task{}
	}
	if skipped > 0 {
		r.l.Warnf(ctx, "Skipped %d malformed records in %s", skipped, r.path)
	}
	r.l.Infof(ctx, "Loaded %d tasks from %s", len(tasks), r.path)
	return tasks
}

func (r *TaskFileRepository) restoreNewestBackup(ctx context.Context) {
	newest := -1
	var newestInfo os.FileInfo
	for i, p := range r.backups {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		// Equal modification times favour the second slot.
		if newest == -1 || !info.ModTime().Before(newestInfo.ModTime()) {
			newest, newestInfo = i, info
		}
	}
	if newest == -1 {
		return
	}

	data, err := os.ReadFile(r.backups[newest])
	if err != nil {
		r.l.Warnf(ctx, "Failed to read backup %s: %v", r.backups[newest], err)
		return
	}
	if err := writeFileAtomic(r.path, data); err != nil {
		r.l.Warnf(ctx, "Failed to restore %s from backup: %v", r.path, err)
		return
	}
	r.nextSlot = 1 - newest
	r.l.Debugf(ctx, "Restored %s from %s", r.path, r.backups[newest])
}

// HasBackups reports whether any backup slot holds more than an empty array.
func (r *TaskFileRepository) HasBackups() bool {
	for _, p := range r.backups {
		if info, err := os.Stat(p); err == nil && info.Size() > 10 {
			return true
		}
	}
	return false
}

// Export writes tasks to an arbitrary path in the same format as the
// primary file.
func (r *TaskFileRepository) Export(ctx context.Context, tasks []model.Task, path string) error {
	data, err := encodeTasks(tasks)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	r.l.Infof(ctx, "Exported %d tasks to %s", len(tasks), path)
	return nil
}

// Import reads tasks from path. Content that is not a task array imports
// nothing; unreadable files are an error.
func (r *TaskFileRepository) Import(ctx context.Context, path string) ([]model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImport, err)
	}

	tasks, skipped, err := decodeTasks(data)
	if err != nil {
		r.l.Warnf(ctx, "Nothing to import from %s: %v", path, err)
		return []model.Task{}, nil
	}
	if skipped > 0 {
		r.l.Warnf(ctx, "Skipped %d malformed records in %s", skipped, path)
	}
	return tasks, nil
}

// writeFileAtomic writes data to a temporary file in the target directory,
// syncs it and renames it over path.
func writeFileAtomic(path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp.Name(), err)
	}
	return nil
}
