package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"desk-agenda/internal/model"
	pkgLog "desk-agenda/pkg/log"
)

// TaskStorage is the durable side of the task store.
type TaskStorage interface {
	Save(ctx context.Context, tasks []model.Task) error
	Export(ctx context.Context, tasks []model.Task, path string) error
	Import(ctx context.Context, path string) ([]model.Task, error)
}

// TaskService owns the ordered task collection. It is not safe for
// concurrent use; callers serialise access with a single lock.
type TaskService struct {
	l       pkgLog.Logger
	storage TaskStorage
	tasks   []model.Task
}

// NewTaskService wraps tasks previously loaded from storage.
func NewTaskService(storage TaskStorage, tasks []model.Task, l pkgLog.Logger) *TaskService {
	owned := make([]model.Task, len(tasks))
	copy(owned, tasks)
	return &TaskService{l: l, storage: storage, tasks: owned}
}

func (s *TaskService) Add(ctx context.Context, task model.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	s.tasks = append(s.tasks, task)
	return s.persist(ctx)
}

// Remove deletes the first task with the same identity.
func (s *TaskService) Remove(ctx context.Context, task model.Task) error {
	i := s.indexOf(task)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, task)
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return s.persist(ctx)
}

// Replace swaps old for updated in place, keeping its position.
func (s *TaskService) Replace(ctx context.Context, old, updated model.Task) error {
	if err := updated.Validate(); err != nil {
		return err
	}
	i := s.indexOf(old)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, old)
	}
	s.tasks[i] = updated
	return s.persist(ctx)
}

// All returns a copy of the collection in insertion order.
func (s *TaskService) All() []model.Task {
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *TaskService) Len() int {
	return len(s.tasks)
}

// Find returns the first task matching pred.
func (s *TaskService) Find(pred func(model.Task) bool) (model.Task, bool) {
	for _, t := range s.tasks {
		if pred(t) {
			return t, true
		}
	}
	return model.Task{}, false
}

// AdvanceAllIfDue rolls every recurring task past its day forward and
// persists unconditionally.
func (s *TaskService) AdvanceAllIfDue(ctx context.Context, today civil.Date) error {
	for i := range s.tasks {
		s.tasks[i].AdvanceIfDue(today)
	}
	return s.persist(ctx)
}

// PurgeOneOffCompletedYesterday drops one-off tasks completed the day
// before today and returns how many were removed.
func (s *TaskService) PurgeOneOffCompletedYesterday(ctx context.Context, today civil.Date) (int, error) {
	yesterday := today.AddDays(-1)
	kept := s.tasks[:0]
	removed := 0
	for _, t := range s.tasks {
		if t.Kind == model.OneOff && t.Completed && t.LastCompleted == yesterday {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept
	if removed == 0 {
		return 0, nil
	}
	s.l.Infof(ctx, "Purged %d one-off tasks completed on %s", removed, yesterday)
	return removed, s.persist(ctx)
}

// ToggleCompletion flips the completion state of the matching task and
// returns it as stored. It reports false when no task has the same identity.
func (s *TaskService) ToggleCompletion(ctx context.Context, task model.Task, today civil.Date) (model.Task, bool, error) {
	i := s.indexOf(task)
	if i < 0 {
		return model.Task{}, false, nil
	}
	if s.tasks[i].Completed {
		s.tasks[i].MarkPending(today)
	} else {
		s.tasks[i].MarkCompleted(today)
	}
	return s.tasks[i], true, s.persist(ctx)
}

// ListForDisplay orders tasks as pending, then overdue, then completed,
// each group by due instant.
func (s *TaskService) ListForDisplay(now time.Time) []model.Task {
	current := civil.DateTimeOf(now)
	out := s.All()
	sort.SliceStable(out, func(i, j int) bool {
		gi, gj := displayGroup(out[i], current), displayGroup(out[j], current)
		if gi != gj {
			return gi < gj
		}
		return out[i].DueAt().Before(out[j].DueAt())
	})
	return out
}

func displayGroup(t model.Task, now civil.DateTime) int {
	switch {
	case t.Completed:
		return 3
	case t.DueAt().Before(now):
		return 2
	default:
		return 1
	}
}

// SortedByDateTimeName is the plain chronological listing.
func (s *TaskService) SortedByDateTimeName() []model.Task {
	out := s.All()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return clockBefore(a.Time, b.Time)
		}
		return a.Name < b.Name
	})
	return out
}

func clockBefore(a, b civil.Time) bool {
	return civil.DateTime{Time: a}.Before(civil.DateTime{Time: b})
}

func (s *TaskService) Export(ctx context.Context, path string) error {
	return s.storage.Export(ctx, s.tasks, path)
}

// Import appends every task read from path and persists. Duplicates are
// kept; the second result counts imported tasks whose identity already
// existed.
func (s *TaskService) Import(ctx context.Context, path string) (int, int, error) {
	imported, err := s.storage.Import(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	if len(imported) == 0 {
		return 0, 0, nil
	}

	existing := make(map[model.Identity]struct{}, len(s.tasks))
	for _, t := range s.tasks {
		existing[t.Key()] = struct{}{}
	}
	collisions := 0
	for _, t := range imported {
		if _, ok := existing[t.Key()]; ok {
			collisions++
		}
	}
	if collisions > 0 {
		s.l.Warnf(ctx, "Imported %d tasks sharing name, date, time and kind with existing ones", collisions)
	}

	s.tasks = append(s.tasks, imported...)
	return len(imported), collisions, s.persist(ctx)
}

// update applies fn to every task and persists when any call reports a
// change.
func (s *TaskService) update(ctx context.Context, fn func(*model.Task) bool) (int, error) {
	changed := 0
	for i := range s.tasks {
		if fn(&s.tasks[i]) {
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, s.persist(ctx)
}

func (s *TaskService) indexOf(task model.Task) int {
	for i, t := range s.tasks {
		if t.SameAs(task) {
			return i
		}
	}
	return -1
}

func (s *TaskService) persist(ctx context.Context) error {
	if err := s.storage.Save(ctx, s.tasks); err != nil {
		s.l.Errorf(ctx, "Failed to persist %d tasks: %v", len(s.tasks), err)
		return err
	}
	return nil
}
