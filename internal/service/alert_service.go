package service

import (
	"context"
	"time"

	"desk-agenda/internal/model"
	pkgLog "desk-agenda/pkg/log"
)

// Notifier delivers a fired alert.
type Notifier interface {
	NotifyAlert(ctx context.Context, task model.Task, now time.Time) error
}

// AlertService fires the one-shot alert of each pending task once its lead
// time has been reached.
type AlertService struct {
	l        pkgLog.Logger
	tasks    *TaskService
	notifier Notifier
	grace    time.Duration
}

// NewAlertService builds the sweep. grace is how long after the due
// instant a missed alert is still delivered.
func NewAlertService(tasks *TaskService, notifier Notifier, grace time.Duration, l pkgLog.Logger) *AlertService {
	return &AlertService{l: l, tasks: tasks, notifier: notifier, grace: grace}
}

// Scan notifies every task whose alert window contains now and disables
// its alert. The collection is persisted once when anything fired.
func (s *AlertService) Scan(ctx context.Context, now time.Time) (int, error) {
	return s.tasks.update(ctx, func(t *model.Task) bool {
		if !s.due(*t, now) {
			return false
		}
		if err := s.notifier.NotifyAlert(ctx, *t, now); err != nil {
			s.l.Errorf(ctx, "Failed to deliver alert for %q: %v", t.Name, err)
		}
		t.AlertEnabled = false
		return true
	})
}

func (s *AlertService) due(t model.Task, now time.Time) bool {
	if t.Completed || !t.AlertEnabled {
		return false
	}
	dueAt := t.DueAt().In(now.Location())
	from := dueAt.Add(-time.Duration(t.AlertLeadSeconds) * time.Second)
	return !now.Before(from) && now.Before(dueAt.Add(s.grace))
}
