package model

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// Kind tells how a task repeats.
type Kind int

const (
	OneOff Kind = iota
	Daily
	Weekly
)

var kindNames = map[Kind]string{
	OneOff: "ONE_OFF",
	Daily:  "DAILY",
	Weekly: "WEEKLY",
}

// String returns the persisted enum name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Recurring reports whether tasks of this kind roll forward.
func (k Kind) Recurring() bool {
	return k == Daily || k == Weekly
}

// ParseKind is the inverse of Kind.String.
func ParseKind(raw string) (Kind, error) {
	for k, name := range kindNames {
		if name == raw {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

var (
	ErrEmptyName    = errors.New("task name is empty")
	ErrUnknownKind  = errors.New("unknown task kind")
	ErrNoWeeklyDays = errors.New("weekly task needs at least one weekday")
	ErrNegativeLead = errors.New("alert lead must not be negative")
)

// Task is one schedulable activity. Date and Time hold the due instant of
// the next (or only) occurrence.
type Task struct {
	Name      string
	Date      civil.Date
	Time      civil.Time
	Kind      Kind
	Completed bool

	WeeklyDays WeekdaySet

	AlertEnabled     bool
	AlertLeadSeconds int

	CompletedCount int
	// LastCompleted is the zero Date when the task was never completed.
	LastCompleted civil.Date

	// credited is set while the increment made by the last MarkCompleted
	// has not been taken back. It is not persisted.
	credited bool
}

// Identity is the comparable key two tasks share when they are the same
// logical task.
type Identity struct {
	Name string
	Date civil.Date
	Time civil.Time
	Kind Kind
}

// NewTask builds a pending task and checks the creation-time invariants.
func NewTask(name string, date civil.Date, clock civil.Time, kind Kind, days WeekdaySet) (Task, error) {
	t := Task{
		Name:       strings.TrimSpace(name),
		Date:       date,
		Time:       clock,
		Kind:       kind,
		WeeklyDays: days,
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks the invariants a caller must satisfy when creating or
// editing a task.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if _, ok := kindNames[t.Kind]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(t.Kind))
	}
	if t.Kind == Weekly && t.WeeklyDays.Len() == 0 {
		return ErrNoWeeklyDays
	}
	if t.AlertLeadSeconds < 0 {
		return ErrNegativeLead
	}
	return nil
}

func (t Task) Key() Identity {
	return Identity{Name: t.Name, Date: t.Date, Time: t.Time, Kind: t.Kind}
}

// SameAs reports whether both tasks have the same name, date, time and kind.
func (t Task) SameAs(other Task) bool {
	return t.Key() == other.Key()
}

// HasLastCompleted reports whether a completion date is recorded.
func (t Task) HasLastCompleted() bool {
	return t.LastCompleted != civil.Date{}
}

// DueAt is the due instant as a civil date-time.
func (t Task) DueAt() civil.DateTime {
	return civil.DateTime{Date: t.Date, Time: t.Time}
}

// MarkCompleted completes the task on today. Repeated calls on the same day
// count once.
func (t *Task) MarkCompleted(today civil.Date) {
	if t.Completed {
		return
	}
	t.Completed = true

	if !t.Kind.Recurring() {
		t.LastCompleted = today
		return
	}

	if !t.HasLastCompleted() || t.LastCompleted != today {
		t.CompletedCount++
		t.LastCompleted = today
		t.credited = true
	}

	// Multi-day weekly tasks move straight to their next slot.
	if t.Kind == Weekly && t.WeeklyDays.Len() > 1 {
		if next := NextWeekdayAfter(today, t.WeeklyDays); next != today {
			t.Completed = false
			t.Date = next
		}
	}
}

// MarkPending reopens the task. The count goes back down only while the
// credit from a completion made today is still held, so any sequence of
// completions and reopenings on one day moves it by at most one.
func (t *Task) MarkPending(today civil.Date) {
	t.Completed = false

	if !t.Kind.Recurring() {
		return
	}
	if t.credited && t.LastCompleted == today && t.CompletedCount > 0 {
		t.CompletedCount--
	}
	t.credited = false
}

// AdvanceIfDue rolls a daily or weekly task to its next occurrence once its
// day has passed. It is safe to call any number of times.
func (t *Task) AdvanceIfDue(today civil.Date) {
	if !t.Kind.Recurring() {
		return
	}

	switch {
	case t.Completed:
		if t.HasLastCompleted() && t.LastCompleted.Before(today) {
			t.Completed = false
			t.LastCompleted = civil.Date{}
			t.credited = false
			t.Date = t.nextOccurrence(today)
		}
	case t.Date.Before(today):
		t.Date = t.nextOccurrence(today)
	}
}

func (t *Task) nextOccurrence(today civil.Date) civil.Date {
	if t.Kind == Weekly {
		return NextWeekdayOnOrAfter(today, t.WeeklyDays)
	}
	return today
}

func (t Task) String() string {
	return fmt.Sprintf("%s - %s %s (%s)", t.Name, t.Date, t.Time, t.Kind)
}
