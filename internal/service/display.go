package service

import (
	"fmt"
	"strconv"
	"time"

	"desk-agenda/internal/model"
)

const (
	statusDone    = "✓"
	statusOverdue = "Vencida"
	alertGlyph    = "🔔"
)

// Row is the text rendering of one task at a given instant.
type Row struct {
	Name        string
	DateText    string
	TimeText    string
	KindText    string
	StatusText  string
	RepeatsText string
	AlertGlyph  string
}

var kindTexts = map[model.Kind]string{
	model.OneOff: "Unica",
	model.Daily:  "Diaria",
	model.Weekly: "Semanal",
}

// RowFor renders task as seen at now. Due instants are read in now's
// location.
func RowFor(task model.Task, now time.Time) Row {
	row := Row{
		Name:        task.Name,
		DateText:    fmt.Sprintf("%02d/%02d/%04d", task.Date.Day, int(task.Date.Month), task.Date.Year),
		TimeText:    fmt.Sprintf("%02d:%02d", task.Time.Hour, task.Time.Minute),
		KindText:    kindTexts[task.Kind],
		StatusText:  statusText(task, now),
		RepeatsText: "N/A",
	}
	if task.Kind.Recurring() {
		row.RepeatsText = strconv.Itoa(task.CompletedCount)
	}
	if task.AlertEnabled {
		row.AlertGlyph = alertGlyph
	}
	return row
}

func statusText(task model.Task, now time.Time) string {
	if task.Completed {
		return statusDone
	}
	due := task.DueAt().In(now.Location())
	if now.After(due) {
		return statusOverdue
	}
	return countdown(due.Sub(now))
}

// countdown renders "D d HH h" from one day up and "HH:MM:SS" below that.
func countdown(left time.Duration) string {
	left = left.Truncate(time.Second)
	if left >= 24*time.Hour {
		days := int(left / (24 * time.Hour))
		hours := int(left % (24 * time.Hour) / time.Hour)
		return fmt.Sprintf("%d d %02d h", days, hours)
	}
	h := int(left / time.Hour)
	m := int(left % time.Hour / time.Minute)
	sec := int(left % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
