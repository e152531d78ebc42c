package service

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// ReminderService builds human-readable summaries for periodic reports.
type ReminderService struct {
	tasks *TaskService
}

func NewReminderService(tasks *TaskService) *ReminderService {
	return &ReminderService{tasks: tasks}
}

// Summary renders the display-ordered task list as Telegram HTML, grouped
// into pending, overdue and completed sections.
func (s *ReminderService) Summary(now time.Time) string {
	var pending, overdue, done []Row
	for _, task := range s.tasks.ListForDisplay(now) {
		row := RowFor(task, now)
		switch row.StatusText {
		case statusDone:
			done = append(done, row)
		case statusOverdue:
			overdue = append(overdue, row)
		default:
			pending = append(pending, row)
		}
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Resumen de tareas</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("02/01/2006 15:04")))

	writeSection(&builder, "⏳ <b>Pendientes</b>", "— no hay tareas pendientes", pending)
	writeSection(&builder, "⚠️ <b>Vencidas</b>", "— nada vencido", overdue)
	writeSection(&builder, "✅ <b>Completadas</b>", "— nada completado todavía", done)

	return strings.TrimSpace(builder.String())
}

func writeSection(b *strings.Builder, title, empty string, rows []Row) {
	b.WriteString("\n" + title + "\n")
	if len(rows) == 0 {
		b.WriteString(empty + "\n")
		return
	}
	for _, row := range rows {
		b.WriteString(FormatRow(row) + "\n")
	}
}

// FormatRow renders a row on one line of Telegram HTML.
func FormatRow(row Row) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b> · %s %s · %s · %s",
		html.EscapeString(strings.TrimSpace(row.Name)), row.DateText, row.TimeText, row.KindText, row.StatusText))
	if row.RepeatsText != "N/A" {
		sb.WriteString(fmt.Sprintf(" · 🔁 %s", row.RepeatsText))
	}
	if row.AlertGlyph != "" {
		sb.WriteString(" " + row.AlertGlyph)
	}
	return sb.String()
}
