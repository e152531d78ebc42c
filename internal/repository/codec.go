package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"desk-agenda/internal/model"
)

// ErrMalformed marks content that is not a bracketed array of records.
var ErrMalformed = errors.New("content is not a task array")

// taskRecord is the on-disk shape of a task. Field order is the key order
// written to disk.
type taskRecord struct {
	Name              string   `json:"name"`
	Date              string   `json:"date"`
	Time              string   `json:"time"`
	Kind              string   `json:"kind"`
	Completed         bool     `json:"completed"`
	AlertEnabled      bool     `json:"alertEnabled"`
	AlertLeadSeconds  int      `json:"alertLeadSeconds"`
	CompletedCount    int      `json:"completedCount"`
	LastCompletedDate string   `json:"lastCompletedDate,omitempty"`
	WeeklyDays        []string `json:"weeklyDays,omitempty"`
}

func newTaskRecord(t model.Task) taskRecord {
	rec := taskRecord{
		Name:             t.Name,
		Date:             t.Date.String(),
		Time:             t.Time.String(),
		Kind:             t.Kind.String(),
		Completed:        t.Completed,
		AlertEnabled:     t.AlertEnabled,
		AlertLeadSeconds: t.AlertLeadSeconds,
		CompletedCount:   t.CompletedCount,
	}
	if t.HasLastCompleted() {
		rec.LastCompletedDate = t.LastCompleted.String()
	}
	for _, d := range t.WeeklyDays.Days() {
		rec.WeeklyDays = append(rec.WeeklyDays, model.WeekdayName(d))
	}
	return rec
}

func (r taskRecord) toTask() (model.Task, error) {
	if strings.TrimSpace(r.Name) == "" {
		return model.Task{}, model.ErrEmptyName
	}
	date, err := civil.ParseDate(r.Date)
	if err != nil {
		return model.Task{}, fmt.Errorf("date: %w", err)
	}
	clock, err := parseClock(r.Time)
	if err != nil {
		return model.Task{}, fmt.Errorf("time: %w", err)
	}
	kind, err := model.ParseKind(r.Kind)
	if err != nil {
		return model.Task{}, err
	}
	if r.AlertLeadSeconds < 0 || r.CompletedCount < 0 {
		return model.Task{}, fmt.Errorf("negative counter in %q", r.Name)
	}

	task := model.Task{
		Name:             r.Name,
		Date:             date,
		Time:             clock,
		Kind:             kind,
		Completed:        r.Completed,
		AlertEnabled:     r.AlertEnabled,
		AlertLeadSeconds: r.AlertLeadSeconds,
		CompletedCount:   r.CompletedCount,
	}
	if r.LastCompletedDate != "" {
		last, err := civil.ParseDate(r.LastCompletedDate)
		if err != nil {
			return model.Task{}, fmt.Errorf("lastCompletedDate: %w", err)
		}
		task.LastCompleted = last
	}
	for _, raw := range r.WeeklyDays {
		d, err := model.ParseWeekday(raw)
		if err != nil {
			return model.Task{}, err
		}
		task.WeeklyDays = task.WeeklyDays.With(d)
	}
	return task, nil
}

// parseClock accepts HH:MM:SS and the shorter HH:MM.
func parseClock(raw string) (civil.Time, error) {
	if len(raw) == len("15:04") {
		raw += ":00"
	}
	return civil.ParseTime(raw)
}

// encodeTasks writes one record per line inside a bracketed array.
func encodeTasks(tasks []model.Task) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, t := range tasks {
		line, err := encodeRecord(newTaskRecord(t))
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", t.Name, err)
		}
		buf.WriteString("  ")
		buf.Write(line)
		if i < len(tasks)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}

func encodeRecord(rec taskRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodeTasks parses content written by encodeTasks. Records that cannot be
// turned into a task are skipped and counted; content that is not an array
// at all yields ErrMalformed.
func decodeTasks(data []byte) ([]model.Task, int, error) {
	content := bytes.TrimSpace(data)
	if !looksLikeArray(content) {
		return nil, 0, ErrMalformed
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(content, &raws); err != nil {
		// One broken record spoils the whole array; cut it into records.
		raws = splitRecords(content[1 : len(content)-1])
	}

	tasks := make([]model.Task, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		var rec taskRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			continue
		}
		task, err := rec.toTask()
		if err != nil {
			skipped++
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, skipped, nil
}

// looksLikeArray rejects empty content, "[" and "[]" along with anything
// not wrapped in brackets.
func looksLikeArray(content []byte) bool {
	if len(content) < 3 {
		return false
	}
	return content[0] == '[' && content[len(content)-1] == ']'
}

// splitRecords cuts the body of an array into its top-level {...} chunks by
// tracking bracket depth outside string literals. The layout does not
// matter: records may share a line or spread over many. A record that is
// never closed ends where the next record visibly starts (a '{' inside an
// object that does not follow a ':') or at the end of the body, and is
// returned as is so the caller counts it as skipped. A string literal still
// open at a line break is treated as torn.
func splitRecords(body []byte) []json.RawMessage {
	var (
		raws     []json.RawMessage
		stack    []byte
		start    = -1
		inString bool
		escaped  bool
		prev     byte
	)

	for i, c := range body {
		if inString {
			switch {
			case c == '\n':
				// Raw newlines never occur inside a JSON string: the
				// literal was torn off.
				inString, escaped = false, false
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				prev = c
			}
			continue
		}

		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '"':
			inString = true
		case '{':
			if start >= 0 && stack[len(stack)-1] == '{' && prev != ':' {
				raws = append(raws, json.RawMessage(body[start:i]))
				start, stack = -1, stack[:0]
			}
			if start < 0 {
				start = i
			}
			stack = append(stack, c)
		case '[':
			if start >= 0 {
				stack = append(stack, c)
			}
		case '}', ']':
			if start < 0 {
				break
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				raws = append(raws, json.RawMessage(body[start:i+1]))
				start = -1
			}
		}
		prev = c
	}

	if start >= 0 {
		raws = append(raws, json.RawMessage(body[start:]))
	}
	return raws
}
