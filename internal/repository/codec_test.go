package repository

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"desk-agenda/internal/model"
)

func sampleTasks() []model.Task {
	wed := civil.Date{Year: 2024, Month: time.May, Day: 1}
	return []model.Task{
		{
			Name:             "Llamar al médico",
			Date:             wed,
			Time:             civil.Time{Hour: 9, Minute: 30},
			Kind:             model.OneOff,
			AlertEnabled:     true,
			AlertLeadSeconds: 300,
		},
		{
			Name:           "Water \"the\" plants\tdaily\n\\ok",
			Date:           wed,
			Time:           civil.Time{Hour: 20},
			Kind:           model.Daily,
			Completed:      true,
			CompletedCount: 12,
			LastCompleted:  wed,
		},
		{
			Name:       "Gym <legs> & core",
			Date:       wed.AddDays(5),
			Time:       civil.Time{Hour: 7, Minute: 15, Second: 10},
			Kind:       model.Weekly,
			WeeklyDays: model.NewWeekdaySet(time.Monday, time.Wednesday),
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sampleTasks()

	data, err := encodeTasks(in)
	if err != nil {
		t.Fatalf("encodeTasks() error = %v", err)
	}

	out, skipped, err := decodeTasks(data)
	if err != nil {
		t.Fatalf("decodeTasks() error = %v", err)
	}
	if skipped != 0 {
		t.Fatalf("decodeTasks() skipped = %d, want 0", skipped)
	}
	if len(out) != len(in) {
		t.Fatalf("decodeTasks() returned %d tasks, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("task %d = %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestEncodeLayout(t *testing.T) {
	data, err := encodeTasks(sampleTasks()[:2])
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), data)
	}
	if lines[0] != "[" || lines[3] != "]" {
		t.Fatalf("array brackets not on their own lines:\n%s", data)
	}

	want := `  {"name":"Llamar al médico","date":"2024-05-01","time":"09:30:00","kind":"ONE_OFF","completed":false,"alertEnabled":true,"alertLeadSeconds":300,"completedCount":0},`
	if lines[1] != want {
		t.Fatalf("line 1 = %s\nwant     %s", lines[1], want)
	}
	if !strings.HasSuffix(lines[2], `"completedCount":12,"lastCompletedDate":"2024-05-01"}`) {
		t.Fatalf("optional fields missing or misplaced: %s", lines[2])
	}
	if !strings.Contains(lines[2], `Water \"the\" plants\tdaily\n\\ok`) {
		t.Fatalf("escaping wrong: %s", lines[2])
	}
}

func TestEncodeDoesNotEscapeHTMLOrUnicode(t *testing.T) {
	data, err := encodeTasks(sampleTasks())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("Gym <legs> & core")) {
		t.Fatalf("HTML characters escaped:\n%s", data)
	}
	if !bytes.Contains(data, []byte("médico")) {
		t.Fatalf("non-ASCII escaped:\n%s", data)
	}
	if !bytes.Contains(data, []byte(`"weeklyDays":["MONDAY","WEDNESDAY"]}`)) {
		t.Fatalf("weeklyDays missing:\n%s", data)
	}
}

func TestEncodeEmpty(t *testing.T) {
	data, err := encodeTasks(nil)
	if err != nil {
		t.Fatal(err)
	}
	tasks, _, err := decodeTasks(data)
	if err != nil {
		t.Fatalf("decodeTasks(empty) error = %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("decodeTasks(empty) = %d tasks", len(tasks))
	}
}

func TestDecodeRejectsNonArrays(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t",
		"[",
		"[]",
		" [] ",
		"]",
		"{}",
		`{"name":"x"}`,
		"null",
		"[{\"name\":\"x\"}",
		"garbage]",
		"\x00\x01\x02",
	}

	for _, in := range inputs {
		tasks, _, err := decodeTasks([]byte(in))
		if err != ErrMalformed {
			t.Errorf("decodeTasks(%q) error = %v, want %v", in, err, ErrMalformed)
		}
		if len(tasks) != 0 {
			t.Errorf("decodeTasks(%q) = %d tasks, want 0", in, len(tasks))
		}
	}
}

func TestDecodeSkipsMalformedRecords(t *testing.T) {
	content := `[
  {"name":"ok-1","date":"2024-05-01","time":"10:00:00","kind":"DAILY","completed":false,"alertEnabled":false,"alertLeadSeconds":0,"completedCount":0},
  {"name":"bad-date","date":"2024-13-45","time":"10:00:00","kind":"DAILY"},
  {"name":"bad-kind","date":"2024-05-01","time":"10:00:00","kind":"MONTHLY"},
  {"name":"","date":"2024-05-01","time":"10:00:00","kind":"DAILY"},
  {"name":"bad-day","date":"2024-05-01","time":"10:00:00","kind":"WEEKLY","weeklyDays":["FUNDAY"]},
  42,
  {"name":"ok-2","date":"2024-05-02","time":"11:00","kind":"ONE_OFF"}
]`

	tasks, skipped, err := decodeTasks([]byte(content))
	if err != nil {
		t.Fatalf("decodeTasks() error = %v", err)
	}
	if skipped != 5 {
		t.Fatalf("skipped = %d, want 5", skipped)
	}
	if len(tasks) != 2 || tasks[0].Name != "ok-1" || tasks[1].Name != "ok-2" {
		t.Fatalf("tasks = %+v", tasks)
	}
	if tasks[1].Time != (civil.Time{Hour: 11}) {
		t.Fatalf("short time parsed as %v", tasks[1].Time)
	}
}

func TestDecodeRecoversFromBrokenLine(t *testing.T) {
	content := `[
  {"name":"first","date":"2024-05-01","time":"10:00:00","kind":"DAILY"},
  {"name":"torn","date":"2024-05-01","ti
  {"name":"last","date":"2024-05-03","time":"12:00:00","kind":"ONE_OFF"}
]`

	tasks, skipped, err := decodeTasks([]byte(content))
	if err != nil {
		t.Fatalf("decodeTasks() error = %v", err)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
	if len(tasks) != 2 || tasks[0].Name != "first" || tasks[1].Name != "last" {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestDecodeRecoversBrokenRecordInAnyLayout(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "compact unclosed",
			content: `[{"name":"first","date":"2024-05-01","time":"10:00:00","kind":"DAILY"},{"name":"torn","date":"2024-05-01",{"name":"last","date":"2024-05-03","time":"12:00:00","kind":"ONE_OFF"}]`,
		},
		{
			name:    "compact missing comma",
			content: `[{"name":"first","date":"2024-05-01","time":"10:00:00","kind":"DAILY"},{"name":"torn" "date":"2024-05-01"},{"name":"last","date":"2024-05-03","time":"12:00:00","kind":"ONE_OFF"}]`,
		},
		{
			name: "pretty printed missing comma",
			content: `[
  {
    "name": "first",
    "date": "2024-05-01",
    "time": "10:00:00",
    "kind": "DAILY"
  },
  {
    "name": "torn",
    "date": "2024-05-01"
    "time": "11:00:00",
    "kind": "DAILY"
  },
  {
    "name": "last",
    "date": "2024-05-03",
    "time": "12:00:00",
    "kind": "ONE_OFF",
    "weeklyDays": []
  }
]`,
		},
		{
			name: "pretty printed unclosed",
			content: `[
  {
    "name": "first",
    "date": "2024-05-01",
    "time": "10:00:00",
    "kind": "DAILY"
  },
  {
    "name": "torn {with} \"braces\"",
    "date": "2024-05-01",
  {
    "name": "last",
    "date": "2024-05-03",
    "time": "12:00:00",
    "kind": "ONE_OFF"
  }
]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, skipped, err := decodeTasks([]byte(tt.content))
			if err != nil {
				t.Fatalf("decodeTasks() error = %v", err)
			}
			if skipped != 1 {
				t.Fatalf("skipped = %d, want 1", skipped)
			}
			if len(tasks) != 2 || tasks[0].Name != "first" || tasks[1].Name != "last" {
				t.Fatalf("tasks = %+v", tasks)
			}
		})
	}
}

func TestSplitRecordsIgnoresBracesInStrings(t *testing.T) {
	body := []byte(` {"name":"a } { [ ]","x":1} , {"name":"b\\","y":[1,{"z":2}]} `)

	raws := splitRecords(body)
	if len(raws) != 2 {
		t.Fatalf("splitRecords() = %d chunks, want 2: %q", len(raws), raws)
	}
	if string(raws[1]) != `{"name":"b\\","y":[1,{"z":2}]}` {
		t.Fatalf("second chunk = %s", raws[1])
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		raw     string
		want    civil.Time
		wantErr bool
	}{
		{raw: "23:59", want: civil.Time{Hour: 23, Minute: 59}},
		{raw: "23:59:01", want: civil.Time{Hour: 23, Minute: 59, Second: 1}},
		{raw: "7pm", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseClock(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseClock(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("parseClock(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
