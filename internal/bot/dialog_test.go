package bot

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"desk-agenda/internal/model"
)

var today = civil.Date{Year: 2024, Month: time.May, Day: 1}

func TestAddDialogWeekly(t *testing.T) {
	d := &addDialog{}
	answers := []struct {
		text  string
		stage dialogStage
	}{
		{text: "   ", stage: stageName},
		{text: "Gym", stage: stageDate},
		{text: "ayer", stage: stageDate},
		{text: "mañana", stage: stageTime},
		{text: "25:00", stage: stageTime},
		{text: "7:30", stage: stageKind},
		{text: "mensual", stage: stageKind},
		{text: "Semanal", stage: stageWeekdays},
		{text: "", stage: stageWeekdays},
		{text: "lun, Miércoles", stage: stageAlert},
		{text: "-5", stage: stageAlert},
		{text: "10", stage: stageDone},
	}
	for _, a := range answers {
		prompt := d.step(a.text, today)
		if d.stage != a.stage {
			t.Fatalf("step(%q) stage = %d, want %d (prompt %q)", a.text, d.stage, a.stage, prompt)
		}
	}

	task, err := d.task()
	if err != nil {
		t.Fatalf("task() error = %v", err)
	}
	want := model.Task{
		Name:             "Gym",
		Date:             today.AddDays(1),
		Time:             civil.Time{Hour: 7, Minute: 30},
		Kind:             model.Weekly,
		WeeklyDays:       model.NewWeekdaySet(time.Monday, time.Wednesday),
		AlertEnabled:     true,
		AlertLeadSeconds: 600,
	}
	if task != want {
		t.Fatalf("task() = %+v, want %+v", task, want)
	}
}

func TestAddDialogSkipsWeekdaysForDaily(t *testing.T) {
	d := &addDialog{}
	for _, text := range []string{"Agua", "01/05/2024", "20:00", "diaria"} {
		d.step(text, today)
	}
	if d.stage != stageAlert {
		t.Fatalf("stage = %d, want alert stage", d.stage)
	}
	if prompt := d.step("no", today); prompt != "" || !d.done() {
		t.Fatalf("dialog not finished: stage %d prompt %q", d.stage, prompt)
	}
	task, err := d.task()
	if err != nil {
		t.Fatal(err)
	}
	if task.AlertEnabled || task.Kind != model.Daily || task.Date != today {
		t.Fatalf("task() = %+v", task)
	}
}

func TestParseDateInput(t *testing.T) {
	tests := []struct {
		in      string
		want    civil.Date
		wantErr bool
	}{
		{in: "hoy", want: today},
		{in: "Mañana", want: today.AddDays(1)},
		{in: "manana", want: today.AddDays(1)},
		{in: "2024-12-31", want: civil.Date{Year: 2024, Month: time.December, Day: 31}},
		{in: "31/12/2024", want: civil.Date{Year: 2024, Month: time.December, Day: 31}},
		{in: "2/3/2025", want: civil.Date{Year: 2025, Month: time.March, Day: 2}},
		{in: "31/02/2024", wantErr: true},
		{in: "pronto", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseDateInput(tt.in, today)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseDateInput(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errBadDate) {
			t.Fatalf("parseDateInput(%q) error = %v, want %v", tt.in, err, errBadDate)
		}
		if got != tt.want {
			t.Fatalf("parseDateInput(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseKindInput(t *testing.T) {
	tests := map[string]model.Kind{
		"1": model.OneOff, "Única": model.OneOff, "unica": model.OneOff,
		"2": model.Daily, "DIARIA": model.Daily,
		"3": model.Weekly, "semanal": model.Weekly, "weekly": model.Weekly,
	}
	for in, want := range tests {
		got, err := parseKindInput(in)
		if err != nil || got != want {
			t.Errorf("parseKindInput(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseKindInput("anual"); !errors.Is(err, errBadKind) {
		t.Errorf("parseKindInput(anual) error = %v, want %v", err, errBadKind)
	}
}

func TestParseWeekdaysInput(t *testing.T) {
	got, err := parseWeekdaysInput("sáb;DOM friday")
	if err != nil {
		t.Fatalf("parseWeekdaysInput() error = %v", err)
	}
	if want := model.NewWeekdaySet(time.Friday, time.Saturday, time.Sunday); got != want {
		t.Fatalf("parseWeekdaysInput() = %v, want %v", got, want)
	}
	if _, err := parseWeekdaysInput(" , "); !errors.Is(err, errNoWeekdays) {
		t.Fatalf("parseWeekdaysInput(empty) error = %v, want %v", err, errNoWeekdays)
	}
	if _, err := parseWeekdaysInput("lun, feriado"); err == nil {
		t.Fatal("parseWeekdaysInput accepted an unknown day")
	}
}

func TestParseAlertInput(t *testing.T) {
	tests := []struct {
		in      string
		lead    time.Duration
		enabled bool
		wantErr bool
	}{
		{in: "no"},
		{in: "0", enabled: true},
		{in: "15", lead: 15 * time.Minute, enabled: true},
		{in: "90s", lead: 90 * time.Second, enabled: true},
		{in: "1h30m", lead: 90 * time.Minute, enabled: true},
		{in: "-1", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "pronto", wantErr: true},
	}
	for _, tt := range tests {
		lead, enabled, err := parseAlertInput(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseAlertInput(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if lead != tt.lead || enabled != tt.enabled {
			t.Fatalf("parseAlertInput(%q) = %v, %v; want %v, %v", tt.in, lead, enabled, tt.lead, tt.enabled)
		}
	}
}

func TestShortTitle(t *testing.T) {
	if got := shortTitle("Llamar\nal médico", 30); got != "Llamar al médico" {
		t.Fatalf("shortTitle() = %q", got)
	}
	if got := shortTitle("Comprar pan", 5); got != "Comp…" {
		t.Fatalf("shortTitle() = %q", got)
	}
}
