package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"desk-agenda/internal/model"
)

type dialogStage int

const (
	stageName dialogStage = iota
	stageDate
	stageTime
	stageKind
	stageWeekdays
	stageAlert
	stageDone
)

// addDialog collects the answers of the /add conversation.
type addDialog struct {
	stage dialogStage
	name  string
	date  civil.Date
	clock civil.Time
	kind  model.Kind
	days  model.WeekdaySet
	lead  time.Duration
	alert bool
}

const (
	promptName     = "🆕 Nueva tarea.\n<b>Paso 1:</b> ¿cómo se llama?"
	promptDate     = "📅 <b>Paso 2:</b> fecha (<code>dd/mm/aaaa</code>, <code>hoy</code> o <code>mañana</code>)."
	promptTime     = "⏰ <b>Paso 3:</b> hora (<code>HH:MM</code>)."
	promptKind     = "🔁 <b>Paso 4:</b> tipo de tarea: Unica, Diaria o Semanal."
	promptWeekdays = "📆 ¿Qué días de la semana? Por ejemplo <code>lun, mie, vie</code>."
	promptAlert    = "🔔 <b>Último paso:</b> ¿cuántos minutos antes aviso? (<code>no</code> para no avisar)"
)

var (
	errBadDate    = errors.New("bad date")
	errBadClock   = errors.New("bad time")
	errBadKind    = errors.New("bad kind")
	errNoWeekdays = errors.New("no weekdays")
	errBadAlert   = errors.New("bad alert lead")
)

var retryPrompts = map[dialogStage]string{
	stageName:     "El nombre no puede estar vacío.",
	stageDate:     "No entiendo la fecha. Usa <code>dd/mm/aaaa</code>, <code>hoy</code> o <code>mañana</code>.",
	stageTime:     "No entiendo la hora. Usa <code>HH:MM</code>, por ejemplo <code>18:30</code>.",
	stageKind:     "Elige Unica, Diaria o Semanal.",
	stageWeekdays: "Indica al menos un día: <code>lun, mar, mie, jue, vie, sab, dom</code>.",
	stageAlert:    "Escribe los minutos de antelación (por ejemplo <code>5</code>) o <code>no</code>.",
}

// step consumes one answer and returns the next prompt. On invalid input
// the stage is kept and the prompt explains the expected format.
func (d *addDialog) step(text string, today civil.Date) string {
	text = strings.TrimSpace(text)
	var err error

	switch d.stage {
	case stageName:
		if text == "" {
			break
		}
		d.name = text
		d.stage = stageDate
		return promptDate
	case stageDate:
		if d.date, err = parseDateInput(text, today); err != nil {
			break
		}
		d.stage = stageTime
		return promptTime
	case stageTime:
		if d.clock, err = parseClockInput(text); err != nil {
			break
		}
		d.stage = stageKind
		return promptKind
	case stageKind:
		if d.kind, err = parseKindInput(text); err != nil {
			break
		}
		if d.kind == model.Weekly {
			d.stage = stageWeekdays
			return promptWeekdays
		}
		d.stage = stageAlert
		return promptAlert
	case stageWeekdays:
		if d.days, err = parseWeekdaysInput(text); err != nil {
			break
		}
		d.stage = stageAlert
		return promptAlert
	case stageAlert:
		if d.lead, d.alert, err = parseAlertInput(text); err != nil {
			break
		}
		d.stage = stageDone
		return ""
	}
	return retryPrompts[d.stage]
}

func (d *addDialog) done() bool {
	return d.stage == stageDone
}

// task builds the validated task from the collected answers.
func (d *addDialog) task() (model.Task, error) {
	task, err := model.NewTask(d.name, d.date, d.clock, d.kind, d.days)
	if err != nil {
		return model.Task{}, err
	}
	task.AlertEnabled = d.alert
	task.AlertLeadSeconds = int(d.lead / time.Second)
	return task, nil
}

// parseDateInput accepts d/m/yyyy, ISO dates and the words hoy/mañana.
func parseDateInput(text string, today civil.Date) (civil.Date, error) {
	switch foldAccents(strings.ToLower(text)) {
	case "hoy", "today":
		return today, nil
	case "manana", "tomorrow":
		return today.AddDays(1), nil
	}
	if d, err := civil.ParseDate(text); err == nil {
		return d, nil
	}
	t, err := time.Parse("2/1/2006", text)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: %q", errBadDate, text)
	}
	return civil.DateOf(t), nil
}

func parseClockInput(text string) (civil.Time, error) {
	t, err := time.Parse("15:04", text)
	if err != nil {
		return civil.Time{}, fmt.Errorf("%w: %q", errBadClock, text)
	}
	return civil.Time{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func parseKindInput(text string) (model.Kind, error) {
	switch foldAccents(strings.ToLower(text)) {
	case "1", "unica", "una vez", "one_off", "once":
		return model.OneOff, nil
	case "2", "diaria", "daily":
		return model.Daily, nil
	case "3", "semanal", "weekly":
		return model.Weekly, nil
	}
	return 0, fmt.Errorf("%w: %q", errBadKind, text)
}

var spanishWeekdays = map[string]time.Weekday{
	"lun": time.Monday, "lunes": time.Monday,
	"mar": time.Tuesday, "martes": time.Tuesday,
	"mie": time.Wednesday, "miercoles": time.Wednesday,
	"jue": time.Thursday, "jueves": time.Thursday,
	"vie": time.Friday, "viernes": time.Friday,
	"sab": time.Saturday, "sabado": time.Saturday,
	"dom": time.Sunday, "domingo": time.Sunday,
}

// parseWeekdaysInput reads a comma or space separated list of Spanish or
// English weekday names.
func parseWeekdaysInput(text string) (model.WeekdaySet, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	var days model.WeekdaySet
	for _, f := range fields {
		key := foldAccents(strings.ToLower(f))
		if d, ok := spanishWeekdays[key]; ok {
			days = days.With(d)
			continue
		}
		d, err := model.ParseWeekday(f)
		if err != nil {
			return 0, err
		}
		days = days.With(d)
	}
	if days.Len() == 0 {
		return 0, errNoWeekdays
	}
	return days, nil
}

// parseAlertInput reads the alert lead: "no" disables the alert, a bare
// number is minutes and anything else is a Go duration such as 90s.
func parseAlertInput(text string) (time.Duration, bool, error) {
	value := strings.ToLower(text)
	if value == "no" || value == "-" {
		return 0, false, nil
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		if minutes < 0 {
			return 0, false, fmt.Errorf("%w: %q", errBadAlert, text)
		}
		return time.Duration(minutes) * time.Minute, true, nil
	}
	lead, err := time.ParseDuration(value)
	if err != nil || lead < 0 {
		return 0, false, fmt.Errorf("%w: %q", errBadAlert, text)
	}
	return lead.Truncate(time.Second), true, nil
}

var accentFolder = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n")

func foldAccents(s string) string {
	return accentFolder.Replace(s)
}
