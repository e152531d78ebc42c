package model

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// WeekdaySet is a set of weekdays stored as a bit mask indexed by
// time.Weekday.
type WeekdaySet uint8

// mondayFirst is the iteration and serialization order.
var mondayFirst = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Len() int {
	n := 0
	for _, d := range mondayFirst {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Days lists the members Monday first.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for _, d := range mondayFirst {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s WeekdaySet) String() string {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, WeekdayName(d))
	}
	return "[" + strings.Join(names, ",") + "]"
}

// WeekdayName returns the upper-case English name used on disk, e.g. MONDAY.
func WeekdayName(d time.Weekday) string {
	return strings.ToUpper(d.String())
}

// ParseWeekday accepts the names produced by WeekdayName, case-insensitively.
func ParseWeekday(raw string) (time.Weekday, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	for _, d := range mondayFirst {
		if WeekdayName(d) == value {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// WeekdayOf returns the weekday a calendar date falls on.
func WeekdayOf(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}
