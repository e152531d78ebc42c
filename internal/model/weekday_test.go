package model

import (
	"testing"
	"time"
)

func TestWeekdaySet(t *testing.T) {
	s := NewWeekdaySet(time.Sunday, time.Wednesday, time.Monday, time.Monday)

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if !s.Has(time.Sunday) || s.Has(time.Tuesday) {
		t.Fatalf("Has() wrong for %v", s)
	}

	want := []time.Weekday{time.Monday, time.Wednesday, time.Sunday}
	got := s.Days()
	if len(got) != len(want) {
		t.Fatalf("Days() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Days() = %v, want %v", got, want)
		}
	}

	if s.String() != "[MONDAY,WEDNESDAY,SUNDAY]" {
		t.Fatalf("String() = %q", s.String())
	}
}

func TestParseWeekday(t *testing.T) {
	for _, d := range mondayFirst {
		got, err := ParseWeekday(WeekdayName(d))
		if err != nil || got != d {
			t.Fatalf("ParseWeekday(%q) = %v, %v", WeekdayName(d), got, err)
		}
	}
	if got, err := ParseWeekday(" friday "); err != nil || got != time.Friday {
		t.Fatalf("ParseWeekday(friday) = %v, %v", got, err)
	}
	if _, err := ParseWeekday("FUNDAY"); err == nil {
		t.Fatal("expected error for unknown weekday")
	}
}

func TestNextWeekday(t *testing.T) {
	monWed := NewWeekdaySet(time.Monday, time.Wednesday)

	if got := NextWeekdayOnOrAfter(wed, monWed); got != wed {
		t.Fatalf("NextWeekdayOnOrAfter(wed) = %v, want %v", got, wed)
	}
	if got := NextWeekdayAfter(wed, monWed); got != nextM {
		t.Fatalf("NextWeekdayAfter(wed) = %v, want %v", got, nextM)
	}
	if got := NextWeekdayOnOrAfter(thu, monWed); got != nextM {
		t.Fatalf("NextWeekdayOnOrAfter(thu) = %v, want %v", got, nextM)
	}
	if got := NextWeekdayAfter(wed, NewWeekdaySet(time.Wednesday)); got != wed.AddDays(7) {
		t.Fatalf("NextWeekdayAfter(wed, {wed}) = %v, want %v", got, wed.AddDays(7))
	}
	if got := NextWeekdayOnOrAfter(wed, 0); got != wed {
		t.Fatalf("empty set: got %v, want start", got)
	}
	if got := NextWeekdayAfter(wed, 0); got != wed.AddDays(7) {
		t.Fatalf("empty set: got %v, want start+7", got)
	}
}
