package occur

import (
	"errors"
	"testing"
	"time"

	"epdday/internal/model"
)

func date(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestResolve_AnnualUpcoming(t *testing.T) {
	now := date(2025, time.December, 20, 9, 30, 0)
	re, err := Resolve(model.EventDefinition{
		Name: "Christmas", Month: 12, Day: 25, Recurrence: model.RecurrenceAnnual,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if re.Year != 2025 {
		t.Errorf("year = %d, want 2025", re.Year)
	}
	if re.DaysUntil != 5 {
		t.Errorf("daysUntil = %d, want 5", re.DaysUntil)
	}
}

func TestResolve_AnnualRollsOverAfterMidday(t *testing.T) {
	// July 4th seen from December 20: this year's instance is long past, so
	// the candidate advances to next year.
	now := date(2025, time.December, 20, 9, 30, 0)
	re, err := Resolve(model.EventDefinition{
		Name: "July 4th", Month: 7, Day: 4, Recurrence: model.RecurrenceAnnual,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if re.Year != 2026 {
		t.Errorf("year = %d, want 2026", re.Year)
	}
	if re.DaysUntil != 196 {
		t.Errorf("daysUntil = %d, want 196", re.DaysUntil)
	}
}

func TestResolve_AnnualEventDayStaysToday(t *testing.T) {
	// Before midday on the event day the candidate must not roll over.
	now := date(2025, time.December, 25, 8, 0, 0)
	re, err := Resolve(model.EventDefinition{
		Name: "Christmas", Month: 12, Day: 25, Recurrence: model.RecurrenceAnnual,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if re.Year != 2025 || re.DaysUntil != 0 {
		t.Errorf("got year=%d daysUntil=%d, want 2025/0", re.Year, re.DaysUntil)
	}
}

func TestResolve_AnnualRollsOverSameEvening(t *testing.T) {
	// After midday on the event day the rollover test pushes the candidate a
	// year out: the evening of the event no longer counts as upcoming.
	now := date(2025, time.December, 25, 18, 0, 0)
	re, err := Resolve(model.EventDefinition{
		Name: "Christmas", Month: 12, Day: 25, Recurrence: model.RecurrenceAnnual,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if re.Year != 2026 {
		t.Errorf("year = %d, want 2026", re.Year)
	}
	if re.DaysUntil != 365 {
		t.Errorf("daysUntil = %d, want 365", re.DaysUntil)
	}
}

// Annual resolution never produces a date strictly before today, and the
// resolved year is always this year or the next.
func TestResolve_AnnualNeverInThePast(t *testing.T) {
	nows := []time.Time{
		date(2025, time.January, 1, 0, 0, 0),
		date(2025, time.June, 15, 11, 59, 59),
		date(2025, time.June, 15, 12, 0, 1),
		date(2025, time.December, 31, 23, 59, 59),
	}
	for _, now := range nows {
		for month := 1; month <= 12; month++ {
			re, err := Resolve(model.EventDefinition{
				Name: "probe", Month: month, Day: 15, Recurrence: model.RecurrenceAnnual,
			}, now)
			if err != nil {
				t.Fatalf("month %d: unexpected error: %v", month, err)
			}
			if re.DaysUntil < -1 {
				t.Errorf("now=%v month=%d: daysUntil = %d, past by more than a day", now, month, re.DaysUntil)
			}
			if re.Year != now.Year() && re.Year != now.Year()+1 {
				t.Errorf("now=%v month=%d: year = %d", now, month, re.Year)
			}
		}
	}
}

func TestResolve_OneTime(t *testing.T) {
	now := date(2025, time.March, 10, 15, 0, 0)
	tests := []struct {
		name  string
		year  int
		month int
		day   int
		want  int
	}{
		{"future", 2025, 3, 20, 10},
		{"today", 2025, 3, 10, 0},
		{"yesterday", 2025, 3, 9, -1},
		{"long past", 2024, 3, 10, -365},
		{"next year", 2026, 3, 10, 365},
	}
	for _, tc := range tests {
		re, err := Resolve(model.EventDefinition{
			Name: tc.name, Month: tc.month, Day: tc.day,
			Recurrence: model.RecurrenceOneTime, Year: tc.year,
		}, now)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if re.DaysUntil != tc.want {
			t.Errorf("%s: daysUntil = %d, want %d", tc.name, re.DaysUntil, tc.want)
		}
		if re.Year != tc.year {
			t.Errorf("%s: year = %d, want %d", tc.name, re.Year, tc.year)
		}
	}
}

func TestResolve_BadDates(t *testing.T) {
	now := date(2025, time.March, 10, 15, 0, 0)
	bad := []model.EventDefinition{
		{Name: "month 13", Month: 13, Day: 1, Recurrence: model.RecurrenceAnnual},
		{Name: "month 0", Month: 0, Day: 1, Recurrence: model.RecurrenceAnnual},
		{Name: "day 32", Month: 1, Day: 32, Recurrence: model.RecurrenceAnnual},
		{Name: "apr 31", Month: 4, Day: 31, Recurrence: model.RecurrenceAnnual},
		{Name: "feb 30", Month: 2, Day: 30, Recurrence: model.RecurrenceOneTime, Year: 2025},
	}
	for _, def := range bad {
		if _, err := Resolve(def, now); !errors.Is(err, ErrBadDate) {
			t.Errorf("%s: err = %v, want ErrBadDate", def.Name, err)
		}
	}
}

func TestResolve_LeapDay(t *testing.T) {
	now := date(2024, time.February, 1, 0, 0, 0)
	re, err := Resolve(model.EventDefinition{
		Name: "leap", Month: 2, Day: 29, Recurrence: model.RecurrenceOneTime, Year: 2024,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if re.DaysUntil != 28 {
		t.Errorf("daysUntil = %d, want 28", re.DaysUntil)
	}

	// Feb 29 in a non-leap occurrence year is not a real date this cycle.
	now = date(2025, time.March, 10, 0, 0, 0)
	if _, err := Resolve(model.EventDefinition{
		Name: "leap", Month: 2, Day: 29, Recurrence: model.RecurrenceOneTime, Year: 2025,
	}, now); !errors.Is(err, ErrBadDate) {
		t.Errorf("err = %v, want ErrBadDate", err)
	}
}

func TestResolveAll_SkipsBadEvents(t *testing.T) {
	now := date(2025, time.December, 20, 9, 0, 0)
	defs := []model.EventDefinition{
		{Name: "Christmas", Month: 12, Day: 25, Recurrence: model.RecurrenceAnnual},
		{Name: "broken", Month: 2, Day: 31, Recurrence: model.RecurrenceAnnual},
		{Name: "New Year", Month: 1, Day: 1, Recurrence: model.RecurrenceAnnual},
	}
	resolved, skipped := ResolveAll(defs, now)
	if len(resolved) != 2 {
		t.Fatalf("resolved = %d events, want 2", len(resolved))
	}
	if len(skipped) != 1 {
		t.Fatalf("skipped = %d errors, want 1", len(skipped))
	}
	if !errors.Is(skipped[0], ErrBadDate) {
		t.Errorf("skipped err = %v, want ErrBadDate", skipped[0])
	}
}

func TestFloorDiv(t *testing.T) {
	tests := []struct{ a, b, want int64 }{
		{86400, 86400, 1},
		{-1, 86400, -1},
		{-86400, 86400, -1},
		{-86401, 86400, -2},
		{86399, 86400, 0},
		{0, 86400, 0},
	}
	for _, tc := range tests {
		if got := floorDiv(tc.a, tc.b); got != tc.want {
			t.Errorf("floorDiv(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
