// Package occur turns event definitions into concrete next occurrences.
//
// All day arithmetic is timezone-naive beyond local midnight boundaries: a
// day-count is the floor of the second difference between two local
// midnights divided by 86400.
package occur

import (
	"errors"
	"fmt"
	"time"

	"epdday/internal/model"
)

// ErrBadDate marks an event definition whose date fields do not form a real
// calendar date. Callers skip the event and continue the batch.
var ErrBadDate = errors.New("event date is not a real calendar date")

const secondsPerDay = 86400

// Resolve computes the next occurrence of def as seen from now. The
// location of now defines the local midnight used for day boundaries.
//
// One-time events resolve to the definition's exact (year, month, day).
// Annual events start from this year's (month, day) and roll over to next
// year when the candidate's midday instant is already strictly in the past;
// the midday probe (rather than midnight) keeps "today" stable right at the
// day boundary.
func Resolve(def model.EventDefinition, now time.Time) (model.ResolvedEvent, error) {
	if def.Month < 1 || def.Month > 12 || def.Day < 1 || def.Day > 31 {
		return model.ResolvedEvent{}, fmt.Errorf("%w: month=%d day=%d", ErrBadDate, def.Month, def.Day)
	}

	loc := now.Location()
	todayMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	var year int
	switch def.Recurrence {
	case model.RecurrenceOneTime:
		year = def.Year
	case model.RecurrenceAnnual:
		year = now.Year()
		midday := time.Date(year, time.Month(def.Month), def.Day, 12, 0, 0, 0, loc)
		if midday.Before(now) {
			year++
		}
	default:
		return model.ResolvedEvent{}, fmt.Errorf("unknown recurrence %q", def.Recurrence)
	}

	if def.Day > daysInMonth(year, time.Month(def.Month)) {
		return model.ResolvedEvent{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrBadDate, year, def.Month, def.Day)
	}

	targetMidnight := time.Date(year, time.Month(def.Month), def.Day, 0, 0, 0, 0, loc)
	days := floorDiv(targetMidnight.Unix()-todayMidnight.Unix(), secondsPerDay)

	return model.ResolvedEvent{
		Def:       def,
		Year:      year,
		DaysUntil: int(days),
	}, nil
}

// ResolveAll resolves every definition, skipping (and reporting) the ones
// with malformed dates. A bad event never aborts the batch.
func ResolveAll(defs []model.EventDefinition, now time.Time) (resolved []model.ResolvedEvent, skipped []error) {
	resolved = make([]model.ResolvedEvent, 0, len(defs))
	for _, def := range defs {
		re, err := Resolve(def, now)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", def.Name, err))
			continue
		}
		resolved = append(resolved, re)
	}
	return resolved, skipped
}

// floorDiv divides truncating toward negative infinity, so a target one
// second in the past still counts as day 0, not day −1.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func daysInMonth(year int, m time.Month) int {
	// Day 0 of the next month normalizes to the last day of m.
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
