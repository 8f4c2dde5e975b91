package model

import "fmt"

// Recurrence describes how often an event definition reoccurs.
type Recurrence string

const (
	// RecurrenceAnnual repeats every year on the same month/day.
	RecurrenceAnnual Recurrence = "annual"
	// RecurrenceOneTime happens exactly once, on the definition's full date.
	RecurrenceOneTime Recurrence = "once"
)

// Valid reports whether r is one of the known recurrence kinds.
func (r Recurrence) Valid() bool {
	return r == RecurrenceAnnual || r == RecurrenceOneTime
}

// EventDefinition is a user-configured event as it appears in the config
// store. It is immutable for the duration of a wake cycle.
//
// Month/Day are 1-based calendar values. Day is not re-validated against the
// month length here; the occurrence resolver rejects impossible dates.
// Year is meaningful only for one-time events.
type EventDefinition struct {
	Name       string     `yaml:"name" json:"name"`
	Month      int        `yaml:"month" json:"month"`
	Day        int        `yaml:"day" json:"day"`
	Recurrence Recurrence `yaml:"recurrence" json:"recurrence"`
	Year       int        `yaml:"year,omitempty" json:"year,omitempty"`
	Pinned     bool       `yaml:"pinned,omitempty" json:"pinned"`
}

func (e EventDefinition) String() string {
	switch e.Recurrence {
	case RecurrenceOneTime:
		return fmt.Sprintf("%s (%04d-%02d-%02d)", e.Name, e.Year, e.Month, e.Day)
	default:
		return fmt.Sprintf("%s (--%02d-%02d)", e.Name, e.Month, e.Day)
	}
}

// ResolvedEvent is one event definition resolved against "today": the
// concrete occurrence year plus the signed whole-day count until it.
//
// ResolvedEvents are produced once per wake cycle, consumed by the ranker,
// and discarded after rendering. They are never persisted.
type ResolvedEvent struct {
	Def EventDefinition `json:"def"`

	// Year is the occurrence year (for annual events, the current or the
	// following year depending on rollover).
	Year int `json:"year"`

	// DaysUntil is the whole-day count from today's local midnight to the
	// occurrence's local midnight. Negative means the occurrence is in the
	// past. The ranker clamps −1 to 0 post-filter; see rank.Rank.
	DaysUntil int `json:"days_until"`
}

// Pinned reports the pin flag copied through from the definition.
func (r ResolvedEvent) Pinned() bool { return r.Def.Pinned }

// DisplaySelection is the final, chronologically ordered list of at most
// three resolved events handed to the renderer. An empty selection means
// "no upcoming events".
type DisplaySelection []ResolvedEvent
