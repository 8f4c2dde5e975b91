// Package icsimport converts VEVENTs from subscribed ICS feeds into event
// definitions. Only shapes the device can represent survive the import:
// yearly-recurring events become Annual, plain dated events become OneTime,
// everything else is skipped with a diagnostic.
package icsimport

import (
	"bytes"
	"context"
	"errors"
	"strings"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "epdday/internal/log"
	"epdday/internal/model"
)

// ParseDefinitions parses a single ICS payload into event definitions.
// Per-VEVENT problems are logged and skipped; the batch always completes.
func ParseDefinitions(src Source, body []byte) ([]model.EventDefinition, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	defs := make([]model.EventDefinition, 0)

	for _, ve := range cal.Events() {
		def, ok, perr := convertVEvent(ve)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "err", perr)
			continue
		}
		if !ok {
			continue
		}
		defs = append(defs, def)
	}

	appLog.Info("ics import parsed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(defs))
	return defs, nil
}

// convertVEvent maps one VEVENT to a definition. ok is false for events the
// device cannot represent (non-yearly recurrence, missing date).
func convertVEvent(ve *ical.VEvent) (model.EventDefinition, bool, error) {
	var def model.EventDefinition

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		def.Name = p.Value
	}
	if def.Name == "" {
		return def, false, errors.New("missing SUMMARY")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return def, false, errors.New("missing or unparseable DTSTART")
	}
	def.Month = int(start.Month())
	def.Day = start.Day()

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		r, rerr := rrule.StrToRRule(rruleProp.Value)
		if rerr != nil {
			return def, false, rerr
		}
		if r.Options.Freq != rrule.YEARLY || r.Options.Interval > 1 {
			// Weekly birthdays do not exist; anything non-yearly is out of
			// the device's recurrence model.
			return def, false, nil
		}
		def.Recurrence = model.RecurrenceAnnual
		return def, true, nil
	}

	def.Recurrence = model.RecurrenceOneTime
	def.Year = start.Year()
	return def, true, nil
}

// Merge folds imported definitions into existing ones. Existing events win
// on a case-insensitive name match, so user edits (pins, date fixes) are
// not clobbered by re-imports.
func Merge(existing, imported []model.EventDefinition) []model.EventDefinition {
	out := make([]model.EventDefinition, 0, len(existing)+len(imported))
	out = append(out, existing...)

	seen := make(map[string]struct{}, len(existing))
	for _, def := range existing {
		seen[strings.ToLower(def.Name)] = struct{}{}
	}

	for _, def := range imported {
		key := strings.ToLower(def.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, def)
	}
	return out
}

// ImportAll fetches and parses every source, returning the merged imported
// set. Failures are per-source and logged by the fetcher.
func ImportAll(ctx context.Context, fetcher *Fetcher, sources []Source) []model.EventDefinition {
	results, _ := fetcher.FetchAll(ctx, sources)

	var imported []model.EventDefinition
	for _, res := range results {
		defs, err := ParseDefinitions(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics import parse failed", err, "id", res.Source.ID)
			continue
		}
		imported = Merge(imported, defs)
	}
	return imported
}
