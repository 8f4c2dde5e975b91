// Package rank selects and orders the events shown on the panel.
package rank

import (
	"sort"

	appLog "epdday/internal/log"
	"epdday/internal/model"
)

const (
	// MaxCandidates is a hard capacity limit on events considered for
	// display. Matches beyond the first ten within the lookahead window are
	// dropped and a warning is logged; this is a capacity cut, not a
	// quality-based truncation.
	MaxCandidates = 10

	// DisplaySlots is the number of events the panel can show.
	DisplaySlots = 3
)

// Rank filters resolved events by the lookahead window and produces the
// final display selection.
//
// Filter: keep events whose raw DaysUntil is in [−1, lookaheadDays]. The −1
// boundary compensates for the resolver's midday rollover probe versus the
// midnight day-count; a surviving −1 is clamped to 0 ("still today") before
// sorting.
//
// Ordering runs in two phases:
//
//  1. Priority grouping: stable sort with pinned events first, each group
//     ascending by DaysUntil. Pinned events are pulled toward the front
//     regardless of date.
//  2. Display normalization: the first min(3, n) entries are re-sorted by
//     DaysUntil alone so the panel reads left-to-right chronologically even
//     when a distant pinned event was promoted in phase 1.
//
// An empty result means the caller should render a "no upcoming events"
// screen.
func Rank(resolved []model.ResolvedEvent, lookaheadDays int) model.DisplaySelection {
	candidates := make([]model.ResolvedEvent, 0, MaxCandidates)
	dropped := 0

	for _, re := range resolved {
		if re.DaysUntil < -1 || re.DaysUntil > lookaheadDays {
			continue
		}
		if len(candidates) == MaxCandidates {
			dropped++
			continue
		}
		if re.DaysUntil < 0 {
			re.DaysUntil = 0
		}
		candidates = append(candidates, re)
	}

	if dropped > 0 {
		appLog.Warn("rank: candidate capacity exceeded, events dropped",
			"cap", MaxCandidates, "dropped", dropped)
	}

	// Phase 1: pinned group first, chronological within each group. Stable,
	// so DaysUntil ties keep their input order.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Pinned() != candidates[j].Pinned() {
			return candidates[i].Pinned()
		}
		return candidates[i].DaysUntil < candidates[j].DaysUntil
	})

	n := len(candidates)
	if n > DisplaySlots {
		n = DisplaySlots
	}
	selection := candidates[:n]

	// Phase 2: the slots themselves are chronological, pin or not.
	sort.SliceStable(selection, func(i, j int) bool {
		return selection[i].DaysUntil < selection[j].DaysUntil
	})

	return model.DisplaySelection(selection)
}
