package rank

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epdday/internal/model"
)

func ev(name string, daysUntil int, pinned bool) model.ResolvedEvent {
	return model.ResolvedEvent{
		Def:       model.EventDefinition{Name: name, Pinned: pinned},
		DaysUntil: daysUntil,
	}
}

func names(sel model.DisplaySelection) []string {
	out := make([]string, len(sel))
	for i, re := range sel {
		out[i] = re.Def.Name
	}
	return out
}

func TestRank_FilterWindow(t *testing.T) {
	in := []model.ResolvedEvent{
		ev("too far", 91, false),
		ev("edge", 90, false),
		ev("near", 3, false),
		ev("long past", -2, false),
		ev("yesterday", -1, false),
	}
	sel := Rank(in, 90)
	assert.Equal(t, []string{"yesterday", "near", "edge"}, names(sel))
	// The surviving −1 is clamped to 0 post-filter.
	assert.Equal(t, 0, sel[0].DaysUntil)
}

func TestRank_EmptyInput(t *testing.T) {
	assert.Empty(t, Rank(nil, 90))
	assert.Empty(t, Rank([]model.ResolvedEvent{ev("far", 400, true)}, 90))
}

func TestRank_CapsAtThreeSlots(t *testing.T) {
	in := []model.ResolvedEvent{
		ev("a", 1, false), ev("b", 2, false), ev("c", 3, false), ev("d", 4, false),
	}
	sel := Rank(in, 90)
	require.Len(t, sel, DisplaySlots)
	assert.Equal(t, []string{"a", "b", "c"}, names(sel))
}

func TestRank_PinnedPromotedThenChronological(t *testing.T) {
	// Christmas in 5 days, July 4th pinned in 196 days,
	// lookahead 365. The pin wins July 4th a slot; phase 2 still puts
	// Christmas first because it is sooner.
	in := []model.ResolvedEvent{
		ev("Christmas", 5, false),
		ev("July 4th", 196, true),
	}
	sel := Rank(in, 365)
	require.Len(t, sel, 2)
	assert.Equal(t, []string{"Christmas", "July 4th"}, names(sel))
}

func TestRank_PinnedDisplacesCloserUnpinned(t *testing.T) {
	in := []model.ResolvedEvent{
		ev("u1", 1, false),
		ev("u2", 2, false),
		ev("u3", 3, false),
		ev("pinned far", 80, true),
	}
	sel := Rank(in, 90)
	require.Len(t, sel, 3)
	// Phase 1 order: pinned far, u1, u2 | u3 cut. Phase 2: chronological.
	assert.Equal(t, []string{"u1", "u2", "pinned far"}, names(sel))
}

func TestRank_AllPinnedStaysChronological(t *testing.T) {
	in := []model.ResolvedEvent{
		ev("p3", 30, true),
		ev("p1", 10, true),
		ev("p2", 20, true),
		ev("p4", 40, true),
	}
	sel := Rank(in, 90)
	assert.Equal(t, []string{"p1", "p2", "p3"}, names(sel))
}

func TestRank_OutputAlwaysNonDecreasing(t *testing.T) {
	in := []model.ResolvedEvent{
		ev("a", 50, true),
		ev("b", 7, false),
		ev("c", 7, true),
		ev("d", 0, false),
		ev("e", 12, false),
	}
	sel := Rank(in, 90)
	require.Len(t, sel, 3)
	for i := 1; i < len(sel); i++ {
		assert.LessOrEqual(t, sel[i-1].DaysUntil, sel[i].DaysUntil)
	}
}

func TestRank_TiesKeepPhaseOneOrder(t *testing.T) {
	// Same DaysUntil: the pinned event was ahead after phase 1 and the
	// stable phase 2 sort must not swap it back.
	in := []model.ResolvedEvent{
		ev("unpinned tie", 4, false),
		ev("pinned tie", 4, true),
	}
	sel := Rank(in, 90)
	assert.Equal(t, []string{"pinned tie", "unpinned tie"}, names(sel))
}

func TestRank_CandidateCapacityDropsExcess(t *testing.T) {
	in := make([]model.ResolvedEvent, 0, 14)
	for i := 0; i < 14; i++ {
		// Later entries are sooner, but arrive after the cap is full.
		in = append(in, ev(fmt.Sprintf("e%02d", i), 20-i, false))
	}
	sel := Rank(in, 90)
	require.Len(t, sel, DisplaySlots)
	// Only the first ten encountered (e00..e09, daysUntil 20..11) were
	// retained; the closer e10..e13 were capacity-dropped.
	assert.Equal(t, []string{"e09", "e08", "e07"}, names(sel))
}
