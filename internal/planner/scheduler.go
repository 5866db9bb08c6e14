package planner

import (
	"fmt"

	"github.com/openplan/storyplan/internal/domain"
)

// Schedule packs the schedulable stories of a snapshot into capacity-bounded
// sprints, repairing the optional candidate assignment into a complete and
// capacity-valid plan.
//
// The candidate is untrusted input: story ids outside the eligible set are
// dropped, duplicates keep their first occurrence in sprint order, and
// weights are recomputed from the snapshot. Stories the candidate does not
// cover are placed first-fit in input order; a story heavier than the
// capacity still gets a sprint of its own rather than being dropped. The
// result is deterministic for identical inputs and idempotent when fed its
// own output as the candidate.
//
// Sprint ordering relative to dependencies is the candidate producer's
// responsibility; use CheckPrecedence to audit it.
func Schedule(stories []domain.StoryRecord, capacity int, mode CapacityMode, candidate *SprintAssignment) (*SprintAssignment, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	if mode != CapacityByCount && mode != CapacityByPoints {
		return nil, fmt.Errorf("unknown capacity mode %q", mode)
	}

	index := domain.IndexByID(stories)

	plan := &SprintAssignment{
		Sprints:           make([]Sprint, 0),
		UnassignedStories: make([]UnassignedStory, 0),
	}

	// Eligibility pass, preserving input order. Duplicate ids past their
	// first occurrence are ignored.
	var eligible []string
	seen := make(map[string]bool, len(stories))
	for i := range stories {
		s := &stories[i]
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true

		switch {
		case s.Status.IsTerminal():
			plan.UnassignedStories = append(plan.UnassignedStories, UnassignedStory{
				StoryID: s.ID,
				Title:   s.Title,
				Reason:  "Already " + string(s.Status),
			})
		case !s.HasEstimate():
			plan.UnassignedStories = append(plan.UnassignedStories, UnassignedStory{
				StoryID: s.ID,
				Title:   s.Title,
				Reason:  "No estimate — estimate the story first",
			})
		default:
			eligible = append(eligible, s.ID)
		}
	}
	eligibleSet := make(map[string]bool, len(eligible))
	for _, id := range eligible {
		eligibleSet[id] = true
	}

	weightOf := func(id string) int {
		if mode == CapacityByCount {
			return 1
		}
		return index[id].Estimate
	}

	// Take over the candidate's grouping where it is usable. Unknown and
	// ineligible ids are dropped; a story assigned twice keeps its first
	// placement in sprint order.
	covered := make(map[string]bool, len(eligible))
	if candidate != nil {
		for _, cs := range candidate.Sprints {
			sprint := Sprint{Stories: make([]SprintStory, 0, len(cs.Stories))}
			for _, entry := range cs.Stories {
				if !eligibleSet[entry.StoryID] || covered[entry.StoryID] {
					continue
				}
				covered[entry.StoryID] = true
				story := index[entry.StoryID]
				sprint.Stories = append(sprint.Stories, SprintStory{
					StoryID:     story.ID,
					Title:       story.Title,
					StoryPoints: story.Estimate,
					Priority:    story.Priority,
					Reason:      entry.Reason,
				})
				sprint.TotalWeight += weightOf(story.ID)
			}
			plan.Sprints = append(plan.Sprints, sprint)
		}
	}

	// First-fit placement for everything the candidate left uncovered.
	for _, id := range eligible {
		if covered[id] {
			continue
		}
		story := index[id]
		w := weightOf(id)

		placed := false
		for i := range plan.Sprints {
			if plan.Sprints[i].TotalWeight+w <= capacity {
				plan.Sprints[i].Stories = append(plan.Sprints[i].Stories, sprintStoryFor(story))
				plan.Sprints[i].TotalWeight += w
				placed = true
				break
			}
		}
		if !placed {
			// Opens a new sprint, even when the story alone exceeds the
			// capacity: capacity is a packing target, never a reason to
			// drop work.
			plan.Sprints = append(plan.Sprints, Sprint{
				Stories:     []SprintStory{sprintStoryFor(story)},
				TotalWeight: w,
			})
		}
	}

	// Candidate sprints that ended up empty disappear; the rest are
	// renumbered sequentially from 1.
	final := plan.Sprints[:0]
	for _, sprint := range plan.Sprints {
		if len(sprint.Stories) == 0 {
			continue
		}
		sprint.SprintNumber = len(final) + 1
		final = append(final, sprint)
		plan.TotalWeight += sprint.TotalWeight
	}
	plan.Sprints = final
	plan.TotalSprints = len(plan.Sprints)

	return plan, nil
}

func sprintStoryFor(story *domain.StoryRecord) SprintStory {
	return SprintStory{
		StoryID:     story.ID,
		Title:       story.Title,
		StoryPoints: story.Estimate,
		Priority:    story.Priority,
	}
}

// CheckPrecedence audits a plan against the snapshot's dependency structure:
// a story must land in a strictly later sprint than every incomplete
// resolvable blocker. The scheduler itself never reorders sprints to satisfy
// this; the check exists so callers can verify the candidate source.
func CheckPrecedence(plan *SprintAssignment, stories []domain.StoryRecord) []PrecedenceViolation {
	index := domain.IndexByID(stories)

	var violations []PrecedenceViolation
	for _, sprint := range plan.Sprints {
		for _, entry := range sprint.Stories {
			story, ok := index[entry.StoryID]
			if !ok {
				continue
			}
			depSeen := make(map[string]bool, len(story.DependsOn))
			for _, dep := range story.DependsOn {
				blocker, ok := index[dep]
				if !ok || depSeen[dep] || blocker.Status == domain.StatusCompleted {
					continue
				}
				depSeen[dep] = true
				blockerSprint := plan.SprintFor(dep)
				if blockerSprint == 0 || blockerSprint >= sprint.SprintNumber {
					violations = append(violations, PrecedenceViolation{
						StoryID:       entry.StoryID,
						BlockerID:     dep,
						StorySprint:   sprint.SprintNumber,
						BlockerSprint: blockerSprint,
					})
				}
			}
		}
	}
	return violations
}
