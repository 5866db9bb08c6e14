package planner

import (
	"fmt"

	"github.com/openplan/storyplan/internal/domain"
	"github.com/openplan/storyplan/internal/graph"
)

// Validate checks the stories being considered for near-term execution,
// which are the pending and in-progress stories of the snapshot.
//
// Three warning kinds come out of it: circular_dependency for any considered
// story sitting on a cycle, blocked_story for a considered story with an
// unresolved resolvable blocker, and missing_dependency when that blocker is
// not itself pending or in progress, meaning nobody is tracking it. The
// result is valid only when no warnings were produced.
func Validate(stories []domain.StoryRecord) ValidationResult {
	index := domain.IndexByID(stories)

	var considered []string
	seen := make(map[string]bool, len(stories))
	for i := range stories {
		s := &stories[i]
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		if s.Status == domain.StatusPending || s.Status == domain.StatusInProgress {
			considered = append(considered, s.ID)
		}
	}
	consideredSet := make(map[string]bool, len(considered))
	for _, id := range considered {
		consideredSet[id] = true
	}

	warnings := make([]graph.Warning, 0)

	// Cycles among the considered subset only.
	deps := make(map[string][]string, len(considered))
	for _, id := range considered {
		depSeen := make(map[string]bool)
		for _, dep := range index[id].DependsOn {
			if consideredSet[dep] && !depSeen[dep] {
				depSeen[dep] = true
				deps[id] = append(deps[id], dep)
			}
		}
	}
	onCycle := make(map[string]bool)
	for _, id := range graph.CycleStoryIDs(graph.DetectCycles(considered, deps)) {
		onCycle[id] = true
	}
	for _, id := range considered {
		if onCycle[id] {
			warnings = append(warnings, graph.Warning{
				Type:     graph.WarningCircularDependency,
				Message:  fmt.Sprintf("Story %s is part of a circular dependency", id),
				StoryIDs: []string{id},
			})
		}
	}

	for _, id := range considered {
		story := index[id]
		depSeen := make(map[string]bool)
		for _, dep := range story.DependsOn {
			blocker, ok := index[dep]
			if !ok || depSeen[dep] {
				continue
			}
			depSeen[dep] = true
			if blocker.Status == domain.StatusCompleted {
				continue
			}
			warnings = append(warnings, graph.Warning{
				Type:     graph.WarningBlockedStory,
				Message:  fmt.Sprintf("Story %s is blocked by incomplete story %s", id, dep),
				StoryIDs: []string{id, dep},
			})
			if blocker.Status != domain.StatusPending && blocker.Status != domain.StatusInProgress {
				warnings = append(warnings, graph.Warning{
					Type:     graph.WarningMissingDependency,
					Message:  fmt.Sprintf("Story %s depends on %s, which is not scheduled for execution", id, dep),
					StoryIDs: []string{id, dep},
				})
			}
		}
	}

	return ValidationResult{Valid: len(warnings) == 0, Warnings: warnings}
}
