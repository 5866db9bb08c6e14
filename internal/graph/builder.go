package graph

import (
	"fmt"

	"github.com/openplan/storyplan/internal/domain"
)

// Build derives the dependency graph for one document from a story snapshot.
//
// Edges are created only for dependsOn entries that resolve to a story in
// the snapshot; orphan references are reported as warnings and excluded from
// every count. The call is pure: nothing is cached between invocations and
// identical snapshots yield identical graphs.
func Build(documentID string, stories []domain.StoryRecord) *Graph {
	g := &Graph{
		DocumentID: documentID,
		Nodes:      make([]Node, 0, len(stories)),
		Edges:      make([]Edge, 0),
		Warnings:   make([]Warning, 0),
	}

	index := domain.IndexByID(stories)

	// Node id order, skipping duplicate ids past their first occurrence.
	var order []string
	ordered := make(map[string]bool, len(stories))
	for i := range stories {
		if !ordered[stories[i].ID] {
			ordered[stories[i].ID] = true
			order = append(order, stories[i].ID)
		}
	}

	// Resolvable blockers per story, deduplicated, in recorded order.
	blockers := make(map[string][]string, len(stories))
	blocks := make(map[string]int, len(stories))

	edgeSeen := make(map[[2]string]bool)
	for _, id := range order {
		story := index[id]
		for _, dep := range story.DependsOn {
			key := [2]string{dep, id}
			if edgeSeen[key] {
				continue
			}
			edgeSeen[key] = true
			if _, ok := index[dep]; !ok {
				g.Warnings = append(g.Warnings, Warning{
					Type:     WarningOrphanDependency,
					Message:  fmt.Sprintf("Story %s depends on unknown story %s", id, dep),
					StoryIDs: []string{id},
				})
				continue
			}
			g.Edges = append(g.Edges, Edge{From: dep, To: id, Reason: story.ReasonFor(dep)})
			blockers[id] = append(blockers[id], dep)
			blocks[dep]++
		}
	}

	depths := computeDepths(order, blockers)

	for _, id := range order {
		story := index[id]
		g.Nodes = append(g.Nodes, Node{
			StoryID:        id,
			Title:          story.Title,
			Status:         story.Status,
			Priority:       story.Priority,
			BlocksCount:    blocks[id],
			BlockedByCount: len(blockers[id]),
			IsReady:        allCompleted(index, blockers[id]),
			Depth:          depths[id],
		})
	}

	if cycleEdges := DetectCycles(order, blockers); len(cycleEdges) > 0 {
		ids := CycleStoryIDs(cycleEdges)
		g.Warnings = append(g.Warnings, Warning{
			Type:     WarningCircular,
			Message:  fmt.Sprintf("Circular dependency detected among %d stories", len(ids)),
			StoryIDs: ids,
		})
	}

	for _, id := range order {
		story := index[id]
		if story.Status != domain.StatusPending && story.Status != domain.StatusInProgress {
			continue
		}
		if len(blockers[id]) == 0 || allCompleted(index, blockers[id]) {
			continue
		}
		g.Warnings = append(g.Warnings, Warning{
			Type:     WarningUnresolvedBlocker,
			Message:  fmt.Sprintf("Story %s is blocked by incomplete stories", id),
			StoryIDs: []string{id},
		})
	}

	return g
}

// allCompleted reports whether every listed blocker has completed status.
// An empty blocker list means the story is ready.
func allCompleted(index map[string]*domain.StoryRecord, blockerIDs []string) bool {
	for _, id := range blockerIDs {
		if index[id].Status != domain.StatusCompleted {
			return false
		}
	}
	return true
}

// computeDepths returns the longest-chain depth for each story: 0 with no
// resolvable blockers, otherwise 1 + max over blockers. Memoized DFS with a
// per-path marker so cycles terminate; a blocker already on the current path
// contributes 0, making depth best-effort there (cycles are reported
// separately as warnings).
func computeDepths(order []string, blockers map[string][]string) map[string]int {
	const (
		unvisited = 0
		computing = 1
		done      = 2
	)

	state := make(map[string]int, len(order))
	depths := make(map[string]int, len(order))

	var depthOf func(id string) int
	depthOf = func(id string) int {
		switch state[id] {
		case done:
			return depths[id]
		case computing:
			return 0
		}
		state[id] = computing

		best := 0
		for _, blocker := range blockers[id] {
			if d := depthOf(blocker) + 1; d > best {
				best = d
			}
		}

		state[id] = done
		depths[id] = best
		return best
	}

	for _, id := range order {
		depthOf(id)
	}
	return depths
}
