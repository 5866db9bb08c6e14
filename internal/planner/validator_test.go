package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplan/storyplan/internal/domain"
	"github.com/openplan/storyplan/internal/graph"
)

func warningsOfType(warnings []graph.Warning, wt graph.WarningType) []graph.Warning {
	var out []graph.Warning
	for _, w := range warnings {
		if w.Type == wt {
			out = append(out, w)
		}
	}
	return out
}

func TestValidate_CleanPlan(t *testing.T) {
	stories := []domain.StoryRecord{
		{ID: "a", Status: domain.StatusCompleted},
		{ID: "b", Status: domain.StatusPending, DependsOn: []string{"a"}},
		{ID: "c", Status: domain.StatusPending},
	}

	result := Validate(stories)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestValidate_CircularDependency(t *testing.T) {
	stories := []domain.StoryRecord{
		{ID: "x", Status: domain.StatusPending, DependsOn: []string{"y"}},
		{ID: "y", Status: domain.StatusPending, DependsOn: []string{"x"}},
	}

	result := Validate(stories)

	assert.False(t, result.Valid)
	circular := warningsOfType(result.Warnings, graph.WarningCircularDependency)
	require.Len(t, circular, 2)
	assert.Equal(t, []string{"x"}, circular[0].StoryIDs)
	assert.Equal(t, []string{"y"}, circular[1].StoryIDs)
}

func TestValidate_BlockedStory(t *testing.T) {
	stories := []domain.StoryRecord{
		{ID: "a", Status: domain.StatusPending},
		{ID: "b", Status: domain.StatusInProgress, DependsOn: []string{"a"}},
	}

	result := Validate(stories)

	assert.False(t, result.Valid)
	blocked := warningsOfType(result.Warnings, graph.WarningBlockedStory)
	require.Len(t, blocked, 1)
	assert.Equal(t, []string{"b", "a"}, blocked[0].StoryIDs)
	// The blocker is itself scheduled, so no missing_dependency.
	assert.Empty(t, warningsOfType(result.Warnings, graph.WarningMissingDependency))
}

func TestValidate_MissingDependency(t *testing.T) {
	stories := []domain.StoryRecord{
		{ID: "a", Status: domain.StatusSkipped},
		{ID: "b", Status: domain.StatusPending, DependsOn: []string{"a"}},
	}

	result := Validate(stories)

	assert.False(t, result.Valid)
	blocked := warningsOfType(result.Warnings, graph.WarningBlockedStory)
	require.Len(t, blocked, 1)

	missing := warningsOfType(result.Warnings, graph.WarningMissingDependency)
	require.Len(t, missing, 1)
	assert.Equal(t, []string{"b", "a"}, missing[0].StoryIDs)
}

func TestValidate_CompletedBlockerIsClean(t *testing.T) {
	stories := []domain.StoryRecord{
		{ID: "a", Status: domain.StatusCompleted},
		{ID: "b", Status: domain.StatusPending, DependsOn: []string{"a"}},
	}

	result := Validate(stories)

	assert.True(t, result.Valid)
}

func TestValidate_OrphanBlockerIgnored(t *testing.T) {
	// Only resolvable blockers are considered; orphan references belong to
	// the graph builder's warnings.
	stories := []domain.StoryRecord{
		{ID: "a", Status: domain.StatusPending, DependsOn: []string{"ghost-1"}},
	}

	result := Validate(stories)

	assert.True(t, result.Valid)
}

func TestValidate_CycleOutsideConsideredSubsetIgnored(t *testing.T) {
	// Completed stories are out of consideration, so a "cycle" through them
	// does not flag the considered set.
	stories := []domain.StoryRecord{
		{ID: "a", Status: domain.StatusCompleted, DependsOn: []string{"b"}},
		{ID: "b", Status: domain.StatusCompleted, DependsOn: []string{"a"}},
		{ID: "c", Status: domain.StatusPending},
	}

	result := Validate(stories)

	assert.Empty(t, warningsOfType(result.Warnings, graph.WarningCircularDependency))
}

func TestValidate_TerminalStoriesNotConsidered(t *testing.T) {
	stories := []domain.StoryRecord{
		{ID: "a", Status: domain.StatusPending},
		{ID: "done", Status: domain.StatusCompleted, DependsOn: []string{"a"}},
		{ID: "skip", Status: domain.StatusSkipped, DependsOn: []string{"a"}},
	}

	result := Validate(stories)

	// Terminal stories produce no warnings even with incomplete blockers.
	assert.True(t, result.Valid)
}
