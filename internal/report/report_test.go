package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openplan/storyplan/internal/domain"
	"github.com/openplan/storyplan/internal/graph"
	"github.com/openplan/storyplan/internal/planner"
	"github.com/openplan/storyplan/internal/testutil"
)

func TestGraphReport(t *testing.T) {
	stories := []domain.StoryRecord{
		testutil.CreateTestStory("a", 3),
		testutil.CreateTestStory("b", 5, "a"),
	}
	g := graph.Build("doc-1", stories)

	out := Graph(g)

	assert.Contains(t, out, "Dependency graph: doc-1")
	assert.Contains(t, out, "a -> b")
	assert.Contains(t, out, "ready")
	assert.Contains(t, out, "blocked")
}

func TestWarningsReport(t *testing.T) {
	assert.Contains(t, Warnings(nil), "No warnings")

	warnings := []graph.Warning{
		{Type: graph.WarningOrphanDependency, Message: "Story x depends on unknown story y", StoryIDs: []string{"x"}},
	}
	out := Warnings(warnings)
	assert.Contains(t, out, "Warnings (1)")
	assert.Contains(t, out, "orphan_dependency")
	assert.Contains(t, out, "unknown story y")
}

func TestValidationReport(t *testing.T) {
	assert.Contains(t, Validation(planner.ValidationResult{Valid: true}), "Plan is valid")

	result := planner.ValidationResult{
		Valid: false,
		Warnings: []graph.Warning{
			{Type: graph.WarningBlockedStory, Message: "blocked", StoryIDs: []string{"a", "b"}},
		},
	}
	assert.Contains(t, Validation(result), "1 warnings")
}

func TestPlanReport(t *testing.T) {
	stories := []domain.StoryRecord{
		testutil.CreateTestStory("s1", 3),
		testutil.CreateTestStoryWithStatus("s2", domain.StatusCompleted, 5),
	}
	plan, err := planner.Schedule(stories, 5, planner.CapacityByPoints, nil)
	assert.NoError(t, err)

	out := Plan(plan)
	assert.Contains(t, out, "Sprint plan: 1 sprints")
	assert.Contains(t, out, "Sprint 1 (weight 3)")
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "Unassigned (1)")
	assert.Contains(t, out, "Already completed")
}

func TestPrecedenceViolationsReport(t *testing.T) {
	assert.Contains(t, PrecedenceViolations(nil), "respects dependency ordering")

	violations := []planner.PrecedenceViolation{
		{StoryID: "b", BlockerID: "a", StorySprint: 1, BlockerSprint: 2},
	}
	out := PrecedenceViolations(violations)
	assert.Contains(t, out, "1 precedence violations")
	assert.Contains(t, out, "blocker a")
}
