package planner

import (
	"fmt"

	"github.com/openplan/storyplan/internal/domain"
	"github.com/openplan/storyplan/internal/graph"
)

// CapacityMode selects how a story's weight is measured when packing sprints
type CapacityMode string

const (
	// CapacityByCount weighs every story as 1
	CapacityByCount CapacityMode = "count"
	// CapacityByPoints weighs a story by its story-point estimate
	CapacityByPoints CapacityMode = "points"
)

// ParseCapacityMode converts a string to a CapacityMode, rejecting unknown values
func ParseCapacityMode(s string) (CapacityMode, error) {
	switch CapacityMode(s) {
	case CapacityByCount, CapacityByPoints:
		return CapacityMode(s), nil
	}
	return "", fmt.Errorf("unknown capacity mode %q", s)
}

// SprintStory is a story placed into a sprint
type SprintStory struct {
	StoryID     string          `json:"storyId"`
	Title       string          `json:"title"`
	StoryPoints int             `json:"storyPoints"`
	Priority    domain.Priority `json:"priority"`
	Reason      string          `json:"reason,omitempty"`
}

// Sprint is one capacity-bounded execution period
type Sprint struct {
	SprintNumber int           `json:"sprintNumber"`
	Stories      []SprintStory `json:"stories"`
	TotalWeight  int           `json:"totalWeight"`
}

// UnassignedStory is a story that could not be scheduled, with the reason
type UnassignedStory struct {
	StoryID string `json:"storyId"`
	Title   string `json:"title"`
	Reason  string `json:"reason"`
}

// SprintAssignment is a complete, capacity-valid sprint plan. Sprint numbers
// are 1-based and sequential with no gaps.
type SprintAssignment struct {
	Sprints           []Sprint          `json:"sprints"`
	UnassignedStories []UnassignedStory `json:"unassignedStories"`
	TotalWeight       int               `json:"totalWeight"`
	TotalSprints      int               `json:"totalSprints"`
}

// SprintFor returns the 1-based sprint number holding the story, or 0 if the
// story is not assigned
func (a *SprintAssignment) SprintFor(storyID string) int {
	for _, sprint := range a.Sprints {
		for _, s := range sprint.Stories {
			if s.StoryID == storyID {
				return sprint.SprintNumber
			}
		}
	}
	return 0
}

// AssignedCount returns the number of stories placed into sprints
func (a *SprintAssignment) AssignedCount() int {
	n := 0
	for _, sprint := range a.Sprints {
		n += len(sprint.Stories)
	}
	return n
}

// ValidationResult is the outcome of validating a story set for execution
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Warnings []graph.Warning `json:"warnings"`
}

// PrecedenceViolation reports a story scheduled no later than one of its
// incomplete blockers
type PrecedenceViolation struct {
	StoryID       string `json:"storyId"`
	BlockerID     string `json:"blockerId"`
	StorySprint   int    `json:"storySprint"`
	BlockerSprint int    `json:"blockerSprint"`
}
