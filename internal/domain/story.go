package domain

import "fmt"

// Priority represents the business priority of a story
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// ParsePriority converts a string to a Priority, rejecting unknown values
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Status represents the lifecycle status of a story
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
)

// ParseStatus converts a string to a Status, rejecting unknown values
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusSkipped:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// IsTerminal returns true if the status means the story will not be worked on
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// estimateScale is the allowed set of story-point values
var estimateScale = []int{1, 2, 3, 5, 8, 13}

// ValidEstimate reports whether points is on the estimation scale
func ValidEstimate(points int) bool {
	for _, v := range estimateScale {
		if v == points {
			return true
		}
	}
	return false
}

// EstimateScale returns the allowed story-point values in ascending order
func EstimateScale() []int {
	out := make([]int, len(estimateScale))
	copy(out, estimateScale)
	return out
}

// StoryRecord is an immutable snapshot of a story within a requirement document.
// DependsOn lists the ids of stories that block this one; entries may reference
// ids outside the current snapshot (orphan references) and the engine tolerates
// those. Estimate is 0 when the story has not been estimated.
type StoryRecord struct {
	ID                string
	Title             string
	Priority          Priority
	Status            Status
	DependsOn         []string
	DependencyReasons map[string]string
	Estimate          int
}

// HasEstimate returns true if the story carries a story-point estimate
func (s StoryRecord) HasEstimate() bool {
	return s.Estimate > 0
}

// IsSchedulable returns true if the story can be placed into a sprint
func (s StoryRecord) IsSchedulable() bool {
	return !s.Status.IsTerminal() && s.HasEstimate()
}

// ReasonFor returns the recorded reason this story is blocked by blockerID
func (s StoryRecord) ReasonFor(blockerID string) string {
	if s.DependencyReasons == nil {
		return ""
	}
	return s.DependencyReasons[blockerID]
}

// IndexByID builds a lookup map over a snapshot. When the same id appears
// twice the first occurrence wins, matching the input-order rules used by
// the graph builder and scheduler.
func IndexByID(stories []StoryRecord) map[string]*StoryRecord {
	idx := make(map[string]*StoryRecord, len(stories))
	for i := range stories {
		if _, ok := idx[stories[i].ID]; !ok {
			idx[stories[i].ID] = &stories[i]
		}
	}
	return idx
}
