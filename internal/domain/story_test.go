package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Priority
		wantErr bool
	}{
		{name: "critical", input: "critical", want: PriorityCritical},
		{name: "high", input: "high", want: PriorityHigh},
		{name: "medium", input: "medium", want: PriorityMedium},
		{name: "low", input: "low", want: PriorityLow},
		{name: "unknown value rejected", input: "urgent", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePriority(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "pending", input: "pending", want: StatusPending},
		{name: "in_progress", input: "in_progress", want: StatusInProgress},
		{name: "completed", input: "completed", want: StatusCompleted},
		{name: "skipped", input: "skipped", want: StatusSkipped},
		{name: "hyphenated variant rejected", input: "in-progress", wantErr: true},
		{name: "unknown value rejected", input: "done", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusSkipped.IsTerminal())
}

func TestValidEstimate(t *testing.T) {
	for _, v := range []int{1, 2, 3, 5, 8, 13} {
		assert.True(t, ValidEstimate(v), "expected %d to be a valid estimate", v)
	}
	for _, v := range []int{0, 4, 6, 7, 21, -1} {
		assert.False(t, ValidEstimate(v), "expected %d to be rejected", v)
	}
}

func TestStoryRecord_IsSchedulable(t *testing.T) {
	tests := []struct {
		name  string
		story StoryRecord
		want  bool
	}{
		{
			name:  "pending with estimate",
			story: StoryRecord{ID: "s1", Status: StatusPending, Estimate: 3},
			want:  true,
		},
		{
			name:  "in progress with estimate",
			story: StoryRecord{ID: "s1", Status: StatusInProgress, Estimate: 5},
			want:  true,
		},
		{
			name:  "pending without estimate",
			story: StoryRecord{ID: "s1", Status: StatusPending},
			want:  false,
		},
		{
			name:  "completed",
			story: StoryRecord{ID: "s1", Status: StatusCompleted, Estimate: 3},
			want:  false,
		},
		{
			name:  "skipped",
			story: StoryRecord{ID: "s1", Status: StatusSkipped, Estimate: 3},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.story.IsSchedulable())
		})
	}
}

func TestStoryRecord_ReasonFor(t *testing.T) {
	s := StoryRecord{
		ID:        "s2",
		DependsOn: []string{"s1"},
		DependencyReasons: map[string]string{
			"s1": "schema must exist first",
		},
	}

	assert.Equal(t, "schema must exist first", s.ReasonFor("s1"))
	assert.Equal(t, "", s.ReasonFor("s9"))

	var bare StoryRecord
	assert.Equal(t, "", bare.ReasonFor("s1"))
}

func TestIndexByID_FirstOccurrenceWins(t *testing.T) {
	stories := []StoryRecord{
		{ID: "s1", Title: "first"},
		{ID: "s2", Title: "second"},
		{ID: "s1", Title: "duplicate"},
	}

	idx := IndexByID(stories)

	assert.Len(t, idx, 2)
	assert.Equal(t, "first", idx["s1"].Title)
}
