package parser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openplan/storyplan/internal/domain"
)

// Document is a parsed requirement document: an id plus its story snapshot
// in file order
type Document struct {
	ID      string
	Name    string
	Stories []domain.StoryRecord
}

// storiesFile is the YAML structure of a stories file
type storiesFile struct {
	Document string       `yaml:"document"`
	Name     string       `yaml:"name,omitempty"`
	Stories  []storyEntry `yaml:"stories"`
}

type storyEntry struct {
	ID                string            `yaml:"id"`
	Title             string            `yaml:"title"`
	Priority          string            `yaml:"priority"`
	Status            string            `yaml:"status"`
	Estimate          int               `yaml:"estimate,omitempty"`
	DependsOn         []string          `yaml:"depends_on,omitempty"`
	DependencyReasons map[string]string `yaml:"dependency_reasons,omitempty"`
}

// ParseStoriesFile reads and parses a stories YAML file
func ParseStoriesFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStories(data)
}

// ParseStories parses stories YAML content. Enum fields are validated here,
// at the boundary, so bad values fail loudly instead of defaulting inside
// the engine. File order of stories is preserved; the graph builder and
// scheduler both key their determinism off it.
func ParseStories(data []byte) (*Document, error) {
	var file storiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse stories file: %w", err)
	}

	if file.Document == "" {
		return nil, fmt.Errorf("stories file missing document id")
	}

	doc := &Document{
		ID:      file.Document,
		Name:    file.Name,
		Stories: make([]domain.StoryRecord, 0, len(file.Stories)),
	}

	seen := make(map[string]bool, len(file.Stories))
	for i, entry := range file.Stories {
		if entry.ID == "" {
			return nil, fmt.Errorf("story %d: missing id", i)
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("story %d: duplicate id %q", i, entry.ID)
		}
		seen[entry.ID] = true

		priority, err := domain.ParsePriority(entry.Priority)
		if err != nil {
			return nil, fmt.Errorf("story %s: %w", entry.ID, err)
		}
		status, err := domain.ParseStatus(entry.Status)
		if err != nil {
			return nil, fmt.Errorf("story %s: %w", entry.ID, err)
		}
		if entry.Estimate != 0 && !domain.ValidEstimate(entry.Estimate) {
			return nil, fmt.Errorf("story %s: estimate %d is not on the scale %v",
				entry.ID, entry.Estimate, domain.EstimateScale())
		}

		doc.Stories = append(doc.Stories, domain.StoryRecord{
			ID:                entry.ID,
			Title:             entry.Title,
			Priority:          priority,
			Status:            status,
			Estimate:          entry.Estimate,
			DependsOn:         entry.DependsOn,
			DependencyReasons: entry.DependencyReasons,
		})
	}

	return doc, nil
}

// FilterByStatus returns the stories with the given status, in input order
func FilterByStatus(stories []domain.StoryRecord, status domain.Status) []domain.StoryRecord {
	var filtered []domain.StoryRecord
	for _, s := range stories {
		if s.Status == status {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// CountByStatus returns counts of stories by status
func CountByStatus(stories []domain.StoryRecord) map[domain.Status]int {
	counts := make(map[domain.Status]int)
	for _, s := range stories {
		counts[s.Status]++
	}
	return counts
}

// Schedulable returns the stories eligible for sprint packing, in input order
func Schedulable(stories []domain.StoryRecord) []domain.StoryRecord {
	var out []domain.StoryRecord
	for _, s := range stories {
		if s.IsSchedulable() {
			out = append(out, s)
		}
	}
	return out
}
