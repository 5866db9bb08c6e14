// Package testutil provides test utilities and helpers for the storyplan tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openplan/storyplan/internal/config"
	"github.com/openplan/storyplan/internal/domain"
	"github.com/openplan/storyplan/internal/storage"
)

// NewTestConfig creates a Config with temp directories for testing.
// All temp directories are automatically cleaned up when the test completes.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()

	tempDir := CreateTempDir(t)

	cfg := &config.Config{
		StoriesPath:        filepath.Join(tempDir, "stories.yaml"),
		WorkingDir:         tempDir,
		DataDir:            filepath.Join(tempDir, "data"),
		DatabasePath:       filepath.Join(tempDir, "data", "test.db"),
		Capacity:           5,
		CapacityMode:       "points",
		APIPort:            8080,
		CORSAllowedOrigins: []string{"http://localhost:*"},
		WatchEnabled:       false,
		WatchDebounce:      50,
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		t.Fatalf("failed to create data dir: %v", err)
	}

	return cfg
}

// NewTestStorage creates an in-memory SQLite storage for testing.
// The storage is automatically closed when the test completes.
func NewTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	s, err := storage.NewInMemoryStorage()
	if err != nil {
		t.Fatalf("failed to create in-memory storage: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// CreateTempDir creates a temporary directory for testing.
// The directory is automatically removed when the test completes.
func CreateTempDir(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "storyplan-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	t.Cleanup(func() {
		os.RemoveAll(dir)
	})

	return dir
}

// CreateTempFile creates a temporary file with the given content.
// The file is automatically removed when the test completes.
func CreateTempFile(t *testing.T, content string) string {
	t.Helper()

	f, err := os.CreateTemp("", "storyplan-test-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		t.Fatalf("failed to write temp file: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}

	t.Cleanup(func() {
		os.Remove(f.Name())
	})

	return f.Name()
}

// CreateTestStory creates a pending StoryRecord with the given id, estimate
// and blockers.
func CreateTestStory(id string, estimate int, dependsOn ...string) domain.StoryRecord {
	return domain.StoryRecord{
		ID:        id,
		Title:     "Test Story: " + id,
		Priority:  domain.PriorityMedium,
		Status:    domain.StatusPending,
		Estimate:  estimate,
		DependsOn: dependsOn,
	}
}

// CreateTestStoryWithStatus creates a StoryRecord with an explicit status.
func CreateTestStoryWithStatus(id string, status domain.Status, estimate int, dependsOn ...string) domain.StoryRecord {
	s := CreateTestStory(id, estimate, dependsOn...)
	s.Status = status
	return s
}

// ValidStoriesYAML returns a valid stories.yaml content.
func ValidStoriesYAML() string {
	return `document: prd-auth
name: Authentication PRD
stories:
  - id: auth-1
    title: Session schema
    priority: critical
    status: completed
    estimate: 3
  - id: auth-2
    title: Login endpoint
    priority: high
    status: pending
    estimate: 5
    depends_on: [auth-1]
    dependency_reasons:
      auth-1: schema must land first
  - id: auth-3
    title: Password reset
    priority: medium
    status: pending
    estimate: 2
    depends_on: [auth-2]
  - id: auth-4
    title: Audit logging
    priority: low
    status: pending
`
}

// CyclicStoriesYAML returns stories.yaml content with a dependency cycle.
func CyclicStoriesYAML() string {
	return `document: prd-cycle
stories:
  - id: x
    title: First
    priority: high
    status: pending
    estimate: 3
    depends_on: [y]
  - id: y
    title: Second
    priority: high
    status: pending
    estimate: 3
    depends_on: [x]
`
}

// MalformedYAML returns malformed YAML content.
func MalformedYAML() string {
	return `document
  missing: colon
  - invalid: structure
`
}
