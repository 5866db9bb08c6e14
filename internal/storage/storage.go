package storage

import (
	"context"
	"time"

	"github.com/openplan/storyplan/internal/domain"
	"github.com/openplan/storyplan/internal/planner"
)

// DocumentRecord is a stored requirement document header
type DocumentRecord struct {
	ID         string
	Name       string
	StoryCount int
	UpdatedAt  time.Time
}

// PlanRecord is a stored sprint plan. Assignment is loaded on demand and is
// nil in listing results.
type PlanRecord struct {
	ID           string
	DocumentID   string
	Capacity     int
	CapacityMode planner.CapacityMode
	TotalWeight  int
	TotalSprints int
	CreatedAt    time.Time
	Assignment   *planner.SprintAssignment
}

// PlanFilter provides filtering options for listing plans
type PlanFilter struct {
	DocumentID string // Filter by document id
	Limit      int    // Max results (default 100)
	Offset     int    // Pagination offset
}

// Storage defines the interface for persistence operations. The engine
// itself never writes; persistence of snapshots and repaired plans belongs
// to this layer's callers.
type Storage interface {
	// Lifecycle
	Close() error

	// Story snapshots
	SaveSnapshot(ctx context.Context, documentID, name string, stories []domain.StoryRecord) error
	GetSnapshot(ctx context.Context, documentID string) ([]domain.StoryRecord, error)
	ListDocuments(ctx context.Context) ([]*DocumentRecord, error)
	DeleteDocument(ctx context.Context, documentID string) error

	// Sprint plans
	SavePlan(ctx context.Context, documentID string, capacity int, mode planner.CapacityMode, plan *planner.SprintAssignment) (string, error)
	GetPlan(ctx context.Context, id string) (*PlanRecord, error)
	ListPlans(ctx context.Context, filter *PlanFilter) ([]*PlanRecord, error)
	DeletePlan(ctx context.Context, id string) error
}
