package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/openplan/storyplan/internal/domain"
	"github.com/openplan/storyplan/internal/planner"
)

// SQLiteStorage implements Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// NewInMemoryStorage creates an in-memory SQLite storage (for testing)
func NewInMemoryStorage() (*SQLiteStorage, error) {
	return NewSQLiteStorage(":memory:")
}

// migrate runs database migrations
func (s *SQLiteStorage) migrate() error {
	if _, err := s.db.Exec(initialMigration); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

const initialMigration = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    name TEXT,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS stories (
    document_id TEXT NOT NULL,
    id TEXT NOT NULL,
    position INTEGER NOT NULL,
    title TEXT,
    priority TEXT NOT NULL,
    status TEXT NOT NULL,
    estimate INTEGER DEFAULT 0,
    PRIMARY KEY (document_id, id),
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS story_dependencies (
    document_id TEXT NOT NULL,
    story_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    depends_on TEXT NOT NULL,
    reason TEXT,
    PRIMARY KEY (document_id, story_id, depends_on),
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS plans (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    capacity INTEGER NOT NULL,
    capacity_mode TEXT NOT NULL,
    total_weight INTEGER NOT NULL,
    total_sprints INTEGER NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS plan_sprints (
    plan_id TEXT NOT NULL,
    sprint_number INTEGER NOT NULL,
    total_weight INTEGER NOT NULL,
    PRIMARY KEY (plan_id, sprint_number),
    FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS plan_stories (
    plan_id TEXT NOT NULL,
    sprint_number INTEGER NOT NULL,
    position INTEGER NOT NULL,
    story_id TEXT NOT NULL,
    title TEXT,
    story_points INTEGER DEFAULT 0,
    priority TEXT,
    reason TEXT,
    PRIMARY KEY (plan_id, sprint_number, position),
    FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS plan_unassigned (
    plan_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    story_id TEXT NOT NULL,
    title TEXT,
    reason TEXT NOT NULL,
    PRIMARY KEY (plan_id, position),
    FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_stories_document ON stories(document_id, position);
CREATE INDEX IF NOT EXISTS idx_plans_document ON plans(document_id);
CREATE INDEX IF NOT EXISTS idx_plans_created_at ON plans(created_at DESC);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores the story snapshot for a document, replacing any
// previous snapshot. Positions preserve input order so GetSnapshot returns
// stories exactly as supplied, which the engine's determinism depends on.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, documentID, name string, stories []domain.StoryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, name, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
	`, documentID, name)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM stories WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to clear stories: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM story_dependencies WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to clear dependencies: %w", err)
	}

	for i, story := range stories {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stories (document_id, id, position, title, priority, status, estimate)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, documentID, story.ID, i, story.Title, string(story.Priority), string(story.Status), story.Estimate)
		if err != nil {
			return fmt.Errorf("failed to insert story %s: %w", story.ID, err)
		}

		for j, dep := range story.DependsOn {
			_, err = tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO story_dependencies (document_id, story_id, position, depends_on, reason)
				VALUES (?, ?, ?, ?, ?)
			`, documentID, story.ID, j, dep, nullableString(story.ReasonFor(dep)))
			if err != nil {
				return fmt.Errorf("failed to insert dependency %s -> %s: %w", story.ID, dep, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the story snapshot for a document in stored order
func (s *SQLiteStorage) GetSnapshot(ctx context.Context, documentID string) ([]domain.StoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, priority, status, estimate
		FROM stories WHERE document_id = ? ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories: %w", err)
	}
	defer rows.Close()

	var stories []domain.StoryRecord
	byID := make(map[string]int)
	for rows.Next() {
		var story domain.StoryRecord
		var title sql.NullString
		var priority, status string
		if err := rows.Scan(&story.ID, &title, &priority, &status, &story.Estimate); err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		story.Title = title.String
		story.Priority = domain.Priority(priority)
		story.Status = domain.Status(status)
		byID[story.ID] = len(stories)
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	depRows, err := s.db.QueryContext(ctx, `
		SELECT story_id, depends_on, reason
		FROM story_dependencies WHERE document_id = ? ORDER BY story_id, position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer depRows.Close()

	for depRows.Next() {
		var storyID, dependsOn string
		var reason sql.NullString
		if err := depRows.Scan(&storyID, &dependsOn, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		idx, ok := byID[storyID]
		if !ok {
			continue
		}
		stories[idx].DependsOn = append(stories[idx].DependsOn, dependsOn)
		if reason.Valid && reason.String != "" {
			if stories[idx].DependencyReasons == nil {
				stories[idx].DependencyReasons = make(map[string]string)
			}
			stories[idx].DependencyReasons[dependsOn] = reason.String
		}
	}
	if err := depRows.Err(); err != nil {
		return nil, err
	}

	return stories, nil
}

// ListDocuments returns all stored document headers, most recently updated first
func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.updated_at, COUNT(s.id)
		FROM documents d
		LEFT JOIN stories s ON s.document_id = d.id
		GROUP BY d.id
		ORDER BY d.updated_at DESC, d.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*DocumentRecord
	for rows.Next() {
		var rec DocumentRecord
		var name sql.NullString
		var updatedAt string
		if err := rows.Scan(&rec.ID, &name, &updatedAt, &rec.StoryCount); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		rec.Name = name.String
		rec.UpdatedAt = parseStoredTime(updatedAt)
		docs = append(docs, &rec)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and its snapshot
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, documentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document not found: %s", documentID)
	}
	return nil
}

// SavePlan stores a repaired sprint plan and returns its generated id
func (s *SQLiteStorage) SavePlan(ctx context.Context, documentID string, capacity int, mode planner.CapacityMode, plan *planner.SprintAssignment) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	planID := uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (id, document_id, capacity, capacity_mode, total_weight, total_sprints, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, planID, documentID, capacity, string(mode), plan.TotalWeight, plan.TotalSprints, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert plan: %w", err)
	}

	for _, sprint := range plan.Sprints {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO plan_sprints (plan_id, sprint_number, total_weight) VALUES (?, ?, ?)
		`, planID, sprint.SprintNumber, sprint.TotalWeight)
		if err != nil {
			return "", fmt.Errorf("failed to insert sprint: %w", err)
		}

		for i, story := range sprint.Stories {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO plan_stories (plan_id, sprint_number, position, story_id, title, story_points, priority, reason)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, planID, sprint.SprintNumber, i, story.StoryID, story.Title, story.StoryPoints, string(story.Priority), nullableString(story.Reason))
			if err != nil {
				return "", fmt.Errorf("failed to insert plan story: %w", err)
			}
		}
	}

	for i, u := range plan.UnassignedStories {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO plan_unassigned (plan_id, position, story_id, title, reason) VALUES (?, ?, ?, ?, ?)
		`, planID, i, u.StoryID, u.Title, u.Reason)
		if err != nil {
			return "", fmt.Errorf("failed to insert unassigned story: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return planID, nil
}

// GetPlan retrieves a stored plan with its full assignment
func (s *SQLiteStorage) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, capacity, capacity_mode, total_weight, total_sprints, created_at
		FROM plans WHERE id = ?
	`, id)

	rec, err := scanPlan(row)
	if err != nil {
		return nil, err
	}

	assignment := &planner.SprintAssignment{
		Sprints:           make([]planner.Sprint, 0),
		UnassignedStories: make([]planner.UnassignedStory, 0),
		TotalWeight:       rec.TotalWeight,
		TotalSprints:      rec.TotalSprints,
	}

	sprintRows, err := s.db.QueryContext(ctx, `
		SELECT sprint_number, total_weight FROM plan_sprints WHERE plan_id = ? ORDER BY sprint_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query sprints: %w", err)
	}
	defer sprintRows.Close()

	sprintIdx := make(map[int]int)
	for sprintRows.Next() {
		var sprint planner.Sprint
		if err := sprintRows.Scan(&sprint.SprintNumber, &sprint.TotalWeight); err != nil {
			return nil, fmt.Errorf("failed to scan sprint: %w", err)
		}
		sprint.Stories = make([]planner.SprintStory, 0)
		sprintIdx[sprint.SprintNumber] = len(assignment.Sprints)
		assignment.Sprints = append(assignment.Sprints, sprint)
	}
	if err := sprintRows.Err(); err != nil {
		return nil, err
	}

	storyRows, err := s.db.QueryContext(ctx, `
		SELECT sprint_number, story_id, title, story_points, priority, reason
		FROM plan_stories WHERE plan_id = ? ORDER BY sprint_number, position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan stories: %w", err)
	}
	defer storyRows.Close()

	for storyRows.Next() {
		var sprintNumber int
		var story planner.SprintStory
		var title, priority, reason sql.NullString
		if err := storyRows.Scan(&sprintNumber, &story.StoryID, &title, &story.StoryPoints, &priority, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan plan story: %w", err)
		}
		story.Title = title.String
		story.Priority = domain.Priority(priority.String)
		story.Reason = reason.String
		if idx, ok := sprintIdx[sprintNumber]; ok {
			assignment.Sprints[idx].Stories = append(assignment.Sprints[idx].Stories, story)
		}
	}
	if err := storyRows.Err(); err != nil {
		return nil, err
	}

	unassignedRows, err := s.db.QueryContext(ctx, `
		SELECT story_id, title, reason FROM plan_unassigned WHERE plan_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query unassigned stories: %w", err)
	}
	defer unassignedRows.Close()

	for unassignedRows.Next() {
		var u planner.UnassignedStory
		var title sql.NullString
		if err := unassignedRows.Scan(&u.StoryID, &title, &u.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan unassigned story: %w", err)
		}
		u.Title = title.String
		assignment.UnassignedStories = append(assignment.UnassignedStories, u)
	}
	if err := unassignedRows.Err(); err != nil {
		return nil, err
	}

	rec.Assignment = assignment
	return rec, nil
}

// ListPlans retrieves plan headers matching the filter, newest first
func (s *SQLiteStorage) ListPlans(ctx context.Context, filter *PlanFilter) ([]*PlanRecord, error) {
	query := `
		SELECT id, document_id, capacity, capacity_mode, total_weight, total_sprints, created_at
		FROM plans
	`
	var args []interface{}
	if filter != nil && filter.DocumentID != "" {
		query += " WHERE document_id = ?"
		args = append(args, filter.DocumentID)
	}
	query += " ORDER BY created_at DESC, id"

	limit := 100
	offset := 0
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		offset = filter.Offset
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []*PlanRecord
	for rows.Next() {
		rec, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, rec)
	}
	return plans, rows.Err()
}

// DeletePlan removes a stored plan
func (s *SQLiteStorage) DeletePlan(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("plan not found: %s", id)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(row scanner) (*PlanRecord, error) {
	var rec PlanRecord
	var mode, createdAt string
	err := row.Scan(&rec.ID, &rec.DocumentID, &rec.Capacity, &mode, &rec.TotalWeight, &rec.TotalSprints, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	rec.CapacityMode = planner.CapacityMode(mode)
	rec.CreatedAt = parseStoredTime(createdAt)
	return &rec, nil
}

func parseStoredTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
