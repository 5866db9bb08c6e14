package graph

import "github.com/openplan/storyplan/internal/domain"

// WarningType classifies a structural anomaly found while building a graph
// or validating a plan
type WarningType string

const (
	WarningOrphanDependency   WarningType = "orphan_dependency"
	WarningCircular           WarningType = "circular"
	WarningUnresolvedBlocker  WarningType = "unresolved_blocker"
	WarningCircularDependency WarningType = "circular_dependency"
	WarningBlockedStory       WarningType = "blocked_story"
	WarningMissingDependency  WarningType = "missing_dependency"
)

// Warning describes a structural anomaly. Anomalies are surfaced, never
// fatal: the engine always returns a best-effort graph alongside them.
type Warning struct {
	Type     WarningType `json:"type"`
	Message  string      `json:"message"`
	StoryIDs []string    `json:"storyIds"`
}

// Node is a story with its computed position in the dependency graph
type Node struct {
	StoryID        string          `json:"storyId"`
	Title          string          `json:"title"`
	Status         domain.Status   `json:"status"`
	Priority       domain.Priority `json:"priority"`
	BlocksCount    int             `json:"blocksCount"`
	BlockedByCount int             `json:"blockedByCount"`
	IsReady        bool            `json:"isReady"`
	Depth          int             `json:"depth"`
}

// Edge is a resolvable dependency: From blocks To. There is exactly one
// edge per (blocker, blocked) pair even when the dependency is recorded twice.
type Edge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// Graph is the dependency graph for one requirement document, derived fresh
// from a story snapshot on every call
type Graph struct {
	DocumentID string    `json:"documentId"`
	Nodes      []Node    `json:"nodes"`
	Edges      []Edge    `json:"edges"`
	Warnings   []Warning `json:"warnings"`
}

// NodeByID returns the node for a story id, or nil if absent
func (g *Graph) NodeByID(storyID string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].StoryID == storyID {
			return &g.Nodes[i]
		}
	}
	return nil
}

// WarningsOfType returns the warnings matching the given type
func (g *Graph) WarningsOfType(wt WarningType) []Warning {
	var out []Warning
	for _, w := range g.Warnings {
		if w.Type == wt {
			out = append(out, w)
		}
	}
	return out
}
