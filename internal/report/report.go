// Package report renders engine output for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/openplan/storyplan/internal/domain"
	"github.com/openplan/storyplan/internal/graph"
	"github.com/openplan/storyplan/internal/planner"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#cba6f7"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))

	priorityStyles = map[domain.Priority]lipgloss.Style{
		domain.PriorityCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f38ba8")),
		domain.PriorityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("#fab387")),
		domain.PriorityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af")),
		domain.PriorityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086")),
	}
)

func priorityBadge(p domain.Priority) string {
	style, ok := priorityStyles[p]
	if !ok {
		return string(p)
	}
	return style.Render(string(p))
}

// Graph renders a dependency graph as an indented text report
func Graph(g *graph.Graph) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Dependency graph: "+g.DocumentID) + "\n\n")

	for _, node := range g.Nodes {
		marker := errorStyle.Render("blocked")
		if node.IsReady {
			marker = readyStyle.Render("ready")
		}
		b.WriteString(fmt.Sprintf("  %s  %s  [%s]  %s\n",
			node.StoryID, node.Title, priorityBadge(node.Priority), marker))
		b.WriteString(subtleStyle.Render(fmt.Sprintf(
			"    depth %d · blocks %d · blocked by %d · %s",
			node.Depth, node.BlocksCount, node.BlockedByCount, node.Status)) + "\n")
	}

	if len(g.Edges) > 0 {
		b.WriteString("\n" + headerStyle.Render("Edges") + "\n")
		for _, e := range g.Edges {
			line := fmt.Sprintf("  %s -> %s", e.From, e.To)
			if e.Reason != "" {
				line += subtleStyle.Render("  (" + e.Reason + ")")
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString(Warnings(g.Warnings))
	return b.String()
}

// Warnings renders a warning list, or a ready confirmation when empty
func Warnings(warnings []graph.Warning) string {
	if len(warnings) == 0 {
		return "\n" + readyStyle.Render("No warnings") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("Warnings (%d)", len(warnings))) + "\n")
	for _, w := range warnings {
		style := warningStyle
		if w.Type == graph.WarningCircular || w.Type == graph.WarningCircularDependency {
			style = errorStyle
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", style.Render("["+string(w.Type)+"]"), w.Message))
	}
	return b.String()
}

// Validation renders a plan validation result
func Validation(result planner.ValidationResult) string {
	var b strings.Builder
	if result.Valid {
		b.WriteString(readyStyle.Render("Plan is valid") + "\n")
	} else {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Plan has %d warnings", len(result.Warnings))) + "\n")
	}
	b.WriteString(Warnings(result.Warnings))
	return b.String()
}

// Plan renders a sprint assignment
func Plan(plan *planner.SprintAssignment) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf(
		"Sprint plan: %d sprints, total weight %d", plan.TotalSprints, plan.TotalWeight)) + "\n")

	for _, sprint := range plan.Sprints {
		b.WriteString("\n" + headerStyle.Render(fmt.Sprintf(
			"Sprint %d (weight %d)", sprint.SprintNumber, sprint.TotalWeight)) + "\n")
		for _, story := range sprint.Stories {
			line := fmt.Sprintf("  %s  %s  %dpt  [%s]",
				story.StoryID, story.Title, story.StoryPoints, priorityBadge(story.Priority))
			if story.Reason != "" {
				line += subtleStyle.Render("  " + story.Reason)
			}
			b.WriteString(line + "\n")
		}
	}

	if len(plan.UnassignedStories) > 0 {
		b.WriteString("\n" + headerStyle.Render(fmt.Sprintf(
			"Unassigned (%d)", len(plan.UnassignedStories))) + "\n")
		for _, u := range plan.UnassignedStories {
			b.WriteString(fmt.Sprintf("  %s  %s  %s\n",
				u.StoryID, u.Title, warningStyle.Render(u.Reason)))
		}
	}

	return b.String()
}

// PrecedenceViolations renders the result of a precedence audit
func PrecedenceViolations(violations []planner.PrecedenceViolation) string {
	if len(violations) == 0 {
		return readyStyle.Render("Plan respects dependency ordering") + "\n"
	}

	var b strings.Builder
	b.WriteString(errorStyle.Render(fmt.Sprintf("%d precedence violations", len(violations))) + "\n")
	for _, v := range violations {
		b.WriteString(fmt.Sprintf("  %s (sprint %d) scheduled no later than blocker %s (sprint %d)\n",
			v.StoryID, v.StorySprint, v.BlockerID, v.BlockerSprint))
	}
	return b.String()
}
