package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/pkg/labels"
)

// criticalMark flags tasks on the critical path.
const criticalMark = "★"

var (
	projectColumnTitles     = []string{"Code", "Name", "Status", "Priority", "Ends", "Labels"}
	projectColumnWeights    = []int{2, 4, 2, 2, 2, 3}
	taskColumnTitles        = []string{"", "Task", "Status", "Estimate", "Start", "Due"}
	taskColumnWeights       = []int{1, 5, 2, 2, 2, 2}
	escalationColumnTitles  = []string{"Raised", "Project", "Source", "Message"}
	escalationColumnWeights = []int{2, 2, 2, 6}
)

func projectsToRows(projects []models.Project) []table.Row {
	rows := make([]table.Row, len(projects))
	for i, p := range projects {
		rows[i] = table.Row{
			p.Code,
			p.Name,
			string(p.Status),
			string(p.Priority),
			formatDate(p.EndDate),
			labels.Format(p.Labels),
		}
	}
	return rows
}

// tasksToRows orders critical tasks first, in path order, then the rest
// by due date as returned by the API.
func tasksToRows(tasks []models.Task, path []uint) []table.Row {
	byID := make(map[uint]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	rows := make([]table.Row, 0, len(tasks))
	onPath := make(map[uint]bool, len(path))
	for _, id := range path {
		t, ok := byID[id]
		if !ok {
			continue
		}
		onPath[id] = true
		rows = append(rows, taskRow(t, criticalMark))
	}

	for _, t := range tasks {
		if !onPath[t.ID] {
			rows = append(rows, taskRow(t, ""))
		}
	}
	return rows
}

func taskRow(t models.Task, mark string) table.Row {
	estimate := "-"
	if t.EstimatedHours != nil {
		estimate = formatHours(*t.EstimatedHours)
	}

	start := "-"
	if t.StartDate != nil {
		start = formatDate(*t.StartDate)
	}

	return table.Row{mark, t.Title, string(t.Status), estimate, start, formatDate(t.DueDate)}
}

func escalationsToRows(logs []models.EscalationLog, codes map[uint]string) []table.Row {
	rows := make([]table.Row, len(logs))
	for i, l := range logs {
		project := codes[l.ProjectID]
		if project == "" {
			project = fmt.Sprintf("#%d", l.ProjectID)
		}

		source := "-"
		switch {
		case l.TaskID != nil:
			source = fmt.Sprintf("task %d", *l.TaskID)
		case l.MilestoneID != nil:
			source = fmt.Sprintf("milestone %d", *l.MilestoneID)
		}

		rows[i] = table.Row{relativeTime(l.CreatedAt), project, source, l.Message}
	}
	return rows
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.DateOnly)
}

func formatHours(h float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", h), "0"), ".") + "h"
}

var now = time.Now

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	d := now().Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func createTable(titles []string, widths []int, focused bool) table.Model {
	tbl := table.New(
		table.WithColumns(buildColumns(titles, widths)),
		table.WithHeight(10),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true)

	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63")).
		Bold(false)

	tbl.SetStyles(styles)
	if focused {
		tbl.Focus()
	}
	return tbl
}

func buildColumns(titles []string, widths []int) []table.Column {
	columns := make([]table.Column, len(titles))
	for i, title := range titles {
		width := 12
		if i < len(widths) && widths[i] > 0 {
			width = widths[i]
		}
		columns[i] = table.Column{Title: title, Width: width}
	}
	return columns
}

// distributeWidths splits total across columns by weight, keeping every
// column at least minWidth wide.
func distributeWidths(total int, weights []int) []int {
	if len(weights) == 0 {
		return nil
	}
	if total <= 0 {
		total = len(weights) * 12
	}

	sum := 0
	for _, w := range weights {
		sum += w
	}

	const minWidth = 3
	widths := make([]int, len(weights))
	remaining := total

	for i, weight := range weights {
		if i == len(weights)-1 {
			widths[i] = max(minWidth, remaining)
			break
		}

		portion := max(minWidth, weight*total/sum)
		minRemaining := minWidth * (len(weights) - i - 1)
		if remaining-portion < minRemaining {
			portion = max(minWidth, remaining-minRemaining)
		}

		widths[i] = portion
		remaining -= portion
	}
	return widths
}
