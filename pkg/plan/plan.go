// Package plan parses and validates plan manifests: a project with its
// tasks, dependencies and milestones described in YAML or TOML.
package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/meridian-works/meridian/internal/schedule"
)

const (
	APIVersionV1 = "v1"
	KindPlan     = "Plan"

	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"

	StatusPlanning  = "Planning"
	StatusActive    = "Active"
	StatusCompleted = "Completed"
)

// Definition models the root plan document.
type Definition struct {
	APIVersion string      `yaml:"apiVersion" toml:"apiVersion" json:"apiVersion"`
	Kind       string      `yaml:"kind" toml:"kind" json:"kind"`
	Project    Project     `yaml:"project" toml:"project" json:"project"`
	Tasks      []Task      `yaml:"tasks" toml:"tasks" json:"tasks"`
	Milestones []Milestone `yaml:"milestones,omitempty" toml:"milestones,omitempty" json:"milestones,omitempty"`
}

// Project describes the project a plan creates.
type Project struct {
	Name        string            `yaml:"name" toml:"name" json:"name"`
	Code        string            `yaml:"code,omitempty" toml:"code,omitempty" json:"code,omitempty"`
	Client      string            `yaml:"client,omitempty" toml:"client,omitempty" json:"client,omitempty"`
	Description string            `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Start       time.Time         `yaml:"start" toml:"start" json:"start"`
	End         time.Time         `yaml:"end" toml:"end" json:"end"`
	Priority    string            `yaml:"priority,omitempty" toml:"priority,omitempty" json:"priority,omitempty"`
	Status      string            `yaml:"status,omitempty" toml:"status,omitempty" json:"status,omitempty"`
	Department  string            `yaml:"department,omitempty" toml:"department,omitempty" json:"department,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" toml:"labels,omitempty" json:"labels,omitempty"`
}

// Task is keyed by a string unique within the plan; dependencies refer
// to other task keys.
type Task struct {
	Key         string     `yaml:"key" toml:"key" json:"key"`
	Title       string     `yaml:"title" toml:"title" json:"title"`
	Description string     `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Category    string     `yaml:"category,omitempty" toml:"category,omitempty" json:"category,omitempty"`
	Priority    string     `yaml:"priority,omitempty" toml:"priority,omitempty" json:"priority,omitempty"`
	Estimate    *float64   `yaml:"estimate,omitempty" toml:"estimate,omitempty" json:"estimate,omitempty"`
	Start       *time.Time `yaml:"start,omitempty" toml:"start,omitempty" json:"start,omitempty"`
	Due         time.Time  `yaml:"due" toml:"due" json:"due"`
	DependsOn   []string   `yaml:"dependsOn,omitempty" toml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
}

type Milestone struct {
	Name        string    `yaml:"name" toml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Start       time.Time `yaml:"start" toml:"start" json:"start"`
	End         time.Time `yaml:"end" toml:"end" json:"end"`
}

// Validate performs semantic validation and fills defaults. Dates are
// normalized to midnight UTC of their calendar day.
func (d *Definition) Validate() error {
	if d.APIVersion != APIVersionV1 {
		return fmt.Errorf("unsupported apiVersion: %s", d.APIVersion)
	}
	if d.Kind != KindPlan {
		return fmt.Errorf("unsupported kind: %s", d.Kind)
	}
	if err := validateProject(&d.Project); err != nil {
		return err
	}
	if len(d.Tasks) == 0 {
		return fmt.Errorf("tasks must contain at least one entry")
	}
	if err := validateTasks(d.Tasks); err != nil {
		return err
	}
	return validateMilestones(d.Milestones)
}

func validateProject(p *Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project.name is required")
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("project.start and project.end are required")
	}
	p.Start, p.End = Day(p.Start), Day(p.End)
	if p.End.Before(p.Start) {
		return fmt.Errorf("project.end is before project.start")
	}

	if p.Priority == "" {
		p.Priority = PriorityMedium
	}
	if !validPriority(p.Priority) {
		return fmt.Errorf("project.priority must be one of [%s,%s,%s]", PriorityHigh, PriorityMedium, PriorityLow)
	}

	switch p.Status {
	case "":
		p.Status = StatusPlanning
	case StatusPlanning, StatusActive, StatusCompleted:
	default:
		return fmt.Errorf("project.status must be one of [%s,%s,%s]", StatusPlanning, StatusActive, StatusCompleted)
	}
	return nil
}

func validateTasks(tasks []Task) error {
	keys := make(map[string]int, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if strings.TrimSpace(t.Key) == "" {
			return fmt.Errorf("tasks[%d].key is required", i)
		}
		if _, exists := keys[t.Key]; exists {
			return fmt.Errorf("duplicate task key %q", t.Key)
		}
		keys[t.Key] = i

		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("tasks[%d].title is required", i)
		}
		if t.Due.IsZero() {
			return fmt.Errorf("tasks[%d].due is required", i)
		}
		t.Due = Day(t.Due)
		if t.Start != nil {
			start := Day(*t.Start)
			t.Start = &start
			if t.Due.Before(start) {
				return fmt.Errorf("tasks[%d].due is before its start", i)
			}
		}
		if t.Estimate != nil && *t.Estimate < 0 {
			return fmt.Errorf("tasks[%d].estimate must not be negative", i)
		}

		if t.Priority == "" {
			t.Priority = PriorityMedium
		}
		if !validPriority(t.Priority) {
			return fmt.Errorf("tasks[%d].priority must be one of [%s,%s,%s]", i, PriorityHigh, PriorityMedium, PriorityLow)
		}
	}

	g := schedule.Graph{Nodes: make([]schedule.Node, 0, len(tasks))}
	for i, t := range tasks {
		g.Nodes = append(g.Nodes, schedule.Node{ID: uint(i + 1)})
		for _, dep := range t.DependsOn {
			j, exists := keys[dep]
			if !exists {
				return fmt.Errorf("tasks[%d].dependsOn references unknown task %q", i, dep)
			}
			if j == i {
				return fmt.Errorf("tasks[%d] depends on itself", i)
			}
			g.Edges = append(g.Edges, schedule.Edge{Task: uint(i + 1), DependsOn: uint(j + 1)})
		}
	}

	if _, err := schedule.CriticalPath(g, nil); err != nil {
		return fmt.Errorf("task dependencies: %w", err)
	}
	return nil
}

func validateMilestones(milestones []Milestone) error {
	for i := range milestones {
		m := &milestones[i]
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("milestones[%d].name is required", i)
		}
		if m.Start.IsZero() || m.End.IsZero() {
			return fmt.Errorf("milestones[%d].start and end are required", i)
		}
		m.Start, m.End = Day(m.Start), Day(m.End)
		if m.End.Before(m.Start) {
			return fmt.Errorf("milestones[%d].end is before its start", i)
		}
	}
	return nil
}

func validPriority(p string) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Day keeps the calendar day of t in its own location and returns it at
// midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsBlank reports whether a decoded document carries nothing, as happens
// with empty YAML documents between separators.
func (d *Definition) IsBlank() bool {
	return d.APIVersion == "" && d.Kind == "" &&
		strings.TrimSpace(d.Project.Name) == "" &&
		len(d.Tasks) == 0 && len(d.Milestones) == 0
}
