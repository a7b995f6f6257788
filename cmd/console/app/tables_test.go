package app

import (
	"testing"
	"time"

	"github.com/meridian-works/meridian/internal/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestProjectsToRows(t *testing.T) {
	rows := projectsToRows([]models.Project{{
		Code:     "PRJ-1",
		Name:     "Billing",
		Status:   models.ProjectActive,
		Priority: models.PriorityHigh,
		EndDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Labels:   datatypes.JSONMap{"team": "core", "env": "prod"},
	}})

	assert.Len(t, rows, 1)
	assert.Equal(t, "2024-03-01", rows[0][4])
	assert.Equal(t, "env=prod, team=core", rows[0][5])
}

func TestTasksToRowsCriticalFirst(t *testing.T) {
	due := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	tasks := []models.Task{
		{ID: 1, Title: "a", DueDate: due},
		{ID: 2, Title: "b", DueDate: due},
		{ID: 3, Title: "c", DueDate: due},
	}

	rows := tasksToRows(tasks, []uint{3, 1, 99})
	assert.Len(t, rows, 3)
	assert.Equal(t, []string{criticalMark, "c"}, []string(rows[0][:2]))
	assert.Equal(t, []string{criticalMark, "a"}, []string(rows[1][:2]))
	assert.Equal(t, []string{"", "b"}, []string(rows[2][:2]))
	assert.Equal(t, "-", rows[2][3])
	assert.Equal(t, "2024-01-05", rows[2][5])
}

func TestEscalationsToRowsFallsBackToID(t *testing.T) {
	milestone := uint(4)
	rows := escalationsToRows([]models.EscalationLog{{ProjectID: 9, MilestoneID: &milestone, Message: "late"}}, nil)

	assert.Equal(t, "-", rows[0][0])
	assert.Equal(t, "#9", rows[0][1])
	assert.Equal(t, "milestone 4", rows[0][2])
}

func TestFormatHours(t *testing.T) {
	assert.Equal(t, "8h", formatHours(8))
	assert.Equal(t, "2.5h", formatHours(2.5))
	assert.Equal(t, "0.25h", formatHours(0.25))
}

func TestRelativeTime(t *testing.T) {
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return base }
	defer func() { now = time.Now }()

	assert.Equal(t, "just now", relativeTime(base.Add(-10*time.Second)))
	assert.Equal(t, "5m ago", relativeTime(base.Add(-5*time.Minute)))
	assert.Equal(t, "3h ago", relativeTime(base.Add(-3*time.Hour)))
	assert.Equal(t, "2d ago", relativeTime(base.Add(-49*time.Hour)))
}

func TestDistributeWidths(t *testing.T) {
	assert.Nil(t, distributeWidths(10, nil))
	assert.Equal(t, []int{20, 20}, distributeWidths(40, []int{1, 1}))
	assert.Equal(t, []int{12}, distributeWidths(0, []int{1}))

	widths := distributeWidths(8, []int{1, 1, 1})
	for _, w := range widths {
		assert.GreaterOrEqual(t, w, 3)
	}
}
