// Package deadline derives reminder notifications from due dates and
// sweeps them out, escalating work that is already overdue.
package deadline

import (
	"time"

	"github.com/meridian-works/meridian/internal/models"
)

// Reminders returns the instants at which reminders for due should fire:
// hour:00 UTC on the due date, moved back by each offset in days. Instants
// not after now are dropped.
func Reminders(due time.Time, offsets []int, hour int, now time.Time) []time.Time {
	day := models.Date(due)
	base := day.Add(time.Duration(hour) * time.Hour)

	out := make([]time.Time, 0, len(offsets))
	for _, offset := range offsets {
		at := base.AddDate(0, 0, -offset)
		if at.After(now) {
			out = append(out, at)
		}
	}
	return out
}

// Source identifies the entity a notification is derived from.
type Source struct {
	ProjectID   uint
	TaskID      *uint
	MilestoneID *uint
	SprintID    *uint
	Due         time.Time
}

func TaskSource(t *models.Task) Source {
	id := t.ID
	return Source{ProjectID: t.ProjectID, TaskID: &id, Due: t.DueDate}
}

func MilestoneSource(m *models.Milestone) Source {
	id := m.ID
	return Source{ProjectID: m.ProjectID, MilestoneID: &id, Due: m.EndDate}
}

func SprintSource(s *models.Sprint) Source {
	id := s.ID
	return Source{ProjectID: s.ProjectID, SprintID: &id, Due: s.EndDate}
}

func (s Source) column() (string, uint) {
	switch {
	case s.TaskID != nil:
		return "task_id", *s.TaskID
	case s.MilestoneID != nil:
		return "milestone_id", *s.MilestoneID
	default:
		return "sprint_id", *s.SprintID
	}
}

func (s Source) valid() bool {
	n := models.DeadlineNotification{TaskID: s.TaskID, MilestoneID: s.MilestoneID, SprintID: s.SprintID}
	return n.SourceCount() == 1
}
