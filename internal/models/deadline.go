package models

import (
	"time"

	"gorm.io/datatypes"
)

// DeadlineNotification is a reminder derived from the due date of exactly
// one task, milestone or sprint. Unsent rows are recreated whenever that
// due date changes.
type DeadlineNotification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   uint      `gorm:"index;not null" json:"project_id"`
	TaskID      *uint     `gorm:"index" json:"task_id,omitempty"`
	MilestoneID *uint     `gorm:"index" json:"milestone_id,omitempty"`
	SprintID    *uint     `gorm:"index" json:"sprint_id,omitempty"`
	NotifyAt    time.Time `gorm:"index;not null" json:"notify_at"`
	Sent        bool      `gorm:"index;not null;default:false" json:"sent"`
	Escalation  bool      `gorm:"not null;default:false" json:"escalation"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

// SourceCount returns how many of the task, milestone and sprint
// references are set.
func (n *DeadlineNotification) SourceCount() int {
	count := 0
	for _, id := range []*uint{n.TaskID, n.MilestoneID, n.SprintID} {
		if id != nil {
			count++
		}
	}
	return count
}

type EscalationLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ProjectID   uint           `gorm:"index;not null" json:"project_id"`
	TaskID      *uint          `gorm:"index" json:"task_id,omitempty"`
	MilestoneID *uint          `gorm:"index" json:"milestone_id,omitempty"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	Notified    datatypes.JSON `gorm:"type:json" json:"notified,omitempty"`
	CreatedAt   time.Time      `gorm:"index;not null" json:"created_at"`
}
