package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskToDo       TaskStatus = "To Do"
	TaskInProgress TaskStatus = "In Progress"
	TaskDone       TaskStatus = "Done"
	TaskBlocked    TaskStatus = "Blocked"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskToDo, TaskInProgress, TaskDone, TaskBlocked:
		return true
	}
	return false
}

// Task is a unit of work and a node of the project dependency graph.
type Task struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ProjectID      uint       `gorm:"index;not null" json:"project_id"`
	SprintID       *uint      `gorm:"index" json:"sprint_id,omitempty"`
	Title          string     `gorm:"type:text;not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	AssigneeID     *uuid.UUID `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	Priority       Priority   `gorm:"type:text;not null" json:"priority"`
	Category       string     `gorm:"type:text" json:"category"`
	Status         TaskStatus `gorm:"type:text;index;not null" json:"status"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	StartDate      *time.Time `gorm:"type:date" json:"start_date,omitempty"`
	DueDate        time.Time  `gorm:"type:date;not null" json:"due_date"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

// Hours returns the estimate, treating a missing one as zero.
func (t *Task) Hours() float64 {
	if t.EstimatedHours == nil {
		return 0
	}
	return *t.EstimatedHours
}

// TaskDependency is the directed edge Task -> DependsOn: TaskID cannot
// finish before DependsOnID does.
type TaskDependency struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TaskID      uint      `gorm:"index;uniqueIndex:idx_task_dependency;not null" json:"task_id"`
	DependsOnID uint      `gorm:"index;uniqueIndex:idx_task_dependency;not null" json:"depends_on_id"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

type TimeLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TaskID      uint      `gorm:"index;not null" json:"task_id"`
	EmployeeID  uuid.UUID `gorm:"type:uuid;index;not null" json:"employee_id"`
	Date        time.Time `gorm:"type:date;index;not null" json:"date"`
	Hours       float64   `gorm:"not null" json:"hours"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
