package models

import (
	"time"

	"github.com/google/uuid"
)

// ResourceAssignment books an employee onto a project for a date range.
// Overlapping assignments of one employee should not sum above 100
// percent; this is enforced when an assignment is written, not stored.
type ResourceAssignment struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	EmployeeID          uuid.UUID `gorm:"type:uuid;index;not null" json:"employee_id"`
	ProjectID           uint      `gorm:"index;not null" json:"project_id"`
	Role                string    `gorm:"type:text" json:"role"`
	AllocationPercent   float64   `gorm:"not null" json:"allocation_percent"`
	PlannedHoursPerWeek float64   `gorm:"not null" json:"planned_hours_per_week"`
	StartDate           time.Time `gorm:"type:date;index;not null" json:"start_date"`
	EndDate             time.Time `gorm:"type:date;index;not null" json:"end_date"`
	CreatedAt           time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

type ResourceForecast struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	ProjectID            uint      `gorm:"index;not null" json:"project_id"`
	Role                 string    `gorm:"type:text;not null" json:"role"`
	RequiredHoursPerWeek float64   `gorm:"not null" json:"required_hours_per_week"`
	Headcount            int       `gorm:"not null;default:1" json:"headcount"`
	StartDate            time.Time `gorm:"type:date;not null" json:"start_date"`
	EndDate              time.Time `gorm:"type:date;not null" json:"end_date"`
	CreatedAt            time.Time `gorm:"not null" json:"created_at"`
}

type ProjectSkillRequirement struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	ProjectID uint       `gorm:"index;not null" json:"project_id"`
	SkillID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"skill_id"`
	MinLevel  int        `gorm:"not null;default:3" json:"min_level"`
	StartDate *time.Time `gorm:"type:date" json:"start_date,omitempty"`
	EndDate   *time.Time `gorm:"type:date" json:"end_date,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}

type UtilizationRecord struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	EmployeeID         uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_utilization_period;not null" json:"employee_id"`
	PeriodStart        time.Time `gorm:"type:date;uniqueIndex:idx_utilization_period;not null" json:"period_start"`
	PeriodEnd          time.Time `gorm:"type:date;uniqueIndex:idx_utilization_period;not null" json:"period_end"`
	HoursLogged        float64   `gorm:"not null" json:"hours_logged"`
	CapacityHours      float64   `gorm:"not null" json:"capacity_hours"`
	UtilizationPercent float64   `gorm:"not null" json:"utilization_percent"`
	ComputedAt         time.Time `gorm:"not null" json:"computed_at"`
}
