package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Employee struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID string    `gorm:"type:text;index" json:"organization_id"`
	Code           string    `gorm:"type:text;uniqueIndex;not null" json:"code"`
	Name           string    `gorm:"type:text;not null" json:"name"`
	Email          string    `gorm:"type:text" json:"email"`
	Role           string    `gorm:"type:text" json:"role"`
	IsActive       bool      `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (e *Employee) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type Skill struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:text;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (s *Skill) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type EmployeeSkill struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EmployeeID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_employee_skill;not null" json:"employee_id"`
	SkillID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_employee_skill;not null" json:"skill_id"`
	Level      int       `gorm:"not null" json:"level"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

type ContractStatus string

const (
	ContractActive  ContractStatus = "Active"
	ContractExpired ContractStatus = "Expired"
)

type EmployeeContract struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	EmployeeID  uuid.UUID      `gorm:"type:uuid;index;not null" json:"employee_id"`
	Title       string         `gorm:"type:text" json:"title"`
	StartDate   time.Time      `gorm:"type:date;not null" json:"start_date"`
	EndDate     *time.Time     `gorm:"type:date" json:"end_date,omitempty"`
	WeeklyHours float64        `gorm:"not null" json:"weekly_hours"`
	Status      ContractStatus `gorm:"type:text;index;not null" json:"status"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

// StandupReport is an employee's daily standup. One per employee and day.
type StandupReport struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EmployeeID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_standup_day;not null" json:"employee_id"`
	Date       time.Time `gorm:"type:date;uniqueIndex:idx_standup_day;not null" json:"date"`
	Yesterday  string    `gorm:"type:text;not null" json:"yesterday"`
	Today      string    `gorm:"type:text;not null" json:"today"`
	Blockers   string    `gorm:"type:text" json:"blockers"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}
