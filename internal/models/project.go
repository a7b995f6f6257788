package models

import (
	"time"

	"gorm.io/datatypes"
)

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "Planning"
	ProjectActive    ProjectStatus = "Active"
	ProjectCompleted ProjectStatus = "Completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type Client struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	OrganizationID     string    `gorm:"type:text;index" json:"organization_id"`
	Name               string    `gorm:"type:text;not null" json:"name"`
	Email              string    `gorm:"type:text" json:"email"`
	Phone              string    `gorm:"type:text" json:"phone"`
	BillingPreferences string    `gorm:"type:text" json:"billing_preferences"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null" json:"updated_at"`
}

type Project struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	OrganizationID string            `gorm:"type:text;index" json:"organization_id"`
	Code           string            `gorm:"type:text;uniqueIndex;not null" json:"code"`
	ClientID       *uint             `gorm:"index" json:"client_id,omitempty"`
	Name           string            `gorm:"type:text;not null" json:"name"`
	Description    string            `gorm:"type:text" json:"description"`
	StartDate      time.Time         `gorm:"type:date;not null" json:"start_date"`
	EndDate        time.Time         `gorm:"type:date;not null" json:"end_date"`
	Status         ProjectStatus     `gorm:"type:text;index;not null" json:"status"`
	Priority       Priority          `gorm:"type:text;not null" json:"priority"`
	Department     string            `gorm:"type:text" json:"department"`
	Labels         datatypes.JSONMap `gorm:"type:json" json:"labels,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null" json:"updated_at"`
}

type Milestone struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ProjectID   uint       `gorm:"index;not null" json:"project_id"`
	Name        string     `gorm:"type:text;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	StartDate   time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate     time.Time  `gorm:"type:date;not null" json:"end_date"`
	IsCompleted bool       `gorm:"not null;default:false" json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

type Sprint struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"index;not null" json:"project_id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Goal      string    `gorm:"type:text" json:"goal"`
	StartDate time.Time `gorm:"type:date;not null" json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null" json:"end_date"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
