package models

import (
	"time"
)

type ExpenseCategory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:text;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// ExpenseBudget caps approved spending in a category over an inclusive
// date range. Budgets of one category may overlap; overlapping amounts add up.
type ExpenseBudget struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CategoryID uint      `gorm:"uniqueIndex:idx_expense_budget;not null" json:"category_id"`
	Amount     float64   `gorm:"not null" json:"amount"`
	StartDate  time.Time `gorm:"type:date;uniqueIndex:idx_expense_budget;not null" json:"start_date"`
	EndDate    time.Time `gorm:"type:date;uniqueIndex:idx_expense_budget;not null" json:"end_date"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "Pending"
	ExpenseApproved ExpenseStatus = "Approved"
	ExpenseRejected ExpenseStatus = "Rejected"
)

type Expense struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	OrganizationID string        `gorm:"type:text;index" json:"organization_id"`
	ProjectID      *uint         `gorm:"index" json:"project_id,omitempty"`
	CategoryID     *uint         `gorm:"index" json:"category_id,omitempty"`
	Title          string        `gorm:"type:text;not null" json:"title"`
	Description    string        `gorm:"type:text" json:"description"`
	Amount         float64       `gorm:"not null" json:"amount"`
	ExpenseDate    time.Time     `gorm:"type:date;index;not null" json:"expense_date"`
	Status         ExpenseStatus `gorm:"type:text;index;not null" json:"status"`
	OverBudget     bool          `gorm:"not null;default:false" json:"over_budget"`
	SubmittedBy    string        `gorm:"type:text" json:"submitted_by"`
	ApprovedBy     string        `gorm:"type:text" json:"approved_by,omitempty"`
	DecidedAt      *time.Time    `json:"decided_at,omitempty"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
}

// ExpenseAuditLog records every status change and edit of an expense.
// OldStatus is empty for the submission entry.
type ExpenseAuditLog struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	ExpenseID uint          `gorm:"index;not null" json:"expense_id"`
	OldStatus ExpenseStatus `gorm:"type:text" json:"old_status"`
	NewStatus ExpenseStatus `gorm:"type:text;not null" json:"new_status"`
	ChangedBy string        `gorm:"type:text" json:"changed_by"`
	Notes     string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time     `gorm:"index;not null" json:"created_at"`
}

// ExpenseReport is the budget usage of one category over a period.
type ExpenseReport struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CategoryID     uint      `gorm:"uniqueIndex:idx_expense_report;not null" json:"category_id"`
	CategoryName   string    `gorm:"-" json:"category_name"`
	PeriodStart    time.Time `gorm:"type:date;uniqueIndex:idx_expense_report;not null" json:"period_start"`
	PeriodEnd      time.Time `gorm:"type:date;uniqueIndex:idx_expense_report;not null" json:"period_end"`
	TotalBudget    float64   `gorm:"not null" json:"total_budget"`
	TotalExpense   float64   `gorm:"not null" json:"total_expense"`
	PercentageUsed float64   `gorm:"not null" json:"percentage_used"`
	OverBudget     bool      `gorm:"not null" json:"over_budget"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}
