package models

import (
	"time"

	"github.com/google/uuid"
)

type LeaveType struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"type:text;uniqueIndex;not null" json:"name"`
	AccrualPerMonth  float64   `gorm:"not null;default:0" json:"accrual_per_month"`
	RequiresApproval bool      `gorm:"not null" json:"requires_approval"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
}

type LeaveBalance struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EmployeeID  uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_leave_balance;not null" json:"employee_id"`
	LeaveTypeID uint      `gorm:"uniqueIndex:idx_leave_balance;not null" json:"leave_type_id"`
	Balance     float64   `gorm:"not null;default:0" json:"balance"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "Pending"
	LeaveApproved LeaveStatus = "Approved"
	LeaveRejected LeaveStatus = "Rejected"
)

type LeaveRequest struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	EmployeeID  uuid.UUID   `gorm:"type:uuid;index;not null" json:"employee_id"`
	LeaveTypeID uint        `gorm:"index;not null" json:"leave_type_id"`
	StartDate   time.Time   `gorm:"type:date;not null" json:"start_date"`
	EndDate     time.Time   `gorm:"type:date;not null" json:"end_date"`
	Reason      string      `gorm:"type:text" json:"reason"`
	Status      LeaveStatus `gorm:"type:text;index;not null" json:"status"`
	Approver    string      `gorm:"type:text" json:"approver,omitempty"`
	DecidedAt   *time.Time  `json:"decided_at,omitempty"`
	CreatedAt   time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"not null" json:"updated_at"`
}

// Days is the inclusive length of the request in calendar days.
func (r *LeaveRequest) Days() int {
	days := int(Date(r.EndDate).Sub(Date(r.StartDate)).Hours()/24) + 1
	if days < 0 {
		return 0
	}
	return days
}
