package models

import (
	"time"
)

// All lists every model managed by AutoMigrate.
var All = []interface{}{
	&Client{},
	&Project{},
	&Milestone{},
	&Sprint{},
	&Task{},
	&TaskDependency{},
	&TimeLog{},
	&DeadlineNotification{},
	&EscalationLog{},
	&Employee{},
	&Skill{},
	&EmployeeSkill{},
	&EmployeeContract{},
	&LeaveType{},
	&LeaveBalance{},
	&LeaveRequest{},
	&ResourceAssignment{},
	&ResourceForecast{},
	&ProjectSkillRequirement{},
	&UtilizationRecord{},
	&ProgressReport{},
	&StandupReport{},
	&ExpenseCategory{},
	&ExpenseBudget{},
	&Expense{},
	&ExpenseAuditLog{},
	&ExpenseReport{},
}

// Date truncates t to midnight UTC, the canonical form of every
// calendar date stored by meridian.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DatePtr is Date for optional values.
func DatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Date(*t)
	return &d
}

// Overlaps reports whether the inclusive ranges [aStart, aEnd] and
// [bStart, bEnd] share at least one day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}
