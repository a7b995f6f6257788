package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meridian-works/meridian/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SamplePlan is a baseline plan manifest used across importer and CLI tests.
const SamplePlan = `
apiVersion: v1
kind: Plan
project:
  name: Billing revamp
  start: 2024-01-01
  end: 2024-03-29
  priority: High
  labels:
    team: payments
tasks:
  - key: design
    title: Design schema
    estimate: 8
    due: 2024-01-05
  - key: build
    title: Build service
    estimate: 16
    due: 2024-01-19
    dependsOn: [design]
  - key: ship
    title: Ship it
    estimate: 4
    due: 2024-01-26
    dependsOn: [build]
`

// OpenTestDB returns an in-memory sqlite DB with migrations applied.
func OpenTestDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(models.All...); err != nil {
		tb.Fatalf("migrate: %v", err)
	}

	tb.Cleanup(func() { CloseDB(db) })

	return db
}

// CloseDB closes the underlying sql.DB if available.
func CloseDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// AssertCount asserts a count for the provided model using the supplied DB.
func AssertCount(tb testing.TB, db *gorm.DB, model any, expected int64) {
	tb.Helper()

	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		tb.Fatalf("count: %v", err)
	}
	if count != expected {
		tb.Fatalf("expected %d records, got %d", expected, count)
	}
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Hours returns a pointer to h, for optional estimates.
func Hours(h float64) *float64 {
	return &h
}

func create(tb testing.TB, db *gorm.DB, value any) {
	tb.Helper()
	if err := db.Create(value).Error; err != nil {
		tb.Fatalf("create %T: %v", value, err)
	}
}

// Project inserts an active project spanning 2024.
func Project(tb testing.TB, db *gorm.DB, name string) *models.Project {
	tb.Helper()

	p := &models.Project{
		Code:      fmt.Sprintf("PRJ-%08X", uuid.New().ID()),
		Name:      name,
		StartDate: Day(2024, 1, 1),
		EndDate:   Day(2024, 12, 31),
		Status:    models.ProjectActive,
		Priority:  models.PriorityMedium,
	}
	create(tb, db, p)
	return p
}

// Task inserts a task with the given estimate into the project.
func Task(tb testing.TB, db *gorm.DB, projectID uint, title string, hours *float64) *models.Task {
	tb.Helper()

	t := &models.Task{
		ProjectID:      projectID,
		Title:          title,
		Priority:       models.PriorityMedium,
		Status:         models.TaskToDo,
		EstimatedHours: hours,
		DueDate:        Day(2024, 6, 28),
	}
	create(tb, db, t)
	return t
}

// Depend records that task depends on dependsOn.
func Depend(tb testing.TB, db *gorm.DB, task, dependsOn uint) *models.TaskDependency {
	tb.Helper()

	d := &models.TaskDependency{TaskID: task, DependsOnID: dependsOn}
	create(tb, db, d)
	return d
}

// Employee inserts an active employee.
func Employee(tb testing.TB, db *gorm.DB, code string) *models.Employee {
	tb.Helper()

	e := &models.Employee{Code: code, Name: code, IsActive: true}
	create(tb, db, e)
	return e
}

// Skill inserts a skill.
func Skill(tb testing.TB, db *gorm.DB, name string) *models.Skill {
	tb.Helper()

	s := &models.Skill{Name: name}
	create(tb, db, s)
	return s
}

// Insert creates arbitrary rows, failing the test on error.
func Insert(tb testing.TB, db *gorm.DB, values ...any) {
	tb.Helper()
	for _, v := range values {
		create(tb, db, v)
	}
}
