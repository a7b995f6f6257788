package capacity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/meridian-works/meridian/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOverAllocated     = errors.New("capacity: allocation across overlapping assignments exceeds 100 percent")
	ErrInvalidAllocation = errors.New("capacity: allocation percent must be in (0, 100]")
)

// DefaultBaseWeekHours is used when an employee has no active contract.
const DefaultBaseWeekHours = 40.0

// Service computes utilization figures from stored time logs, contracts,
// leave and assignments.
type Service struct {
	db            *gorm.DB
	baseWeekHours float64
	now           func() time.Time
}

func NewService(db *gorm.DB, baseWeekHours float64) *Service {
	if baseWeekHours <= 0 {
		baseWeekHours = DefaultBaseWeekHours
	}
	return &Service{db: db, baseWeekHours: baseWeekHours, now: func() time.Time { return time.Now().UTC() }}
}

// HoursLogged sums the employee's time logs in [start, end], optionally
// limited to one project.
func (s *Service) HoursLogged(ctx context.Context, employeeID uuid.UUID, start, end time.Time, projectID uint) (float64, error) {
	q := s.db.WithContext(ctx).
		Model(&models.TimeLog{}).
		Where("time_logs.employee_id = ? AND time_logs.date >= ? AND time_logs.date <= ?",
			employeeID, models.Date(start), models.Date(end))
	if projectID != 0 {
		q = q.Joins("JOIN tasks ON tasks.id = time_logs.task_id").Where("tasks.project_id = ?", projectID)
	}

	var total float64
	if err := q.Select("COALESCE(SUM(time_logs.hours), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return Round2(total), nil
}

// CapacityOptions tunes Capacity.
type CapacityOptions struct {
	// ProjectID limits capacity to assignments on one project.
	ProjectID uint
	// BaseWeekHours overrides the service default.
	BaseWeekHours float64
	// IgnorePlanned books base week hours instead of each assignment's
	// planned hours.
	IgnorePlanned bool
}

// Capacity returns the hours the employee is booked for in [start, end]:
// for each week segment, the capped allocation times planned hours,
// prorated by the segment's share of a week, minus approved leave at a
// fifth of the contract week per day. It never goes below zero.
func (s *Service) Capacity(ctx context.Context, employeeID uuid.UUID, start, end time.Time, opts CapacityOptions) (float64, error) {
	if err := checkRange(start, end); err != nil {
		return 0, err
	}
	start, end = models.Date(start), models.Date(end)

	base := opts.BaseWeekHours
	if base <= 0 {
		base = s.baseWeekHours
	}

	db := s.db.WithContext(ctx)

	weekHours := base
	var contract models.EmployeeContract
	err := db.Where("employee_id = ? AND status = ?", employeeID, models.ContractActive).
		Order("start_date DESC").
		First(&contract).Error
	switch {
	case err == nil && contract.WeeklyHours > 0:
		weekHours = contract.WeeklyHours
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return 0, fmt.Errorf("load contract: %w", err)
	}

	var leaves []models.LeaveRequest
	if err := db.Where("employee_id = ? AND status = ? AND start_date <= ? AND end_date >= ?",
		employeeID, models.LeaveApproved, end, start).
		Find(&leaves).Error; err != nil {
		return 0, fmt.Errorf("load leave: %w", err)
	}

	assignments, err := s.assignments(ctx, employeeID, start, end, opts.ProjectID)
	if err != nil {
		return 0, err
	}

	leaveDays := 0
	for _, l := range leaves {
		leaveDays += overlapDays(l.StartDate, l.EndDate, start, end)
	}

	return bookedHours(WeekRanges(start, end), assignments, base, !opts.IgnorePlanned, float64(leaveDays)*weekHours/5), nil
}

func bookedHours(weeks []Week, assignments []models.ResourceAssignment, base float64, usePlanned bool, leaveHours float64) float64 {
	total := 0.0
	for _, w := range weeks {
		alloc, planned := 0.0, 0.0
		for _, a := range assignments {
			if models.Overlaps(a.StartDate, a.EndDate, w.Start, w.End) {
				alloc += a.AllocationPercent
				planned += a.PlannedHoursPerWeek
			}
		}
		if alloc > 100 {
			alloc = 100
		}

		if usePlanned {
			total += planned * (alloc / 100) * w.Fraction()
		} else {
			total += base * (alloc / 100) * w.Fraction()
		}
	}

	total = Round2(total - leaveHours)
	if total < 0 {
		return 0
	}
	return total
}

func (s *Service) assignments(ctx context.Context, employeeID uuid.UUID, start, end time.Time, projectID uint) ([]models.ResourceAssignment, error) {
	q := s.db.WithContext(ctx).
		Where("employee_id = ? AND start_date <= ? AND end_date >= ?", employeeID, models.Date(end), models.Date(start))
	if projectID != 0 {
		q = q.Where("project_id = ?", projectID)
	}

	var out []models.ResourceAssignment
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	return out, nil
}

// Utilization is logged hours against booked capacity.
type Utilization struct {
	EmployeeID  uuid.UUID `json:"employee_id"`
	Hours       float64   `json:"hours"`
	Capacity    float64   `json:"capacity"`
	UtilPercent float64   `json:"util_percent"`
}

// UtilizationPercent is hours over capacity as a percentage, or zero
// when there is no capacity.
func UtilizationPercent(hours, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	return Round2(hours / capacity * 100)
}

func (s *Service) Utilization(ctx context.Context, employeeID uuid.UUID, start, end time.Time, projectID uint) (Utilization, error) {
	hours, err := s.HoursLogged(ctx, employeeID, start, end, projectID)
	if err != nil {
		return Utilization{}, err
	}

	capacity, err := s.Capacity(ctx, employeeID, start, end, CapacityOptions{ProjectID: projectID})
	if err != nil {
		return Utilization{}, err
	}

	return Utilization{
		EmployeeID:  employeeID,
		Hours:       hours,
		Capacity:    capacity,
		UtilPercent: UtilizationPercent(hours, capacity),
	}, nil
}

// BandEntry is one employee's utilization within a band.
type BandEntry struct {
	Utilization
	Code string `json:"code"`
	Name string `json:"name"`
}

// Bands groups employees by utilization.
type Bands struct {
	Over    []BandEntry `json:"over"`
	Under   []BandEntry `json:"under"`
	Optimal []BandEntry `json:"optimal"`
}

// Bands classifies employees as over (above over), under (below under) or
// optimal.
func (s *Service) Bands(ctx context.Context, employees []models.Employee, start, end time.Time, over, under float64) (Bands, error) {
	out := Bands{Over: []BandEntry{}, Under: []BandEntry{}, Optimal: []BandEntry{}}

	for _, e := range employees {
		u, err := s.Utilization(ctx, e.ID, start, end, 0)
		if err != nil {
			return Bands{}, err
		}

		entry := BandEntry{Utilization: u, Code: e.Code, Name: e.Name}
		switch {
		case u.UtilPercent > over:
			out.Over = append(out.Over, entry)
		case u.UtilPercent < under:
			out.Under = append(out.Under, entry)
		default:
			out.Optimal = append(out.Optimal, entry)
		}
	}

	return out, nil
}

// AssignmentLoad averages the weekly allocation percent (each week capped
// at 100) across [start, end].
func (s *Service) AssignmentLoad(ctx context.Context, employeeID uuid.UUID, start, end time.Time) (float64, error) {
	weeks := WeekRanges(start, end)
	if len(weeks) == 0 {
		return 0, nil
	}

	assignments, err := s.assignments(ctx, employeeID, start, end, 0)
	if err != nil {
		return 0, err
	}

	return averageLoad(weeks, assignments), nil
}

func averageLoad(weeks []Week, assignments []models.ResourceAssignment) float64 {
	if len(weeks) == 0 {
		return 0
	}
	sum := 0.0
	for _, w := range weeks {
		pct := 0.0
		for _, a := range assignments {
			if models.Overlaps(a.StartDate, a.EndDate, w.Start, w.End) {
				pct += a.AllocationPercent
			}
		}
		if pct > 100 {
			pct = 100
		}
		sum += pct
	}
	return Round2(sum / float64(len(weeks)))
}

// ProjectShare is one project's share of an employee's logged hours.
type ProjectShare struct {
	ProjectID   uint    `json:"project_id"`
	ProjectName string  `json:"project_name"`
	Hours       float64 `json:"hours"`
	Percent     float64 `json:"percent"`
}

type TimeSplit struct {
	EmployeeID   uuid.UUID      `json:"employee_id"`
	EmployeeCode string         `json:"employee_code"`
	Split        []ProjectShare `json:"split"`
}

// ProjectTimeSplit breaks the employee's logged hours down by project,
// largest first.
func (s *Service) ProjectTimeSplit(ctx context.Context, employeeID uuid.UUID, start, end time.Time) (TimeSplit, error) {
	var emp models.Employee
	if err := s.db.WithContext(ctx).First(&emp, "id = ?", employeeID).Error; err != nil {
		return TimeSplit{}, err
	}

	var rows []ProjectShare
	if err := s.db.WithContext(ctx).
		Model(&models.TimeLog{}).
		Select("projects.id AS project_id, projects.name AS project_name, SUM(time_logs.hours) AS hours").
		Joins("JOIN tasks ON tasks.id = time_logs.task_id").
		Joins("JOIN projects ON projects.id = tasks.project_id").
		Where("time_logs.employee_id = ? AND time_logs.date >= ? AND time_logs.date <= ?",
			employeeID, models.Date(start), models.Date(end)).
		Group("projects.id, projects.name").
		Scan(&rows).Error; err != nil {
		return TimeSplit{}, err
	}

	total := 0.0
	for _, r := range rows {
		total += r.Hours
	}
	for i := range rows {
		rows[i].Hours = Round2(rows[i].Hours)
		if total > 0 {
			rows[i].Percent = Round2(rows[i].Hours * 100 / total)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Hours != rows[j].Hours {
			return rows[i].Hours > rows[j].Hours
		}
		return rows[i].ProjectID < rows[j].ProjectID
	})
	if rows == nil {
		rows = []ProjectShare{}
	}

	return TimeSplit{EmployeeID: emp.ID, EmployeeCode: emp.Code, Split: rows}, nil
}

// Gaps compares forecast demand with planned assignment hours.
type Gaps struct {
	DemandHours  float64 `json:"demand_hours"`
	PlannedHours float64 `json:"planned_hours"`
	GapHours     float64 `json:"gap_hours"`
}

// ForecastGaps prorates forecast demand (hours per week times headcount)
// and assigned hours (planned hours times allocation) per week segment.
func (s *Service) ForecastGaps(ctx context.Context, projectID uint, start, end time.Time) (Gaps, error) {
	if err := checkRange(start, end); err != nil {
		return Gaps{}, err
	}
	start, end = models.Date(start), models.Date(end)
	db := s.db.WithContext(ctx)

	var forecasts []models.ResourceForecast
	if err := db.Where("project_id = ? AND start_date <= ? AND end_date >= ?", projectID, end, start).
		Find(&forecasts).Error; err != nil {
		return Gaps{}, err
	}

	var assignments []models.ResourceAssignment
	if err := db.Where("project_id = ? AND start_date <= ? AND end_date >= ?", projectID, end, start).
		Find(&assignments).Error; err != nil {
		return Gaps{}, err
	}

	demand, planned := 0.0, 0.0
	for _, w := range WeekRanges(start, end) {
		frac := w.Fraction()
		for _, f := range forecasts {
			if models.Overlaps(f.StartDate, f.EndDate, w.Start, w.End) {
				demand += f.RequiredHoursPerWeek * float64(f.Headcount) * frac
			}
		}
		for _, a := range assignments {
			if models.Overlaps(a.StartDate, a.EndDate, w.Start, w.End) {
				planned += a.PlannedHoursPerWeek * (a.AllocationPercent / 100) * frac
			}
		}
	}

	return Gaps{
		DemandHours:  Round2(demand),
		PlannedHours: Round2(planned),
		GapHours:     Round2(demand - planned),
	}, nil
}

// Refresh recomputes the employee's cached utilization for the current
// week.
func (s *Service) Refresh(ctx context.Context, employeeID uuid.UUID) (*models.UtilizationRecord, error) {
	week := CurrentWeek(s.now())

	u, err := s.Utilization(ctx, employeeID, week.Start, week.End, 0)
	if err != nil {
		return nil, err
	}

	rec := &models.UtilizationRecord{
		EmployeeID:         employeeID,
		PeriodStart:        week.Start,
		PeriodEnd:          week.End,
		HoursLogged:        u.Hours,
		CapacityHours:      u.Capacity,
		UtilizationPercent: u.UtilPercent,
		ComputedAt:         s.now(),
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "employee_id"}, {Name: "period_start"}, {Name: "period_end"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"hours_logged", "capacity_hours", "utilization_percent", "computed_at",
		}),
	}).Create(rec).Error; err != nil {
		return nil, err
	}

	return rec, nil
}

// RefreshAll refreshes every active employee and returns how many were
// refreshed. Failures for one employee do not stop the others.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Employee{}).
		Where("is_active = ?", true).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	var errs []error
	n := 0
	for _, id := range ids {
		if _, err := s.Refresh(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("refresh %s: %w", id, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// ValidateAssignment checks an assignment before it is written: the range
// must be ordered, the allocation in (0, 100], and the employee's
// overlapping assignments together with this one must not exceed 100
// percent.
func ValidateAssignment(tx *gorm.DB, a *models.ResourceAssignment) error {
	if err := checkRange(a.StartDate, a.EndDate); err != nil {
		return err
	}
	if a.AllocationPercent <= 0 || a.AllocationPercent > 100 {
		return ErrInvalidAllocation
	}

	q := tx.Model(&models.ResourceAssignment{}).
		Where("employee_id = ? AND start_date <= ? AND end_date >= ?",
			a.EmployeeID, models.Date(a.EndDate), models.Date(a.StartDate))
	if a.ID != 0 {
		q = q.Where("id <> ?", a.ID)
	}

	var booked float64
	if err := q.Select("COALESCE(SUM(allocation_percent), 0)").Scan(&booked).Error; err != nil {
		return err
	}

	if booked+a.AllocationPercent > 100 {
		return fmt.Errorf("%w: %.2f already booked", ErrOverAllocated, booked)
	}
	return nil
}

// ExpireContracts marks active contracts whose end date has passed as
// expired, returning how many changed.
func (s *Service) ExpireContracts(ctx context.Context) (int64, error) {
	today := models.Date(s.now())

	res := s.db.WithContext(ctx).
		Model(&models.EmployeeContract{}).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", models.ContractActive, today).
		Update("status", models.ContractExpired)
	return res.RowsAffected, res.Error
}
