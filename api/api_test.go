package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/bind"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/capacity"
	"github.com/meridian-works/meridian/internal/deadline"
	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/expense"
	"github.com/meridian-works/meridian/internal/leave"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/notify"
	"github.com/meridian-works/meridian/internal/planimport"
	"github.com/meridian-works/meridian/internal/progress"
	"github.com/meridian-works/meridian/internal/schedule"
	"github.com/meridian-works/meridian/internal/storage"
	"github.com/meridian-works/meridian/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

const secret = "0123456789abcdef0123456789abcdef"

type APITestSuite struct {
	suite.Suite
	db     *gorm.DB
	e      *echo.Echo
	admin  string
	member string
}

func (s *APITestSuite) SetupTest() {
	s.db = testutil.OpenTestDB(s.T())

	emitter := event.NewEmitter(event.NewBus(), nil)
	sweeper := deadline.NewSweeper(s.db, notify.LogNotifier{}, 0)
	scheduler := deadline.NewScheduler(s.db, deadline.DefaultConfig(), sweeper, nil)
	progressSvc := progress.NewService(s.db, 16, time.Minute)

	deps := bind.Dependencies{
		DB:        s.db,
		Engine:    schedule.NewEngine(s.db, 8, schedule.WithEmitter(emitter), schedule.WithRescheduler(scheduler)),
		Scheduler: scheduler,
		Capacity:  capacity.NewService(s.db, capacity.DefaultBaseWeekHours),
		Leave:     leave.NewService(s.db, leave.WithEmitter(emitter)),
		Expense:   expense.NewService(s.db, expense.WithEmitter(emitter)),
		Progress:  progressSvc,
		Reporter:  progress.NewReporter(progressSvc, storage.NewFSStore(s.T().TempDir()), emitter),
		Importer:  planimport.NewImporter(s.db, scheduler),
		Emitter:   emitter,
	}

	authenticator, err := auth.New(secret, "meridian", time.Hour)
	require.NoError(s.T(), err)

	s.admin, err = authenticator.Issue(auth.Claims{Subject: "root", Admin: true})
	require.NoError(s.T(), err)
	s.member, err = authenticator.Issue(auth.Claims{Subject: "ana", Organization: "acme"})
	require.NoError(s.T(), err)

	s.e = New(deps, Options{Authenticator: authenticator, Registry: prometheus.NewRegistry()})
}

func (s *APITestSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var (
		reader      io.Reader
		contentType = echo.MIMEApplicationJSON
	)
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
		contentType = "application/x-yaml"
	default:
		data, err := json.Marshal(b)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *APITestSuite) createTask(projectID uint, title string, hours float64, due string, start string) models.Task {
	body := map[string]any{
		"project_id":      projectID,
		"title":           title,
		"estimated_hours": hours,
		"due_date":        due,
	}
	if start != "" {
		body["start_date"] = start
	}

	rec := s.do(http.MethodPost, "/v1/tasks", s.admin, body)
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Task](s.T(), rec)
}

func (s *APITestSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	resp := decode[HealthResponse](s.T(), rec)
	assert.Equal(s.T(), Healthy, resp.Status)
	assert.Equal(s.T(), Healthy, resp.Database)

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
}

func (s *APITestSuite) TestRequiresToken() {
	assert.Equal(s.T(), http.StatusUnauthorized, s.do(http.MethodGet, "/v1/projects", "", nil).Code)
	assert.Equal(s.T(), http.StatusUnauthorized, s.do(http.MethodGet, "/v1/projects", "nope", nil).Code)
	assert.Equal(s.T(), http.StatusOK, s.do(http.MethodGet, "/v1/projects", s.member, nil).Code)
}

func (s *APITestSuite) TestProjectLifecycle() {
	rec := s.do(http.MethodPost, "/v1/projects", s.admin, map[string]any{
		"name":       "Website",
		"start_date": "2024-01-01",
		"end_date":   "2024-03-01",
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[models.Project](s.T(), rec)
	assert.True(s.T(), strings.HasPrefix(created.Code, "PRJ-"))
	assert.Equal(s.T(), models.ProjectPlanning, created.Status)
	assert.Equal(s.T(), models.PriorityMedium, created.Priority)

	path := fmt.Sprintf("/v1/projects/%d", created.ID)
	rec = s.do(http.MethodPut, path, s.admin, map[string]any{"status": "Active", "code": created.Code})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[models.Project](s.T(), rec)
	assert.Equal(s.T(), models.ProjectActive, updated.Status)
	assert.Equal(s.T(), "Website", updated.Name)
	assert.Equal(s.T(), created.Code, updated.Code)

	rec = s.do(http.MethodPut, path, s.admin, map[string]any{"status": "Paused"})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, path, s.admin, map[string]any{"end_date": "2023-12-01"})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/v1/projects?status=Active&order_by=name", s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Len(s.T(), decode[[]models.Project](s.T(), rec), 1)

	rec = s.do(http.MethodGet, "/v1/projects?order_by=name%3Bdrop%20table", s.admin, nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/v1/projects?order_by=name%20drop", s.admin, nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	s.createTask(created.ID, "Landing page", 4, "2024-02-01", "")

	assert.Equal(s.T(), http.StatusNoContent, s.do(http.MethodDelete, path, s.admin, nil).Code)
	assert.Equal(s.T(), http.StatusNotFound, s.do(http.MethodGet, path, s.admin, nil).Code)
	testutil.AssertCount(s.T(), s.db, &models.Task{}, 0)
}

func (s *APITestSuite) TestOrganizationScoping() {
	rec := s.do(http.MethodPost, "/v1/projects", s.member, map[string]any{
		"name":            "Acme site",
		"organization_id": "globex",
		"start_date":      "2024-01-01",
		"end_date":        "2024-03-01",
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(s.T(), "acme", decode[models.Project](s.T(), rec).OrganizationID)

	rec = s.do(http.MethodPost, "/v1/projects", s.admin, map[string]any{
		"name":            "Globex site",
		"organization_id": "globex",
		"start_date":      "2024-01-01",
		"end_date":        "2024-03-01",
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code)
	other := decode[models.Project](s.T(), rec)

	rec = s.do(http.MethodGet, "/v1/projects", s.member, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	visible := decode[[]models.Project](s.T(), rec)
	require.Len(s.T(), visible, 1)
	assert.Equal(s.T(), "Acme site", visible[0].Name)

	assert.Equal(s.T(), http.StatusNotFound,
		s.do(http.MethodGet, fmt.Sprintf("/v1/projects/%d", other.ID), s.member, nil).Code)

	rec = s.do(http.MethodPost, "/v1/tasks", s.member, map[string]any{
		"project_id": other.ID,
		"title":      "Sneak in",
		"due_date":   "2024-02-01",
	})
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/v1/projects", s.admin, nil)
	assert.Len(s.T(), decode[[]models.Project](s.T(), rec), 2)
}

func (s *APITestSuite) TestScheduleAnalysis() {
	p := testutil.Project(s.T(), s.db, "Billing")

	design := s.createTask(p.ID, "Design", 8, "2024-01-05", "")
	build := s.createTask(p.ID, "Build", 16, "2024-01-19", "2024-01-08")
	ship := s.createTask(p.ID, "Ship", 4, "2024-01-26", "")

	for _, edge := range [][2]uint{{build.ID, design.ID}, {ship.ID, build.ID}} {
		rec := s.do(http.MethodPost, "/v1/dependencies", s.admin, map[string]any{
			"task_id":       edge[0],
			"depends_on_id": edge[1],
		})
		require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(http.MethodPost, "/v1/dependencies", s.admin, map[string]any{
		"task_id":       design.ID,
		"depends_on_id": ship.ID,
	})
	assert.Equal(s.T(), http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/dependencies?project=%d", p.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Len(s.T(), decode[[]models.TaskDependency](s.T(), rec), 2)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/deadline/critical-path?project=%d", p.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	path := decode[CriticalPathBody](s.T(), rec)
	assert.Equal(s.T(), 28.0, path.DurationHours)
	assert.Equal(s.T(), []uint{design.ID, build.ID, ship.ID}, path.PathTaskIDs)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/deadline/impact?task=%d&delay_days=1", design.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	impact := decode[schedule.Impact](s.T(), rec)
	assert.Equal(s.T(), 8.0, impact.ShiftHours)
	assert.Equal(s.T(), 36.0, impact.NewDurationHours)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/deadline/impact?task=%d&delay_days=0", design.ID), s.admin, nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/deadline/adjust", s.admin, map[string]any{
		"task_id":  design.ID,
		"due_date": "2024-01-10",
	})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	adjusted := decode[schedule.Adjustment](s.T(), rec)
	assert.Equal(s.T(), []uint{build.ID}, adjusted.DependentsImpacted)
	assert.Equal(s.T(), "2024-01-10", adjusted.Changed["due_date"])

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/tasks/%d", build.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	moved := decode[models.Task](s.T(), rec)
	require.NotNil(s.T(), moved.StartDate)
	assert.Equal(s.T(), testutil.Day(2024, 1, 10), moved.StartDate.UTC())

	testutil.Insert(s.T(), s.db,
		&models.EscalationLog{ProjectID: p.ID, TaskID: &build.ID, Message: "Build is overdue"},
		&models.EscalationLog{ProjectID: p.ID, Message: "Beta milestone is at risk"},
	)

	rec = s.do(http.MethodDelete, fmt.Sprintf("/v1/tasks/%d", build.ID), s.admin, nil)
	assert.Equal(s.T(), http.StatusNoContent, rec.Code)
	testutil.AssertCount(s.T(), s.db, &models.TaskDependency{}, 0)
	testutil.AssertCount(s.T(), s.db, &models.EscalationLog{}, 1)
}

// CriticalPathBody mirrors the critical-path response.
type CriticalPathBody struct {
	ProjectID     uint    `json:"project_id"`
	DurationHours float64 `json:"duration_hours"`
	PathTaskIDs   []uint  `json:"path_task_ids"`
}

func (s *APITestSuite) TestTaskReminders() {
	p := testutil.Project(s.T(), s.db, "Future")
	t := s.createTask(p.ID, "Launch", 8, "2099-06-10", "")

	list := func() []models.DeadlineNotification {
		rec := s.do(http.MethodGet, fmt.Sprintf("/v1/deadline/notifications?task=%d&order_by=notify_at", t.ID), s.admin, nil)
		require.Equal(s.T(), http.StatusOK, rec.Code)
		return decode[[]models.DeadlineNotification](s.T(), rec)
	}

	reminders := list()
	require.Len(s.T(), reminders, 2)
	assert.Equal(s.T(), time.Date(2099, 6, 8, 9, 0, 0, 0, time.UTC), reminders[0].NotifyAt.UTC())

	rec := s.do(http.MethodPut, fmt.Sprintf("/v1/tasks/%d", t.ID), s.admin, map[string]any{"due_date": "2099-06-20"})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	reminders = list()
	require.Len(s.T(), reminders, 2)
	assert.Equal(s.T(), time.Date(2099, 6, 18, 9, 0, 0, 0, time.UTC), reminders[0].NotifyAt.UTC())

	rec = s.do(http.MethodPut, fmt.Sprintf("/v1/tasks/%d", t.ID), s.admin, map[string]any{"title": "Launch v2"})
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), reminders[0].ID, list()[0].ID)

	rec = s.do(http.MethodPost, "/v1/deadline/notifications", s.admin, map[string]any{
		"task_id":      t.ID,
		"milestone_id": 1,
		"notify_at":    "2099-06-01T09:00:00Z",
	})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/deadline/notifications", s.admin, map[string]any{
		"task_id":   t.ID,
		"notify_at": "2099-06-01T09:00:00Z",
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(s.T(), p.ID, decode[models.DeadlineNotification](s.T(), rec).ProjectID)
}

func (s *APITestSuite) TestRunNowRequiresAdmin() {
	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodPost, "/v1/deadline/run-now", s.member, nil).Code)
	assert.Equal(s.T(), http.StatusAccepted, s.do(http.MethodPost, "/v1/deadline/run-now", s.admin, nil).Code)
}

func (s *APITestSuite) createEmployee(code string) models.Employee {
	rec := s.do(http.MethodPost, "/v1/employees", s.admin, map[string]any{"code": code, "name": "Employee " + code})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Employee](s.T(), rec)
}

func (s *APITestSuite) TestAssignmentsRejectOverAllocation() {
	p := testutil.Project(s.T(), s.db, "Staffing")
	emp := s.createEmployee("E1")
	assert.True(s.T(), emp.IsActive)

	assign := func(percent float64) *httptest.ResponseRecorder {
		return s.do(http.MethodPost, "/v1/assignments", s.admin, map[string]any{
			"employee_id":            emp.ID,
			"project_id":             p.ID,
			"allocation_percent":     percent,
			"planned_hours_per_week": 24,
			"start_date":             "2024-01-01",
			"end_date":               "2024-01-31",
		})
	}

	require.Equal(s.T(), http.StatusCreated, assign(60).Code)
	assert.Equal(s.T(), http.StatusConflict, assign(50).Code)
	assert.Equal(s.T(), http.StatusBadRequest, assign(0).Code)
	assert.Equal(s.T(), http.StatusCreated, assign(40).Code)

	var record models.UtilizationRecord
	assert.NoError(s.T(), s.db.Where("employee_id = ?", emp.ID).First(&record).Error)
}

func (s *APITestSuite) TestLeaveApproval() {
	rec := s.do(http.MethodPost, "/v1/leave-types", s.admin, map[string]any{"name": "Vacation", "accrual_per_month": 1.5})
	require.Equal(s.T(), http.StatusCreated, rec.Code)
	vacation := decode[models.LeaveType](s.T(), rec)
	assert.True(s.T(), vacation.RequiresApproval)

	emp := s.createEmployee("E2")

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/employees/%s/balances", emp.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Len(s.T(), decode[[]models.LeaveBalance](s.T(), rec), 1)

	rec = s.do(http.MethodPost, "/v1/leave-requests", s.admin, map[string]any{
		"employee_id":   emp.ID,
		"leave_type_id": vacation.ID,
		"start_date":    "2024-02-05",
		"end_date":      "2024-02-07",
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	req := decode[models.LeaveRequest](s.T(), rec)
	assert.Equal(s.T(), models.LeavePending, req.Status)

	approve := fmt.Sprintf("/v1/leave-requests/%d/approve", req.ID)
	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodPost, approve, s.member, nil).Code)
	assert.Equal(s.T(), http.StatusConflict, s.do(http.MethodPost, approve, s.admin, nil).Code)

	require.NoError(s.T(), s.db.Model(&models.LeaveBalance{}).
		Where("employee_id = ?", emp.ID).Update("balance", 10).Error)

	rec = s.do(http.MethodPost, approve, s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[models.LeaveRequest](s.T(), rec)
	assert.Equal(s.T(), models.LeaveApproved, approved.Status)
	assert.Equal(s.T(), "root", approved.Approver)

	var balance models.LeaveBalance
	require.NoError(s.T(), s.db.Where("employee_id = ?", emp.ID).First(&balance).Error)
	assert.Equal(s.T(), 7.0, balance.Balance)

	assert.Equal(s.T(), http.StatusConflict, s.do(http.MethodPost, approve, s.admin, nil).Code)
	assert.Equal(s.T(), http.StatusConflict,
		s.do(http.MethodDelete, fmt.Sprintf("/v1/leave-requests/%d", req.ID), s.admin, nil).Code)
}

func (s *APITestSuite) TestExpenseWorkflow() {
	rec := s.do(http.MethodPost, "/v1/expense-categories", s.member, map[string]any{"name": "Travel"})
	assert.Equal(s.T(), http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodPost, "/v1/expense-categories", s.admin, map[string]any{"name": "Travel"})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	category := decode[models.ExpenseCategory](s.T(), rec)

	rec = s.do(http.MethodPost, "/v1/expense-budgets", s.admin, map[string]any{
		"category_id": category.ID,
		"amount":      500,
		"start_date":  "2024-05-01",
		"end_date":    "2024-05-31",
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	submit := func(title string, amount float64, day string) *httptest.ResponseRecorder {
		return s.do(http.MethodPost, "/v1/expenses", s.member, map[string]any{
			"title":        title,
			"amount":       amount,
			"category_id":  category.ID,
			"expense_date": day,
		})
	}

	rec = submit("Flight", 400, "2024-05-03")
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	flight := decode[models.Expense](s.T(), rec)
	assert.Equal(s.T(), models.ExpensePending, flight.Status)
	assert.Equal(s.T(), "ana", flight.SubmittedBy)
	assert.Equal(s.T(), "acme", flight.OrganizationID)

	rec = submit("Hotel", 200, "2024-05-04")
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	hotel := decode[models.Expense](s.T(), rec)
	assert.False(s.T(), hotel.OverBudget)

	assert.Equal(s.T(), http.StatusBadRequest, submit("", 10, "2024-05-05").Code)
	assert.Equal(s.T(), http.StatusBadRequest, submit("Taxi", -5, "2024-05-05").Code)

	approve := func(id uint) string { return fmt.Sprintf("/v1/expenses/%d/approve", id) }
	assert.Equal(s.T(), http.StatusForbidden, s.do(http.MethodPost, approve(flight.ID), s.member, nil).Code)
	require.Equal(s.T(), http.StatusOK, s.do(http.MethodPost, approve(flight.ID), s.admin, nil).Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/expenses/%d/budget", hotel.ID), s.member, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	check := decode[expense.BudgetCheck](s.T(), rec)
	assert.Equal(s.T(), 400.0, check.Spent)
	assert.True(s.T(), check.OverBudget)

	assert.Equal(s.T(), http.StatusConflict, s.do(http.MethodPost, approve(hotel.ID), s.admin, nil).Code)
	rec = s.do(http.MethodPost, approve(hotel.ID), s.admin, map[string]any{"override": true})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	assert.True(s.T(), decode[models.Expense](s.T(), rec).OverBudget)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/expenses/%d/audit", hotel.ID), s.member, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	logs := decode[[]models.ExpenseAuditLog](s.T(), rec)
	require.Len(s.T(), logs, 2)
	assert.Equal(s.T(), models.ExpenseApproved, logs[1].NewStatus)
	assert.Equal(s.T(), "approved over budget", logs[1].Notes)

	assert.Equal(s.T(), http.StatusConflict,
		s.do(http.MethodPut, fmt.Sprintf("/v1/expenses/%d", flight.ID), s.member, map[string]any{"amount": 1}).Code)

	rec = s.do(http.MethodGet, "/v1/expenses?status=Approved", s.member, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Len(s.T(), decode[[]models.Expense](s.T(), rec), 2)

	rec = s.do(http.MethodGet, "/v1/expenses/report?start=2024-05-01&end=2024-05-31", s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	report := decode[[]models.ExpenseReport](s.T(), rec)
	require.Len(s.T(), report, 1)
	assert.Equal(s.T(), "Travel", report[0].CategoryName)
	assert.Equal(s.T(), 600.0, report[0].TotalExpense)
	assert.Equal(s.T(), 120.0, report[0].PercentageUsed)
	assert.True(s.T(), report[0].OverBudget)

	rec = s.do(http.MethodGet, "/v1/expenses/report?start=2024-05-01&end=2024-05-31&format=csv", s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), "text/csv", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(s.T(), rec.Body.String(), "Travel,500.00,600.00,120.00,true,2024-05-01,2024-05-31")

	rec = submit("Parking", 15, "2024-05-06")
	require.Equal(s.T(), http.StatusCreated, rec.Code)
	parking := decode[models.Expense](s.T(), rec)
	assert.Equal(s.T(), http.StatusNoContent,
		s.do(http.MethodDelete, fmt.Sprintf("/v1/expenses/%d", parking.ID), s.member, nil).Code)
	var left int64
	require.NoError(s.T(), s.db.Model(&models.ExpenseAuditLog{}).Where("expense_id = ?", parking.ID).Count(&left).Error)
	assert.Zero(s.T(), left)
}

func (s *APITestSuite) TestStandups() {
	emp := s.createEmployee("E8")
	body := map[string]any{
		"employee_id": emp.ID,
		"date":        "2024-05-02",
		"yesterday":   "reviewed the schema",
		"today":       "wire the importer",
	}

	rec := s.do(http.MethodPost, "/v1/standups", s.admin, body)
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(s.T(), http.StatusConflict, s.do(http.MethodPost, "/v1/standups", s.admin, body).Code)

	body["date"] = "2024-05-03"
	body["today"] = " "
	assert.Equal(s.T(), http.StatusBadRequest, s.do(http.MethodPost, "/v1/standups", s.admin, body).Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/standups?employee=%s&date=2024-05-02", emp.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(s.T(), decode[[]models.StandupReport](s.T(), rec), 1)

	// invisible to callers of another organization
	rec = s.do(http.MethodGet, "/v1/standups", s.member, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Empty(s.T(), decode[[]models.StandupReport](s.T(), rec))
}

func (s *APITestSuite) TestRecommend() {
	rec := s.do(http.MethodPost, "/v1/skills", s.admin, map[string]any{"name": "Go"})
	require.Equal(s.T(), http.StatusCreated, rec.Code)
	skill := decode[models.Skill](s.T(), rec)

	emp := s.createEmployee("E3")
	rec = s.do(http.MethodPost, "/v1/employee-skills", s.admin, map[string]any{
		"employee_id": emp.ID,
		"skill_id":    skill.ID,
		"level":       4,
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/v1/employee-skills", s.admin, map[string]any{
		"employee_id": emp.ID,
		"skill_id":    skill.ID,
		"level":       9,
	})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/resources/recommend", s.admin, map[string]any{
		"requirements": []map[string]any{{"skill_id": skill.ID, "min_level": 3}},
		"start":        "2024-01-01",
		"end":          "2024-01-31",
	})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	recs := decode[[]capacity.Recommendation](s.T(), rec)
	require.Len(s.T(), recs, 1)
	assert.Equal(s.T(), "E3", recs[0].EmployeeCode)
	assert.Equal(s.T(), 1.0, recs[0].SkillCoverage)

	rec = s.do(http.MethodPost, "/v1/resources/recommend", s.admin, map[string]any{
		"requirements": []map[string]any{{"skill_id": skill.ID}},
		"start":        "2024-02-01",
		"end":          "2024-01-01",
	})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/resources/utilization?employee=%s&start=2024-01-01&end=2024-01-31", emp.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(s.T(), 0.0, decode[capacity.Utilization](s.T(), rec).UtilPercent)

	rec = s.do(http.MethodGet, "/v1/resources/bands?start=2024-01-01", s.admin, nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestPlanApply() {
	rec := s.do(http.MethodPost, "/v1/plans/apply?dry_run=true", s.admin, testutil.SamplePlan)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	testutil.AssertCount(s.T(), s.db, &models.Project{}, 0)

	rec = s.do(http.MethodPost, "/v1/plans/apply", s.admin, testutil.SamplePlan)
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[struct {
		Results []planimport.Result `json:"results"`
	}](s.T(), rec)
	require.Len(s.T(), resp.Results, 1)
	assert.Len(s.T(), resp.Results[0].TaskIDs, 3)
	testutil.AssertCount(s.T(), s.db, &models.TaskDependency{}, 2)

	rec = s.do(http.MethodPost, "/v1/plans/apply", s.admin, testutil.SamplePlan)
	assert.Equal(s.T(), http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/v1/plans/apply", s.admin, "apiVersion: v9\nkind: Plan\n")
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestProgress() {
	p := testutil.Project(s.T(), s.db, "Tracked")
	t := s.createTask(p.ID, "Build", 10, "2024-06-28", "")
	emp := s.createEmployee("E4")

	rec := s.do(http.MethodPost, "/v1/timelogs", s.admin, map[string]any{
		"task_id":     t.ID,
		"employee_id": emp.ID,
		"date":        "2024-01-02",
		"hours":       4,
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/progress/burndown?project=%d&days=7", p.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	burndown := decode[struct {
		Points []progress.Point `json:"points"`
	}](s.T(), rec)
	require.Len(s.T(), burndown.Points, 7)
	assert.Equal(s.T(), 6.0, burndown.Points[6].RemainingHours)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/progress/burndown?project=%d&days=0", p.ID), s.admin, nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/progress/metrics?project=%d", p.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/progress/gantt?project=%d", p.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/v1/progress/reports", s.admin, map[string]any{"project_id": p.ID})
	require.Equal(s.T(), http.StatusAccepted, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/progress/reports?project=%d", p.ID), s.admin, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	reports := decode[[]models.ProgressReport](s.T(), rec)
	require.Len(s.T(), reports, 1)
	assert.Equal(s.T(), "root", reports[0].GeneratedBy)
	assert.NotEmpty(s.T(), reports[0].CSVLocation)

	rec = s.do(http.MethodGet, "/v1/progress/gantt?project=999", s.admin, nil)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *APITestSuite) TestGraphQL() {
	p := testutil.Project(s.T(), s.db, "Graph")
	s.createTask(p.ID, "Only task", 6, "2024-02-01", "")

	query := fmt.Sprintf(`{ projects { id name } tasks(project: %d) { title estimatedHours } criticalPath(project: %d) { durationHours } }`, p.ID, p.ID)
	rec := s.do(http.MethodPost, "/gql", s.admin, map[string]any{"query": query})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[struct {
		Data struct {
			Projects []struct {
				Name string `json:"name"`
			} `json:"projects"`
			Tasks []struct {
				Title          string  `json:"title"`
				EstimatedHours float64 `json:"estimatedHours"`
			} `json:"tasks"`
			CriticalPath struct {
				DurationHours float64 `json:"durationHours"`
			} `json:"criticalPath"`
		} `json:"data"`
	}](s.T(), rec)

	require.Len(s.T(), resp.Data.Projects, 1)
	assert.Equal(s.T(), "Graph", resp.Data.Projects[0].Name)
	require.Len(s.T(), resp.Data.Tasks, 1)
	assert.Equal(s.T(), 6.0, resp.Data.Tasks[0].EstimatedHours)
	assert.Equal(s.T(), 6.0, resp.Data.CriticalPath.DurationHours)

	rec = s.do(http.MethodPost, "/gql", s.member, map[string]any{"query": "{ projects { id } }"})
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Contains(s.T(), rec.Body.String(), `"projects": []`)
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
