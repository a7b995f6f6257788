package expense

import (
	"context"
	"testing"
	"time"

	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/testutil"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type ExpenseTestSuite struct {
	suite.Suite
	db     *gorm.DB
	svc    *Service
	ctx    context.Context
	cancel context.CancelFunc
	events <-chan event.Event
	travel *models.ExpenseCategory
	office *models.ExpenseCategory
}

func (s *ExpenseTestSuite) SetupTest() {
	s.db = testutil.OpenTestDB(s.T())
	s.ctx, s.cancel = context.WithCancel(context.Background())

	bus := event.NewBus()
	events, err := bus.Subscribe(s.ctx, event.Filter{
		Types: []event.Type{event.TypeExpenseSubmitted, event.TypeExpenseDecided},
	})
	s.Require().NoError(err)
	s.events = events

	s.svc = NewService(s.db, WithEmitter(event.NewEmitter(bus, nil)))
	s.svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }

	s.travel = &models.ExpenseCategory{Name: "Travel"}
	s.office = &models.ExpenseCategory{Name: "Office"}
	testutil.Insert(s.T(), s.db, s.travel, s.office)
	testutil.Insert(s.T(), s.db,
		&models.ExpenseBudget{
			CategoryID: s.travel.ID,
			Amount:     1000,
			StartDate:  testutil.Day(2024, 3, 1),
			EndDate:    testutil.Day(2024, 3, 31),
		},
	)
}

func (s *ExpenseTestSuite) TearDownTest() {
	s.cancel()
}

func (s *ExpenseTestSuite) submit(category *models.ExpenseCategory, amount float64, day time.Time) *models.Expense {
	e := &models.Expense{Title: "trip", Amount: amount, ExpenseDate: day}
	if category != nil {
		e.CategoryID = &category.ID
	}
	s.Require().NoError(s.svc.Submit(s.ctx, e, "ana"))
	return e
}

func (s *ExpenseTestSuite) history(id uint) []models.ExpenseAuditLog {
	logs, err := s.svc.History(s.ctx, id)
	s.Require().NoError(err)
	return logs
}

func (s *ExpenseTestSuite) TestSubmitStartsPendingAndAudits() {
	e := s.submit(s.travel, 120.456, testutil.Day(2024, 3, 4))

	s.Equal(models.ExpensePending, e.Status)
	s.Equal("ana", e.SubmittedBy)
	s.Equal(120.46, e.Amount)
	s.False(e.OverBudget)

	logs := s.history(e.ID)
	s.Require().Len(logs, 1)
	s.Equal(models.ExpenseStatus(""), logs[0].OldStatus)
	s.Equal(models.ExpensePending, logs[0].NewStatus)

	select {
	case evt := <-s.events:
		s.Equal(event.TypeExpenseSubmitted, evt.Type)
	default:
		s.Fail("expected a submission event")
	}
}

func (s *ExpenseTestSuite) TestSubmitDefaultsDateAndRejectsBadInput() {
	e := s.submit(nil, 10, time.Time{})
	s.Equal(testutil.Day(2024, 3, 15), e.ExpenseDate)

	s.ErrorIs(s.svc.Submit(s.ctx, &models.Expense{Title: "free", Amount: 0}, "ana"), ErrInvalidAmount)

	missing := uint(999)
	s.ErrorIs(s.svc.Submit(s.ctx, &models.Expense{Title: "x", Amount: 5, CategoryID: &missing}, "ana"),
		gorm.ErrRecordNotFound)
}

func (s *ExpenseTestSuite) TestSubmitFlagsOverBudget() {
	first := s.submit(s.travel, 800, testutil.Day(2024, 3, 2))
	_, err := s.svc.Approve(s.ctx, first.ID, "root", false)
	s.Require().NoError(err)

	second := s.submit(s.travel, 300, testutil.Day(2024, 3, 20))
	s.True(second.OverBudget)

	// outside every budget window
	april := s.submit(s.travel, 5000, testutil.Day(2024, 4, 2))
	s.False(april.OverBudget)

	// categories without a budget are never over
	office := s.submit(s.office, 5000, testutil.Day(2024, 3, 2))
	s.False(office.OverBudget)
}

func (s *ExpenseTestSuite) TestCheckBudget() {
	first := s.submit(s.travel, 600, testutil.Day(2024, 3, 2))
	_, err := s.svc.Approve(s.ctx, first.ID, "root", false)
	s.Require().NoError(err)

	pending := s.submit(s.travel, 250, testutil.Day(2024, 3, 9))
	check, err := s.svc.Check(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.True(check.Budgeted)
	s.Equal(1000.0, check.Budget)
	s.Equal(600.0, check.Spent)
	s.Equal(400.0, check.Remaining)
	s.Equal(250.0, check.Requested)
	s.False(check.OverBudget)

	uncategorized := s.submit(nil, 10, testutil.Day(2024, 3, 9))
	check, err = s.svc.Check(s.ctx, uncategorized.ID)
	s.Require().NoError(err)
	s.Nil(check)
}

func (s *ExpenseTestSuite) TestApproveRefusesOverrunUnlessOverridden() {
	first := s.submit(s.travel, 700, testutil.Day(2024, 3, 2))
	_, err := s.svc.Approve(s.ctx, first.ID, "root", false)
	s.Require().NoError(err)

	second := s.submit(s.travel, 400, testutil.Day(2024, 3, 3))
	_, err = s.svc.Approve(s.ctx, second.ID, "root", false)
	s.ErrorIs(err, ErrBudgetExceeded)

	var stored models.Expense
	s.Require().NoError(s.db.First(&stored, second.ID).Error)
	s.Equal(models.ExpensePending, stored.Status)
	s.Len(s.history(second.ID), 1)

	approved, err := s.svc.Approve(s.ctx, second.ID, "root", true)
	s.Require().NoError(err)
	s.Equal(models.ExpenseApproved, approved.Status)
	s.Equal("root", approved.ApprovedBy)
	s.True(approved.OverBudget)
	s.Require().NotNil(approved.DecidedAt)

	logs := s.history(second.ID)
	s.Require().Len(logs, 2)
	s.Equal(models.ExpensePending, logs[1].OldStatus)
	s.Equal(models.ExpenseApproved, logs[1].NewStatus)
	s.Equal("root", logs[1].ChangedBy)
	s.Equal("approved over budget", logs[1].Notes)
}

func (s *ExpenseTestSuite) TestRejectAudits() {
	e := s.submit(s.office, 50, testutil.Day(2024, 3, 5))

	rejected, err := s.svc.Reject(s.ctx, e.ID, "root", "no receipt")
	s.Require().NoError(err)
	s.Equal(models.ExpenseRejected, rejected.Status)

	logs := s.history(e.ID)
	s.Require().Len(logs, 2)
	s.Equal(models.ExpenseRejected, logs[1].NewStatus)
	s.Equal("no receipt", logs[1].Notes)

	_, err = s.svc.Approve(s.ctx, e.ID, "root", false)
	s.ErrorIs(err, ErrNotPending)
	_, err = s.svc.Reject(s.ctx, e.ID, "root", "")
	s.ErrorIs(err, ErrNotPending)
	_, err = s.svc.Reject(s.ctx, 999, "root", "")
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *ExpenseTestSuite) TestReviseKeepsWorkflowFields() {
	e := s.submit(s.travel, 100, testutil.Day(2024, 3, 5))
	prev := *e

	row := *e
	row.Amount = 1500
	row.Status = models.ExpenseApproved
	row.ApprovedBy = "mallory"

	s.Require().NoError(s.db.Transaction(func(tx *gorm.DB) error {
		return Revise(tx, &row, &prev, "ana")
	}))
	s.Equal(models.ExpensePending, row.Status)
	s.Empty(row.ApprovedBy)
	s.True(row.OverBudget)

	logs := s.history(e.ID)
	s.Require().Len(logs, 2)
	s.Equal("edited", logs[1].Notes)

	_, err := s.svc.Reject(s.ctx, e.ID, "root", "")
	s.Require().NoError(err)
	prev.Status = models.ExpenseRejected
	s.ErrorIs(Revise(s.db, &row, &prev, "ana"), ErrNotPending)
}

func (s *ExpenseTestSuite) TestReport() {
	for _, c := range []struct {
		category *models.ExpenseCategory
		amount   float64
		day      time.Time
		approve  bool
	}{
		{s.travel, 600, testutil.Day(2024, 3, 2), true},
		{s.travel, 650, testutil.Day(2024, 3, 10), true},
		{s.travel, 999, testutil.Day(2024, 3, 11), false},
		{s.travel, 50, testutil.Day(2024, 4, 1), true},
		{s.office, 80, testutil.Day(2024, 3, 12), true},
	} {
		e := s.submit(c.category, c.amount, c.day)
		if c.approve {
			_, err := s.svc.Approve(s.ctx, e.ID, "root", true)
			s.Require().NoError(err)
		}
	}

	from, to := MonthOf(testutil.Day(2024, 3, 15))
	rows, err := s.svc.Report(s.ctx, from, to, "")
	s.Require().NoError(err)
	s.Require().Len(rows, 2)

	s.Equal("Office", rows[0].CategoryName)
	s.Equal(80.0, rows[0].TotalExpense)
	s.Zero(rows[0].TotalBudget)
	s.Zero(rows[0].PercentageUsed)
	s.True(rows[0].OverBudget)

	s.Equal("Travel", rows[1].CategoryName)
	s.Equal(1000.0, rows[1].TotalBudget)
	s.Equal(1250.0, rows[1].TotalExpense)
	s.Equal(125.0, rows[1].PercentageUsed)
	s.True(rows[1].OverBudget)

	testutil.AssertCount(s.T(), s.db, &models.ExpenseReport{}, 2)

	// regenerating replaces the stored rows
	n, err := s.svc.RefreshMonth(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
	testutil.AssertCount(s.T(), s.db, &models.ExpenseReport{}, 2)

	_, err = s.svc.Report(s.ctx, to, from, "")
	s.ErrorIs(err, ErrInvalidRange)
}

func (s *ExpenseTestSuite) TestReportForOrganizationIsNotStored() {
	e := &models.Expense{Title: "hotel", Amount: 200, ExpenseDate: testutil.Day(2024, 3, 3), CategoryID: &s.travel.ID, OrganizationID: "acme"}
	s.Require().NoError(s.svc.Submit(s.ctx, e, "ana"))
	_, err := s.svc.Approve(s.ctx, e.ID, "root", false)
	s.Require().NoError(err)
	s.submit(s.travel, 300, testutil.Day(2024, 3, 4))

	from, to := MonthOf(testutil.Day(2024, 3, 1))
	rows, err := s.svc.Report(s.ctx, from, to, "globex")
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Zero(rows[0].TotalExpense)
	s.Equal(1000.0, rows[0].TotalBudget)

	rows, err = s.svc.Report(s.ctx, from, to, "acme")
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(200.0, rows[0].TotalExpense)
	s.Equal(20.0, rows[0].PercentageUsed)

	testutil.AssertCount(s.T(), s.db, &models.ExpenseReport{}, 0)
}

func (s *ExpenseTestSuite) TestCSV() {
	data, err := CSV([]models.ExpenseReport{{
		CategoryName:   "Travel",
		TotalBudget:    1000,
		TotalExpense:   250.5,
		PercentageUsed: 25.05,
		PeriodStart:    testutil.Day(2024, 3, 1),
		PeriodEnd:      testutil.Day(2024, 3, 31),
	}})
	s.Require().NoError(err)
	s.Equal("Category,Total Budget,Total Expense,Percentage Used,Over Budget,Period Start,Period End\n"+
		"Travel,1000.00,250.50,25.05,false,2024-03-01,2024-03-31\n", string(data))
}

func TestExpenseTestSuite(t *testing.T) {
	suite.Run(t, new(ExpenseTestSuite))
}
