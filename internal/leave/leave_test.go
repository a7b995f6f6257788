package leave

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

type LeaveTestSuite struct {
	suite.Suite
	db       *gorm.DB
	svc      *Service
	ctx      context.Context
	cancel   context.CancelFunc
	events   <-chan event.Event
	employee *models.Employee
	vacation *models.LeaveType
	sick     *models.LeaveType
}

func (s *LeaveTestSuite) SetupTest() {
	s.db = testutil.OpenTestDB(s.T())
	s.ctx, s.cancel = context.WithCancel(context.Background())

	bus := event.NewBus()
	events, err := bus.Subscribe(s.ctx, event.Filter{Types: []event.Type{event.TypeLeaveDecided}})
	s.Require().NoError(err)
	s.events = events

	s.svc = NewService(s.db, WithEmitter(event.NewEmitter(bus, nil)))
	s.svc.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

	s.vacation = &models.LeaveType{Name: "Vacation", AccrualPerMonth: 1.5, RequiresApproval: true}
	s.sick = &models.LeaveType{Name: "Sick"}
	testutil.Insert(s.T(), s.db, s.vacation, s.sick)

	s.employee = testutil.Employee(s.T(), s.db, "E-1")
	s.Require().NoError(InitBalances(s.db, s.employee.ID))
}

func (s *LeaveTestSuite) TearDownTest() {
	s.cancel()
}

func (s *LeaveTestSuite) setBalance(lt *models.LeaveType, balance float64) {
	s.Require().NoError(s.db.Model(&models.LeaveBalance{}).
		Where("employee_id = ? AND leave_type_id = ?", s.employee.ID, lt.ID).
		Update("balance", balance).Error)
}

func (s *LeaveTestSuite) balance(lt *models.LeaveType) float64 {
	var b models.LeaveBalance
	s.Require().NoError(s.db.Where("employee_id = ? AND leave_type_id = ?", s.employee.ID, lt.ID).First(&b).Error)
	return b.Balance
}

func (s *LeaveTestSuite) request(lt *models.LeaveType, start, end time.Time) *models.LeaveRequest {
	r := &models.LeaveRequest{EmployeeID: s.employee.ID, LeaveTypeID: lt.ID, StartDate: start, EndDate: end}
	s.Require().NoError(s.svc.Request(s.ctx, r))
	return r
}

func (s *LeaveTestSuite) TestInitBalancesIsIdempotent() {
	s.Require().NoError(InitBalances(s.db, s.employee.ID))
	testutil.AssertCount(s.T(), s.db, &models.LeaveBalance{}, 2)

	balances, err := s.svc.Balances(s.ctx, s.employee.ID)
	s.Require().NoError(err)
	s.Len(balances, 2)
	s.Equal(s.vacation.ID, balances[0].LeaveTypeID)
}

func (s *LeaveTestSuite) TestApproveDeductsBalance() {
	s.setBalance(s.vacation, 10)
	r := s.request(s.vacation, testutil.Day(2024, 3, 4), testutil.Day(2024, 3, 6))
	s.Equal(models.LeavePending, r.Status)

	approved, err := s.svc.Approve(s.ctx, r.ID, "manager")
	s.Require().NoError(err)
	s.Equal(models.LeaveApproved, approved.Status)
	s.Equal("manager", approved.Approver)
	s.Require().NotNil(approved.DecidedAt)
	s.Equal(7.0, s.balance(s.vacation))

	select {
	case evt := <-s.events:
		s.Equal(event.TypeLeaveDecided, evt.Type)
	case <-time.After(time.Second):
		s.Fail("expected leave decided event")
	}

	_, err = s.svc.Approve(s.ctx, r.ID, "manager")
	s.ErrorIs(err, ErrNotPending)
	s.Equal(7.0, s.balance(s.vacation))
}

func (s *LeaveTestSuite) TestApproveInsufficientBalance() {
	s.setBalance(s.vacation, 2)
	r := s.request(s.vacation, testutil.Day(2024, 3, 4), testutil.Day(2024, 3, 6))

	_, err := s.svc.Approve(s.ctx, r.ID, "manager")
	s.ErrorIs(err, ErrInsufficientBalance)
	s.Equal(2.0, s.balance(s.vacation))

	var stored models.LeaveRequest
	s.Require().NoError(s.db.First(&stored, r.ID).Error)
	s.Equal(models.LeavePending, stored.Status)
}

func (s *LeaveTestSuite) TestApproveWithoutBalanceRow() {
	other := testutil.Employee(s.T(), s.db, "E-2")
	r := &models.LeaveRequest{EmployeeID: other.ID, LeaveTypeID: s.vacation.ID, StartDate: testutil.Day(2024, 3, 4), EndDate: testutil.Day(2024, 3, 4)}
	s.Require().NoError(s.svc.Request(s.ctx, r))

	_, err := s.svc.Approve(s.ctx, r.ID, "manager")
	s.ErrorIs(err, ErrInsufficientBalance)
}

func (s *LeaveTestSuite) TestReject() {
	s.setBalance(s.vacation, 10)
	r := s.request(s.vacation, testutil.Day(2024, 3, 4), testutil.Day(2024, 3, 4))

	rejected, err := s.svc.Reject(s.ctx, r.ID, "manager")
	s.Require().NoError(err)
	s.Equal(models.LeaveRejected, rejected.Status)
	s.Equal(10.0, s.balance(s.vacation))

	_, err = s.svc.Reject(s.ctx, r.ID, "manager")
	s.ErrorIs(err, ErrNotPending)

	_, err = s.svc.Reject(s.ctx, 999, "manager")
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *LeaveTestSuite) TestAutoApproval() {
	s.setBalance(s.sick, 3)

	r := s.request(s.sick, testutil.Day(2024, 3, 4), testutil.Day(2024, 3, 5))
	s.Equal(models.LeaveApproved, r.Status)
	s.Equal("auto", r.Approver)
	s.Equal(1.0, s.balance(s.sick))

	short := s.request(s.sick, testutil.Day(2024, 3, 11), testutil.Day(2024, 3, 15))
	s.Equal(models.LeavePending, short.Status)
	s.Equal(1.0, s.balance(s.sick))
}

func (s *LeaveTestSuite) TestRequestValidation() {
	r := &models.LeaveRequest{EmployeeID: s.employee.ID, LeaveTypeID: s.vacation.ID, StartDate: testutil.Day(2024, 3, 5), EndDate: testutil.Day(2024, 3, 4)}
	s.ErrorIs(s.svc.Request(s.ctx, r), ErrInvalidRange)

	r = &models.LeaveRequest{EmployeeID: s.employee.ID, LeaveTypeID: 999, StartDate: testutil.Day(2024, 3, 4), EndDate: testutil.Day(2024, 3, 4)}
	s.ErrorIs(s.svc.Request(s.ctx, r), gorm.ErrRecordNotFound)
}

func (s *LeaveTestSuite) TestAccrueMonthly() {
	inactive := &models.Employee{Code: "E-OLD", Name: "old"}
	late := testutil.Employee(s.T(), s.db, "E-NEW")
	testutil.Insert(s.T(), s.db, inactive)

	n, err := s.svc.AccrueMonthly(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal(1.5, s.balance(s.vacation))
	s.Zero(s.balance(s.sick))

	var created models.LeaveBalance
	s.Require().NoError(s.db.Where("employee_id = ? AND leave_type_id = ?", late.ID, s.vacation.ID).First(&created).Error)
	s.Equal(1.5, created.Balance)

	var none int64
	s.Require().NoError(s.db.Model(&models.LeaveBalance{}).Where("employee_id = ?", inactive.ID).Count(&none).Error)
	s.Zero(none)

	_, err = s.svc.AccrueMonthly(s.ctx)
	s.Require().NoError(err)
	s.Equal(3.0, s.balance(s.vacation))
}

func TestLeaveTestSuite(t *testing.T) {
	suite.Run(t, new(LeaveTestSuite))
}
