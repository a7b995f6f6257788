// Package leave manages leave requests and balances. Approval deducts
// from the balance under a row lock so concurrent approvals cannot
// overdraw it.
package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInsufficientBalance = errors.New("leave: insufficient balance")
	ErrNotPending          = errors.New("leave: request is not pending")
	ErrInvalidRange        = errors.New("leave: end date is before start date")
)

type Service struct {
	db      *gorm.DB
	emitter *event.Emitter
	now     func() time.Time
}

type Option func(*Service)

func WithEmitter(e *event.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request stores a new pending request. If its leave type does not
// require approval it is approved straight away, provided the balance
// covers it; otherwise it stays pending.
func (s *Service) Request(ctx context.Context, r *models.LeaveRequest) error {
	r.StartDate, r.EndDate = models.Date(r.StartDate), models.Date(r.EndDate)
	if r.EndDate.Before(r.StartDate) {
		return ErrInvalidRange
	}
	r.Status = models.LeavePending
	r.Approver = ""
	r.DecidedAt = nil

	var lt models.LeaveType
	if err := s.db.WithContext(ctx).First(&lt, r.LeaveTypeID).Error; err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		if lt.RequiresApproval {
			return nil
		}

		err := s.approve(tx, r, "auto")
		if errors.Is(err, ErrInsufficientBalance) {
			log.Info("leave request left pending", "id", r.ID, "employee", r.EmployeeID, "reason", err)
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	if r.Status == models.LeaveApproved {
		s.decided(ctx, r)
	}
	return nil
}

// Approve deducts the request's days from the employee's balance and
// marks it approved.
func (s *Service) Approve(ctx context.Context, id uint, approver string) (*models.LeaveRequest, error) {
	var req models.LeaveRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, id).Error; err != nil {
			return err
		}
		return s.approve(tx, &req, approver)
	})
	if err != nil {
		return nil, err
	}

	s.decided(ctx, &req)
	return &req, nil
}

func (s *Service) approve(tx *gorm.DB, req *models.LeaveRequest, approver string) error {
	if req.Status != models.LeavePending {
		return ErrNotPending
	}

	var bal models.LeaveBalance
	err := lock(tx).
		Where("employee_id = ? AND leave_type_id = ?", req.EmployeeID, req.LeaveTypeID).
		First(&bal).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: no balance for leave type %d", ErrInsufficientBalance, req.LeaveTypeID)
	case err != nil:
		return err
	}

	days := float64(req.Days())
	if bal.Balance < days {
		return fmt.Errorf("%w: %.2f available, %.0f requested", ErrInsufficientBalance, bal.Balance, days)
	}

	if err := tx.Model(&bal).Update("balance", bal.Balance-days).Error; err != nil {
		return err
	}

	now := s.now()
	req.Status = models.LeaveApproved
	req.Approver = approver
	req.DecidedAt = &now

	return tx.Model(req).Updates(map[string]any{
		"status":     req.Status,
		"approver":   req.Approver,
		"decided_at": req.DecidedAt,
	}).Error
}

// lock takes a row lock on dialects that support one. sqlite serializes
// writers already.
func lock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Reject marks a pending request rejected. Balances are untouched.
func (s *Service) Reject(ctx context.Context, id uint, approver string) (*models.LeaveRequest, error) {
	var req models.LeaveRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, id).Error; err != nil {
			return err
		}
		if req.Status != models.LeavePending {
			return ErrNotPending
		}

		now := s.now()
		req.Status = models.LeaveRejected
		req.Approver = approver
		req.DecidedAt = &now

		return tx.Model(&req).Updates(map[string]any{
			"status":     req.Status,
			"approver":   req.Approver,
			"decided_at": req.DecidedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.decided(ctx, &req)
	return &req, nil
}

func (s *Service) decided(ctx context.Context, req *models.LeaveRequest) {
	s.emitter.Emit(ctx, event.New(event.TypeLeaveDecided, 0, 0, map[string]any{
		"request_id":  req.ID,
		"employee_id": req.EmployeeID,
		"status":      req.Status,
		"approver":    req.Approver,
	}))
}

// InitBalances creates a zero balance for every leave type the employee
// has none for.
func InitBalances(tx *gorm.DB, employeeID uuid.UUID) error {
	var types []models.LeaveType
	if err := tx.Find(&types).Error; err != nil {
		return err
	}
	if len(types) == 0 {
		return nil
	}

	balances := make([]models.LeaveBalance, 0, len(types))
	for _, t := range types {
		balances = append(balances, models.LeaveBalance{EmployeeID: employeeID, LeaveTypeID: t.ID})
	}

	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&balances).Error
}

// AccrueMonthly adds each leave type's monthly accrual to every active
// employee's balance, creating missing balances. It returns the number of
// balances credited.
func (s *Service) AccrueMonthly(ctx context.Context) (int, error) {
	n := 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var types []models.LeaveType
		if err := tx.Where("accrual_per_month > 0").Find(&types).Error; err != nil {
			return err
		}
		if len(types) == 0 {
			return nil
		}

		var employees []uuid.UUID
		if err := tx.Model(&models.Employee{}).Where("is_active = ?", true).Pluck("id", &employees).Error; err != nil {
			return err
		}

		for _, id := range employees {
			if err := InitBalances(tx, id); err != nil {
				return err
			}
			for _, t := range types {
				if err := tx.Model(&models.LeaveBalance{}).
					Where("employee_id = ? AND leave_type_id = ?", id, t.ID).
					Updates(map[string]any{
						"balance":    gorm.Expr("balance + ?", t.AccrualPerMonth),
						"updated_at": s.now(),
					}).Error; err != nil {
					return err
				}
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info("leave accrued", "balances", n)
	return n, nil
}

// Balances lists the employee's balances ordered by leave type.
func (s *Service) Balances(ctx context.Context, employeeID uuid.UUID) ([]models.LeaveBalance, error) {
	var out []models.LeaveBalance
	err := s.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("leave_type_id").
		Find(&out).Error
	return out, err
}
