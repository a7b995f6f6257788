// Package expense tracks spending against category budgets. Approval
// refuses to push a category past its budget unless overridden, and every
// status change or edit lands in the expense audit log.
package expense

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/metrics"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBudgetExceeded = errors.New("expense: category budget exceeded")
	ErrNotPending     = errors.New("expense: expense is not pending")
	ErrInvalidAmount  = errors.New("expense: amount must be positive")
	ErrInvalidRange   = errors.New("expense: end date is before start date")
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

// BudgetCheck is the standing of a category's budget for one expense.
type BudgetCheck struct {
	CategoryID uint    `json:"category_id"`
	Budgeted   bool    `json:"budgeted"`
	Budget     float64 `json:"budget"`
	Spent      float64 `json:"spent"`
	Requested  float64 `json:"requested"`
	Remaining  float64 `json:"remaining"`
	OverBudget bool    `json:"over_budget"`
}

// CheckBudget compares amount plus the category's approved spending
// against the budgets covering day. Approved spending is summed from the
// first to the last day of those budgets. A category with no covering
// budget is unbudgeted and never over.
func CheckBudget(tx *gorm.DB, categoryID uint, day time.Time, amount float64) (*BudgetCheck, error) {
	day = models.Date(day)
	check := &BudgetCheck{CategoryID: categoryID, Requested: round(amount)}

	var budgets []models.ExpenseBudget
	if err := lock(tx).
		Where("category_id = ? AND start_date <= ? AND end_date >= ?", categoryID, day, day).
		Find(&budgets).Error; err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return check, nil
	}

	from, to := budgets[0].StartDate, budgets[0].EndDate
	for _, b := range budgets {
		check.Budget += b.Amount
		if b.StartDate.Before(from) {
			from = b.StartDate
		}
		if b.EndDate.After(to) {
			to = b.EndDate
		}
	}

	var spent float64
	if err := tx.Model(&models.Expense{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("category_id = ? AND status = ? AND expense_date BETWEEN ? AND ?",
			categoryID, models.ExpenseApproved, from, to).
		Scan(&spent).Error; err != nil {
		return nil, err
	}

	check.Budgeted = true
	check.Budget = round(check.Budget)
	check.Spent = round(spent)
	check.Remaining = round(check.Budget - check.Spent)
	check.OverBudget = check.Spent+check.Requested > check.Budget
	return check, nil
}

// Check reports the budget standing of a stored expense. Uncategorized
// expenses yield nil.
func (s *Service) Check(ctx context.Context, id uint) (*BudgetCheck, error) {
	var e models.Expense
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	if e.CategoryID == nil {
		return nil, nil
	}
	return CheckBudget(s.db.WithContext(ctx), *e.CategoryID, e.ExpenseDate, e.Amount)
}

// Submit stores a pending expense, flags it when it would overrun its
// category budget and writes the submission audit entry.
func (s *Service) Submit(ctx context.Context, e *models.Expense, submittedBy string) error {
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	e.Amount = round(e.Amount)
	if e.ExpenseDate.IsZero() {
		e.ExpenseDate = s.now()
	}
	e.ExpenseDate = models.Date(e.ExpenseDate)
	e.Status = models.ExpensePending
	e.SubmittedBy = submittedBy
	e.ApprovedBy = ""
	e.DecidedAt = nil
	e.OverBudget = false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.CategoryID != nil {
			if err := tx.First(&models.ExpenseCategory{}, *e.CategoryID).Error; err != nil {
				return err
			}
			check, err := CheckBudget(tx, *e.CategoryID, e.ExpenseDate, e.Amount)
			if err != nil {
				return err
			}
			e.OverBudget = check.OverBudget
		}

		if err := tx.Create(e).Error; err != nil {
			return err
		}
		return Audit(tx, e.ID, "", models.ExpensePending, submittedBy, "submitted")
	})
	if err != nil {
		return err
	}

	metrics.ExpensesTotal.WithLabelValues("submitted").Inc()
	if e.OverBudget {
		metrics.ExpensesTotal.WithLabelValues("over_budget").Inc()
		log.Warn("expense exceeds category budget", "id", e.ID, "category", *e.CategoryID, "amount", e.Amount)
	}

	s.emitter.Emit(ctx, event.New(event.TypeExpenseSubmitted, projectOf(e), 0, e))
	return nil
}

// Revise applies an edit of a pending expense inside tx. The workflow
// fields keep their stored values, the budget flag is recomputed and the
// edit is audited.
func Revise(tx *gorm.DB, row, prev *models.Expense, by string) error {
	if prev.Status != models.ExpensePending {
		return ErrNotPending
	}
	if row.Amount <= 0 {
		return ErrInvalidAmount
	}

	row.Amount = round(row.Amount)
	row.ExpenseDate = models.Date(row.ExpenseDate)
	row.OrganizationID = prev.OrganizationID
	row.Status = prev.Status
	row.SubmittedBy = prev.SubmittedBy
	row.ApprovedBy = prev.ApprovedBy
	row.DecidedAt = prev.DecidedAt
	row.OverBudget = false

	if row.CategoryID != nil {
		if err := tx.First(&models.ExpenseCategory{}, *row.CategoryID).Error; err != nil {
			return err
		}
		check, err := CheckBudget(tx, *row.CategoryID, row.ExpenseDate, row.Amount)
		if err != nil {
			return err
		}
		row.OverBudget = check.OverBudget
	}

	return Audit(tx, row.ID, prev.Status, row.Status, by, "edited")
}

// Approve marks a pending expense approved. An approval that would push
// the category past its budget fails with ErrBudgetExceeded unless
// override is set; overridden approvals are noted in the audit log.
func (s *Service) Approve(ctx context.Context, id uint, approver string, override bool) (*models.Expense, error) {
	var e models.Expense

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lock(tx).First(&e, id).Error; err != nil {
			return err
		}
		if e.Status != models.ExpensePending {
			return ErrNotPending
		}

		notes := "approved"
		e.OverBudget = false
		if e.CategoryID != nil {
			check, err := CheckBudget(tx, *e.CategoryID, e.ExpenseDate, e.Amount)
			if err != nil {
				return err
			}
			if check.OverBudget && !override {
				return fmt.Errorf("%w: %.2f of %.2f spent, %.2f requested",
					ErrBudgetExceeded, check.Spent, check.Budget, check.Requested)
			}
			if check.OverBudget {
				notes = "approved over budget"
			}
			e.OverBudget = check.OverBudget
		}

		return s.decide(tx, &e, models.ExpenseApproved, approver, notes)
	})
	if err != nil {
		return nil, err
	}

	s.decided(ctx, &e)
	return &e, nil
}

// Reject marks a pending expense rejected with an optional reason.
func (s *Service) Reject(ctx context.Context, id uint, approver, reason string) (*models.Expense, error) {
	var e models.Expense

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lock(tx).First(&e, id).Error; err != nil {
			return err
		}
		if e.Status != models.ExpensePending {
			return ErrNotPending
		}

		notes := "rejected"
		if reason != "" {
			notes = reason
		}
		return s.decide(tx, &e, models.ExpenseRejected, approver, notes)
	})
	if err != nil {
		return nil, err
	}

	s.decided(ctx, &e)
	return &e, nil
}

func (s *Service) decide(tx *gorm.DB, e *models.Expense, status models.ExpenseStatus, approver, notes string) error {
	old := e.Status
	now := s.now()
	e.Status = status
	e.ApprovedBy = approver
	e.DecidedAt = &now

	if err := tx.Model(e).Updates(map[string]any{
		"status":      e.Status,
		"approved_by": e.ApprovedBy,
		"decided_at":  e.DecidedAt,
		"over_budget": e.OverBudget,
	}).Error; err != nil {
		return err
	}
	return Audit(tx, e.ID, old, status, approver, notes)
}

func (s *Service) decided(ctx context.Context, e *models.Expense) {
	metrics.ExpensesTotal.WithLabelValues(string(e.Status)).Inc()
	log.Info("expense decided", "id", e.ID, "status", e.Status, "approver", e.ApprovedBy)

	s.emitter.Emit(ctx, event.New(event.TypeExpenseDecided, projectOf(e), 0, map[string]any{
		"expense_id":  e.ID,
		"status":      e.Status,
		"approver":    e.ApprovedBy,
		"over_budget": e.OverBudget,
	}))
}

// Audit appends an entry to the expense audit log.
func Audit(tx *gorm.DB, expenseID uint, from, to models.ExpenseStatus, by, notes string) error {
	return tx.Create(&models.ExpenseAuditLog{
		ExpenseID: expenseID,
		OldStatus: from,
		NewStatus: to,
		ChangedBy: by,
		Notes:     notes,
	}).Error
}

// History lists the audit entries of an expense, oldest first.
func (s *Service) History(ctx context.Context, expenseID uint) ([]models.ExpenseAuditLog, error) {
	out := make([]models.ExpenseAuditLog, 0)
	err := s.db.WithContext(ctx).
		Where("expense_id = ?", expenseID).
		Order("id").
		Find(&out).Error
	return out, err
}

func projectOf(e *models.Expense) uint {
	if e.ProjectID == nil {
		return 0
	}
	return *e.ProjectID
}

// lock takes a row lock on dialects that support one.
func lock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
