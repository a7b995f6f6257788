package expense

import (
	"bytes"
	"context"
	"encoding/csv"
	"sort"
	"strconv"
	"time"

	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var reportHeader = []string{
	"Category", "Total Budget", "Total Expense", "Percentage Used", "Over Budget", "Period Start", "Period End",
}

// Report computes budget usage per category over the inclusive period
// [from, to]. Categories appear when a budget overlaps the period or an
// approved expense falls in it. With an empty org the rows are persisted,
// replacing any earlier report for the same category and period; an
// organization sees only its own spending and nothing is stored.
func (s *Service) Report(ctx context.Context, from, to time.Time, org string) ([]models.ExpenseReport, error) {
	from, to = models.Date(from), models.Date(to)
	if to.Before(from) {
		return nil, ErrInvalidRange
	}

	db := s.db.WithContext(ctx)

	var budgets []struct {
		CategoryID uint
		Total      float64
	}
	if err := db.Model(&models.ExpenseBudget{}).
		Select("category_id, SUM(amount) AS total").
		Where("start_date <= ? AND end_date >= ?", to, from).
		Group("category_id").
		Scan(&budgets).Error; err != nil {
		return nil, err
	}

	var spent []struct {
		CategoryID uint
		Total      float64
	}
	q := db.Model(&models.Expense{}).
		Select("category_id, SUM(amount) AS total").
		Where("category_id IS NOT NULL AND status = ? AND expense_date BETWEEN ? AND ?", models.ExpenseApproved, from, to)
	if org != "" {
		q = q.Where("organization_id = ?", org)
	}
	if err := q.Group("category_id").Scan(&spent).Error; err != nil {
		return nil, err
	}

	rows := map[uint]*models.ExpenseReport{}
	row := func(id uint) *models.ExpenseReport {
		if r, ok := rows[id]; ok {
			return r
		}
		r := &models.ExpenseReport{CategoryID: id, PeriodStart: from, PeriodEnd: to}
		rows[id] = r
		return r
	}
	for _, b := range budgets {
		row(b.CategoryID).TotalBudget = round(b.Total)
	}
	for _, e := range spent {
		row(e.CategoryID).TotalExpense = round(e.Total)
	}

	ids := make([]uint, 0, len(rows))
	for id, r := range rows {
		ids = append(ids, id)
		r.OverBudget = r.TotalExpense > r.TotalBudget
		if r.TotalBudget > 0 {
			r.PercentageUsed = round(r.TotalExpense / r.TotalBudget * 100)
		}
	}

	var categories []models.ExpenseCategory
	if len(ids) > 0 {
		if err := db.Where("id IN ?", ids).Find(&categories).Error; err != nil {
			return nil, err
		}
	}
	for _, c := range categories {
		rows[c.ID].CategoryName = c.Name
	}

	out := make([]models.ExpenseReport, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CategoryName != out[j].CategoryName {
			return out[i].CategoryName < out[j].CategoryName
		}
		return out[i].CategoryID < out[j].CategoryID
	})

	if org != "" || len(out) == 0 {
		return out, nil
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "category_id"}, {Name: "period_start"}, {Name: "period_end"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_budget", "total_expense", "percentage_used", "over_budget", "updated_at",
			}),
		}).Create(&out).Error
	}); err != nil {
		return nil, err
	}

	log.Info("expense report stored", "categories", len(out), "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly))
	return out, nil
}

// RefreshMonth stores the organization-wide report for the calendar month
// containing the current day.
func (s *Service) RefreshMonth(ctx context.Context) (int, error) {
	from, to := MonthOf(s.now())
	out, err := s.Report(ctx, from, to, "")
	return len(out), err
}

// MonthOf returns the first and last day of t's month.
func MonthOf(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// CSV renders report rows with a header line.
func CSV(rows []models.ExpenseReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(reportHeader); err != nil {
		return nil, err
	}

	for _, r := range rows {
		if err := w.Write([]string{
			r.CategoryName,
			formatAmount(r.TotalBudget),
			formatAmount(r.TotalExpense),
			formatAmount(r.PercentageUsed),
			strconv.FormatBool(r.OverBudget),
			r.PeriodStart.Format(time.DateOnly),
			r.PeriodEnd.Format(time.DateOnly),
		}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
