// Package record is the persistence layer shared by the REST resources.
package record

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
)

var orderPattern = regexp.MustCompile(`^[a-z_]+( (asc|desc))?$`)

// Scope narrows a query, typically to the caller's organization.
type Scope func(*gorm.DB) *gorm.DB

type ListRequest struct {
	Limit   uint64
	Offset  uint64
	OrderBy []string
	Filters map[string]any
	Scopes  []Scope
}

// Service reads and writes rows of T.
type Service[T any] struct {
	ctx context.Context
	db  *gorm.DB
}

func New[T any](ctx context.Context, conn *gorm.DB) *Service[T] {
	return &Service[T]{ctx: ctx, db: conn}
}

func (s *Service[T]) WithDatabase(conn *gorm.DB) *Service[T] {
	s.db = conn
	return s
}

// ValidateOrder checks order_by terms against the accepted grammar:
// a column name optionally followed by asc or desc.
func ValidateOrder(terms []string) error {
	for _, term := range terms {
		if !orderPattern.MatchString(strings.ToLower(strings.TrimSpace(term))) {
			return fmt.Errorf("invalid order_by term %q", term)
		}
	}
	return nil
}

func (s *Service[T]) List(req *ListRequest) ([]T, error) {
	var (
		rows = make([]T, 0)
		q    = s.scoped(req.Scopes)
	)

	if len(req.Filters) > 0 {
		q = q.Where(req.Filters)
	}

	if err := ValidateOrder(req.OrderBy); err != nil {
		return nil, err
	}

	for _, orderBy := range req.OrderBy {
		q = q.Order(strings.ToLower(strings.TrimSpace(orderBy)))
	}
	if len(req.OrderBy) == 0 {
		q = q.Order("id")
	}

	if req.Limit > 0 {
		q = q.Limit(int(req.Limit))
	}

	if req.Offset > 0 {
		q = q.Offset(int(req.Offset))
	}

	return rows, q.Find(&rows).Error
}

func (s *Service[T]) Get(id any, scopes ...Scope) (*T, error) {
	row := new(T)
	return row, s.scoped(scopes).Where("id = ?", id).First(row).Error
}

func (s *Service[T]) Create(row *T) error {
	return s.db.WithContext(s.ctx).Create(row).Error
}

func (s *Service[T]) Save(row *T) error {
	return s.db.WithContext(s.ctx).Save(row).Error
}

func (s *Service[T]) Delete(id any, scopes ...Scope) (*T, error) {
	row, err := s.Get(id, scopes...)
	if err != nil {
		return nil, err
	}
	return row, s.db.WithContext(s.ctx).Delete(row).Error
}

func (s *Service[T]) scoped(scopes []Scope) *gorm.DB {
	q := s.db.WithContext(s.ctx)
	for _, scope := range scopes {
		if scope != nil {
			q = scope(q)
		}
	}
	return q
}

// Organization limits rows carrying an organization_id column.
func Organization(org string) Scope {
	if org == "" {
		return nil
	}
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("organization_id = ?", org)
	}
}

// ProjectOrganization limits rows carrying a project_id column to the
// projects of org.
func ProjectOrganization(org string) Scope {
	if org == "" {
		return nil
	}
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("project_id IN (?)", q.Session(&gorm.Session{NewDB: true}).
			Table("projects").Select("id").Where("organization_id = ?", org))
	}
}

// EmployeeOrganization limits rows carrying an employee_id column to the
// employees of org.
func EmployeeOrganization(org string) Scope {
	if org == "" {
		return nil
	}
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("employee_id IN (?)", q.Session(&gorm.Session{NewDB: true}).
			Table("employees").Select("id").Where("organization_id = ?", org))
	}
}

// TaskOrganization limits rows carrying a task_id column to the tasks of
// org's projects.
func TaskOrganization(org string) Scope {
	if org == "" {
		return nil
	}
	return func(q *gorm.DB) *gorm.DB {
		tx := q.Session(&gorm.Session{NewDB: true})
		return q.Where("task_id IN (?)", tx.Table("tasks").Select("id").
			Where("project_id IN (?)", tx.Table("projects").Select("id").Where("organization_id = ?", org)))
	}
}

// Exists reports gorm.ErrRecordNotFound unless a row of model with the
// given id is visible through scope.
func Exists(tx *gorm.DB, model any, id any, scope Scope) error {
	q := tx.Model(model).Where("id = ?", id)
	if scope != nil {
		q = scope(q)
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
