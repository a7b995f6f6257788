package schema

import (
	"context"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/schedule"
	"gorm.io/gorm"
)

// DefaultLimit caps list queries that do not set a limit.
const DefaultLimit = 100

var projectType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Project",
	Fields: graphql.Fields{
		"id":             &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"code":           &graphql.Field{Type: graphql.String},
		"name":           &graphql.Field{Type: graphql.String},
		"status":         &graphql.Field{Type: graphql.String},
		"priority":       &graphql.Field{Type: graphql.String},
		"department":     &graphql.Field{Type: graphql.String},
		"organizationId": &graphql.Field{Type: graphql.String},
		"startDate":      &graphql.Field{Type: graphql.String},
		"endDate":        &graphql.Field{Type: graphql.String},
	},
})

var taskType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Task",
	Fields: graphql.Fields{
		"id":             &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"projectId":      &graphql.Field{Type: graphql.Int},
		"title":          &graphql.Field{Type: graphql.String},
		"status":         &graphql.Field{Type: graphql.String},
		"priority":       &graphql.Field{Type: graphql.String},
		"estimatedHours": &graphql.Field{Type: graphql.Float},
		"startDate":      &graphql.Field{Type: graphql.String},
		"dueDate":        &graphql.Field{Type: graphql.String},
	},
})

var criticalPathType = graphql.NewObject(graphql.ObjectConfig{
	Name: "CriticalPath",
	Fields: graphql.Fields{
		"projectId":     &graphql.Field{Type: graphql.Int},
		"durationHours": &graphql.Field{Type: graphql.Float},
		"pathTaskIds":   &graphql.Field{Type: graphql.NewList(graphql.Int)},
	},
})

// New instantiates a fresh GraphQL schema over projects, tasks and
// their critical paths.
func New(db *gorm.DB, engine *schedule.Engine) graphql.SchemaConfig {
	r := &resolver{db: db, engine: engine}

	return graphql.SchemaConfig{
		Query: graphql.NewObject(
			graphql.ObjectConfig{
				Name:   "Query",
				Fields: r.fields(),
			},
		),
	}
}

type resolver struct {
	db     *gorm.DB
	engine *schedule.Engine
}

func (r *resolver) fields() graphql.Fields {
	return graphql.Fields{
		"projects": &graphql.Field{
			Type: graphql.NewList(projectType),
			Args: graphql.FieldConfigArgument{
				"status": &graphql.ArgumentConfig{Type: graphql.String},
				"limit":  &graphql.ArgumentConfig{Type: graphql.Int},
				"offset": &graphql.ArgumentConfig{Type: graphql.Int},
			},
			Resolve: r.projects,
		},
		"project": &graphql.Field{
			Type: projectType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
			},
			Resolve: r.project,
		},
		"tasks": &graphql.Field{
			Type: graphql.NewList(taskType),
			Args: graphql.FieldConfigArgument{
				"project": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				"status":  &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: r.tasks,
		},
		"criticalPath": &graphql.Field{
			Type: criticalPathType,
			Args: graphql.FieldConfigArgument{
				"project": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
			},
			Resolve: r.criticalPath,
		},
	}
}

func (r *resolver) projects(p graphql.ResolveParams) (interface{}, error) {
	q := r.scoped(p.Context).Order("id").Limit(DefaultLimit)

	if status, ok := p.Args["status"].(string); ok && status != "" {
		q = q.Where("status = ?", status)
	}
	if limit, ok := p.Args["limit"].(int); ok && limit > 0 {
		q = q.Limit(limit)
	}
	if offset, ok := p.Args["offset"].(int); ok && offset > 0 {
		q = q.Offset(offset)
	}

	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(projects))
	for i := range projects {
		out = append(out, projectFields(&projects[i]))
	}
	return out, nil
}

func (r *resolver) project(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(int)

	var projects []models.Project
	if err := r.scoped(p.Context).Where("id = ?", id).Limit(1).Find(&projects).Error; err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}
	return projectFields(&projects[0]), nil
}

func (r *resolver) tasks(p graphql.ResolveParams) (interface{}, error) {
	projectID, _ := p.Args["project"].(int)
	if ok, err := r.visible(p.Context, projectID); err != nil || !ok {
		return []map[string]interface{}{}, err
	}

	q := r.db.WithContext(p.Context).Where("project_id = ?", projectID).Order("id")
	if status, ok := p.Args["status"].(string); ok && status != "" {
		q = q.Where("status = ?", status)
	}

	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(tasks))
	for i := range tasks {
		out = append(out, taskFields(&tasks[i]))
	}
	return out, nil
}

func (r *resolver) criticalPath(p graphql.ResolveParams) (interface{}, error) {
	projectID, _ := p.Args["project"].(int)
	if ok, err := r.visible(p.Context, projectID); err != nil || !ok {
		return nil, err
	}

	res, err := r.engine.CriticalPath(p.Context, uint(projectID), nil)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(res.PathTaskIDs))
	for _, id := range res.PathTaskIDs {
		ids = append(ids, int(id))
	}

	return map[string]interface{}{
		"projectId":     projectID,
		"durationHours": res.DurationHours,
		"pathTaskIds":   ids,
	}, nil
}

// scoped queries projects visible to the caller.
func (r *resolver) scoped(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Project{})
	if claims := auth.ClaimsFrom(ctx); claims != nil && claims.Organization != "" {
		q = q.Where("organization_id = ?", claims.Organization)
	}
	return q
}

func (r *resolver) visible(ctx context.Context, projectID int) (bool, error) {
	var n int64
	if err := r.scoped(ctx).Where("id = ?", projectID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func projectFields(p *models.Project) map[string]interface{} {
	return map[string]interface{}{
		"id":             int(p.ID),
		"code":           p.Code,
		"name":           p.Name,
		"status":         string(p.Status),
		"priority":       string(p.Priority),
		"department":     p.Department,
		"organizationId": p.OrganizationID,
		"startDate":      p.StartDate.Format(time.DateOnly),
		"endDate":        p.EndDate.Format(time.DateOnly),
	}
}

func taskFields(t *models.Task) map[string]interface{} {
	out := map[string]interface{}{
		"id":        int(t.ID),
		"projectId": int(t.ProjectID),
		"title":     t.Title,
		"status":    string(t.Status),
		"priority":  string(t.Priority),
		"dueDate":   t.DueDate.Format(time.DateOnly),
	}
	if t.EstimatedHours != nil {
		out["estimatedHours"] = *t.EstimatedHours
	}
	if t.StartDate != nil {
		out["startDate"] = t.StartDate.Format(time.DateOnly)
	}
	return out
}
