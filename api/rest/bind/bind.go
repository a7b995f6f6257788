package bind

import (
	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/api/rest/controller/deadline"
	"github.com/meridian-works/meridian/api/rest/controller/employee"
	"github.com/meridian-works/meridian/api/rest/controller/event"
	"github.com/meridian-works/meridian/api/rest/controller/expense"
	"github.com/meridian-works/meridian/api/rest/controller/leave"
	"github.com/meridian-works/meridian/api/rest/controller/plan"
	"github.com/meridian-works/meridian/api/rest/controller/progress"
	"github.com/meridian-works/meridian/api/rest/controller/project"
	"github.com/meridian-works/meridian/api/rest/controller/resource"
	"github.com/meridian-works/meridian/api/rest/controller/task"
	"github.com/meridian-works/meridian/internal/auth"
	"github.com/meridian-works/meridian/internal/capacity"
	deadlinesvc "github.com/meridian-works/meridian/internal/deadline"
	eventsvc "github.com/meridian-works/meridian/internal/event"
	expensesvc "github.com/meridian-works/meridian/internal/expense"
	leavesvc "github.com/meridian-works/meridian/internal/leave"
	"github.com/meridian-works/meridian/internal/planimport"
	progresssvc "github.com/meridian-works/meridian/internal/progress"
	"github.com/meridian-works/meridian/internal/schedule"
	"github.com/meridian-works/meridian/internal/worker"
	"gorm.io/gorm"
)

// Dependencies are the services the REST controllers run on.
type Dependencies struct {
	DB        *gorm.DB
	Engine    *schedule.Engine
	Scheduler *deadlinesvc.Scheduler
	Capacity  *capacity.Service
	Leave     *leavesvc.Service
	Expense   *expensesvc.Service
	Progress  *progresssvc.Service
	Reporter  *progresssvc.Reporter
	Importer  *planimport.Importer
	Queue     *worker.Queue
	Emitter   *eventsvc.Emitter
}

func All(g *echo.Group, d Dependencies) {
	Projects(g, d)
	Tasks(g, d)
	People(g, d)
	Resources(g, d)
	Expenses(g, d)
	Deadline(g.Group("/deadline"), d)
	Progress(g.Group("/progress"), d)

	g.POST("/plans/apply", (&plan.Controller{Importer: d.Importer}).Apply)

	if bus := d.Emitter.Bus(); bus != nil {
		g.GET("/events", event.New(bus, d.DB).Stream)
	}
}

func Projects(g *echo.Group, d Dependencies) {
	project.Clients(d.DB).Bind(g, "/clients")
	project.Projects(d.DB).Bind(g, "/projects")
	project.Milestones(d.DB, d.Scheduler).Bind(g, "/milestones")
	project.Sprints(d.DB, d.Scheduler).Bind(g, "/sprints")
}

func Tasks(g *echo.Group, d Dependencies) {
	ctrl := &task.Controller{
		DB:        d.DB,
		Engine:    d.Engine,
		Scheduler: d.Scheduler,
		Progress:  d.Progress,
		Capacity:  d.Capacity,
		Queue:     d.Queue,
		Emitter:   d.Emitter,
	}

	ctrl.Tasks().Bind(g, "/tasks")
	ctrl.TimeLogs().Bind(g, "/timelogs")

	// dependencies
	{
		g.GET("/dependencies", ctrl.ListDependencies)
		g.POST("/dependencies", ctrl.PostDependency)
		g.DELETE("/dependencies/:id", ctrl.DeleteDependency)
	}
}

func People(g *echo.Group, d Dependencies) {
	emp := &employee.Controller{DB: d.DB, Leave: d.Leave}
	emp.Employees().Bind(g, "/employees")
	g.GET("/employees/:id/balances", emp.Balances)
	emp.Skills().Bind(g, "/skills")
	emp.EmployeeSkills().Bind(g, "/employee-skills")
	emp.Contracts().Bind(g, "/contracts")
	emp.Standups().Bind(g, "/standups")

	lv := &leave.Controller{DB: d.DB, Leave: d.Leave}
	lv.Types().Bind(g, "/leave-types")

	// leave requests
	{
		requests := lv.Requests()
		g.GET("/leave-requests", requests.List)
		g.GET("/leave-requests/:id", requests.Get)
		g.POST("/leave-requests", lv.PostRequest)
		g.DELETE("/leave-requests/:id", requests.Delete)
		g.POST("/leave-requests/:id/approve", lv.Approve, auth.RequireAdmin)
		g.POST("/leave-requests/:id/reject", lv.Reject, auth.RequireAdmin)
	}
}

func Resources(g *echo.Group, d Dependencies) {
	ctrl := &resource.Controller{DB: d.DB, Capacity: d.Capacity, Queue: d.Queue}

	ctrl.Assignments().Bind(g, "/assignments")
	ctrl.Forecasts().Bind(g, "/forecasts")
	ctrl.SkillRequirements().Bind(g, "/skill-requirements")

	analytics := g.Group("/resources")
	analytics.GET("/utilization", ctrl.Utilization)
	analytics.GET("/bands", ctrl.Bands)
	analytics.POST("/recommend", ctrl.Recommend)
	analytics.GET("/time-split", ctrl.TimeSplit)
	analytics.GET("/forecast-gaps", ctrl.ForecastGaps)
}

func Expenses(g *echo.Group, d Dependencies) {
	ctrl := &expense.Controller{DB: d.DB, Expense: d.Expense}

	ctrl.Categories().Bind(g, "/expense-categories", auth.RequireAdmin)
	ctrl.Budgets().Bind(g, "/expense-budgets", auth.RequireAdmin)

	// expenses
	{
		expenses := ctrl.Expenses()
		g.GET("/expenses", expenses.List)
		g.GET("/expenses/report", ctrl.Report)
		g.GET("/expenses/:id", expenses.Get)
		g.POST("/expenses", ctrl.PostExpense)
		g.PUT("/expenses/:id", expenses.Put)
		g.DELETE("/expenses/:id", expenses.Delete)
		g.GET("/expenses/:id/audit", ctrl.History)
		g.GET("/expenses/:id/budget", ctrl.Budget)
		g.POST("/expenses/:id/approve", ctrl.Approve, auth.RequireAdmin)
		g.POST("/expenses/:id/reject", ctrl.Reject, auth.RequireAdmin)
	}
}

func Deadline(g *echo.Group, d Dependencies) {
	ctrl := &deadline.Controller{
		DB:        d.DB,
		Engine:    d.Engine,
		Scheduler: d.Scheduler,
		Progress:  d.Progress,
	}

	ctrl.Notifications().Bind(g, "/notifications")
	g.GET("/escalations", ctrl.Escalations)
	g.POST("/run-now", ctrl.RunNow, auth.RequireAdmin)
	g.GET("/critical-path", ctrl.CriticalPath)
	g.GET("/impact", ctrl.Impact)
	g.POST("/adjust", ctrl.Adjust)
}

func Progress(g *echo.Group, d Dependencies) {
	ctrl := &progress.Controller{
		DB:       d.DB,
		Progress: d.Progress,
		Reporter: d.Reporter,
		Queue:    d.Queue,
	}

	g.GET("/burndown", ctrl.Burndown)
	g.GET("/gantt", ctrl.Gantt)
	g.GET("/metrics", ctrl.Metrics)
	g.GET("/reports", ctrl.ListReports)
	g.POST("/reports", ctrl.PostReport)
}
