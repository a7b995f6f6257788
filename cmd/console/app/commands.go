package app

import (
	"context"
	"net/url"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/meridian-works/meridian/api/rest/controller/deadline"
	"github.com/meridian-works/meridian/internal/models"
)

// EscalationLimit caps the escalations shown on the overview.
const EscalationLimit = 50

// Source is the slice of the API client the console reads from.
type Source interface {
	Projects(ctx context.Context, q url.Values) ([]models.Project, error)
	Tasks(ctx context.Context, projectID uint) ([]models.Task, error)
	CriticalPath(ctx context.Context, projectID uint) (*deadline.CriticalPathResponse, error)
	Escalations(ctx context.Context, projectID uint, limit int) ([]models.EscalationLog, error)
}

func fetchOverview(src Source) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		projects, err := src.Projects(ctx, url.Values{"order_by": {"end_date"}})
		if err != nil {
			return errMsg(err)
		}

		escalations, err := src.Escalations(ctx, 0, EscalationLimit)
		if err != nil {
			return errMsg(err)
		}

		return overviewLoadedMsg{projects: projects, escalations: escalations}
	}
}

func fetchProject(src Source, projectID uint) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		tasks, err := src.Tasks(ctx, projectID)
		if err != nil {
			return projectErrMsg{projectID: projectID, err: err}
		}

		path, err := src.CriticalPath(ctx, projectID)
		if err != nil {
			return projectErrMsg{projectID: projectID, err: err}
		}

		return projectLoadedMsg{projectID: projectID, tasks: tasks, path: path}
	}
}

type overviewLoadedMsg struct {
	projects    []models.Project
	escalations []models.EscalationLog
}

type projectLoadedMsg struct {
	projectID uint
	tasks     []models.Task
	path      *deadline.CriticalPathResponse
}

type projectErrMsg struct {
	projectID uint
	err       error
}

type errMsg error
