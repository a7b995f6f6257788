package app

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/meridian-works/meridian/api/rest/controller/deadline"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/schedule"
	"github.com/stretchr/testify/suite"
)

type fakeSource struct {
	projects    []models.Project
	tasks       map[uint][]models.Task
	paths       map[uint]*deadline.CriticalPathResponse
	escalations []models.EscalationLog
	err         error
	query       url.Values
}

func (f *fakeSource) Projects(_ context.Context, q url.Values) ([]models.Project, error) {
	f.query = q
	return f.projects, f.err
}

func (f *fakeSource) Tasks(_ context.Context, projectID uint) ([]models.Task, error) {
	return f.tasks[projectID], f.err
}

func (f *fakeSource) CriticalPath(_ context.Context, projectID uint) (*deadline.CriticalPathResponse, error) {
	return f.paths[projectID], f.err
}

func (f *fakeSource) Escalations(context.Context, uint, int) ([]models.EscalationLog, error) {
	return f.escalations, f.err
}

type ModelSuite struct {
	suite.Suite
	src *fakeSource
}

func TestModelSuite(t *testing.T) {
	suite.Run(t, new(ModelSuite))
}

func (s *ModelSuite) SetupTest() {
	hours := 8.0
	taskID := uint(11)
	s.src = &fakeSource{
		projects: []models.Project{
			{ID: 1, Code: "PRJ-1", Name: "Billing"},
			{ID: 2, Code: "PRJ-2", Name: "Search"},
		},
		tasks: map[uint][]models.Task{
			2: {
				{ID: 10, ProjectID: 2, Title: "Design", EstimatedHours: &hours},
				{ID: 11, ProjectID: 2, Title: "Build", EstimatedHours: &hours},
			},
		},
		paths: map[uint]*deadline.CriticalPathResponse{
			2: {ProjectID: 2, Result: schedule.Result{DurationHours: 8, PathTaskIDs: []uint{11}}},
		},
		escalations: []models.EscalationLog{
			{ID: 1, ProjectID: 2, TaskID: &taskID, Message: "Build is overdue"},
		},
	}
}

func (s *ModelSuite) update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	res, cmd := m.Update(msg)
	return res.(Model), cmd
}

func (s *ModelSuite) loaded() Model {
	m := New(s.src)
	m, _ = s.update(m, fetchOverview(s.src)())
	return m
}

func (s *ModelSuite) TestOverviewLoaded() {
	m := s.loaded()

	s.Equal(statusReady, m.state)
	s.Equal("end_date", s.src.query.Get("order_by"))
	s.Equal([]uint{1, 2}, m.projectIDs)
	s.Len(m.projects.Rows(), 2)

	rows := m.escalations.Rows()
	s.Require().Len(rows, 1)
	s.Equal("PRJ-2", rows[0][1])
	s.Equal("task 11", rows[0][2])
}

func (s *ModelSuite) TestOverviewError() {
	s.src.err = errors.New("boom")

	m, _ := s.update(New(s.src), fetchOverview(s.src)())
	s.Equal(statusError, m.state)
	s.EqualError(m.err, "boom")
	s.Contains(m.View(), "Failed to load data: boom")
}

func (s *ModelSuite) TestEnterOpensProject() {
	m := s.loaded()
	m.projects.SetCursor(1)

	m, cmd := s.update(m, tea.KeyMsg{Type: tea.KeyEnter})
	s.Require().NotNil(cmd)
	s.Equal(uint(2), m.selected)
	s.Equal(sectionTasks, m.active)
	s.True(m.taskLoading)

	m, _ = s.update(m, fetchProject(s.src, 2)())
	s.False(m.taskLoading)
	s.Equal(8.0, m.pathHours)

	rows := m.tasks.Rows()
	s.Require().Len(rows, 2)
	s.Equal(table.Row{criticalMark, "Build", "", "8h", "-", "-"}, rows[0])
	s.Equal("Design", rows[1][1])
	s.Contains(m.View(), "PRJ-2")
}

func (s *ModelSuite) TestStaleProjectResultIgnored() {
	m := s.loaded()
	m.selected = 1
	m.taskLoading = true

	m, _ = s.update(m, projectLoadedMsg{projectID: 2})
	s.True(m.taskLoading)

	m, _ = s.update(m, projectErrMsg{projectID: 1, err: errors.New("gone")})
	s.False(m.taskLoading)
	s.EqualError(m.taskErr, "gone")
}

func (s *ModelSuite) TestSectionCycling() {
	m := s.loaded()

	m, _ = s.update(m, tea.KeyMsg{Type: tea.KeyTab})
	s.Equal(sectionTasks, m.active)
	s.True(m.tasks.Focused())
	s.False(m.projects.Focused())

	m, _ = s.update(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m, _ = s.update(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	s.Equal(sectionEscalations, m.active)

	m, _ = s.update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'1'}})
	s.Equal(sectionProjects, m.active)
}

func (s *ModelSuite) TestTasksPlaceholder() {
	m := s.loaded()
	m, _ = s.update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})
	s.Contains(m.View(), "Select a project")
}

func (s *ModelSuite) TestQuit() {
	_, cmd := s.update(s.loaded(), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	s.Require().NotNil(cmd)
	s.IsType(tea.QuitMsg{}, cmd())
}

func (s *ModelSuite) TestReloadRefetchesSelectedProject() {
	m := s.loaded()
	m.selected = 2

	m, cmd := s.update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	s.NotNil(cmd)
	s.Equal(statusLoading, m.state)
	s.True(m.taskLoading)
}
