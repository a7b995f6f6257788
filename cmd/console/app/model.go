package app

import (
	"strconv"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/meridian-works/meridian/internal/models"
)

type status int

type section int

const (
	statusLoading status = iota
	statusReady
	statusError
)

const (
	sectionProjects section = iota
	sectionTasks
	sectionEscalations
)

func (s section) next() section {
	return section((int(s) + 1) % 3)
}

func (s section) prev() section {
	return section((int(s) + 2) % 3)
}

// Model is the Bubble Tea program state.
type Model struct {
	src           Source
	spinner       spinner.Model
	state         status
	err           error
	active        section
	projects      table.Model
	tasks         table.Model
	escalations   table.Model
	projectIDs    []uint
	projectCodes  map[uint]string
	selected      uint
	pathHours     float64
	taskErr       error
	taskLoading   bool
	viewportWidth int
}

// New creates the root model reading from src.
func New(src Source) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		src:          src,
		spinner:      sp,
		state:        statusLoading,
		active:       sectionProjects,
		projects:     createTable(projectColumnTitles, nil, true),
		tasks:        createTable(taskColumnTitles, []int{3, 30, 12, 10, 12, 12}, false),
		escalations:  createTable(escalationColumnTitles, []int{10, 10, 14, 40}, false),
		projectCodes: map[uint]string{},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchOverview(m.src))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.state = statusLoading
			m.err = nil
			cmds := []tea.Cmd{m.spinner.Tick, fetchOverview(m.src)}
			if m.selected != 0 {
				m.taskLoading = true
				cmds = append(cmds, fetchProject(m.src, m.selected))
			}
			return m, tea.Batch(cmds...)
		case "1":
			m = m.activate(sectionProjects)
		case "2":
			m = m.activate(sectionTasks)
		case "3":
			m = m.activate(sectionEscalations)
		case "tab":
			m = m.activate(m.active.next())
		case "shift+tab":
			m = m.activate(m.active.prev())
		case "enter":
			if m.state == statusReady && m.active == sectionProjects {
				return m.openSelectedProject()
			}
		}
	case tea.WindowSizeMsg:
		height := max(5, msg.Height-7)
		width := max(20, msg.Width-8)
		m.viewportWidth = msg.Width
		for _, tbl := range []*table.Model{&m.projects, &m.tasks, &m.escalations} {
			tbl.SetHeight(height)
			tbl.SetWidth(width)
		}
		m.resizeColumns(max(10, width-2))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case overviewLoadedMsg:
		m.state = statusReady
		m.err = nil
		m.setProjects(msg.projects)
		m.escalations.SetRows(escalationsToRows(msg.escalations, m.projectCodes))
	case projectLoadedMsg:
		if msg.projectID != m.selected {
			return m, nil
		}
		m.taskLoading = false
		m.taskErr = nil
		var path []uint
		if msg.path != nil {
			path = msg.path.PathTaskIDs
			m.pathHours = msg.path.DurationHours
		}
		m.tasks.SetRows(tasksToRows(msg.tasks, path))
		m.tasks.SetCursor(0)
		return m, nil
	case projectErrMsg:
		if msg.projectID != m.selected {
			return m, nil
		}
		m.taskLoading = false
		m.taskErr = msg.err
		m.tasks.SetRows(nil)
		return m, nil
	case errMsg:
		m.state = statusError
		m.err = msg
	}

	if m.state != statusReady {
		return m, nil
	}

	var cmd tea.Cmd
	switch m.active {
	case sectionProjects:
		m.projects, cmd = m.projects.Update(msg)
	case sectionTasks:
		m.tasks, cmd = m.tasks.Update(msg)
	case sectionEscalations:
		m.escalations, cmd = m.escalations.Update(msg)
	}
	return m, cmd
}

func (m *Model) setProjects(projects []models.Project) {
	m.projectIDs = make([]uint, len(projects))
	m.projectCodes = make(map[uint]string, len(projects))
	for i, p := range projects {
		m.projectIDs[i] = p.ID
		m.projectCodes[p.ID] = p.Code
	}
	m.projects.SetRows(projectsToRows(projects))
}

// openSelectedProject loads the tasks of the project under the cursor and
// switches to the task view.
func (m Model) openSelectedProject() (tea.Model, tea.Cmd) {
	cursor := m.projects.Cursor()
	if cursor < 0 || cursor >= len(m.projectIDs) {
		return m, nil
	}

	m.selected = m.projectIDs[cursor]
	m.taskLoading = true
	m.taskErr = nil
	m.pathHours = 0
	m.tasks.SetRows(nil)
	m = m.activate(sectionTasks)
	return m, tea.Batch(m.spinner.Tick, fetchProject(m.src, m.selected))
}

func (m Model) activate(sec section) Model {
	m.projects.Blur()
	m.tasks.Blur()
	m.escalations.Blur()
	switch sec {
	case sectionProjects:
		m.projects.Focus()
	case sectionTasks:
		m.tasks.Focus()
	case sectionEscalations:
		m.escalations.Focus()
	}
	m.active = sec
	return m
}

func (m Model) tableFor(sec section) table.Model {
	switch sec {
	case sectionTasks:
		return m.tasks
	case sectionEscalations:
		return m.escalations
	default:
		return m.projects
	}
}

func (m *Model) resizeColumns(width int) {
	if width <= 0 {
		return
	}
	m.projects.SetColumns(buildColumns(projectColumnTitles, distributeWidths(width, projectColumnWeights)))
	m.tasks.SetColumns(buildColumns(taskColumnTitles, distributeWidths(width, taskColumnWeights)))
	m.escalations.SetColumns(buildColumns(escalationColumnTitles, distributeWidths(width, escalationColumnWeights)))
}

func (m Model) selectedLabel() string {
	if code, ok := m.projectCodes[m.selected]; ok && code != "" {
		return code
	}
	return "#" + strconv.FormatUint(uint64(m.selected), 10)
}
