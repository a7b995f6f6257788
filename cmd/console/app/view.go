package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	activeBox    = boxStyle.BorderForeground(lipgloss.Color("63"))
	placeholder  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tabActive    = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("57")).Bold(true)
	tabInactive  = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("240"))
	logoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).PaddingRight(1)
	sectionNames = map[section]string{
		sectionProjects:    "Projects",
		sectionTasks:       "Tasks",
		sectionEscalations: "Escalations",
	}
)

// View renders the interface.
func (m Model) View() string {
	tabs := renderTabsBar(m.active, m.viewportWidth)

	keys := "[1/2/3] switch  [tab] cycle  [r] reload  [q] quit"
	if m.active == sectionProjects {
		keys += "  [enter] tasks"
	}
	footer := barStyle.Render(keys)

	var body string
	switch m.state {
	case statusLoading:
		body = centerText(fmt.Sprintf("%s Loading data…", m.spinner.View()))
	case statusError:
		body = boxStyle.Render("Failed to load data: " + m.err.Error())
	case statusReady:
		if m.active == sectionTasks {
			body = m.renderTasks()
		} else {
			body = renderPane(m.tableFor(m.active), true)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, tabs, body, footer)
}

func (m Model) renderTasks() string {
	switch {
	case m.selected == 0:
		return boxStyle.Render(placeholder.Render("Select a project and press enter to list its tasks."))
	case m.taskLoading:
		return boxStyle.Render(fmt.Sprintf("%s Loading %s…", m.spinner.View(), m.selectedLabel()))
	case m.taskErr != nil:
		return boxStyle.Render(fmt.Sprintf("Failed to load %s: %s", m.selectedLabel(), m.taskErr.Error()))
	}

	header := barStyle.Render(fmt.Sprintf("%s  critical path %s %s", m.selectedLabel(), formatHours(m.pathHours), criticalMark))
	return lipgloss.JoinVertical(lipgloss.Left, header, renderPane(m.tasks, true))
}

func renderPane(tbl table.Model, active bool) string {
	style := boxStyle
	if active {
		style = activeBox
	}
	return style.Render(tbl.View())
}

func renderTabs(active section) string {
	sections := []section{sectionProjects, sectionTasks, sectionEscalations}
	tabs := make([]string, len(sections))
	for i, sec := range sections {
		label := fmt.Sprintf("%d %s", i+1, sectionNames[sec])
		if sec == active {
			tabs[i] = tabActive.Render(label)
		} else {
			tabs[i] = tabInactive.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func renderTabsBar(active section, totalWidth int) string {
	tabs := renderTabs(active)
	logo := logoStyle.Render("┌────┐\n│ Mr │\n└────┘")
	if totalWidth <= 0 {
		return lipgloss.JoinHorizontal(lipgloss.Top, tabs, logo)
	}

	logoWidth := lipgloss.Width(logo)
	leftWidth := max(totalWidth-logoWidth, 0)
	left := lipgloss.NewStyle().Width(leftWidth).MaxWidth(leftWidth).Render(tabs)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, logo)
}

func centerText(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return lipgloss.NewStyle().Align(lipgloss.Center).Render(value)
}
