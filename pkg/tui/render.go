package tui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/onedev"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	dimStyle   = lipgloss.NewStyle().Faint(true)
	boldStyle  = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Width(14)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Underline(true).
			Padding(0, 2)

	tabStyle = lipgloss.NewStyle().
			Faint(true).
			Padding(0, 2)

	errBannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	okBannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("2")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Faint(true)

	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Both lists use the same number of columns, so the interactive table can
// switch between them without re-creating rows.
var (
	pullHeaders  = []string{"#", "Title", "Branches", "State", "Comments", "Submitted"}
	issueHeaders = []string{"#", "Title", "State", "Comments", "Submitted", "Last activity"}
)

func date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

func pullRow(pr onedev.PullRequest) []string {
	return []string{
		"#" + strconv.Itoa(pr.Number),
		pr.Title,
		pr.SourceBranch + " → " + pr.TargetBranch,
		pr.State,
		strconv.Itoa(pr.CommentCount),
		date(pr.SubmitDate.Time),
	}
}

func issueRow(issue onedev.Issue) []string {
	return []string{
		"#" + strconv.Itoa(issue.Number),
		issue.Title,
		issue.State,
		strconv.Itoa(issue.CommentCount),
		date(issue.SubmitDate.Time),
		issue.LastActivity.Description,
	}
}

func render(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

// RenderPullRequests renders pull requests as a static table, in the order
// given.
func RenderPullRequests(prs []onedev.PullRequest) string {
	if len(prs) == 0 {
		return "No pull requests found."
	}
	rows := make([][]string, 0, len(prs))
	for _, pr := range prs {
		rows = append(rows, pullRow(pr))
	}
	return render(pullHeaders, rows)
}

// RenderIssues renders issues as a static table, in the order given.
func RenderIssues(issues []onedev.Issue) string {
	if len(issues) == 0 {
		return "No issues found."
	}
	rows := make([][]string, 0, len(issues))
	for _, issue := range issues {
		rows = append(rows, issueRow(issue))
	}
	return render(issueHeaders, rows)
}
