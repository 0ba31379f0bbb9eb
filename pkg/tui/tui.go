// Package tui is a terminal UI surface for the host: a Settings form and
// browsable lists of pull requests and issues. It never talks to oneDev
// directly; every action is an intent sent to the host.
package tui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/banner"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/onedev"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/protocol"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/viewmodel"
)

// Client sends an intent to the host and returns the messages it produced.
type Client interface {
	Send(ctx context.Context, in protocol.Intent) ([]protocol.Envelope, error)
}

type tab int

const (
	tabSettings tab = iota
	tabPulls
	tabIssues
)

var tabNames = []string{"Settings", "Pull Requests", "Issues"}

const (
	fieldURL = iota
	fieldEmail
	fieldToken
	fieldProjectPath
)

var fieldLabels = []string{"oneDev URL", "Email", "API Token", "Project Path"}

// — messages ————————————————————————————————————————————————————————————————

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// repliesMsg carries everything the host answered to one intent. seq is the
// number the model gave the request, zero for requests it does not order.
type repliesMsg struct {
	command string
	seq     uint64
	envs    []protocol.Envelope
	err     error
}

// — model ———————————————————————————————————————————————————————————————————

// Model is the bubbletea model of the browser.
type Model struct {
	client  Client
	banners *banner.Board
	open    func(url string) tea.Cmd

	tab       tab
	inputs    []textinput.Model
	focus     int
	showToken bool
	projectID int

	pulls   viewmodel.Collection[onedev.PullRequest]
	issues  viewmodel.Collection[onedev.Issue]
	views   [3]viewmodel.View
	loading [3]bool

	// last request number handed out per tab; the host's own numbering
	// restarts with the host, so list replies are ordered by these
	requests [3]uint64

	// numbers of the rows currently shown, in display order
	rows      []int
	table     table.Model
	searching bool
	search    textinput.Model

	width  int
	height int
}

// New creates a model talking to the host through client. Banners stay up
// for bannerTTL.
func New(client Client, bannerTTL time.Duration) Model {
	placeholders := []string{
		"https://your-onedev-instance.com",
		"user@example.com",
		"Your API token",
		"Your project path",
	}
	inputs := make([]textinput.Model, len(placeholders))
	for i, p := range placeholders {
		ti := textinput.New()
		ti.Placeholder = p
		ti.CharLimit = 256
		ti.Width = 50
		inputs[i] = ti
	}
	inputs[fieldToken].EchoMode = textinput.EchoPassword
	inputs[fieldToken].EchoCharacter = '•'
	inputs[fieldURL].Focus()

	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "search titles"

	t := table.New(
		table.WithColumns(columns(pullHeaders, 0)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	return Model{
		client:  client,
		banners: banner.NewBoard(bannerTTL),
		open:    openURLCmd,
		inputs:  inputs,
		search:  search,
		table:   t,
	}
}

// — commands ————————————————————————————————————————————————————————————————

func (m Model) send(in protocol.Intent) tea.Cmd {
	return m.sendNumbered(in, 0)
}

func (m Model) sendNumbered(in protocol.Intent, seq uint64) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		envs, err := client.Send(context.Background(), in)
		return repliesMsg{command: in.Command(), seq: seq, envs: envs, err: err}
	}
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
		_ = cmd.Run()
		return nil
	}
}

// credentials are whatever is currently in the form.
func (m Model) credentials() onedev.Credentials {
	return onedev.Credentials{
		URL:         strings.TrimSpace(m.inputs[fieldURL].Value()),
		Email:       strings.TrimSpace(m.inputs[fieldEmail].Value()),
		Token:       strings.TrimSpace(m.inputs[fieldToken].Value()),
		ProjectPath: strings.TrimSpace(m.inputs[fieldProjectPath].Value()),
	}
}

func (m *Model) fetch(t tab) tea.Cmd {
	var in protocol.Intent
	switch t {
	case tabPulls:
		in = protocol.FetchPullRequests{Credentials: m.credentials()}
	case tabIssues:
		in = protocol.FetchIssues{Credentials: m.credentials()}
	default:
		return nil
	}
	m.loading[t] = true
	m.requests[t]++
	return m.sendNumbered(in, m.requests[t])
}

func (m *Model) save() tea.Cmd {
	m.projectID = 0
	return m.send(protocol.SaveCredentials{Credentials: m.credentials()})
}

// — tea.Model ———————————————————————————————————————————————————————————————

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.send(protocol.GetCredentials{}), tickCmd(), textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(msg.Height-12, 3))
		m.table.SetWidth(max(msg.Width-4, 0))
		m.refresh()
		return m, nil

	case tickMsg:
		return m, tickCmd()

	case repliesMsg:
		m.applyReplies(msg)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			if !m.searching {
				return m, m.switchTab((m.tab + 1) % 3)
			}
		case "shift+tab":
			if !m.searching {
				return m, m.switchTab((m.tab + 2) % 3)
			}
		}
	}

	if m.tab == tabSettings {
		return m.updateSettings(msg)
	}
	if m.searching {
		return m.updateSearch(msg)
	}
	return m.updateList(msg)
}

func (m *Model) switchTab(t tab) tea.Cmd {
	m.tab = t
	m.searching = false
	m.table.SetCursor(0)
	m.refresh()
	if t == tabSettings {
		return m.inputs[m.focus].Focus()
	}
	m.inputs[m.focus].Blur()
	return m.fetch(t)
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = (i + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

func (m Model) updateSettings(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up":
			return m, m.setFocus(m.focus - 1)
		case "down":
			return m, m.setFocus(m.focus + 1)
		case "enter":
			if m.focus < len(m.inputs)-1 {
				return m, m.setFocus(m.focus + 1)
			}
			return m, m.save()
		case "ctrl+s":
			return m, m.save()
		case "ctrl+t":
			m.showToken = !m.showToken
			if m.showToken {
				m.inputs[fieldToken].EchoMode = textinput.EchoNormal
			} else {
				m.inputs[fieldToken].EchoMode = textinput.EchoPassword
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "r":
			return m, m.fetch(m.tab)
		case "s":
			m.views[m.tab].Sort = m.views[m.tab].Sort.Next()
			m.refresh()
			return m, nil
		case "f":
			m.views[m.tab].Filter = m.views[m.tab].Filter.Next()
			m.table.SetCursor(0)
			m.refresh()
			return m, nil
		case "/":
			m.searching = true
			m.search.SetValue(m.views[m.tab].Search)
			return m, m.search.Focus()
		case "esc":
			m.views[m.tab].Search = ""
			m.refresh()
			return m, nil
		case "enter":
			if url := m.selectedURL(); url != "" {
				return m, m.open(url)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			m.searching = false
			m.search.Blur()
			return m, nil
		case "esc":
			m.searching = false
			m.search.Blur()
			m.views[m.tab].Search = ""
			m.refresh()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.views[m.tab].Search = m.search.Value()
	m.table.SetCursor(0)
	m.refresh()
	return m, cmd
}

// applyReplies folds the host's answer to one intent into the model.
func (m *Model) applyReplies(msg repliesMsg) {
	t := tabSettings
	switch msg.command {
	case protocol.CmdFetchPullRequests:
		t = tabPulls
	case protocol.CmdFetchIssues:
		t = tabIssues
	}
	if msg.seq >= m.requests[t] {
		m.loading[t] = false
	}

	if msg.err != nil {
		if m.fail(t, msg.seq) {
			m.banners.Show(banner.Error, "Could not reach the host: "+msg.err.Error())
		}
		return
	}

	for _, env := range msg.envs {
		switch payload := env.Message.(type) {
		case protocol.SetCredentials:
			m.inputs[fieldURL].SetValue(payload.URL)
			m.inputs[fieldEmail].SetValue(payload.Email)
			m.inputs[fieldToken].SetValue(payload.Token)
			m.inputs[fieldProjectPath].SetValue(payload.ProjectPath)
		case protocol.SetProjectID:
			m.projectID = payload.ProjectID
		case protocol.ShowSuccessMessage:
			text := payload.Message
			if m.projectID != 0 {
				text += fmt.Sprintf(" Project ID: %d", m.projectID)
			}
			m.banners.Show(banner.Success, text)
		case protocol.ShowErrorMessage:
			if m.fail(t, msg.seq) {
				m.banners.Show(banner.Error, payload.Message)
			}
		case protocol.SetPullRequests:
			m.pulls.Accept(msg.seq, payload.PullRequests)
		case protocol.SetIssues:
			m.issues.Accept(msg.seq, payload.Issues)
		}
	}
	m.refresh()
}

// fail records a failed request for the list on t, and reports whether it
// is recent enough to be shown.
func (m *Model) fail(t tab, seq uint64) bool {
	switch t {
	case tabPulls:
		return m.pulls.Fail(seq)
	case tabIssues:
		return m.issues.Fail(seq)
	}
	return true
}

// refresh recomputes the rows of the active list from its collection and
// view.
func (m *Model) refresh() {
	var headers []string
	var rows [][]string
	m.rows = nil

	switch m.tab {
	case tabPulls:
		headers = pullHeaders
		for _, pr := range viewmodel.Apply(m.pulls.Items(), m.views[tabPulls]) {
			rows = append(rows, pullRow(pr))
			m.rows = append(m.rows, pr.Number)
		}
	case tabIssues:
		headers = issueHeaders
		for _, issue := range viewmodel.Apply(m.issues.Items(), m.views[tabIssues]) {
			rows = append(rows, issueRow(issue))
			m.rows = append(m.rows, issue.Number)
		}
	default:
		return
	}

	tableRows := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, table.Row(r))
	}
	m.table.SetRows(nil)
	m.table.SetColumns(columns(headers, m.width))
	m.table.SetRows(tableRows)
	if m.table.Cursor() >= len(tableRows) {
		m.table.SetCursor(max(len(tableRows)-1, 0))
	}
}

// columns sizes the table to width, giving the title whatever is left.
func columns(headers []string, width int) []table.Column {
	fixed := []int{6, 0, 24, 10, 10, 12}
	if headers[2] == "State" {
		fixed = []int{6, 0, 10, 10, 12, 24}
	}
	title := width - 2*len(headers)
	for _, w := range fixed {
		title -= w
	}
	fixed[1] = max(title, 30)

	cols := make([]table.Column, len(headers))
	for i, h := range headers {
		cols[i] = table.Column{Title: h, Width: fixed[i]}
	}
	return cols
}

func (m Model) selectedURL() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return ""
	}
	creds := m.credentials()
	if m.tab == tabIssues {
		return onedev.IssueURL(creds, m.rows[i])
	}
	return onedev.PullURL(creds, m.rows[i])
}

// — view ————————————————————————————————————————————————————————————————————

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("oneDev Browser") + "\n\n")
	b.WriteString(m.renderTabs() + "\n\n")

	for _, bn := range m.banners.Active() {
		style := okBannerStyle
		if bn.Kind == banner.Error {
			style = errBannerStyle
		}
		b.WriteString(style.Render(bn.Text) + "\n")
	}

	switch m.tab {
	case tabSettings:
		b.WriteString(m.renderSettings())
	case tabPulls:
		b.WriteString(m.renderList("pull requests", m.pulls.Loaded()))
	case tabIssues:
		b.WriteString(m.renderList("issues", m.issues.Loaded()))
	}

	b.WriteString("\n" + m.renderHelp())
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if tab(i) == m.tab {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = tabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderSettings() string {
	var b strings.Builder
	for i, in := range m.inputs {
		b.WriteString(labelStyle.Render(fieldLabels[i]) + in.View())
		if i == fieldToken {
			if m.showToken {
				b.WriteString(dimStyle.Render("  ctrl+t hide"))
			} else {
				b.WriteString(dimStyle.Render("  ctrl+t show"))
			}
		}
		b.WriteString("\n")
	}
	if m.projectID != 0 {
		b.WriteString("\n" + labelStyle.Render("Project ID") + boldStyle.Render(fmt.Sprint(m.projectID)) + "\n")
	}
	return b.String()
}

func (m Model) renderList(noun string, loaded bool) string {
	v := m.views[m.tab]
	var b strings.Builder

	status := fmt.Sprintf("sort: %s   filter: %s", v.Sort, v.Filter)
	if len(v.Search) > 0 && !m.searching {
		status += "   search: " + v.Search
	}
	b.WriteString(dimStyle.Render(status) + "\n")
	if m.searching {
		b.WriteString(m.search.View() + "\n")
	}
	b.WriteString("\n")

	switch {
	case !loaded && m.loading[m.tab]:
		b.WriteString("Loading " + noun + "…\n")
	case len(m.rows) == 0:
		b.WriteString("No " + noun + " found.\n")
	default:
		b.WriteString(m.table.View() + "\n")
	}
	return b.String()
}

func (m Model) renderHelp() string {
	var text string
	switch {
	case m.tab == tabSettings:
		text = "↑/↓ field   enter next/save   ctrl+s save   ctrl+t show token   tab switch   ctrl+c quit"
	case m.searching:
		text = "type to search   enter keep   esc clear"
	default:
		text = "↑/↓ navigate   enter open   r reload   s sort   f filter   / search   tab switch   q quit"
	}
	return helpStyle.Render(text)
}
