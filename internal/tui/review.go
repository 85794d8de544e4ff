package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type viewState int

const (
	previewView viewState = iota
	applyingView
	doneView
)

// PlanRow is one commit's proposed date change.
type PlanRow struct {
	SHA     string
	Subject string
	Old     time.Time
	New     time.Time
}

// Result reports what the review session decided.
type Result struct {
	Confirmed bool
	Err       error
}

type applyDoneMsg struct {
	err error
}

// App walks the user through a proposed rewrite: preview the plan, confirm,
// run apply with a spinner, show the outcome.
type App struct {
	state   viewState
	rows    []PlanRow
	apply   func() error
	spinner spinner.Model
	result  *Result
	errMsg  string
}

func NewApp(rows []PlanRow, apply func() error) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return &App{
		state:   previewView,
		rows:    rows,
		apply:   apply,
		spinner: s,
	}
}

func (a *App) Init() tea.Cmd {
	return a.spinner.Tick
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Once filter-branch is running there is nothing safe to cancel;
		// swallow ctrl+c and wait for the result.
		if msg.String() == "ctrl+c" && a.state != applyingView {
			a.result = &Result{Confirmed: false}
			return a, tea.Quit
		}
	case applyDoneMsg:
		a.state = doneView
		a.result = &Result{Confirmed: true, Err: msg.err}
		if msg.err != nil {
			a.errMsg = msg.err.Error()
		}
		return a, tea.Quit
	}

	switch a.state {
	case previewView:
		return a.updatePreview(msg)
	case applyingView:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *App) updatePreview(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}

	switch keyMsg.String() {
	case "y", "enter":
		a.state = applyingView
		return a, tea.Batch(a.spinner.Tick, a.runApply())
	case "n", "q", "esc":
		a.result = &Result{Confirmed: false}
		return a, tea.Quit
	}

	return a, nil
}

func (a *App) runApply() tea.Cmd {
	return func() tea.Msg {
		return applyDoneMsg{err: a.apply()}
	}
}

func (a *App) View() string {
	switch a.state {
	case previewView:
		var b strings.Builder
		b.WriteString(titleStyle.Render("retime — proposed rewrite"))
		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("%d commits", len(a.rows))))
		b.WriteString("\n")
		b.WriteString(RenderPlan(a.rows))
		b.WriteString(helpStyle.Render("y: rewrite history  n: abort"))
		return b.String()
	case applyingView:
		return a.spinner.View() + " Rewriting history..."
	case doneView:
		if a.errMsg != "" {
			return errorStyle.Render("Error: ") + a.errMsg + "\n"
		}
		return successStyle.Render("History rewritten.") + "\n"
	}
	return ""
}

func (a *App) GetResult() *Result {
	return a.result
}

// RenderPlan formats the per-commit date changes, one line per commit.
// Shared with the plan command, which prints it without the TUI around it.
func RenderPlan(rows []PlanRow) string {
	var b strings.Builder
	for _, r := range rows {
		sha := r.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		subject := r.Subject
		if len(subject) > 40 {
			subject = subject[:37] + "..."
		}
		fmt.Fprintf(&b, "  %s  %-40s  %s %s %s\n",
			highlightStyle.Render(sha),
			subject,
			dimStyle.Render(r.Old.Format("2006-01-02 15:04")),
			dimStyle.Render("→"),
			r.New.Format("2006-01-02 15:04"),
		)
	}
	return b.String()
}
