package tui

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func testRows() []PlanRow {
	old := time.Date(2023, time.August, 1, 12, 0, 0, 0, time.UTC)
	return []PlanRow{
		{SHA: "abc1234def", Subject: "first", Old: old, New: old.AddDate(0, 0, -20)},
		{SHA: "def5678abc", Subject: "second", Old: old, New: old.AddDate(0, 0, -19)},
	}
}

func key(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestReviewAbortFromPreview(t *testing.T) {
	app := NewApp(testRows(), func() error { return nil })

	model, _ := app.Update(key("n"))
	a := model.(*App)

	result := a.GetResult()
	if result == nil || result.Confirmed {
		t.Fatalf("result = %+v, want unconfirmed abort", result)
	}
}

func TestReviewConfirmRunsApply(t *testing.T) {
	app := NewApp(testRows(), func() error { return nil })

	model, cmd := app.Update(key("y"))
	a := model.(*App)
	if a.state != applyingView {
		t.Fatalf("state = %d, want applyingView", a.state)
	}
	if cmd == nil {
		t.Fatal("confirm returned no command")
	}

	model, _ = a.Update(applyDoneMsg{err: nil})
	a = model.(*App)
	result := a.GetResult()
	if result == nil || !result.Confirmed || result.Err != nil {
		t.Errorf("result = %+v, want confirmed success", result)
	}
}

func TestReviewIgnoresCtrlCWhileApplying(t *testing.T) {
	app := NewApp(testRows(), func() error { return nil })

	model, _ := app.Update(key("y"))
	a := model.(*App)

	// The rewrite is in flight; interrupting must not report an abort.
	model, _ = a.Update(key("ctrl+c"))
	a = model.(*App)
	if a.GetResult() != nil {
		t.Fatalf("ctrl+c while applying produced result %+v", a.GetResult())
	}
	if a.state != applyingView {
		t.Fatalf("state = %d, want still applyingView", a.state)
	}

	model, _ = a.Update(applyDoneMsg{err: nil})
	a = model.(*App)
	result := a.GetResult()
	if result == nil || !result.Confirmed {
		t.Errorf("result = %+v, want confirmed once apply finishes", result)
	}
}

func TestReviewReportsApplyError(t *testing.T) {
	app := NewApp(testRows(), func() error { return nil })

	model, _ := app.Update(key("y"))
	a := model.(*App)

	model, _ = a.Update(applyDoneMsg{err: fmt.Errorf("filter-branch exploded")})
	a = model.(*App)
	result := a.GetResult()
	if result == nil || !result.Confirmed || result.Err == nil {
		t.Fatalf("result = %+v, want confirmed with error", result)
	}
	if a.errMsg == "" {
		t.Error("error message not surfaced to the final view")
	}
}
