package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/christopherklint97/retime/internal/calendar"
	"github.com/christopherklint97/retime/internal/config"
	"github.com/christopherklint97/retime/internal/git"
	"github.com/christopherklint97/retime/internal/notify"
	"github.com/christopherklint97/retime/internal/schedule"
	"github.com/christopherklint97/retime/internal/store"
	"github.com/christopherklint97/retime/internal/tui"
	"github.com/christopherklint97/retime/internal/window"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "retime",
	Short: "Backdate git commits into a target date window",
	Long:  "retime rewrites a contiguous range of commits to synthetic timestamps spread plausibly across a date window, preserving commit order.",
}

var planCmd = &cobra.Command{
	Use:   "plan <commits> <window>",
	Short: "Show the timestamps a rewrite would assign, without rewriting",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlan,
}

var applyCmd = &cobra.Command{
	Use:   "apply <commits> <window>",
	Short: "Rewrite the commit range onto the window",
	Args:  cobra.ExactArgs(2),
	RunE:  runApply,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past rewrites",
	RunE:  runHistory,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("repo", ".", "Path to the git repository")

	for _, cmd := range []*cobra.Command{planCmd, applyCmd} {
		cmd.Flags().Bool("business-hours", false, "Weekdays 9:00-17:59 only")
		cmd.Flags().Bool("after-hours", false, "Every day, 18:00-23:59 only")
		cmd.Flags().Int64("seed", 0, "Seed for the random draws (0 seeds from the clock)")
		cmd.Flags().Bool("avoid-calendar", false, "Skip days with events in the configured calendar")
	}
	applyCmd.Flags().Bool("yes", false, "Rewrite without the interactive review")
	historyCmd.Flags().Int("limit", 20, "Number of runs to show")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// plan bundles everything a rewrite needs: the resolved commits, the
// resolved day window and the timestamps drawn for them.
type plan struct {
	repo    *git.Repo
	commits []git.Commit
	days    []time.Time
	policy  window.Policy
	stamps  []time.Time
}

func buildPlan(ctx context.Context, cmd *cobra.Command, rangeSpec, windowSpec string) (*plan, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	business, _ := cmd.Flags().GetBool("business-hours")
	afterHours, _ := cmd.Flags().GetBool("after-hours")
	policy, err := window.FromFlags(business, afterHours, window.FromName(cfg.Policy.Default))
	if err != nil {
		return nil, err
	}

	repoPath, _ := cmd.Flags().GetString("repo")
	repo, err := git.Open(ctx, repoPath, newLogger(cmd))
	if err != nil {
		return nil, err
	}

	commits, err := repo.ResolveRange(ctx, rangeSpec)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	days, err := window.Resolve(windowSpec, policy, now)
	if err != nil {
		return nil, err
	}

	if avoid, _ := cmd.Flags().GetBool("avoid-calendar"); avoid {
		days, err = excludeBusyDays(ctx, cfg, days)
		if err != nil {
			return nil, err
		}
	}

	opts := schedule.Options{Now: func() time.Time { return now }}
	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		opts.Rand = rand.New(rand.NewSource(seed))
	}

	stamps, err := schedule.Timestamps(len(commits), days, policy, opts)
	if err != nil {
		return nil, err
	}

	return &plan{
		repo:    repo,
		commits: commits,
		days:    days,
		policy:  policy,
		stamps:  stamps,
	}, nil
}

func excludeBusyDays(ctx context.Context, cfg *config.Config, days []time.Time) ([]time.Time, error) {
	if cfg.Calendar.Source == "" {
		return nil, fmt.Errorf("--avoid-calendar requires a calendar source — run 'retime config' to set one")
	}

	start := days[0]
	end := days[len(days)-1].AddDate(0, 0, 1)
	events, err := calendar.Load(ctx, cfg.Calendar.Source, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading calendar: %w", err)
	}

	kept := calendar.Exclude(days, calendar.BusyDates(events))
	if len(kept) == 0 {
		return nil, &window.EmptyWindowError{Start: start, End: days[len(days)-1]}
	}
	return kept, nil
}

func planRows(p *plan) []tui.PlanRow {
	rows := make([]tui.PlanRow, len(p.commits))
	for i, c := range p.commits {
		rows[i] = tui.PlanRow{
			SHA:     c.SHA,
			Subject: c.Subject,
			Old:     c.When,
			New:     p.stamps[i],
		}
	}
	return rows
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := buildPlan(ctx, cmd, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("Plan: %d commits over %d days (%s, %02d:00-%02d:59)\n\n",
		len(p.commits), len(p.days), p.policy.Name, p.policy.MinHour, p.policy.MaxHour)
	fmt.Print(tui.RenderPlan(planRows(p)))
	fmt.Println("\nRun 'retime apply' with the same arguments to rewrite.")

	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := buildPlan(ctx, cmd, args[0], args[1])
	if err != nil {
		return err
	}

	dirty, err := p.repo.Dirty(ctx)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("working tree has uncommitted changes — commit or stash them first")
	}

	rewrites := make([]git.Rewrite, len(p.commits))
	for i, c := range p.commits {
		rewrites[i] = git.Rewrite{SHA: c.SHA, When: p.stamps[i]}
	}
	doApply := func() error {
		return p.repo.Apply(ctx, rewrites)
	}

	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		fmt.Print(tui.RenderPlan(planRows(p)))
		if err := doApply(); err != nil {
			return err
		}
	} else {
		app := tui.NewApp(planRows(p), doApply)
		prog := tea.NewProgram(app)
		if _, err := prog.Run(); err != nil {
			return fmt.Errorf("running TUI: %w", err)
		}

		result := app.GetResult()
		if result == nil || !result.Confirmed {
			fmt.Println("Rewrite aborted.")
			return nil
		}
		if result.Err != nil {
			return result.Err
		}
	}

	recordRun(cmd, p, args[0], args[1])

	fmt.Printf("Rewrote %d commits onto %d days.\n", len(p.commits), len(p.days))
	return nil
}

// recordRun journals the rewrite and notifies. Neither failure undoes a
// rewrite that already happened, so both are warnings.
func recordRun(cmd *cobra.Command, p *plan, rangeSpec, windowSpec string) {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}

	db, err := store.Open()
	if err != nil {
		fmt.Printf("Warning: could not open run journal: %v\n", err)
	} else {
		defer db.Close()

		repoPath, _ := cmd.Flags().GetString("repo")
		run := store.Run{
			RepoPath:    repoPath,
			RangeSpec:   rangeSpec,
			WindowSpec:  windowSpec,
			Policy:      p.policy.Name,
			CommitCount: len(p.commits),
		}
		rewrites := make([]store.RunRewrite, len(p.commits))
		for i, c := range p.commits {
			rewrites[i] = store.RunRewrite{
				SHA:     c.SHA,
				Subject: c.Subject,
				OldDate: c.When,
				NewDate: p.stamps[i],
			}
		}
		if _, err := db.InsertRun(&run, rewrites); err != nil {
			fmt.Printf("Warning: could not journal run: %v\n", err)
		}
	}

	if cfg.Notifications.Enabled {
		msg := fmt.Sprintf("Rewrote %d commits onto %d days", len(p.commits), len(p.days))
		if err := notify.Send("retime", msg); err != nil {
			fmt.Printf("Warning: could not send notification: %v\n", err)
		}
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening run journal: %w", err)
	}
	defer db.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := db.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("fetching runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No rewrites recorded.")
		return nil
	}

	fmt.Println("Past rewrites:")
	fmt.Println()
	for _, r := range runs {
		fmt.Printf("  %s  %-20s  %s -> %s  %d commits  [%s]\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.RepoPath,
			r.RangeSpec,
			r.WindowSpec,
			r.CommitCount,
			r.Policy,
		)
	}

	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Create default config file
		cfg := config.DefaultConfig()
		data := fmt.Sprintf(`[policy]
default = "%s"

[calendar]
enabled = %t
source = "%s"

[notifications]
enabled = %t
`,
			cfg.Policy.Default,
			cfg.Calendar.Enabled,
			cfg.Calendar.Source,
			cfg.Notifications.Enabled,
		)
		if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	// EDITOR is usually a bare command name; StartProcess needs the full path.
	editorPath, err := exec.LookPath(editor)
	if err != nil {
		fmt.Printf("Could not find editor %q. Config file is at: %s\n", editor, configPath)
		return nil
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editorPath, []string{editor, configPath}, &proc)
	if err != nil {
		// If editor fails, just print the path
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}
