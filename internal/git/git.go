// Package git shells out to the git binary for range resolution and
// history rewriting. retime only ever talks to the local repository.
package git

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Commit is one commit in the range being retimed, oldest first.
type Commit struct {
	SHA     string
	Subject string
	When    time.Time // original author date
}

// Rewrite maps a commit to the timestamp it should receive.
type Rewrite struct {
	SHA  string
	When time.Time
}

// Repo runs git commands against a single working directory.
type Repo struct {
	dir    string
	logger *slog.Logger
}

// Open verifies dir is inside a git repository.
func Open(ctx context.Context, dir string, logger *slog.Logger) (*Repo, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Repo{dir: dir, logger: logger}
	if _, err := r.run(ctx, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("%s is not a git repository: %w", dir, err)
	}
	return r, nil
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err := cmd.Run()
	elapsed := time.Since(startTime)

	r.logger.Debug("git finished",
		"args", args,
		"elapsed", elapsed,
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
		"error", err,
	)

	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %s timed out after %s", args[0], elapsed.Truncate(time.Second))
		}
		return "", fmt.Errorf("git %s: %w (stderr: %s)", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Dirty reports whether the working tree has uncommitted changes.
// filter-branch refuses to run over a dirty tree, so apply checks first.
func (r *Repo) Dirty(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("checking working tree: %w", err)
	}
	return out != "", nil
}

// ResolveRange expands a revision spec to the ordered commits it covers,
// oldest first. "base..tip" covers the commits reachable from tip but not
// base, after validating base is an ancestor of tip; a single rev covers
// just that commit.
func (r *Repo) ResolveRange(ctx context.Context, spec string) ([]Commit, error) {
	const format = "--format=%H%x09%at%x09%s"

	base, tip, isRange := strings.Cut(spec, "..")
	if !isRange {
		sha, err := r.run(ctx, "rev-parse", "--verify", spec+"^{commit}")
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", spec, err)
		}
		out, err := r.run(ctx, "log", "-1", format, sha)
		if err != nil {
			return nil, fmt.Errorf("reading commit %s: %w", sha, err)
		}
		return parseCommits(out)
	}

	baseSHA, err := r.run(ctx, "rev-parse", "--verify", base+"^{commit}")
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", base, err)
	}
	tipSHA, err := r.run(ctx, "rev-parse", "--verify", tip+"^{commit}")
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", tip, err)
	}
	if _, err := r.run(ctx, "merge-base", "--is-ancestor", baseSHA, tipSHA); err != nil {
		return nil, fmt.Errorf("%s is not an ancestor of %s", base, tip)
	}

	out, err := r.run(ctx, "log", "--reverse", format, baseSHA+".."+tipSHA)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", spec, err)
	}
	commits, err := parseCommits(out)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, fmt.Errorf("range %s contains no commits", spec)
	}
	return commits, nil
}

func parseCommits(out string) ([]Commit, error) {
	if out == "" {
		return nil, nil
	}
	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("unexpected git log line: %q", line)
		}
		unix, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing author date in %q: %w", line, err)
		}
		commits = append(commits, Commit{
			SHA:     parts[0],
			Subject: parts[2],
			When:    time.Unix(unix, 0),
		})
	}
	return commits, nil
}

// Apply rewrites every listed commit's author and committer dates in one
// filter-branch pass. The rewrite spans from the oldest listed commit
// through HEAD so descendants are rewritten too.
func (r *Repo) Apply(ctx context.Context, rewrites []Rewrite) error {
	if len(rewrites) == 0 {
		return nil
	}

	rangeArg := rewrites[0].SHA + "^..HEAD"
	if _, err := r.run(ctx, "rev-parse", "--verify", rewrites[0].SHA+"^"); err != nil {
		// Oldest commit is the root; rewrite all of HEAD's history.
		rangeArg = "HEAD"
	}

	r.logger.Debug("rewriting history", "commits", len(rewrites), "range", rangeArg)

	_, err := r.run(ctx, "filter-branch", "-f", "--env-filter", EnvFilter(rewrites), "--", rangeArg)
	if err != nil {
		return fmt.Errorf("rewriting history: %w", err)
	}
	return nil
}

// EnvFilter renders the shell script filter-branch evaluates per commit:
// a case table over $GIT_COMMIT exporting the new dates. Commits outside
// the table fall through untouched.
func EnvFilter(rewrites []Rewrite) string {
	var b strings.Builder
	b.WriteString("case \"$GIT_COMMIT\" in\n")
	for _, rw := range rewrites {
		stamp := rw.When.Format("2006-01-02T15:04:05-07:00")
		fmt.Fprintf(&b, "%s)\n", rw.SHA)
		fmt.Fprintf(&b, "    export GIT_AUTHOR_DATE=%q\n", stamp)
		fmt.Fprintf(&b, "    export GIT_COMMITTER_DATE=%q\n", stamp)
		b.WriteString("    ;;\n")
	}
	b.WriteString("esac\n")
	return b.String()
}
