package git

import (
	"strings"
	"testing"
	"time"
)

func TestEnvFilter(t *testing.T) {
	rewrites := []Rewrite{
		{SHA: "aaaa111", When: time.Date(2023, time.July, 10, 9, 30, 0, 0, time.UTC)},
		{SHA: "bbbb222", When: time.Date(2023, time.July, 11, 14, 5, 59, 0, time.UTC)},
	}

	script := EnvFilter(rewrites)

	if !strings.HasPrefix(script, "case \"$GIT_COMMIT\" in\n") {
		t.Errorf("script missing case header:\n%s", script)
	}
	if !strings.HasSuffix(script, "esac\n") {
		t.Errorf("script missing esac terminator:\n%s", script)
	}
	for _, want := range []string{
		"aaaa111)",
		`export GIT_AUTHOR_DATE="2023-07-10T09:30:00+00:00"`,
		`export GIT_COMMITTER_DATE="2023-07-10T09:30:00+00:00"`,
		"bbbb222)",
		`export GIT_AUTHOR_DATE="2023-07-11T14:05:59+00:00"`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
	if got := strings.Count(script, ";;"); got != 2 {
		t.Errorf("script has %d case arms, want 2:\n%s", got, script)
	}
}

func TestParseCommits(t *testing.T) {
	out := "abc123\t1688979600\tfix login redirect\n" +
		"def456\t1689066000\tadd rate limiting\tweird\ttabs"

	commits, err := parseCommits(out)
	if err != nil {
		t.Fatalf("parseCommits failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}

	if commits[0].SHA != "abc123" {
		t.Errorf("SHA = %q", commits[0].SHA)
	}
	if commits[0].Subject != "fix login redirect" {
		t.Errorf("Subject = %q", commits[0].Subject)
	}
	if got := commits[0].When.Unix(); got != 1688979600 {
		t.Errorf("When = %d, want 1688979600", got)
	}

	// Tabs inside the subject stay in the subject.
	if commits[1].Subject != "add rate limiting\tweird\ttabs" {
		t.Errorf("Subject = %q", commits[1].Subject)
	}
}

func TestParseCommitsEmpty(t *testing.T) {
	commits, err := parseCommits("")
	if err != nil {
		t.Fatalf("parseCommits failed: %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("got %d commits, want 0", len(commits))
	}
}

func TestParseCommitsMalformed(t *testing.T) {
	if _, err := parseCommits("not a log line"); err == nil {
		t.Error("want error for line without tabs")
	}
	if _, err := parseCommits("abc\tnotaunixtime\tsubject"); err == nil {
		t.Error("want error for unparseable author date")
	}
}
