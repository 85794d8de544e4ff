package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenPath(filepath.Join(t.TempDir(), "retime.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndListRuns(t *testing.T) {
	db := openTestDB(t)

	run := Run{
		RepoPath:    "/home/user/project",
		RangeSpec:   "HEAD~3..HEAD",
		WindowSpec:  "2023-07-10..2023-07-14",
		Policy:      "business",
		CommitCount: 3,
	}
	old := time.Date(2023, time.August, 1, 12, 0, 0, 0, time.UTC)
	rewrites := []RunRewrite{
		{SHA: "aaa", Subject: "first", OldDate: old, NewDate: old.AddDate(0, 0, -20)},
		{SHA: "bbb", Subject: "second", OldDate: old, NewDate: old.AddDate(0, 0, -19)},
		{SHA: "ccc", Subject: "third", OldDate: old, NewDate: old.AddDate(0, 0, -18)},
	}

	runID, err := db.InsertRun(&run, rewrites)
	if err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if runID == 0 {
		t.Fatal("InsertRun returned zero id")
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.RangeSpec != run.RangeSpec || got.WindowSpec != run.WindowSpec || got.Policy != run.Policy {
		t.Errorf("run = %+v", got)
	}
	if got.CommitCount != 3 {
		t.Errorf("CommitCount = %d, want 3", got.CommitCount)
	}

	stored, err := db.Rewrites(got.ID)
	if err != nil {
		t.Fatalf("Rewrites failed: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("got %d rewrites, want 3", len(stored))
	}
	if stored[0].SHA != "aaa" || stored[2].SHA != "ccc" {
		t.Errorf("rewrites out of order: %+v", stored)
	}
	if !stored[1].NewDate.Equal(old.AddDate(0, 0, -19)) {
		t.Errorf("NewDate = %s", stored[1].NewDate)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	for i, spec := range []string{"a..b", "b..c"} {
		run := Run{RepoPath: ".", RangeSpec: spec, WindowSpec: "yesterday", Policy: "unrestricted", CommitCount: i + 1}
		if _, err := db.InsertRun(&run, nil); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	runs, err := db.ListRuns(1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].RangeSpec != "b..c" {
		t.Errorf("got %+v, want most recent run b..c", runs)
	}
}
