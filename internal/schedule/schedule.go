// Package schedule assigns synthetic timestamps to an ordered range of
// commits, spreading them across a day window while keeping the sequence
// monotonic and never ahead of the wall clock.
package schedule

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/christopherklint97/retime/internal/window"
)

// Options injects the wall clock and the random source so runs are
// reproducible under a fixed seed and clock. Zero values get production
// defaults.
type Options struct {
	Now  func() time.Time
	Rand *rand.Rand
}

// InvalidRangeError reports a commit or day count the scheduler cannot
// distribute over.
type InvalidRangeError struct {
	Commits int
	Days    int
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("cannot schedule %d commits over %d days", e.Commits, e.Days)
}

// Timestamps produces one timestamp per commit slot, oldest first.
//
// Each slot picks its day proportionally to its position in the sequence
// (round-half-away-from-zero, so the last slot always anchors on the last
// day), then draws a uniform random second within the policy's hour window
// on that day. Consecutive slots landing on the same day have their hour
// window's upper bound walked forward so same-day commits trend later
// instead of piling up. Two bounds always hold: no timestamp precedes the
// previous slot's, and none is after now. When those bounds squeeze a
// slot's interval shut, the slot gets the interval's surviving endpoint
// instead of a draw.
func Timestamps(commitCount int, days []time.Time, policy window.Policy, opts Options) ([]time.Time, error) {
	if commitCount < 1 || len(days) < 1 {
		return nil, &InvalidRangeError{Commits: commitCount, Days: len(days)}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	// The clock is read once so a run is a pure function of its inputs.
	now := opts.Now().Truncate(time.Second)

	n := commitCount
	d := len(days)
	commitsPerDay := (n + d - 1) / d

	stamps := make([]time.Time, 0, n)
	var last time.Time
	prevIdx := -1
	dayProgress := 0

	for i := 0; i < n; i++ {
		progress := float64(i+1) / float64(n)
		dateIdx := int(math.Round(progress * float64(d-1)))
		if dateIdx < 0 {
			dateIdx = 0
		}
		if dateIdx > d-1 {
			dateIdx = d - 1
		}

		if dateIdx != prevIdx {
			dayProgress = 0
		} else {
			dayProgress++
		}
		prevIdx = dateIdx
		day := days[dateIdx]

		// commitsPerDay is a global average, not a per-day count; when
		// rounding routes more commits than that onto one day the narrowed
		// sub-windows may overlap, which only weakens the spread.
		maxHour := policy.MaxHour
		if commitsPerDay > 1 {
			maxHour = policy.MinHour + (policy.MaxHour-policy.MinHour)*dayProgress/commitsPerDay
		}

		lower := at(day, policy.MinHour, 0, 0)
		if !last.IsZero() && last.After(lower) {
			lower = last
		}
		upper := at(day, maxHour, 59, 59)
		if now.Before(upper) {
			upper = now
		}

		var ts time.Time
		if upper.Before(lower) {
			// Degenerate interval: the day's window sits entirely before
			// the previous timestamp or after the clock. Take the lower
			// bound, capped at now, so both invariants survive.
			ts = lower
			if now.Before(ts) {
				ts = now
			}
		} else {
			span := int64(upper.Sub(lower) / time.Second)
			ts = lower.Add(time.Duration(opts.Rand.Int63n(span+1)) * time.Second)
		}

		stamps = append(stamps, ts)
		last = ts
	}

	return stamps, nil
}

func at(day time.Time, hour, min, sec int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, sec, 0, day.Location())
}
