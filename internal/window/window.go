package window

import (
	"fmt"
	"strings"
	"time"

	naturaldate "github.com/tj/go-naturaldate"
)

// RangeSep separates the start and end tokens of a window spec,
// mirroring git's revision-range syntax.
const RangeSep = ".."

// Policy is the inclusive clock-hour sub-range eligible for generated
// timestamps, plus whether weekend days are pruned from the window.
type Policy struct {
	Name         string
	MinHour      int
	MaxHour      int
	WeekdaysOnly bool
}

func Unrestricted() Policy {
	return Policy{Name: "unrestricted", MinHour: 0, MaxHour: 23}
}

func Business() Policy {
	return Policy{Name: "business", MinHour: 9, MaxHour: 17, WeekdaysOnly: true}
}

func AfterHours() Policy {
	return Policy{Name: "after-hours", MinHour: 18, MaxHour: 23}
}

// FromName maps a config value to its preset. Unknown names fall back to
// unrestricted so a hand-edited config never blocks a run.
func FromName(name string) Policy {
	switch name {
	case "business":
		return Business()
	case "after-hours":
		return AfterHours()
	default:
		return Unrestricted()
	}
}

// FromFlags resolves the active policy from the two CLI switches.
// Selecting both is a configuration error.
func FromFlags(business, afterHours bool, fallback Policy) (Policy, error) {
	if business && afterHours {
		return Policy{}, fmt.Errorf("--business-hours and --after-hours are mutually exclusive")
	}
	if business {
		return Business(), nil
	}
	if afterHours {
		return AfterHours(), nil
	}
	return fallback, nil
}

// ParseError reports a window token that is neither a literal YYYY-MM-DD
// date nor a resolvable natural-language expression.
type ParseError struct {
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot interpret date %q: %v", e.Token, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyWindowError reports a resolved window with no usable days.
type EmptyWindowError struct {
	Start time.Time
	End   time.Time
}

func (e *EmptyWindowError) Error() string {
	return fmt.Sprintf("window %s%s%s contains no usable days",
		e.Start.Format("2006-01-02"), RangeSep, e.End.Format("2006-01-02"))
}

// Resolve turns a window spec into the inclusive ordered day sequence the
// scheduler distributes commits over. The spec is either a single dateish
// token or two separated by "..": each token is a literal YYYY-MM-DD date
// or a relative expression like "3 days ago" or "last friday", resolved
// against now. A single token yields a one-day window. The business policy
// keeps weekdays only.
func Resolve(spec string, policy Policy, now time.Time) ([]time.Time, error) {
	startTok, endTok, isRange := strings.Cut(spec, RangeSep)
	if !isRange {
		endTok = startTok
	}

	start, err := resolveToken(startTok, now)
	if err != nil {
		return nil, err
	}
	end, err := resolveToken(endTok, now)
	if err != nil {
		return nil, err
	}

	if end.Before(start) {
		return nil, &EmptyWindowError{Start: start, End: end}
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if policy.WeekdaysOnly && isWeekend(d) {
			continue
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil, &EmptyWindowError{Start: start, End: end}
	}

	return days, nil
}

// resolveToken parses a single dateish token to midnight of its calendar
// day in now's location. Literal dates are tried first; anything else goes
// through the natural-language parser anchored in the past.
func resolveToken(token string, now time.Time) (time.Time, error) {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return time.Time{}, &ParseError{Token: token, Err: fmt.Errorf("empty date")}
	}

	if t, err := time.ParseInLocation("2006-01-02", tok, now.Location()); err == nil {
		return t, nil
	}

	t, err := naturaldate.Parse(tok, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, &ParseError{Token: tok, Err: err}
	}
	return midnight(t), nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
