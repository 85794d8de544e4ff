package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"
)

// Event represents a parsed calendar event.
type Event struct {
	Summary   string
	StartTime time.Time
	EndTime   time.Time
}

// Load retrieves and parses iCalendar events from a URL or file path,
// returning events that overlap with the given day window.
func Load(ctx context.Context, source string, windowStart, windowEnd time.Time) ([]Event, error) {
	var r io.ReadCloser

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening calendar file: %w", err)
		}
		r = f
	}
	defer r.Close()

	return decode(r, windowStart, windowEnd)
}

func decode(r io.Reader, windowStart, windowEnd time.Time) ([]Event, error) {
	dec := ical.NewDecoder(r)
	var events []Event

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}

		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			event := ical.Event{Component: component}

			start, err := event.DateTimeStart(nil)
			if err != nil {
				continue // skip malformed events
			}
			end, err := event.DateTimeEnd(nil)
			if err != nil {
				continue
			}

			if start.Before(windowEnd) && end.After(windowStart) {
				summary, _ := event.Props.Text(ical.PropSummary)
				events = append(events, Event{
					Summary:   summary,
					StartTime: start,
					EndTime:   end,
				})
			}
		}
	}

	return events, nil
}

// BusyDates returns the set of calendar dates (YYYY-MM-DD, local time)
// touched by any event, including every day a multi-day event spans.
func BusyDates(events []Event) map[string]bool {
	busy := make(map[string]bool)
	for _, e := range events {
		// Step from midnight so an event crossing midnight marks both days.
		for d := midnight(e.StartTime.Local()); d.Before(e.EndTime); d = d.AddDate(0, 0, 1) {
			busy[d.Format("2006-01-02")] = true
		}
	}
	return busy
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Exclude drops the days whose date appears in busy, preserving order.
func Exclude(days []time.Time, busy map[string]bool) []time.Time {
	var kept []time.Time
	for _, d := range days {
		if busy[d.Format("2006-01-02")] {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}
