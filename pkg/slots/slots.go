// Package slots holds the appointment-availability semantics shared by the
// in-page interception hook and the Go side of the watcher: the schedule-day
// payload shape, the user's date-range preference, and the inclusive
// date-range filter that decides whether a payload should trigger a
// notification.
package slots

import (
	"encoding/json"
	"fmt"
	"time"
)

// dateLayout is the wire format of both schedule-day dates and preference
// bounds.
const dateLayout = "2006-01-02"

// Day is one appointment day surfaced by the scheduling API. The payload
// carries more fields per day; only the date participates in filtering.
type Day struct {
	Date string `json:"Date"`
}

// Preference is the user's slot date-range preference. Empty strings mean
// "no filtering": any non-empty schedule-day list counts as availability.
// It is loaded once before the watcher starts and immutable for the run.
type Preference struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Filtering reports whether the preference restricts the date range.
// Both bounds must be set, matching the hook's in-page behavior.
func (p Preference) Filtering() bool {
	return p.StartDate != "" && p.EndDate != ""
}

// Validate checks that any set bound is a well-formed YYYY-MM-DD date.
func (p Preference) Validate() error {
	for _, d := range []string{p.StartDate, p.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d); err != nil {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", d, err)
		}
	}
	return nil
}

// Filter returns the days whose date falls within the preference's
// inclusive range [start 00:00:00, end 23:59:59]. Days with unparseable
// dates are excluded so uncertain data never produces a match. When the
// preference is not filtering, the input is returned unchanged.
func Filter(days []Day, p Preference) []Day {
	if !p.Filtering() {
		return days
	}

	start, err := time.Parse(dateLayout, p.StartDate)
	if err != nil {
		return nil
	}
	end, err := time.Parse(dateLayout, p.EndDate)
	if err != nil {
		return nil
	}
	// Dates are date-only, so inclusive end-of-day is the end date itself.
	var matched []Day
	for _, day := range days {
		d, err := time.Parse(dateLayout, day.Date)
		if err != nil {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		matched = append(matched, day)
	}
	return matched
}

// payload is the shape of the appointment-days API response body.
type payload struct {
	ScheduleDays []Day `json:"ScheduleDays"`
}

// ParseBody extracts the schedule-day list from a raw response body.
// Malformed bodies yield an error; callers treat that as no availability.
func ParseBody(body []byte) ([]Day, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("malformed schedule payload: %w", err)
	}
	return p.ScheduleDays, nil
}

// Decide reports whether a raw appointment-days response body signals
// availability under the given preference. Malformed or unparseable
// bodies are never availability (fail safe).
func Decide(body []byte, p Preference) bool {
	days, err := ParseBody(body)
	if err != nil {
		return false
	}
	return len(Filter(days, p)) > 0
}
