// Package daterange turns the dashboard's range selector keys into absolute time bounds.
package daterange

import "time"

// Key selects a reporting window relative to "now"
type Key string

// Supported range keys. Anything else resolves like All.
const (
	Today      Key = "today"
	Yesterday  Key = "yesterday"
	Last7Days  Key = "7d"
	Last30Days Key = "30d"
	Month      Key = "month"
	All        Key = "all"
)

// Keys lists the supported selectors in display order
var Keys = []Key{Today, Yesterday, Last7Days, Last30Days, Month, All}

// Bounds is a half-open window [Since, Until). A nil bound is unbounded.
type Bounds struct {
	Since *time.Time `json:"since"`
	Until *time.Time `json:"until"`
}

// Valid reports whether k is one of the supported selectors
func (k Key) Valid() bool {
	for _, known := range Keys {
		if k == known {
			return true
		}
	}
	return false
}

// Resolve computes the bounds for key at instant now. Calendar boundaries
// (midnight, first of month) are taken in now's location. Unknown keys are
// not an error; they fall back to the unbounded "all" window.
func Resolve(key Key, now time.Time) Bounds {
	switch key {
	case Today:
		start := startOfDay(now)
		return Bounds{Since: &start, Until: &now}
	case Yesterday:
		startToday := startOfDay(now)
		startYesterday := startOfDay(startToday.AddDate(0, 0, -1))
		return Bounds{Since: &startYesterday, Until: &startToday}
	case Last7Days:
		since := now.Add(-7 * 24 * time.Hour)
		return Bounds{Since: &since}
	case Last30Days:
		since := now.Add(-30 * 24 * time.Hour)
		return Bounds{Since: &since}
	case Month:
		since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Bounds{Since: &since}
	default:
		return Bounds{}
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
