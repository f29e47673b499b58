package journal

import (
	"time"

	"github.com/and161185/reflekt/internal/model"
)

// DateGroup is a relative-recency cohort.
type DateGroup string

// Recency cohorts, newest first.
const (
	Today          DateGroup = "Today"
	Yesterday      DateGroup = "Yesterday"
	Previous30Days DateGroup = "Previous 30 Days"
	Older          DateGroup = "Older"
)

// SidebarGroups are the cohorts rendered in the sidebar, in display order.
var SidebarGroups = []DateGroup{Today, Yesterday, Previous30Days}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// GroupOf classifies created relative to now. Calendar days are taken in now's location.
func GroupOf(created, now time.Time) DateGroup {
	created = created.In(now.Location())
	today := StartOfDay(now)
	switch {
	case sameDay(created, today):
		return Today
	case sameDay(created, today.AddDate(0, 0, -1)):
		return Yesterday
	case created.After(today.AddDate(0, 0, -30)):
		return Previous30Days
	default:
		return Older
	}
}

// GroupEntries buckets entries by GroupOf, keeping input order inside each bucket.
// Entries without a creation time are dropped.
func GroupEntries(entries []model.Entry, now time.Time) map[DateGroup][]model.Entry {
	groups := map[DateGroup][]model.Entry{
		Today:          {},
		Yesterday:      {},
		Previous30Days: {},
		Older:          {},
	}
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			continue
		}
		g := GroupOf(e.CreatedAt, now)
		groups[g] = append(groups[g], e)
	}
	return groups
}
