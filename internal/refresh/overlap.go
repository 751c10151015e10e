package refresh

import (
	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
	"github.com/a-ostretsova/killbill-analytics-plugin/internal/notification"
)

// Overlaps reports whether an already-scheduled job makes the candidate
// redundant: same account, and either the same group or an existing catch-all
// refresh that subsumes any narrower one. The predicate is deliberately
// one-directional: an existing narrow job does not absorb an incoming ALL
// job, so a full refresh is never silently dropped in favor of a partial one.
func Overlaps(candidate, existing core.Job) bool {
	if existing.AccountID != candidate.AccountID {
		return false
	}
	existingGroup := GroupFor(existing)
	return existingGroup == GroupFor(candidate) || existingGroup == GroupAll
}

// overlapping returns the scheduled notifications whose job overlaps the
// candidate. The input slice is always scanned in full.
func overlapping(candidate core.Job, scheduled []notification.Notification) []notification.Notification {
	var out []notification.Notification
	for _, n := range scheduled {
		if Overlaps(candidate, n.Job) {
			out = append(out, n)
		}
	}
	return out
}
