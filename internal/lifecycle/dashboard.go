package lifecycle

import (
	"time"

	"github.com/atinyakov/chronos/internal/models"
)

// Dashboard aggregates the counters and the next-unlock countdown shown on
// the landing view.
type Dashboard struct {
	Total     int
	Locked    int
	Unlocked  int
	Next      *models.Capsule
	Remaining TimeRemaining
	Progress  float64
}

// Summarize computes the dashboard for a snapshot at now.
func Summarize(capsules []models.Capsule, now time.Time) Dashboard {
	d := Dashboard{Total: len(capsules)}
	for _, c := range capsules {
		if IsLocked(c, now) {
			d.Locked++
		} else {
			d.Unlocked++
		}
	}
	if next, ok := NextUnlock(capsules, now); ok {
		d.Next = &next
		d.Remaining = Remaining(next.UnlockAt, now)
		d.Progress = Progress(next, now)
	}
	return d
}
