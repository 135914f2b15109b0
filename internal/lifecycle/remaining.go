package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/atinyakov/chronos/internal/models"
)

const (
	msPerMinute = int64(60 * 1000)
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// NextUnlock returns the capsule with the earliest unlock time still in the
// future. The boolean is false when every capsule has already unlocked or
// the snapshot is empty. Ties are broken by ID.
func NextUnlock(capsules []models.Capsule, now time.Time) (models.Capsule, bool) {
	ms := now.UnixMilli()
	pending := make([]models.Capsule, 0, len(capsules))
	for _, c := range capsules {
		if c.UnlockAt > ms {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return models.Capsule{}, false
	}
	sortByUnlock(pending)
	return pending[0], true
}

// TimeRemaining is the countdown until an unlock time.
type TimeRemaining struct {
	Ready   bool
	Days    int64
	Hours   int64
	Minutes int64
	Diff    time.Duration
}

// String renders the countdown as "Ready" or "Nd Nh Nm".
func (r TimeRemaining) String() string {
	if r.Ready {
		return "Ready"
	}
	return fmt.Sprintf("%dd %dh %dm", r.Days, r.Hours, r.Minutes)
}

// Remaining breaks the time until unlockAt (milliseconds) into whole days,
// hours and minutes using fixed 24h days.
func Remaining(unlockAt int64, now time.Time) TimeRemaining {
	diff := unlockAt - now.UnixMilli()
	if diff <= 0 {
		return TimeRemaining{Ready: true}
	}
	return TimeRemaining{
		Days:    diff / msPerDay,
		Hours:   (diff % msPerDay) / msPerHour,
		Minutes: (diff % msPerHour) / msPerMinute,
		Diff:    time.Duration(diff) * time.Millisecond,
	}
}

// Progress is the percentage of the sealing period that has elapsed,
// clamped to [0, 100]. A capsule whose unlock time is not after its
// creation time is reported as fully elapsed.
func Progress(c models.Capsule, now time.Time) float64 {
	span := c.UnlockAt - c.CreatedAt
	if span <= 0 {
		return 100
	}
	p := float64(now.UnixMilli()-c.CreatedAt) / float64(span) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func sortByUnlock(cs []models.Capsule) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].UnlockAt != cs[j].UnlockAt {
			return cs[i].UnlockAt < cs[j].UnlockAt
		}
		return cs[i].ID < cs[j].ID
	})
}
