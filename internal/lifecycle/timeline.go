package lifecycle

import (
	"sort"
	"time"

	"github.com/atinyakov/chronos/internal/models"
)

// YearGroup holds the capsules unlocking in one calendar year.
type YearGroup struct {
	Year     int
	Capsules []models.Capsule
}

// Timeline partitions capsules by the calendar year of their unlock time in
// loc. Years ascend, and capsules within a year ascend by unlock time.
func Timeline(capsules []models.Capsule, loc *time.Location) []YearGroup {
	if loc == nil {
		loc = time.Local
	}
	sorted := make([]models.Capsule, len(capsules))
	copy(sorted, capsules)
	sortByUnlock(sorted)

	byYear := make(map[int][]models.Capsule)
	for _, c := range sorted {
		y := c.UnlockTime().In(loc).Year()
		byYear[y] = append(byYear[y], c)
	}

	groups := make([]YearGroup, 0, len(byYear))
	for y, cs := range byYear {
		groups = append(groups, YearGroup{Year: y, Capsules: cs})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Year < groups[j].Year })
	return groups
}

// Side places the i-th capsule of a year on alternating sides of the
// timeline.
func Side(i int) string {
	if i%2 == 0 {
		return "left"
	}
	return "right"
}
