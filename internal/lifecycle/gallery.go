package lifecycle

import (
	"sort"
	"time"

	"github.com/atinyakov/chronos/internal/models"
)

// Artifact is one attachment of an unlocked capsule, carrying the parent's
// title and unlock time.
type Artifact struct {
	models.Attachment
	CapsuleID string `json:"capsuleId"`
	Title     string `json:"title"`
	UnlockAt  int64  `json:"unlockAt"`
}

// GalleryYear holds the artifacts unlocked in one calendar year.
type GalleryYear struct {
	Year      int
	Artifacts []Artifact
}

// Gallery flattens the attachments of time-unlocked capsules into artifacts,
// newest unlock first, grouped by calendar year in descending order.
// Attachments of capsules that are still locked never appear.
func Gallery(capsules []models.Capsule, now time.Time, loc *time.Location) []GalleryYear {
	if loc == nil {
		loc = time.Local
	}
	var artifacts []Artifact
	for _, c := range capsules {
		if !TimeUnlocked(c, now) {
			continue
		}
		for _, a := range c.Attachments {
			artifacts = append(artifacts, Artifact{
				Attachment: a,
				CapsuleID:  c.ID,
				Title:      c.Title,
				UnlockAt:   c.UnlockAt,
			})
		}
	}
	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].UnlockAt > artifacts[j].UnlockAt
	})

	var years []GalleryYear
	for _, a := range artifacts {
		y := time.UnixMilli(a.UnlockAt).In(loc).Year()
		if n := len(years); n > 0 && years[n-1].Year == y {
			years[n-1].Artifacts = append(years[n-1].Artifacts, a)
			continue
		}
		years = append(years, GalleryYear{Year: y, Artifacts: []Artifact{a}})
	}
	return years
}
