package lifecycle

import (
	"time"

	"github.com/atinyakov/chronos/internal/models"
)

// TimeUnlocked reports whether wall-clock time has reached the capsule's
// unlock time. It ignores the stored status.
func TimeUnlocked(c models.Capsule, now time.Time) bool {
	return now.UnixMilli() >= c.UnlockAt
}

// IsLocked is the negation of TimeUnlocked.
func IsLocked(c models.Capsule, now time.Time) bool {
	return now.UnixMilli() < c.UnlockAt
}

// NewCapsule builds the record persisted when a draft is sealed. The status
// is always LOCKED, however close unlockAt is.
func NewCapsule(ownerID string, d models.Draft, now time.Time) models.Capsule {
	return models.Capsule{
		UserID:      ownerID,
		Title:       d.Title,
		Message:     d.Message,
		CreatedAt:   now.UnixMilli(),
		UnlockAt:    d.UnlockAt,
		Status:      models.StatusLocked,
		Attachments: models.NormalizeAttachments(d.Attachments),
		ThemeColor:  d.ThemeColor,
	}
}

// OpenDecision is the outcome of an attempt to open a capsule.
type OpenDecision struct {
	// Allowed is false while the capsule is time-locked.
	Allowed bool
	// MarkUnlocked asks the caller to persist LOCKED -> UNLOCKED.
	MarkUnlocked bool
	// UnlockAt is surfaced to the user when the open is rejected.
	UnlockAt time.Time
}

// Open decides whether c may be opened at now and which status transition,
// if any, the open triggers. Transitions never move backwards and nothing
// here produces OPENED.
func Open(c models.Capsule, now time.Time) OpenDecision {
	d := OpenDecision{UnlockAt: c.UnlockTime()}
	if IsLocked(c, now) {
		return d
	}
	d.Allowed = true
	d.MarkUnlocked = c.Status == models.StatusLocked
	return d
}
