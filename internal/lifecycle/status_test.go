package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/chronos/internal/models"
)

var base = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func capsuleAt(id string, created, unlock time.Time) models.Capsule {
	return models.Capsule{
		ID:          id,
		CreatedAt:   created.UnixMilli(),
		UnlockAt:    unlock.UnixMilli(),
		Status:      models.StatusLocked,
		Attachments: []models.Attachment{},
	}
}

func TestIsLocked_IgnoresStatus(t *testing.T) {
	for _, st := range []models.Status{models.StatusLocked, models.StatusUnlocked, models.StatusOpened} {
		future := capsuleAt("f", base, base.Add(time.Millisecond))
		future.Status = st
		past := capsuleAt("p", base.Add(-time.Hour), base)
		past.Status = st

		assert.True(t, IsLocked(future, base), "status %s", st)
		assert.False(t, TimeUnlocked(future, base), "status %s", st)
		assert.False(t, IsLocked(past, base), "status %s", st)
		assert.True(t, TimeUnlocked(past, base), "status %s", st)
	}
}

func TestNewCapsule_AlwaysLocked(t *testing.T) {
	cases := []struct {
		name   string
		unlock int64
	}{
		{"one millisecond ahead", base.UnixMilli() + 1},
		{"a year ahead", base.AddDate(1, 0, 0).UnixMilli()},
		{"in the past", base.AddDate(-1, 0, 0).UnixMilli()},
		{"same instant", base.UnixMilli()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCapsule("owner", models.Draft{Title: "t", UnlockAt: tc.unlock}, base)
			assert.Equal(t, models.StatusLocked, c.Status)
			assert.Equal(t, base.UnixMilli(), c.CreatedAt)
			assert.Equal(t, tc.unlock, c.UnlockAt)
			assert.NotNil(t, c.Attachments)
			assert.Equal(t, "owner", c.UserID)
		})
	}
}

func TestOpen_LockedRejected(t *testing.T) {
	c := capsuleAt("a", base, base.Add(48*time.Hour))
	d := Open(c, base)
	assert.False(t, d.Allowed)
	assert.False(t, d.MarkUnlocked)
	assert.True(t, d.UnlockAt.Equal(c.UnlockTime()))
}

func TestOpen_TransitionsOnce(t *testing.T) {
	c := capsuleAt("a", base.Add(-time.Hour), base)

	first := Open(c, base)
	require.True(t, first.Allowed)
	require.True(t, first.MarkUnlocked)

	c.Status = models.StatusUnlocked
	second := Open(c, base.Add(time.Minute))
	assert.True(t, second.Allowed)
	assert.False(t, second.MarkUnlocked)
}

func TestOpen_OpenedStaysOpened(t *testing.T) {
	c := capsuleAt("a", base.Add(-time.Hour), base)
	c.Status = models.StatusOpened
	d := Open(c, base)
	assert.True(t, d.Allowed)
	assert.False(t, d.MarkUnlocked)
}
