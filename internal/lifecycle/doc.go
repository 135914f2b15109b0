// Package lifecycle derives capsule state and view projections from a
// snapshot of records and the current time.
//
// Two notions of "unlocked" coexist and are kept apart on purpose:
// TimeUnlocked/IsLocked are pure functions of wall-clock time and decide
// whether content may be shown, while models.Status is persisted and only
// records whether the owner has opened the capsule. Status may lag the time
// predicate indefinitely.
//
// Every function takes now explicitly; nothing in this package reads the
// clock or holds state.
package lifecycle
