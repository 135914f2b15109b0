// Package models defines the core data structures for capsules, their
// attachments and generated letters.
package models

import (
	"strings"
	"time"
)

// InlinePrefix marks an attachment URL that still carries its payload as a
// base64 data URI instead of pointing at durable storage.
const InlinePrefix = "data:"

// Status is the persisted interaction state of a capsule. It tracks whether
// the owner has opened an unlocked capsule and may lag behind wall-clock time.
type Status string

const (
	// StatusLocked is assigned to every capsule at creation.
	StatusLocked Status = "LOCKED"
	// StatusUnlocked is assigned the first time the owner opens a capsule
	// whose unlock time has passed.
	StatusUnlocked Status = "UNLOCKED"
	// StatusOpened is reserved. Nothing assigns it yet.
	StatusOpened Status = "OPENED"
)

// Valid reports whether s is one of the defined status values.
func (s Status) Valid() bool {
	switch s {
	case StatusLocked, StatusUnlocked, StatusOpened:
		return true
	}
	return false
}

// MediaType classifies an attachment by the MIME type it was created from.
type MediaType string

const (
	// MediaImage represents image/* payloads.
	MediaImage MediaType = "IMAGE"
	// MediaVideo represents video/* payloads.
	MediaVideo MediaType = "VIDEO"
	// MediaAudio represents audio/* payloads.
	MediaAudio MediaType = "AUDIO"
	// MediaFile represents everything else.
	MediaFile MediaType = "FILE"
)

// Attachment is a media item sealed inside a capsule.
type Attachment struct {
	// ID is a client-generated token, unique within its capsule.
	ID string `json:"id"`
	// Type is derived from the MIME prefix when the attachment is created.
	Type MediaType `json:"type"`
	// URL is either an inline data URI or a durable storage URL.
	URL string `json:"url"`
	// Name is the original filename.
	Name string `json:"name"`
}

// IsInline reports whether the attachment payload is still an inline data URI.
func (a Attachment) IsInline() bool {
	return strings.HasPrefix(a.URL, InlinePrefix)
}

// Capsule is a sealed message with attachments and a future unlock time.
type Capsule struct {
	// ID is assigned by the record store on creation.
	ID string `json:"id"`
	// UserID identifies the owner; every operation is scoped to it.
	UserID string `json:"userId"`
	// Title is the non-empty display title.
	Title string `json:"title"`
	// Message is the free-text body.
	Message string `json:"message"`
	// CreatedAt is the creation time in milliseconds since epoch.
	CreatedAt int64 `json:"createdAt"`
	// UnlockAt is the unlock time in milliseconds since epoch. Never mutated.
	UnlockAt int64 `json:"unlockAt"`
	// Status is the persisted interaction state.
	Status Status `json:"status"`
	// Attachments in display order. Never nil once normalized.
	Attachments []Attachment `json:"attachments"`
	// ThemeColor is cosmetic.
	ThemeColor string `json:"themeColor"`
}

// UnlockTime returns UnlockAt as a time.Time.
func (c Capsule) UnlockTime() time.Time {
	return time.UnixMilli(c.UnlockAt)
}

// CreatedTime returns CreatedAt as a time.Time.
func (c Capsule) CreatedTime() time.Time {
	return time.UnixMilli(c.CreatedAt)
}

// MessageParagraphs splits the message body into the paragraphs it is
// rendered as, one per line.
func (c Capsule) MessageParagraphs() []string {
	if c.Message == "" {
		return []string{}
	}
	return strings.Split(strings.ReplaceAll(c.Message, "\r\n", "\n"), "\n")
}

// NormalizeAttachments returns a non-nil attachment sequence.
func NormalizeAttachments(in []Attachment) []Attachment {
	if in == nil {
		return []Attachment{}
	}
	return in
}

// Draft is the composer's input for a new capsule.
type Draft struct {
	Title       string       `json:"title"`
	Message     string       `json:"message"`
	UnlockAt    int64        `json:"unlockAt"`
	Attachments []Attachment `json:"attachments"`
	ThemeColor  string       `json:"themeColor"`
}

// LetterRequest is the payload sent to the letter generator.
type LetterRequest struct {
	UserThoughts        string `json:"userThoughts"`
	DurationDescription string `json:"durationDescription,omitempty"`
}

// Letter is a generated letter to the future.
type Letter struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// User is the profile of a registered owner. Login is the Common Name of the
// owner's client certificate and the owner ID capsules are scoped by.
type User struct {
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
	// CreatedAt is the registration time in milliseconds since epoch.
	CreatedAt int64 `json:"createdAt"`
	// LastLoginAt is the last authenticated request, at minute granularity.
	LastLoginAt int64 `json:"lastLoginAt"`
}
