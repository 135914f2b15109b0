// Package service provides the capsule business logic: sealing, opening,
// deleting and the background upgrade of inline attachments, delegating
// persistence to a repository and media to an attachment store. It also
// registers owners and keeps their profiles.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/chronos/internal/attachments"
	"github.com/atinyakov/chronos/internal/feed"
	"github.com/atinyakov/chronos/internal/lifecycle"
	"github.com/atinyakov/chronos/internal/models"
	"github.com/atinyakov/chronos/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultUploadTimeout bounds each background attachment upload.
	DefaultUploadTimeout = 30 * time.Second
	// backgroundWriteTimeout bounds fire-and-forget record updates.
	backgroundWriteTimeout = 10 * time.Second
)

// CapsuleRepository defines the record store operations needed by the
// CapsuleService.
type CapsuleRepository interface {
	// Create persists c for ownerID and returns the assigned identifier.
	Create(ctx context.Context, ownerID string, c models.Capsule) (string, error)
	// ListByOwner returns the owner's full snapshot.
	ListByOwner(ctx context.Context, ownerID string) ([]models.Capsule, error)
	// GetByID fetches one capsule of the owner.
	GetByID(ctx context.Context, ownerID, id string) (models.Capsule, error)
	// UpdateFields applies a partial update.
	UpdateFields(ctx context.Context, ownerID, id string, f repository.Fields) error
	// Delete removes a capsule.
	Delete(ctx context.Context, ownerID, id string) error
}

// AttachmentStore defines the object storage operations needed by the
// CapsuleService.
type AttachmentStore interface {
	// Upload stores data and returns its durable URL. An empty capsuleID
	// stores under the temp folder.
	Upload(ctx context.Context, ownerID, capsuleID string, data []byte, filename, contentType string) (string, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// KeyFromURL maps a durable URL back to its key.
	KeyFromURL(url string) (string, bool)
}

// CapsuleService implements capsule business logic.
type CapsuleService struct {
	repo  CapsuleRepository
	store AttachmentStore
	hub   *feed.Hub
	log   *zap.Logger

	now           func() time.Time
	rng           *rand.Rand
	uploadTimeout time.Duration

	bg sync.WaitGroup

	mu        sync.Mutex
	unlocking map[string]struct{}
	// feedLocks holds a *sync.Mutex per owner so snapshots reach
	// subscribers in the order they were read.
	feedLocks sync.Map
}

// Option customizes a CapsuleService.
type Option func(*CapsuleService)

// WithUploadTimeout overrides DefaultUploadTimeout.
func WithUploadTimeout(d time.Duration) Option {
	return func(s *CapsuleService) { s.uploadTimeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *CapsuleService) { s.now = now }
}

// WithRand fixes the source used for quick-note unlock times.
func WithRand(r *rand.Rand) Option {
	return func(s *CapsuleService) { s.rng = r }
}

// NewCapsuleService constructs a CapsuleService. hub may be nil when no
// subscriber needs live snapshots.
func NewCapsuleService(repo CapsuleRepository, store AttachmentStore, hub *feed.Hub, log *zap.Logger, opts ...Option) *CapsuleService {
	s := &CapsuleService{
		repo:          repo,
		store:         store,
		hub:           hub,
		log:           log,
		now:           time.Now,
		uploadTimeout: DefaultUploadTimeout,
		unlocking:     make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Seal validates and persists a new capsule, then upgrades its inline
// attachments in the background. It returns as soon as the record is
// stored; the background step never affects the result.
func (s *CapsuleService) Seal(ctx context.Context, ownerID string, d models.Draft) (models.Capsule, error) {
	if ownerID == "" {
		return models.Capsule{}, invalid("owner is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		return models.Capsule{}, invalid("title is required")
	}
	if d.UnlockAt <= 0 {
		return models.Capsule{}, invalid("unlock date is required")
	}
	if d.ThemeColor == "" {
		d.ThemeColor = "indigo"
	}
	d.Attachments = prepareAttachments(d.Attachments)

	c := lifecycle.NewCapsule(ownerID, d, s.now())
	id, err := s.repo.Create(ctx, ownerID, c)
	if err != nil {
		return models.Capsule{}, fmt.Errorf("seal capsule: %w", err)
	}
	c.ID = id

	s.publish(ctx, ownerID)

	if hasInline(c.Attachments) {
		bgCtx := context.WithoutCancel(ctx)
		s.spawn(func() { s.reconcile(bgCtx, c) })
	}
	return c, nil
}

// QuickNote seals a short note with a random unlock time 30 to 730 days out.
func (s *CapsuleService) QuickNote(ctx context.Context, ownerID, note string) (models.Capsule, error) {
	if strings.TrimSpace(note) == "" {
		return models.Capsule{}, invalid("note is empty")
	}
	now := s.now()
	return s.Seal(ctx, ownerID, models.Draft{
		Title:      "Quick Log: " + now.Format("15:04:05"),
		Message:    note,
		UnlockAt:   lifecycle.RandomUnlock(now, s.rng),
		ThemeColor: "cyan",
	})
}

// Open returns the capsule when its unlock time has passed. The first open
// of a LOCKED capsule records UNLOCKED in the background, once even when
// opens overlap; a failure there is logged and the open still succeeds
// with the record as read. Before
// the unlock time a *LockedError is returned and nothing changes.
func (s *CapsuleService) Open(ctx context.Context, ownerID, id string) (models.Capsule, error) {
	c, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return models.Capsule{}, err
	}

	d := lifecycle.Open(c, s.now())
	if !d.Allowed {
		return models.Capsule{}, &LockedError{UnlockAt: d.UnlockAt}
	}
	if d.MarkUnlocked && s.claimUnlock(ownerID, id) {
		bgCtx := context.WithoutCancel(ctx)
		s.spawn(func() {
			defer s.releaseUnlock(ownerID, id)
			s.markUnlocked(bgCtx, ownerID, id)
		})
	}
	return c, nil
}

// List returns the owner's current snapshot.
func (s *CapsuleService) List(ctx context.Context, ownerID string) ([]models.Capsule, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Subscribe registers for live snapshots of ownerID. The current snapshot
// is queued on the subscription before it is returned.
func (s *CapsuleService) Subscribe(ctx context.Context, ownerID string) (*feed.Subscription, error) {
	if s.hub == nil {
		return nil, fmt.Errorf("subscriptions are not enabled")
	}
	sub := s.hub.Subscribe(ownerID)
	snapshot, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	sub.Offer(snapshot)
	return sub, nil
}

// Delete removes the capsule, then deletes its stored media in the
// background. Media deletion failures are logged and ignored.
func (s *CapsuleService) Delete(ctx context.Context, ownerID, id string) error {
	c, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.publish(ctx, ownerID)

	bgCtx := context.WithoutCancel(ctx)
	s.spawn(func() { s.deleteMedia(bgCtx, c) })
	return nil
}

// UploadAttachment stores a file before its capsule exists, under the
// owner's temp folder, and returns the attachment describing it.
func (s *CapsuleService) UploadAttachment(ctx context.Context, ownerID, filename, contentType string, data []byte) (models.Attachment, error) {
	if ownerID == "" {
		return models.Attachment{}, invalid("owner is required")
	}
	url, err := s.store.Upload(ctx, ownerID, "", data, filename, contentType)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}
	return models.Attachment{
		ID:   newAttachmentID(),
		Type: lifecycle.MediaTypeFromMIME(contentType),
		URL:  url,
		Name: filename,
	}, nil
}

// Wait blocks until every background task has finished.
func (s *CapsuleService) Wait() {
	s.bg.Wait()
}

func (s *CapsuleService) spawn(fn func()) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn()
	}()
}

// claimUnlock reports whether the caller should record the unlock of id.
// It returns false while another record of the same capsule is in flight.
func (s *CapsuleService) claimUnlock(ownerID, id string) bool {
	key := ownerID + "/" + id
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.unlocking[key]; busy {
		return false
	}
	s.unlocking[key] = struct{}{}
	return true
}

func (s *CapsuleService) releaseUnlock(ownerID, id string) {
	s.mu.Lock()
	delete(s.unlocking, ownerID+"/"+id)
	s.mu.Unlock()
}

// markUnlocked only moves a capsule out of LOCKED, so an open that read a
// stale record after another instance wrote the status changes nothing.
func (s *CapsuleService) markUnlocked(ctx context.Context, ownerID, id string) {
	ctx, cancel := context.WithTimeout(ctx, backgroundWriteTimeout)
	defer cancel()

	status, from := models.StatusUnlocked, models.StatusLocked
	err := s.repo.UpdateFields(ctx, ownerID, id, repository.Fields{Status: &status, IfStatus: &from})
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Debug("capsule unlock already recorded",
			zap.String("owner", ownerID), zap.String("capsule", id))
		return
	}
	if err != nil {
		s.log.Warn("failed to record capsule unlock",
			zap.String("owner", ownerID), zap.String("capsule", id), zap.Error(err))
		return
	}
	s.publish(ctx, ownerID)
}

func (s *CapsuleService) deleteMedia(ctx context.Context, c models.Capsule) {
	for _, a := range c.Attachments {
		key, ok := s.store.KeyFromURL(a.URL)
		if !ok {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn("failed to delete attachment object",
				zap.String("capsule", c.ID), zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *CapsuleService) publish(ctx context.Context, ownerID string) {
	if s.hub == nil || s.hub.Subscribers(ownerID) == 0 {
		return
	}
	lock, _ := s.feedLocks.LoadOrStore(ownerID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	snapshot, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		s.log.Warn("failed to load snapshot for subscribers", zap.String("owner", ownerID), zap.Error(err))
		return
	}
	s.hub.Publish(ownerID, snapshot)
}

func prepareAttachments(in []models.Attachment) []models.Attachment {
	out := make([]models.Attachment, len(in))
	for i, a := range in {
		if a.ID == "" {
			a.ID = newAttachmentID()
		}
		if a.Type == "" {
			a.Type = models.MediaFile
			if _, mime, err := attachments.DecodeInline(a.URL); err == nil {
				a.Type = lifecycle.MediaTypeFromMIME(mime)
			}
		}
		out[i] = a
	}
	return out
}

func hasInline(as []models.Attachment) bool {
	for _, a := range as {
		if a.IsInline() {
			return true
		}
	}
	return false
}

func newAttachmentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
