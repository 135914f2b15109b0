package service

import (
	"context"
	"sync"

	"github.com/atinyakov/chronos/internal/attachments"
	"github.com/atinyakov/chronos/internal/models"
	"github.com/atinyakov/chronos/internal/repository"
	"go.uber.org/zap"
)

// reconcile replaces inline attachment payloads of c with durable URLs. It
// makes one pass: uploads run concurrently, each bounded by uploadTimeout,
// and a single update is written only if at least one URL changed. Failed
// attachments keep their inline form.
func (s *CapsuleService) reconcile(ctx context.Context, c models.Capsule) {
	result := make([]models.Attachment, len(c.Attachments))
	copy(result, c.Attachments)

	var wg sync.WaitGroup
	for i, a := range c.Attachments {
		if !a.IsInline() {
			continue
		}
		wg.Add(1)
		go func(i int, a models.Attachment) {
			defer wg.Done()
			url, err := s.uploadInline(ctx, c.UserID, c.ID, a)
			if err != nil {
				s.log.Warn("attachment upload failed, keeping inline data",
					zap.String("capsule", c.ID), zap.String("attachment", a.ID), zap.Error(err))
				return
			}
			result[i].URL = url
		}(i, a)
	}
	wg.Wait()

	changed := 0
	for i := range result {
		if result[i].URL != c.Attachments[i].URL {
			changed++
		}
	}
	if changed == 0 {
		return
	}

	wctx, cancel := context.WithTimeout(ctx, backgroundWriteTimeout)
	defer cancel()
	if err := s.repo.UpdateFields(wctx, c.UserID, c.ID, repository.Fields{Attachments: &result}); err != nil {
		s.log.Warn("failed to store uploaded attachment urls",
			zap.String("capsule", c.ID), zap.Error(err))
		return
	}
	s.log.Info("attachments uploaded",
		zap.String("capsule", c.ID), zap.Int("uploaded", changed), zap.Int("total", len(result)))
	s.publish(wctx, c.UserID)
}

type uploadResult struct {
	url string
	err error
}

// uploadInline gives up after uploadTimeout even if the store ignores ctx.
// An upload that still succeeds after that is deleted again, since nothing
// will reference it.
func (s *CapsuleService) uploadInline(ctx context.Context, ownerID, capsuleID string, a models.Attachment) (string, error) {
	data, mime, err := attachments.DecodeInline(a.URL)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	done := make(chan uploadResult, 1)
	go func() {
		url, err := s.store.Upload(ctx, ownerID, capsuleID, data, a.Name, mime)
		done <- uploadResult{url: url, err: err}
	}()

	select {
	case <-ctx.Done():
		bgCtx := context.WithoutCancel(ctx)
		s.spawn(func() { s.discardLate(bgCtx, capsuleID, done) })
		return "", ctx.Err()
	case r := <-done:
		return r.url, r.err
	}
}

func (s *CapsuleService) discardLate(ctx context.Context, capsuleID string, done <-chan uploadResult) {
	r := <-done
	if r.err != nil {
		return
	}
	key, ok := s.store.KeyFromURL(r.url)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, backgroundWriteTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete late attachment upload",
			zap.String("capsule", capsuleID), zap.String("key", key), zap.Error(err))
		return
	}
	s.log.Info("deleted late attachment upload", zap.String("capsule", capsuleID), zap.String("key", key))
}
