package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/chronos/internal/lifecycle"
	"github.com/atinyakov/chronos/internal/models"
)

const (
	// DefaultRefresh is how often a session recomputes its view without a
	// new snapshot, so countdowns and lock states follow the clock.
	DefaultRefresh = time.Minute
	// DefaultRetry is the pause before reconnecting a dropped stream.
	DefaultRetry = 5 * time.Second
)

// Snapshotter delivers full snapshots until ctx is done. *Client
// implements it.
type Snapshotter interface {
	Stream(ctx context.Context, fn func([]models.Capsule)) error
}

// View is everything derived from one snapshot at one instant.
type View struct {
	At        time.Time
	Capsules  []models.Capsule
	Dashboard lifecycle.Dashboard
	Timeline  []lifecycle.YearGroup
	Gallery   []lifecycle.GalleryYear
}

// BuildView computes the projections of capsules at now in loc.
func BuildView(capsules []models.Capsule, now time.Time, loc *time.Location) View {
	return View{
		At:        now,
		Capsules:  capsules,
		Dashboard: lifecycle.Summarize(capsules, now),
		Timeline:  lifecycle.Timeline(capsules, loc),
		Gallery:   lifecycle.Gallery(capsules, now, loc),
	}
}

// Session keeps a View current for one owner. Each pushed snapshot
// replaces the previous one, and the view is also recomputed every refresh
// interval while no snapshot arrives.
type Session struct {
	src     Snapshotter
	onView  func(View)
	log     *zap.Logger
	now     func() time.Time
	loc     *time.Location
	refresh time.Duration
	retry   time.Duration

	mu      sync.Mutex
	view    View
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithRefresh overrides DefaultRefresh.
func WithRefresh(d time.Duration) SessionOption {
	return func(s *Session) { s.refresh = d }
}

// WithRetry overrides DefaultRetry.
func WithRetry(d time.Duration) SessionOption {
	return func(s *Session) { s.retry = d }
}

// WithSessionClock replaces time.Now.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithLocation sets the zone used for year grouping. Defaults to time.Local.
func WithLocation(loc *time.Location) SessionOption {
	return func(s *Session) { s.loc = loc }
}

// WithLogger sets the logger for stream errors.
func WithLogger(log *zap.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// NewSession creates a stopped session. onView, if not nil, is called from
// the session goroutine after every recomputation.
func NewSession(src Snapshotter, onView func(View), opts ...SessionOption) *Session {
	s := &Session{
		src:     src,
		onView:  onView,
		log:     zap.NewNop(),
		now:     time.Now,
		loc:     time.Local,
		refresh: DefaultRefresh,
		retry:   DefaultRetry,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start subscribes and starts the refresh timer. Calling it again, or
// after Stop, does nothing.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	updates := make(chan []models.Capsule, 1)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.subscribe(ctx, updates)
	}()
	go func() {
		defer s.wg.Done()
		s.run(ctx, updates)
	}()
}

// Stop unsubscribes, stops the timer and waits for both to finish. Safe to
// call repeatedly and before Start.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// View returns the most recent view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Session) subscribe(ctx context.Context, updates chan []models.Capsule) {
	for {
		err := s.src.Stream(ctx, func(snapshot []models.Capsule) {
			select {
			case <-updates:
			default:
			}
			updates <- snapshot
		})
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("snapshot stream ended, reconnecting", zap.Error(err), zap.Duration("in", s.retry))

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retry):
		}
	}
}

func (s *Session) run(ctx context.Context, updates <-chan []models.Capsule) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	var capsules []models.Capsule
	for {
		select {
		case <-ctx.Done():
			return
		case capsules = <-updates:
		case <-ticker.C:
		}
		s.recompute(capsules)
	}
}

func (s *Session) recompute(capsules []models.Capsule) {
	v := BuildView(normalize(capsules), s.now(), s.loc)

	s.mu.Lock()
	s.view = v
	s.mu.Unlock()

	if s.onView != nil {
		s.onView(v)
	}
}
