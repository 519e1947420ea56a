// Package engine implements the change-detection core: given a course's
// prior known state and a freshly fetched feed, it computes the delta of
// genuinely new, currently visible items and never re-surfaces an item
// once committed.
//
// The engine never mutates state while computing a delta. The poll job
// commits a delta only after it has been dispatched, so an item lost to a
// dispatch failure is surfaced again next tick instead of disappearing.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/internal/domain/course"
	"github.com/coursehub/course-herald/internal/domain/shared"
	"github.com/coursehub/course-herald/pkg/htmltext"
)

// Fetcher is the engine's port to the remote feed adapter.
type Fetcher interface {
	// Announcements returns the announcement feed for a course,
	// most-recent-first (upstream contract).
	Announcements(ctx context.Context, courseID string) ([]course.AnnouncementFeedEntry, error)

	// UpcomingAssignments returns one assignment group's upcoming feed,
	// ascending by due date (upstream contract).
	UpcomingAssignments(ctx context.Context, courseID, groupID string) ([]course.AssignmentFeedEntry, error)
}

// Engine owns all per-course state. Access is serialized by a single
// mutex; fetches happen outside it so a slow upstream call never blocks
// readers.
type Engine struct {
	fetcher  Fetcher
	registry *course.Registry
	logger   zerolog.Logger

	mu     sync.Mutex
	states map[string]*course.State

	now func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the engine's clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine with empty state for every registered course.
func New(fetcher Fetcher, registry *course.Registry, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		fetcher:  fetcher,
		registry: registry,
		logger:   logger.With().Str("component", "engine").Logger(),
		states:   make(map[string]*course.State, registry.Len()),
		now:      time.Now,
	}
	for _, c := range registry.All() {
		e.states[c.ID] = course.NewState()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ─────────────────────────────────────────────────────────────────────────────
// Announcements
// ─────────────────────────────────────────────────────────────────────────────

// LatestAnnouncement returns the course's newest published announcement if
// it has not been surfaced before, or nil when there is nothing new. State
// is not mutated; call CommitAnnouncement once the item is dispatched.
func (e *Engine) LatestAnnouncement(ctx context.Context, c course.Course) (*course.Announcement, error) {
	entries, err := e.fetcher.Announcements(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("latest announcement for %s: %w", c.ID, err)
	}

	// The feed is most-recent-first; the first published entry is the
	// current announcement.
	var latest *course.AnnouncementFeedEntry
	for i := range entries {
		if entries[i].Published {
			latest = &entries[i]
			break
		}
	}
	if latest == nil {
		return nil, nil
	}

	e.mu.Lock()
	state := e.states[c.ID]
	seenID := ""
	if state != nil && state.LastAnnouncement != nil {
		seenID = state.LastAnnouncement.ID
	}
	e.mu.Unlock()

	if latest.ID == seenID {
		return nil, nil
	}

	normalized := normalizeAnnouncement(*latest)
	return &normalized, nil
}

// CommitAnnouncement records an announcement as surfaced for the course.
func (e *Engine) CommitAnnouncement(courseID string, a course.Announcement) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state, ok := e.states[courseID]; ok {
		state.CommitAnnouncement(a)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Assignments
// ─────────────────────────────────────────────────────────────────────────────

// NewAssignments returns the course's not-yet-surfaced upcoming
// assignments of one kind, ascending by due date (earliest first).
//
// The feed is sorted ascending by due date, so the scan short-circuits at
// the first entry already past due. Entries whose unlock time is still in
// the future are skipped without stopping the scan. State is not mutated;
// call CommitAssignments once the items are dispatched.
func (e *Engine) NewAssignments(ctx context.Context, c course.Course, kind course.AssignmentKind) ([]course.Assignment, error) {
	entries, err := e.fetcher.UpcomingAssignments(ctx, c.ID, kind.GroupID(c))
	if err != nil {
		return nil, fmt.Errorf("new %s for %s: %w", kind, c.ID, err)
	}

	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.states[c.ID]
	var fresh []course.Assignment
	for _, entry := range entries {
		// Past-due entry: the feed is sorted, nothing later is upcoming.
		if entry.DueAt != nil && !entry.DueAt.After(now) {
			break
		}
		// Not unlocked yet: invisible to students, skip but keep scanning.
		if entry.UnlockAt != nil && entry.UnlockAt.After(now) {
			continue
		}
		if state != nil && state.Knows(kind, entry.ID) {
			continue
		}
		fresh = append(fresh, normalizeAssignment(entry))
	}
	return fresh, nil
}

// CommitAssignments records assignments as surfaced for the course+kind.
func (e *Engine) CommitAssignments(courseID string, kind course.AssignmentKind, items []course.Assignment) {
	if len(items) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if state, ok := e.states[courseID]; ok {
		state.CommitAssignments(kind, items)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Startup priming and read paths
// ─────────────────────────────────────────────────────────────────────────────

// Prime records the current latest announcement and upcoming assignments
// for every course without dispatching anything, so the first poll tick
// only surfaces items published after startup. A fetch failure for one
// course is logged and skipped; the course starts cold and catches up on
// its first successful tick.
func (e *Engine) Prime(ctx context.Context) {
	for _, c := range e.registry.All() {
		if ann, err := e.LatestAnnouncement(ctx, c); err != nil {
			e.logger.Warn().Err(err).Str("course_id", c.ID).Msg("prime: announcement fetch failed")
		} else if ann != nil {
			e.CommitAnnouncement(c.ID, *ann)
		}

		for _, kind := range []course.AssignmentKind{course.KindHomework, course.KindTests} {
			items, err := e.NewAssignments(ctx, c, kind)
			if err != nil {
				e.logger.Warn().Err(err).
					Str("course_id", c.ID).
					Str("kind", kind.String()).
					Msg("prime: assignment fetch failed")
				continue
			}
			e.CommitAssignments(c.ID, kind, items)
		}
	}
}

// Snapshot returns a copy of the course's state for read-only consumers
// (command dispatcher, mention scanner).
func (e *Engine) Snapshot(courseID string) (course.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.states[courseID]
	if !ok {
		return course.State{}, shared.NewDomainError("engine", "Snapshot", shared.ErrUnknownCourse, courseID)
	}
	return state.Snapshot(), nil
}

// ExportSeen extracts every course's dedup core for the warm-state cache.
func (e *Engine) ExportSeen() map[string]course.SeenIDs {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]course.SeenIDs, len(e.states))
	for id, state := range e.states {
		out[id] = state.Seen()
	}
	return out
}

// RestoreSeen rebuilds dedup state from a cached snapshot. Returns the
// number of courses restored.
func (e *Engine) RestoreSeen(seen map[string]course.SeenIDs) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	restored := 0
	for id, ids := range seen {
		state, ok := e.states[id]
		if !ok {
			continue // course no longer tracked
		}
		state.RestoreSeen(ids)
		restored++
	}
	return restored
}

// ─────────────────────────────────────────────────────────────────────────────
// Normalization
// ─────────────────────────────────────────────────────────────────────────────

func normalizeAnnouncement(entry course.AnnouncementFeedEntry) course.Announcement {
	return course.Announcement{
		ID:      entry.ID,
		Title:   entry.Title,
		Date:    isoDate(entry.PostedAt),
		Message: htmltext.Extract(entry.Message),
		Link:    entry.URL,
	}
}

func normalizeAssignment(entry course.AssignmentFeedEntry) course.Assignment {
	a := course.Assignment{
		ID:    entry.ID,
		Title: entry.Name,
		Link:  entry.HTMLURL,
	}
	if entry.UnlockAt != nil {
		a.StartDate = isoDate(*entry.UnlockAt)
	}
	if entry.DueAt != nil {
		a.DueDate = isoDate(*entry.DueAt)
	}
	return a
}

func isoDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
