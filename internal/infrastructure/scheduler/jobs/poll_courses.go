// Package jobs contains the scheduled jobs: the course poll tick and the
// mention scan.
package jobs

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/internal/application/engine"
	"github.com/coursehub/course-herald/internal/application/fanout"
	"github.com/coursehub/course-herald/internal/application/present"
	"github.com/coursehub/course-herald/internal/domain/course"
)

// SeenSaver mirrors a course's dedup snapshot to the warm-state cache.
type SeenSaver interface {
	SaveSeen(ctx context.Context, courseID string, value any) error
}

// PollCourses is the main tick: for every course, surface the new
// announcement and new assignments, fan them out, and commit only what
// was actually dispatched. One course's failure never blocks the rest.
type PollCourses struct {
	registry  *course.Registry
	engine    *engine.Engine
	router    *fanout.Router
	presenter *present.Presenter
	saver     SeenSaver // nil when the warm-state cache is disabled
	logger    zerolog.Logger
}

// NewPollCourses creates the poll job. saver may be nil.
func NewPollCourses(
	registry *course.Registry,
	eng *engine.Engine,
	router *fanout.Router,
	presenter *present.Presenter,
	saver SeenSaver,
	logger zerolog.Logger,
) *PollCourses {
	return &PollCourses{
		registry:  registry,
		engine:    eng,
		router:    router,
		presenter: presenter,
		saver:     saver,
		logger:    logger.With().Str("component", "jobs.poll").Logger(),
	}
}

// Name returns the job name.
func (j *PollCourses) Name() string { return "poll_courses" }

// Run executes one poll tick.
func (j *PollCourses) Run(ctx context.Context) error {
	for _, c := range j.registry.All() {
		j.pollAnnouncement(ctx, c)
		j.pollAssignments(ctx, c, course.KindHomework)
		j.pollAssignments(ctx, c, course.KindTests)
	}

	if j.saver != nil {
		j.saveSeen(ctx)
	}
	return nil
}

// pollAnnouncement surfaces and dispatches the course's new announcement,
// if any. The announcement commits only when it reached at least one
// destination, so a total delivery failure retries next tick.
func (j *PollCourses) pollAnnouncement(ctx context.Context, c course.Course) {
	ann, err := j.engine.LatestAnnouncement(ctx, c)
	if err != nil {
		j.logger.Warn().Err(err).Str("course_id", c.ID).Msg("announcement poll failed")
		return
	}
	if ann == nil {
		return
	}

	result := j.router.Push(ctx, c.ID,
		j.presenter.AnnouncementEmbed(*ann),
		j.presenter.AnnouncementStatus(c, *ann))
	if !result.ShouldCommit() {
		return
	}
	j.engine.CommitAnnouncement(c.ID, *ann)

	j.logger.Info().
		Str("course_id", c.ID).
		Str("announcement_id", ann.ID).
		Int("delivered", result.Delivered).
		Msg("announcement pushed")
}

// pollAssignments surfaces and dispatches the course's new assignments of
// one kind, earliest due first. Each item commits independently.
func (j *PollCourses) pollAssignments(ctx context.Context, c course.Course, kind course.AssignmentKind) {
	items, err := j.engine.NewAssignments(ctx, c, kind)
	if err != nil {
		j.logger.Warn().Err(err).
			Str("course_id", c.ID).
			Str("kind", kind.String()).
			Msg("assignment poll failed")
		return
	}

	var committed []course.Assignment
	for _, a := range items {
		result := j.router.Push(ctx, c.ID,
			j.presenter.AssignmentEmbed(kind, a),
			j.presenter.AssignmentStatus(c, kind, a))
		if result.ShouldCommit() {
			committed = append(committed, a)
		}
	}
	j.engine.CommitAssignments(c.ID, kind, committed)

	if len(committed) > 0 {
		j.logger.Info().
			Str("course_id", c.ID).
			Str("kind", kind.String()).
			Int("count", len(committed)).
			Msg("assignments pushed")
	}
}

// saveSeen mirrors the dedup snapshots. Cache failures degrade to a warm
// log line; the next restart simply falls back to priming.
func (j *PollCourses) saveSeen(ctx context.Context) {
	for id, seen := range j.engine.ExportSeen() {
		if err := j.saver.SaveSeen(ctx, id, seen); err != nil {
			j.logger.Warn().Err(err).Str("course_id", id).Msg("seen snapshot save failed")
		}
	}
}
