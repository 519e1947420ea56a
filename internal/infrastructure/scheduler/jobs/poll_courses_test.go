package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/course-herald/internal/application/engine"
	"github.com/coursehub/course-herald/internal/application/fanout"
	"github.com/coursehub/course-herald/internal/application/present"
	"github.com/coursehub/course-herald/internal/domain/course"
	"github.com/coursehub/course-herald/internal/domain/subscription"
)

var pollNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type pollFetcher struct {
	announcements []course.AnnouncementFeedEntry
	assignments   map[string][]course.AssignmentFeedEntry // group id -> feed
}

func (f *pollFetcher) Announcements(context.Context, string) ([]course.AnnouncementFeedEntry, error) {
	return f.announcements, nil
}

func (f *pollFetcher) UpcomingAssignments(_ context.Context, _, groupID string) ([]course.AssignmentFeedEntry, error) {
	return f.assignments[groupID], nil
}

type recordingSender struct {
	sent     []fanout.ChatMessage
	failNext int // fail this many sends, then succeed
}

func (s *recordingSender) SendEmbed(_ context.Context, _ string, msg fanout.ChatMessage) error {
	if s.failNext > 0 {
		s.failNext--
		return errors.New("channel unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

type staticSubscribers struct {
	destinations []subscription.Destination
}

func (s *staticSubscribers) FindSubscribers(string) []subscription.Destination {
	return s.destinations
}

type recordingSaver struct {
	saved map[string]any
}

func (s *recordingSaver) SaveSeen(_ context.Context, courseID string, value any) error {
	if s.saved == nil {
		s.saved = make(map[string]any)
	}
	s.saved[courseID] = value
	return nil
}

func duePtr(t time.Time) *time.Time { return &t }

func newPollHarness(t *testing.T, fetcher *pollFetcher, sender *recordingSender, subscribed bool) (*PollCourses, *engine.Engine) {
	t.Helper()

	c := course.Course{ID: "101", Name: "CS101", HomeworkGroupID: "hw-g", TestGroupID: "test-g"}
	registry, err := course.NewRegistry([]course.Course{c})
	require.NoError(t, err)

	eng := engine.New(fetcher, registry, zerolog.Nop(),
		engine.WithClock(func() time.Time { return pollNow }))

	subs := &staticSubscribers{}
	if subscribed {
		subs.destinations = []subscription.Destination{{ServerID: "s1", ChannelID: "c1"}}
	}
	router := fanout.NewRouter(sender, nil, subs, zerolog.Nop())
	presenter := present.New("Herald", "https://canvas.test/")

	return NewPollCourses(registry, eng, router, presenter, nil, zerolog.Nop()), eng
}

func TestRun_PushesAnnouncementOnce(t *testing.T) {
	fetcher := &pollFetcher{announcements: []course.AnnouncementFeedEntry{
		{ID: "42", Title: "Midterm moved", Published: true, PostedAt: pollNow},
	}}
	sender := &recordingSender{}
	job, _ := newPollHarness(t, fetcher, sender, true)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Midterm moved", sender.sent[0].Title)

	// Committed after delivery: the next tick is quiet.
	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, sender.sent, 1)
}

func TestRun_FailedDeliveryRetriesNextTick(t *testing.T) {
	fetcher := &pollFetcher{announcements: []course.AnnouncementFeedEntry{
		{ID: "42", Title: "Midterm moved", Published: true, PostedAt: pollNow},
	}}
	sender := &recordingSender{failNext: 1}
	job, _ := newPollHarness(t, fetcher, sender, true)

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, sender.sent)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Midterm moved", sender.sent[0].Title)
}

func TestRun_NoSubscribersStillCommits(t *testing.T) {
	fetcher := &pollFetcher{announcements: []course.AnnouncementFeedEntry{
		{ID: "42", Title: "Midterm moved", Published: true, PostedAt: pollNow},
	}}
	sender := &recordingSender{}
	job, eng := newPollHarness(t, fetcher, sender, false)

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, sender.sent)

	state, err := eng.Snapshot("101")
	require.NoError(t, err)
	require.NotNil(t, state.LastAnnouncement)
	assert.Equal(t, "42", state.LastAnnouncement.ID)
}

func TestRun_PushesAssignmentsPerKind(t *testing.T) {
	fetcher := &pollFetcher{assignments: map[string][]course.AssignmentFeedEntry{
		"hw-g": {
			{ID: "7", Name: "Lab 3", DueAt: duePtr(pollNow.Add(48 * time.Hour))},
		},
		"test-g": {
			{ID: "8", Name: "Quiz 2", DueAt: duePtr(pollNow.Add(72 * time.Hour))},
		},
	}}
	sender := &recordingSender{}
	job, _ := newPollHarness(t, fetcher, sender, true)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Lab 3", sender.sent[0].Title)
	assert.Equal(t, "Quiz 2", sender.sent[1].Title)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, sender.sent, 2)
}

func TestRun_PartialAssignmentFailureCommitsOnlyDelivered(t *testing.T) {
	fetcher := &pollFetcher{assignments: map[string][]course.AssignmentFeedEntry{
		"hw-g": {
			{ID: "7", Name: "Lab 3", DueAt: duePtr(pollNow.Add(48 * time.Hour))},
			{ID: "9", Name: "Lab 4", DueAt: duePtr(pollNow.Add(96 * time.Hour))},
		},
	}}
	sender := &recordingSender{failNext: 1}
	job, _ := newPollHarness(t, fetcher, sender, true)

	// Lab 3's send fails, Lab 4's succeeds.
	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Lab 4", sender.sent[0].Title)

	// Only the undelivered item comes back.
	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Lab 3", sender.sent[1].Title)
}

func TestRun_MirrorsSeenSnapshots(t *testing.T) {
	fetcher := &pollFetcher{announcements: []course.AnnouncementFeedEntry{
		{ID: "42", Title: "Midterm moved", Published: true, PostedAt: pollNow},
	}}
	sender := &recordingSender{}

	c := course.Course{ID: "101", Name: "CS101", HomeworkGroupID: "hw-g", TestGroupID: "test-g"}
	registry, err := course.NewRegistry([]course.Course{c})
	require.NoError(t, err)
	eng := engine.New(fetcher, registry, zerolog.Nop(),
		engine.WithClock(func() time.Time { return pollNow }))
	router := fanout.NewRouter(sender, nil, &staticSubscribers{}, zerolog.Nop())
	saver := &recordingSaver{}
	job := NewPollCourses(registry, eng, router, present.New("Herald", "https://canvas.test/"), saver, zerolog.Nop())

	require.NoError(t, job.Run(context.Background()))

	require.Contains(t, saver.saved, "101")
	seen, ok := saver.saved["101"].(course.SeenIDs)
	require.True(t, ok)
	assert.Equal(t, "42", seen.LastAnnouncementID)
}
