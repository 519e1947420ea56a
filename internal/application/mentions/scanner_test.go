package mentions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/course-herald/internal/application/present"
	"github.com/coursehub/course-herald/internal/domain/course"
)

type fakeSearcher struct {
	mentions []Mention
	err      error
}

func (s *fakeSearcher) RecentMentions(_ context.Context) ([]Mention, error) {
	return s.mentions, s.err
}

type fakeReplier struct {
	replies map[string]string // mention id -> text
	err     error
}

func (r *fakeReplier) ReplyStatus(_ context.Context, text, inReplyTo string) error {
	if r.err != nil {
		return r.err
	}
	if r.replies == nil {
		r.replies = make(map[string]string)
	}
	r.replies[inReplyTo] = text
	return nil
}

type fakeStates struct {
	state course.State
}

func (s *fakeStates) Snapshot(string) (course.State, error) {
	return s.state, nil
}

const botID = "bot-1"

func newTestScanner(searcher *fakeSearcher, replier *fakeReplier, states *fakeStates) *Scanner {
	courses := []course.Course{{ID: "101", Name: "CS101", Nick: "intro"}}
	return NewScanner(
		searcher,
		replier,
		states,
		course.NewKeywordMatcher(courses),
		course.NewKeywordClassifier(),
		present.New("Herald", "https://canvas.test/"),
		Config{BotUserID: botID, Window: 5 * time.Minute},
		zerolog.Nop(),
	)
}

func mention(id, text string, age time.Duration) Mention {
	return Mention{
		ID:              id,
		Text:            text,
		AuthorUsername:  "student",
		InReplyToUserID: botID,
		CreatedAt:       time.Now().Add(-age),
	}
}

func TestScan_RepliesOncePerQualifyingMention(t *testing.T) {
	state := course.State{LastAnnouncement: &course.Announcement{
		ID: "42", Title: "Midterm moved", Date: "2026-03-10", Link: "https://canvas/42",
	}}
	searcher := &fakeSearcher{mentions: []Mention{
		mention("m1", "CS101 announcement?", time.Minute),
	}}
	replier := &fakeReplier{}

	err := newTestScanner(searcher, replier, &fakeStates{state: state}).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, replier.replies, 1)
	assert.Contains(t, replier.replies["m1"], "@student")
	assert.Contains(t, replier.replies["m1"], "Midterm moved")
}

func TestScan_StopsAtWindowBoundary(t *testing.T) {
	searcher := &fakeSearcher{mentions: []Mention{
		mention("recent", "CS101 homework", time.Minute),
		mention("stale", "CS101 homework", 10*time.Minute),
		// Most-recent-first ordering means everything after the stale one
		// is older still; the walk must not reach it.
		mention("ancient", "CS101 homework", time.Hour),
	}}
	replier := &fakeReplier{}

	err := newTestScanner(searcher, replier, &fakeStates{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, replier.replies, 1)
	assert.Contains(t, replier.replies, "recent")
}

func TestScan_SkipsIndirectMentions(t *testing.T) {
	m := mention("m1", "CS101 homework", time.Minute)
	m.InReplyToUserID = "someone-else" // retweets and third-party threads
	searcher := &fakeSearcher{mentions: []Mention{m}}
	replier := &fakeReplier{}

	err := newTestScanner(searcher, replier, &fakeStates{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, replier.replies)
}

func TestScan_UnknownCourseSkippedSilently(t *testing.T) {
	searcher := &fakeSearcher{mentions: []Mention{
		mention("m1", "BIO999 homework?", time.Minute),
	}}
	replier := &fakeReplier{}

	err := newTestScanner(searcher, replier, &fakeStates{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, replier.replies)
}

func TestScan_NoIntentSkipped(t *testing.T) {
	searcher := &fakeSearcher{mentions: []Mention{
		mention("m1", "CS101 is great!", time.Minute),
	}}
	replier := &fakeReplier{}

	err := newTestScanner(searcher, replier, &fakeStates{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, replier.replies)
}

func TestScan_ReplyFailureDoesNotStopWalk(t *testing.T) {
	searcher := &fakeSearcher{mentions: []Mention{
		mention("m1", "CS101 homework", time.Minute),
		mention("m2", "intro tests", 2*time.Minute),
	}}
	replier := &fakeReplier{err: errors.New("rate limited")}

	err := newTestScanner(searcher, replier, &fakeStates{}).Scan(context.Background())
	assert.NoError(t, err)
}

func TestScan_SearchFailureAbortsTick(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("search down")}

	err := newTestScanner(searcher, &fakeReplier{}, &fakeStates{}).Scan(context.Background())
	assert.Error(t, err)
}

func TestScan_EmptyStatePlaceholders(t *testing.T) {
	searcher := &fakeSearcher{mentions: []Mention{
		mention("m1", "CS101 homework", time.Minute),
	}}
	replier := &fakeReplier{}

	err := newTestScanner(searcher, replier, &fakeStates{}).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, replier.replies, 1)
	assert.Equal(t, "@student No upcoming homework.", replier.replies["m1"])
}
