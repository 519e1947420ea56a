package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var matchCourses = []Course{
	{ID: "101", Name: "CS101", Nick: "intro"},
	{ID: "202", Name: "Algorithms", Nick: "algo"},
}

func TestMatchCourse_ByNameAndNick(t *testing.T) {
	m := NewKeywordMatcher(matchCourses)

	c, ok := m.MatchCourse("hey bot, any cs101 news?")
	require.True(t, ok)
	assert.Equal(t, "101", c.ID)

	c, ok = m.MatchCourse("what's up in ALGO this week")
	require.True(t, ok)
	assert.Equal(t, "202", c.ID)

	_, ok = m.MatchCourse("tell me about chemistry")
	assert.False(t, ok)
}

func TestMatchCourse_FirstConfiguredWins(t *testing.T) {
	m := NewKeywordMatcher(matchCourses)

	c, ok := m.MatchCourse("cs101 or algo, whichever")
	require.True(t, ok)
	assert.Equal(t, "101", c.ID)
}

func TestClassifyQuery_Precedence(t *testing.T) {
	c := NewKeywordClassifier()

	assert.Equal(t, IntentAnnouncement, c.ClassifyQuery("any news?"))
	assert.Equal(t, IntentAnnouncement, c.ClassifyQuery("latest announcement please"))
	assert.Equal(t, IntentHomework, c.ClassifyQuery("got hw?"))
	assert.Equal(t, IntentTests, c.ClassifyQuery("when is the exam"))
	assert.Equal(t, IntentTests, c.ClassifyQuery("upcoming quizzes"))
	assert.Equal(t, IntentNone, c.ClassifyQuery("hello there"))

	// Announcement outranks homework outranks tests.
	assert.Equal(t, IntentAnnouncement, c.ClassifyQuery("news about the homework test"))
	assert.Equal(t, IntentHomework, c.ClassifyQuery("homework or exam first?"))
}

func TestMutationIntent(t *testing.T) {
	assert.Equal(t, IntentAdd, MutationIntent("add cs101 here"))
	assert.Equal(t, IntentRemove, MutationIntent("remove cs101"))
	assert.Equal(t, IntentRemove, MutationIntent("please DELETE this"))
	assert.Equal(t, IntentNone, MutationIntent("cs101 homework"))
	// Add wins when both keywords appear.
	assert.Equal(t, IntentAdd, MutationIntent("add, not remove"))
}

func TestIsHelp(t *testing.T) {
	assert.True(t, IsHelp("HELP me"))
	assert.False(t, IsHelp("homework"))
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(matchCourses)
	require.NoError(t, err)

	c, err := r.Get("202")
	require.NoError(t, err)
	assert.Equal(t, "Algorithms", c.Name)

	_, err = r.Get("999")
	assert.ErrorIs(t, err, ErrCourseNotFound)

	assert.Equal(t, "CS101, Algorithms", r.Names())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RejectsBadInput(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.ErrorIs(t, err, ErrNoCourses)

	_, err = NewRegistry([]Course{{ID: "1", Name: "A"}, {ID: "1", Name: "B"}})
	assert.ErrorIs(t, err, ErrDuplicateCourse)

	_, err = NewRegistry([]Course{{ID: "", Name: "A"}})
	assert.Error(t, err)
}
