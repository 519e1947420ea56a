package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/course-herald/internal/domain/shared"
)

type fakeRepo struct {
	saved   []Subscription
	saves   int
	failing bool
}

func (r *fakeRepo) Load(_ context.Context) ([]Subscription, error) {
	return r.saved, nil
}

func (r *fakeRepo) Save(_ context.Context, subs []Subscription) error {
	if r.failing {
		return errors.New("disk full")
	}
	r.saved = subs
	r.saves++
	return nil
}

func sub(server, channel, courseID string) Subscription {
	return Subscription{ServerID: server, ChannelID: channel, CourseID: courseID}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	repo := &fakeRepo{}
	store := NewStore(repo)
	require.NoError(t, store.Load(context.Background()))

	added, err := store.Add(context.Background(), sub("s1", "c1", "101"))
	require.NoError(t, err)
	assert.Equal(t, "101", added.CourseID)
	assert.Len(t, repo.saved, 1)

	err = store.Remove(context.Background(), added.Key())
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, repo.saved)
}

func TestAddDuplicateFails(t *testing.T) {
	store := NewStore(&fakeRepo{})

	_, err := store.Add(context.Background(), sub("s1", "c1", "101"))
	require.NoError(t, err)

	_, err = store.Add(context.Background(), sub("s1", "c1", "101"))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	assert.Equal(t, 1, store.Len())
}

func TestRemoveMissingFails(t *testing.T) {
	store := NewStore(&fakeRepo{})

	err := store.Remove(context.Background(), Key{ServerID: "s1", ChannelID: "c1", CourseID: "101"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAddRollsBackOnPersistFailure(t *testing.T) {
	repo := &fakeRepo{failing: true}
	store := NewStore(repo)

	_, err := store.Add(context.Background(), sub("s1", "c1", "101"))
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())

	// The triple is addable again once persistence recovers.
	repo.failing = false
	_, err = store.Add(context.Background(), sub("s1", "c1", "101"))
	assert.NoError(t, err)
}

func TestRemoveAllForServer(t *testing.T) {
	repo := &fakeRepo{}
	store := NewStore(repo)

	for _, s := range []Subscription{
		sub("evicted", "c1", "101"),
		sub("evicted", "c2", "101"),
		sub("evicted", "c1", "202"),
		sub("other", "c1", "101"),
		sub("other", "c2", "202"),
	} {
		_, err := store.Add(context.Background(), s)
		require.NoError(t, err)
	}
	savesBefore := repo.saves

	removed, err := store.RemoveAllForServer(context.Background(), "evicted")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 2, store.Len())
	assert.Len(t, repo.saved, 2)
	// Bulk removal persists once, not once per row.
	assert.Equal(t, savesBefore+1, repo.saves)

	for _, s := range store.All() {
		assert.Equal(t, "other", s.ServerID)
	}
}

func TestRemoveAllForServerNoMatches(t *testing.T) {
	repo := &fakeRepo{}
	store := NewStore(repo)
	_, err := store.Add(context.Background(), sub("s1", "c1", "101"))
	require.NoError(t, err)
	savesBefore := repo.saves

	removed, err := store.RemoveAllForServer(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, savesBefore, repo.saves)
}

func TestFindSubscribers(t *testing.T) {
	store := NewStore(&fakeRepo{})
	for _, s := range []Subscription{
		sub("s1", "c1", "101"),
		sub("s2", "c9", "101"),
		sub("s1", "c2", "202"),
	} {
		_, err := store.Add(context.Background(), s)
		require.NoError(t, err)
	}

	dests := store.FindSubscribers("101")
	require.Len(t, dests, 2)
	assert.Equal(t, "c1", dests[0].ChannelID)
	assert.Equal(t, "c9", dests[1].ChannelID)

	assert.Empty(t, store.FindSubscribers("999"))
}

func TestLoadDeduplicates(t *testing.T) {
	repo := &fakeRepo{saved: []Subscription{
		sub("s1", "c1", "101"),
		sub("s1", "c1", "101"),
		sub("s1", "c2", "101"),
	}}
	store := NewStore(repo)
	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, 2, store.Len())
}
