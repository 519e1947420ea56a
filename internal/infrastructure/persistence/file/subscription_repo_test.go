package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/course-herald/internal/domain/subscription"
)

func TestLoad_MissingFileIsEmptySet(t *testing.T) {
	repo := NewSubscriptionRepo(filepath.Join(t.TempDir(), "servers.json"), zerolog.Nop())

	subs, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	repo := NewSubscriptionRepo(path, zerolog.Nop())

	in := []subscription.Subscription{
		{ServerID: "s1", ServerName: "Guild", ChannelID: "c1", ChannelName: "general",
			CourseID: "101", CourseName: "CS101"},
		{ServerID: "s2", ChannelID: "c2", CourseID: "202"},
	}
	require.NoError(t, repo.Save(context.Background(), in))

	out, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSave_WritesServersDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	repo := NewSubscriptionRepo(path, zerolog.Nop())

	require.NoError(t, repo.Save(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "servers")
	assert.JSONEq(t, "[]", string(doc["servers"]))
}

func TestSave_OverwritesPreviousSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	repo := NewSubscriptionRepo(path, zerolog.Nop())

	require.NoError(t, repo.Save(context.Background(), []subscription.Subscription{
		{ServerID: "s1", ChannelID: "c1", CourseID: "101"},
		{ServerID: "s1", ChannelID: "c2", CourseID: "101"},
	}))
	require.NoError(t, repo.Save(context.Background(), []subscription.Subscription{
		{ServerID: "s1", ChannelID: "c1", CourseID: "101"},
	}))

	out, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestLoad_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	repo := NewSubscriptionRepo(path, zerolog.Nop())

	_, err := repo.Load(context.Background())
	assert.Error(t, err)
}
